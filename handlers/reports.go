package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"disaster-coordination/middleware"
	"disaster-coordination/service"
)

// SubmitReport files a citizen report against a disaster.
// POST /api/v3/disasters/:id/reports
func (h *Handlers) SubmitReport(c *gin.Context) {
	var intake service.ReportIntake
	if err := c.ShouldBindJSON(&intake); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report, err := h.service.SubmitReport(c.Request.Context(), c.Param("id"),
		middleware.GetUserID(c), intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

// ListReports returns a disaster's reports, newest first.
// GET /api/v3/disasters/:id/reports
func (h *Handlers) ListReports(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context(), c.Param("id"), parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// VerifyReport runs the LLM image check on a report and records the verdict.
// POST /api/v3/reports/:id/verify
func (h *Handlers) VerifyReport(c *gin.Context) {
	report, err := h.service.VerifyReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == service.ErrVerifierUnavailable {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
