package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"disaster-coordination/models"
	"disaster-coordination/service"
)

// CreateResource registers a relief resource.
// POST /api/v3/resources
func (h *Handlers) CreateResource(c *gin.Context) {
	var intake service.ResourceIntake
	if err := c.ShouldBindJSON(&intake); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resource, err := h.service.CreateResource(c.Request.Context(), intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resource)
}

// GetResource fetches one resource.
// GET /api/v3/resources/by-id/:id
func (h *Handlers) GetResource(c *gin.Context) {
	resource, err := h.service.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

// ListResources lists resources with optional filters.
// GET /api/v3/resources?disaster_id=..&type=water
func (h *Handlers) ListResources(c *gin.Context) {
	resources, err := h.service.ListResources(c.Request.Context(),
		c.Query("disaster_id"), models.ResourceType(c.Query("type")), parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// UpdateResource replaces a resource's mutable fields.
// PUT /api/v3/resources/by-id/:id
func (h *Handlers) UpdateResource(c *gin.Context) {
	var intake service.ResourceIntake
	if err := c.ShouldBindJSON(&intake); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resource, err := h.service.UpdateResource(c.Request.Context(), c.Param("id"), intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

// DeleteResource removes a resource.
// DELETE /api/v3/resources/by-id/:id
func (h *Handlers) DeleteResource(c *gin.Context) {
	if err := h.service.DeleteResource(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// NearbyResources searches resources around an explicit origin.
// GET /api/v3/resources/nearby?lat=..&lng=..&radius=..&type=water
func (h *Handlers) NearbyResources(c *gin.Context) {
	origin, ok := parseCoordinate(c)
	if !ok {
		return
	}
	radius, present, ok := parseRadius(c)
	if !ok {
		return
	}
	if !present {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius is required"})
		return
	}

	resources, err := h.service.NearbyResources(c.Request.Context(), origin, radius,
		models.ResourceType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// ResourcesNearDisaster searches resources around a disaster's own stored
// coordinates. A disaster without coordinates cannot anchor the search and
// answers 400; an unknown disaster answers 404.
// GET /api/v3/resources/near-disaster/:disasterId?radius=..&type=..
func (h *Handlers) ResourcesNearDisaster(c *gin.Context) {
	radius, present, ok := parseRadius(c)
	if !ok {
		return
	}
	if !present {
		radius = -1
	}

	resources, err := h.service.NearbyResourcesForDisaster(c.Request.Context(),
		c.Param("disasterId"), radius, models.ResourceType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}
