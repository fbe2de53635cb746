package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"

	"disaster-coordination/middleware"
	"disaster-coordination/service"
)

// CreateDisaster files a new disaster.
// POST /api/v3/disasters
func (h *Handlers) CreateDisaster(c *gin.Context) {
	var intake service.DisasterIntake
	if err := c.ShouldBindJSON(&intake); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	disaster, err := h.service.CreateDisaster(c.Request.Context(), middleware.GetUserID(c), intake)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, disaster)
}

// GetDisaster fetches one disaster.
// GET /api/v3/disasters/:id
func (h *Handlers) GetDisaster(c *gin.Context) {
	disaster, err := h.service.GetDisaster(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disaster)
}

// ListDisasters lists disasters, optionally filtered by tag.
// GET /api/v3/disasters?tag=flood&limit=50
func (h *Handlers) ListDisasters(c *gin.Context) {
	disasters, err := h.service.ListDisasters(c.Request.Context(), c.Query("tag"), parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disasters)
}

// UpdateDisaster applies a partial update.
// PUT /api/v3/disasters/:id
func (h *Handlers) UpdateDisaster(c *gin.Context) {
	var upd service.DisasterUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	disaster, err := h.service.UpdateDisaster(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disaster)
}

// DeleteDisaster removes a disaster.
// DELETE /api/v3/disasters/:id
func (h *Handlers) DeleteDisaster(c *gin.Context) {
	if err := h.service.DeleteDisaster(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// RecentUpdates returns the recent change events recorded for a disaster.
// GET /api/v3/disasters/:id/updates
func (h *Handlers) RecentUpdates(c *gin.Context) {
	updates, err := h.service.RecentUpdates(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}

// SocialMedia returns recent social posts mentioning the disaster.
// GET /api/v3/disasters/:id/social-media
func (h *Handlers) SocialMedia(c *gin.Context) {
	posts, err := h.service.SocialMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// ExportDisastersGeoJSON renders all geotagged disasters as a GeoJSON
// FeatureCollection for map overlays. Disasters without coordinates are
// left out; they cannot be placed on a map.
// GET /api/v3/export/disasters.geojson
func (h *Handlers) ExportDisastersGeoJSON(c *gin.Context) {
	disasters, err := h.service.ListDisasters(c.Request.Context(), c.Query("tag"), parseLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, disaster := range disasters {
		if disaster.Coordinates == nil {
			continue
		}
		feature := geojson.NewPointFeature([]float64{disaster.Coordinates.Lng, disaster.Coordinates.Lat})
		feature.ID = disaster.ID
		feature.SetProperty("title", disaster.Title)
		feature.SetProperty("location_name", disaster.LocationName)
		feature.SetProperty("tags", disaster.Tags)
		feature.SetProperty("created_at", disaster.CreatedAt)
		fc.AddFeature(feature)
	}

	c.JSON(http.StatusOK, fc)
}
