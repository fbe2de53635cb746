package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"disaster-coordination/llm"
)

// GeocodeLocation resolves a free-text place name.
// GET /api/v3/geocode/location?q=Manhattan,+NYC
func (h *Handlers) GeocodeLocation(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	result, err := h.geocoder.Geocode(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "location could not be resolved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":       query,
		"location":    query,
		"coordinates": result.Coordinates,
		"source":      result.Source,
	})
}

type extractLocationRequest struct {
	Text string `json:"text"`
}

// ExtractLocation mines a place name out of free text and geocodes it.
// A text with an extractable location whose geocoding fails still answers
// 200, with null coordinates; only "nothing extractable" is a 404.
// POST /api/v3/geocode/extract-location
func (h *Handlers) ExtractLocation(c *gin.Context) {
	var req extractLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	if h.extractor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location found in text"})
		return
	}

	location, err := h.extractor.ExtractLocation(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, llm.ErrNoLocation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no location found in text"})
			return
		}
		respondError(c, err)
		return
	}

	response := gin.H{
		"location":    location,
		"coordinates": nil,
		"source":      nil,
	}
	if result, err := h.geocoder.Geocode(c.Request.Context(), location); err == nil && result != nil {
		response["coordinates"] = result.Coordinates
		response["source"] = result.Source
	}
	c.JSON(http.StatusOK, response)
}

// NearbyDisasters searches disasters around an explicit origin.
// GET /api/v3/geocode/nearby-disasters?lat=..&lng=..&radius=..
func (h *Handlers) NearbyDisasters(c *gin.Context) {
	origin, ok := parseCoordinate(c)
	if !ok {
		return
	}
	radius, present, ok := parseRadius(c)
	if !ok {
		return
	}
	if !present {
		radius = -1
	}

	disasters, err := h.service.NearbyDisasters(c.Request.Context(), origin, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, disasters)
}
