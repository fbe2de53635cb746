package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"disaster-coordination/database"
	"disaster-coordination/models"
	"disaster-coordination/service"
	ws "disaster-coordination/websocket"
)

// Geocoder resolves a place name; (nil, nil) means unresolvable.
type Geocoder interface {
	Geocode(ctx context.Context, locationName string) (*models.GeocodeResult, error)
}

// LocationExtractor mines a place name out of free text.
type LocationExtractor interface {
	ExtractLocation(ctx context.Context, text string) (string, error)
}

// Handlers contains the HTTP handlers for the coordination API.
type Handlers struct {
	service   *service.Service
	geocoder  Geocoder
	extractor LocationExtractor
	hub       *ws.Hub
}

// NewHandlers creates the handler set. extractor may be nil when no LLM is
// configured; the extract-location endpoint then reports 404 for all input.
func NewHandlers(svc *service.Service, geocoder Geocoder, extractor LocationExtractor, hub *ws.Hub) *Handlers {
	return &Handlers{
		service:   svc,
		geocoder:  geocoder,
		extractor: extractor,
		hub:       hub,
	}
}

// respondError maps service and database errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrRadiusOutOfRange),
		errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrNameRequired),
		errors.Is(err, service.ErrContentRequired),
		errors.Is(err, service.ErrInvalidResourceType),
		errors.Is(err, service.ErrNoCoordinates),
		errors.Is(err, service.ErrNoImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parseCoordinate reads lat/lng query params into a validated coordinate.
func parseCoordinate(c *gin.Context) (models.Coordinate, bool) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required numbers"})
		return models.Coordinate{}, false
	}
	coord := models.Coordinate{Lat: lat, Lng: lng}
	if err := coord.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Coordinate{}, false
	}
	return coord, true
}

// parseRadius reads the radius query param. present reports whether the
// caller supplied one at all, so absence can fall back to a default while
// an explicit out-of-range value (zero included) still reaches the query
// engine's range check and gets rejected rather than substituted.
func parseRadius(c *gin.Context) (radius int, present, ok bool) {
	raw := c.Query("radius")
	if raw == "" {
		return 0, false, true
	}
	radius, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be an integer"})
		return 0, true, false
	}
	return radius, true, true
}

// parseLimit reads the limit query param with a default and cap.
func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
