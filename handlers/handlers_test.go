package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jknair0/beforeeach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"disaster-coordination/cache"
	"disaster-coordination/database"
	"disaster-coordination/llm"
	"disaster-coordination/models"
	"disaster-coordination/service"
	ws "disaster-coordination/websocket"
)

type stubGeocoder struct {
	result *models.GeocodeResult
	err    error
}

func (s *stubGeocoder) Geocode(_ context.Context, _ string) (*models.GeocodeResult, error) {
	return s.result, s.err
}

type stubExtractor struct {
	location string
	err      error
}

func (s *stubExtractor) ExtractLocation(_ context.Context, _ string) (string, error) {
	return s.location, s.err
}

var (
	mockDB    *sql.DB
	mock      sqlmock.Sqlmock
	geocoder  *stubGeocoder
	extractor *stubExtractor
	router    *gin.Engine
)

func setUp() {
	gin.SetMode(gin.TestMode)
	mockDB, mock, _ = sqlmock.New()
	geocoder = &stubGeocoder{}
	extractor = &stubExtractor{}

	hub := ws.NewHub()
	go hub.Run()

	svc := service.New(database.NewWithDB(mockDB), geocoder, nil, nil, hub,
		cache.New(time.Hour), 10000)
	h := NewHandlers(svc, geocoder, extractor, hub)

	router = gin.New()
	api := router.Group("/api/v3")
	api.GET("/geocode/location", h.GeocodeLocation)
	api.POST("/geocode/extract-location", h.ExtractLocation)
	api.GET("/geocode/nearby-disasters", h.NearbyDisasters)
	api.GET("/resources/nearby", h.NearbyResources)
	api.GET("/resources/near-disaster/:disasterId", h.ResourcesNearDisaster)
	api.GET("/disasters/:id", h.GetDisaster)
	api.GET("/export/disasters.geojson", h.ExportDisastersGeoJSON)
}

func tearDown() {
	mockDB.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func doJSON(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGeocodeLocationMissingQuery(t *testing.T) {
	it(func() {
		w := doJSON(http.MethodGet, "/api/v3/geocode/location", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGeocodeLocationResolved(t *testing.T) {
	it(func() {
		geocoder.result = &models.GeocodeResult{
			Coordinates: models.Coordinate{Lat: 40.7831, Lng: -73.9712},
			Source:      "nominatim",
		}

		w := doJSON(http.MethodGet, "/api/v3/geocode/location?q=Manhattan%2C+NYC", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Equal(t, "Manhattan, NYC", gjson.Get(body, "query").String())
		assert.InDelta(t, 40.7831, gjson.Get(body, "coordinates.lat").Float(), 1e-9)
		assert.Equal(t, "nominatim", gjson.Get(body, "source").String())
	})
}

func TestGeocodeLocationUnresolvable(t *testing.T) {
	it(func() {
		geocoder.result = nil

		w := doJSON(http.MethodGet, "/api/v3/geocode/location?q=Nowhereville+Qzx", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExtractLocationMissingText(t *testing.T) {
	it(func() {
		w := doJSON(http.MethodPost, "/api/v3/geocode/extract-location", `{"text":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExtractLocationNothingExtractable(t *testing.T) {
	it(func() {
		extractor.err = llm.ErrNoLocation

		w := doJSON(http.MethodPost, "/api/v3/geocode/extract-location", `{"text":"nothing here"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExtractLocationGeocodingFailureStillSucceeds(t *testing.T) {
	it(func() {
		extractor.location = "Atlantis"
		geocoder.result = nil

		w := doJSON(http.MethodPost, "/api/v3/geocode/extract-location", `{"text":"flooding in Atlantis"}`)
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Equal(t, "Atlantis", gjson.Get(body, "location").String())
		assert.Equal(t, gjson.Null, gjson.Get(body, "coordinates").Type)
	})
}

func TestExtractLocationFullyResolved(t *testing.T) {
	it(func() {
		extractor.location = "Santa Rosa, California"
		geocoder.result = &models.GeocodeResult{
			Coordinates: models.Coordinate{Lat: 38.4404, Lng: -122.7141},
			Source:      "locationiq",
		}

		w := doJSON(http.MethodPost, "/api/v3/geocode/extract-location", `{"text":"fire near Santa Rosa"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.InDelta(t, 38.4404, gjson.Get(w.Body.String(), "coordinates.lat").Float(), 1e-9)
	})
}

func TestNearbyResourcesValidation(t *testing.T) {
	it(func() {
		// Missing coordinates
		w := doJSON(http.MethodGet, "/api/v3/resources/nearby?radius=1000", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Malformed coordinates
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=abc&lng=1&radius=1000", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Out-of-bounds latitude
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=95&lng=1&radius=1000", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Missing radius
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7&lng=-74.0", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Explicit zero is out of range, not "use the default"
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7&lng=-74.0&radius=0", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Radius below the supported range; rejected, never clamped
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7&lng=-74.0&radius=99", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// Radius above the supported range
		w = doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7&lng=-74.0&radius=50001", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// None of the rejected requests may touch the datastore.
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNearbyDisastersExplicitZeroRadiusRejected(t *testing.T) {
	it(func() {
		w := doJSON(http.MethodGet, "/api/v3/geocode/nearby-disasters?lat=40.7128&lng=-74.0060&radius=0", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet(), "rejected radius must not reach the datastore")
	})
}

func TestNearbyDisastersAbsentRadiusUsesDefault(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`(?s)SELECT .+ FROM disasters`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "title", "location_name", "description", "latitude", "longitude",
				"tags", "owner_id", "audit_trail", "created_at", "updated_at", "distance_m",
			}))

		w := doJSON(http.MethodGet, "/api/v3/geocode/nearby-disasters?lat=40.7128&lng=-74.0060", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNearbyResourcesSuccess(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`(?s)SELECT .+ FROM resources`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "disaster_id", "name", "type", "location_name",
				"latitude", "longitude", "quantity", "created_at", "distance_m",
			}).AddRow("r-1", nil, "Water Station", "water", "", 40.715, -74.0055, 500, time.Now(), 500.0))

		w := doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7128&lng=-74.0060&radius=10000", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
		assert.InDelta(t, 500.0, gjson.Get(body, "0.distance_meters").Float(), 1e-9)
	})
}

func TestNearbyResourcesDatastoreError(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`(?s)SELECT .+ FROM resources`).
			WillReturnError(sql.ErrConnDone)

		w := doJSON(http.MethodGet, "/api/v3/resources/nearby?lat=40.7128&lng=-74.0060&radius=10000", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestResourcesNearDisasterNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT .+ FROM disasters WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		w := doJSON(http.MethodGet, "/api/v3/resources/near-disaster/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestResourcesNearDisasterWithoutCoordinates(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "title", "location_name", "description", "latitude", "longitude",
			"tags", "owner_id", "audit_trail", "created_at", "updated_at",
		}).AddRow("d-2", "Mystery Event", "", "", nil, nil, `[]`, "user-1", `[]`, time.Now(), time.Now())

		mock.ExpectQuery("SELECT .+ FROM disasters WHERE id = ?").
			WithArgs("d-2").
			WillReturnRows(rows)

		w := doJSON(http.MethodGet, "/api/v3/resources/near-disaster/d-2", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResourcesNearDisasterExplicitZeroRadiusRejected(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "title", "location_name", "description", "latitude", "longitude",
			"tags", "owner_id", "audit_trail", "created_at", "updated_at",
		}).AddRow("d-1", "Flood", "Manhattan, NYC", "", 40.7831, -73.9712, `[]`, "user-1", `[]`, time.Now(), time.Now())

		mock.ExpectQuery("SELECT .+ FROM disasters WHERE id = ?").
			WithArgs("d-1").
			WillReturnRows(rows)

		w := doJSON(http.MethodGet, "/api/v3/resources/near-disaster/d-1?radius=0", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetDisasterNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery("SELECT .+ FROM disasters WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		w := doJSON(http.MethodGet, "/api/v3/disasters/missing", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExportDisastersGeoJSONSkipsUnmapped(t *testing.T) {
	it(func() {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "title", "location_name", "description", "latitude", "longitude",
			"tags", "owner_id", "audit_trail", "created_at", "updated_at",
		}).AddRow("d-1", "NYC Flood", "Manhattan, NYC", "", 40.7831, -73.9712, `["flood"]`, "u", `[]`, now, now).
			AddRow("d-2", "Mystery Event", "", "", nil, nil, `[]`, "u", `[]`, now, now)

		mock.ExpectQuery("SELECT .+ FROM disasters").
			WillReturnRows(rows)

		w := doJSON(http.MethodGet, "/api/v3/export/disasters.geojson", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := w.Body.String()
		assert.Equal(t, "FeatureCollection", gjson.Get(body, "type").String())
		assert.Equal(t, int64(1), gjson.Get(body, "features.#").Int())
		assert.Equal(t, "NYC Flood", gjson.Get(body, "features.0.properties.title").String())
		// GeoJSON positions are [lng, lat]
		assert.InDelta(t, -73.9712, gjson.Get(body, "features.0.geometry.coordinates.0").Float(), 1e-9)
	})
}
