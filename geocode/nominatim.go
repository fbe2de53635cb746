package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"disaster-coordination/models"
)

const (
	// userAgent is required by the Nominatim usage policy.
	userAgent = "DisasterCoordination/1.0"
	// Nominatim allows at most 1 request per second.
	nominatimMinInterval = time.Second
)

// NominatimProvider geocodes through the OpenStreetMap Nominatim API.
// It needs no credential and is always part of the rotation.
type NominatimProvider struct {
	baseURL       string
	email         string
	httpClient    *http.Client
	lastRequest   time.Time
	rateLimitLock sync.Mutex
}

// NewNominatimProvider creates a Nominatim provider. email is sent with
// each request per the usage policy; it may be empty.
func NewNominatimProvider(baseURL, email string, timeout time.Duration, retryMax int) *NominatimProvider {
	return &NominatimProvider{
		baseURL:    baseURL,
		email:      email,
		httpClient: newHTTPClient(timeout, retryMax),
	}
}

func (p *NominatimProvider) Name() string { return "nominatim" }

// enforceRateLimit ensures we don't exceed Nominatim's rate limit.
func (p *NominatimProvider) enforceRateLimit() {
	p.rateLimitLock.Lock()
	defer p.rateLimitLock.Unlock()

	elapsed := time.Since(p.lastRequest)
	if elapsed < nominatimMinInterval {
		time.Sleep(nominatimMinInterval - elapsed)
	}
	p.lastRequest = time.Now()
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve performs a forward geocode and returns the best-ranked match.
func (p *NominatimProvider) Resolve(ctx context.Context, locationName string) (models.Coordinate, error) {
	p.enforceRateLimit()

	params := url.Values{}
	params.Set("q", locationName)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	if p.email != "" {
		params.Set("email", p.email)
	}

	reqURL := fmt.Sprintf("%s/search?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.Coordinate{}, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinate{}, ErrNoMatch
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	coord := models.Coordinate{Lat: lat, Lng: lng}
	if err := coord.Validate(); err != nil {
		return models.Coordinate{}, fmt.Errorf("nominatim returned invalid coordinate: %w", err)
	}
	return coord, nil
}
