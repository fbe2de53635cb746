package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"disaster-coordination/models"
)

const locationIQBaseURL = "https://us1.locationiq.com/v1"

// LocationIQProvider geocodes through the LocationIQ API. It joins the
// rotation only when an API key is configured.
type LocationIQProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewLocationIQProvider creates a LocationIQ provider.
func NewLocationIQProvider(apiKey string, timeout time.Duration, retryMax int) *LocationIQProvider {
	return &LocationIQProvider{
		baseURL:    locationIQBaseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout, retryMax),
	}
}

func (p *LocationIQProvider) Name() string { return "locationiq" }

type locationIQResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Resolve performs a forward geocode and returns the best-ranked match.
func (p *LocationIQProvider) Resolve(ctx context.Context, locationName string) (models.Coordinate, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("q", locationName)
	params.Set("format", "json")
	params.Set("limit", "1")

	reqURL := fmt.Sprintf("%s/search?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 for zero matches.
	if resp.StatusCode == http.StatusNotFound {
		return models.Coordinate{}, ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.Coordinate{}, fmt.Errorf("locationiq returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []locationIQResult
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
		return models.Coordinate{}, fmt.Errorf("locationiq returned invalid coordinate: %w", err)
	}
	return coord, nil
}
