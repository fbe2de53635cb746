package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"disaster-coordination/models"
)

const mapTilerBaseURL = "https://api.maptiler.com/geocoding"

// MapTilerProvider geocodes through the MapTiler API. It joins the
// rotation only when an API key is configured.
type MapTilerProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewMapTilerProvider creates a MapTiler provider.
func NewMapTilerProvider(apiKey string, timeout time.Duration, retryMax int) *MapTilerProvider {
	return &MapTilerProvider{
		baseURL:    mapTilerBaseURL,
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout, retryMax),
	}
}

func (p *MapTilerProvider) Name() string { return "maptiler" }

// Resolve performs a forward geocode. MapTiler answers GeoJSON; features
// are ranked by relevance so the first one is the best match.
func (p *MapTilerProvider) Resolve(ctx context.Context, locationName string) (models.Coordinate, error) {
	reqURL := fmt.Sprintf("%s/%s.json?key=%s&limit=1",
		p.baseURL, url.PathEscape(locationName), url.QueryEscape(p.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, fmt.Errorf("maptiler returned status %d: %s", resp.StatusCode, string(body))
	}

	// GeoJSON positions are [lng, lat].
	coords := gjson.GetBytes(body, "features.0.geometry.coordinates")
	if !coords.Exists() {
		return models.Coordinate{}, ErrNoMatch
	}
	pos := coords.Array()
	if len(pos) < 2 {
		return models.Coordinate{}, fmt.Errorf("malformed geometry in maptiler response")
	}

	coord := models.Coordinate{Lat: pos[1].Float(), Lng: pos[0].Float()}
	if err := coord.Validate(); err != nil {
		return models.Coordinate{}, fmt.Errorf("maptiler returned invalid coordinate: %w", err)
	}
	return coord, nil
}
