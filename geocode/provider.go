package geocode

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"disaster-coordination/models"
)

// ErrNoMatch is returned by a provider when the query resolves to zero
// candidates. For rotation purposes it is treated like any other failure.
var ErrNoMatch = errors.New("no match for location")

// Provider resolves a free-text place name to coordinates. When a provider
// returns multiple candidates only the first (provider-ranked best) match
// is used.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, locationName string) (models.Coordinate, error)
}

// newHTTPClient builds the HTTP client shared by provider implementations.
// Transient transport errors are retried; anything that survives the
// retries surfaces as a single provider failure.
func newHTTPClient(timeout time.Duration, retryMax int) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return rc.StandardClient()
}
