package geocode

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"disaster-coordination/cache"
	"disaster-coordination/metrics"
	"disaster-coordination/models"
)

// Resolver turns a free-text place name into coordinates, trying providers
// in a fixed rotation with failover and caching successes.
//
// The rotation pointer is process-wide: when a provider fails, the pointer
// advances so the next lookup (for any place) starts from the following
// provider. This spreads load away from a provider that just failed.
type Resolver struct {
	providers []Provider
	cache     *cache.Cache
	timeout   time.Duration

	mu   sync.Mutex
	next int
}

// NewResolver creates a resolver over an ordered provider list. timeout
// bounds each individual provider call.
func NewResolver(providers []Provider, c *cache.Cache, timeout time.Duration) *Resolver {
	return &Resolver{
		providers: providers,
		cache:     c,
		timeout:   timeout,
	}
}

// Providers returns the configured provider names in rotation order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

func (r *Resolver) startIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

func (r *Resolver) advance() {
	r.mu.Lock()
	r.next = (r.next + 1) % len(r.providers)
	r.mu.Unlock()
	metrics.RotationAdvancesTotal.Inc()
}

// Geocode resolves locationName to coordinates. It returns (nil, nil) when
// the name is blank or no configured provider can resolve it; callers must
// treat nil as "no coordinates available". A cached result is returned
// without contacting any provider.
func (r *Resolver) Geocode(ctx context.Context, locationName string) (*models.GeocodeResult, error) {
	if strings.TrimSpace(locationName) == "" {
		return nil, nil
	}
	if len(r.providers) == 0 {
		log.Warn("geocode requested but no providers are configured")
		return nil, nil
	}

	key := cache.GeocodeKey(locationName)
	if v, ok := r.cache.Get(key); ok {
		metrics.GeocodeRequestsTotal.WithLabelValues("cache_hit").Inc()
		return v.(*models.GeocodeResult), nil
	}

	start := r.startIndex()
	for i := 0; i < len(r.providers); i++ {
		p := r.providers[(start+i)%len(r.providers)]

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		coord, err := p.Resolve(callCtx, locationName)
		cancel()

		if err != nil {
			// Timeouts, auth errors and zero-match responses are all
			// the same to the rotation: log, advance, try the next one.
			log.WithError(err).Warnf("provider %s failed for %q", p.Name(), locationName)
			metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "failure").Inc()
			r.advance()
			continue
		}

		metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "success").Inc()
		metrics.GeocodeRequestsTotal.WithLabelValues("resolved").Inc()

		result := &models.GeocodeResult{
			Coordinates: coord,
			Source:      p.Name(),
			ResolvedAt:  time.Now().UTC(),
		}
		r.cache.Set(key, result)
		return result, nil
	}

	metrics.GeocodeRequestsTotal.WithLabelValues("unresolved").Inc()
	log.Warnf("all %d providers failed for %q", len(r.providers), locationName)
	return nil, nil
}
