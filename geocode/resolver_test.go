package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disaster-coordination/cache"
	"disaster-coordination/models"
)

type fakeProvider struct {
	name  string
	coord models.Coordinate
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Resolve(ctx context.Context, locationName string) (models.Coordinate, error) {
	f.calls++
	if f.err != nil {
		return models.Coordinate{}, f.err
	}
	return f.coord, nil
}

func newTestResolver(providers ...Provider) *Resolver {
	return NewResolver(providers, cache.New(time.Hour), time.Second)
}

func TestGeocodeBlankNameSkipsProviders(t *testing.T) {
	a := &fakeProvider{name: "A", coord: models.Coordinate{Lat: 1, Lng: 2}}
	r := newTestResolver(a)

	for _, name := range []string{"", "   ", "\t"} {
		result, err := r.Geocode(context.Background(), name)
		require.NoError(t, err)
		assert.Nil(t, result)
	}
	assert.Equal(t, 0, a.calls)
}

func TestGeocodeSingleProvider(t *testing.T) {
	a := &fakeProvider{name: "A", coord: models.Coordinate{Lat: 40.7831, Lng: -73.9712}}
	r := newTestResolver(a)

	result, err := r.Geocode(context.Background(), "Manhattan, NYC")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.Coordinate{Lat: 40.7831, Lng: -73.9712}, result.Coordinates)
	assert.Equal(t, "A", result.Source)
}

func TestGeocodeCachedResultSkipsProviderCall(t *testing.T) {
	a := &fakeProvider{name: "A", coord: models.Coordinate{Lat: 40.7831, Lng: -73.9712}}
	r := newTestResolver(a)

	first, err := r.Geocode(context.Background(), "Manhattan, NYC")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := r.Geocode(context.Background(), "Manhattan, NYC")
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, 1, a.calls, "second call within TTL must not contact the provider")
	assert.Same(t, first, second)
}

func TestGeocodeCacheKeyIsCaseFolded(t *testing.T) {
	a := &fakeProvider{name: "A", coord: models.Coordinate{Lat: 1, Lng: 2}}
	r := newTestResolver(a)

	_, err := r.Geocode(context.Background(), "Manhattan")
	require.NoError(t, err)
	_, err = r.Geocode(context.Background(), "  MANHATTAN ")
	require.NoError(t, err)

	assert.Equal(t, 1, a.calls)
}

func TestGeocodeFailoverToNextProvider(t *testing.T) {
	a := &fakeProvider{name: "A", err: errors.New("timeout")}
	b := &fakeProvider{name: "B", coord: models.Coordinate{Lat: 42.43, Lng: 19.26}}
	r := newTestResolver(a, b)

	result, err := r.Geocode(context.Background(), "Podgorica")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "B", result.Source)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestRotationPointerAdvancesAcrossCalls(t *testing.T) {
	a := &fakeProvider{name: "A", err: errors.New("unavailable")}
	b := &fakeProvider{name: "B", coord: models.Coordinate{Lat: 1, Lng: 1}}
	r := newTestResolver(a, b)

	// A fails, rotation advances, B answers.
	_, err := r.Geocode(context.Background(), "first place")
	require.NoError(t, err)

	// A different place starts from B; A must not be hammered again.
	result, err := r.Geocode(context.Background(), "second place")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "B", result.Source)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestGeocodeAllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "A", err: ErrNoMatch}
	b := &fakeProvider{name: "B", err: errors.New("401 unauthorized")}
	r := newTestResolver(a, b)

	result, err := r.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	// Both failures advanced the pointer; a full cycle lands back on A.
	assert.Equal(t, 0, r.startIndex())
}

func TestGeocodeNoProvidersConfigured(t *testing.T) {
	r := newTestResolver()
	result, err := r.Geocode(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.Nil(t, result)
}
