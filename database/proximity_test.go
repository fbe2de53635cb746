package database

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disaster-coordination/models"
)

var nycOrigin = models.Coordinate{Lat: 40.7128, Lng: -74.0060}

func anyTime() time.Time { return time.Now() }

func TestFindNearbyResourcesRejectsOutOfRangeRadius(t *testing.T) {
	it(func() {
		for _, radius := range []int{-1, 0, 99, 50001, 1000000} {
			_, err := d.FindNearbyResources(context.Background(), nycOrigin, radius, "")
			assert.ErrorIs(t, err, ErrRadiusOutOfRange, "radius %d", radius)
		}
		// No query may reach the datastore for invalid input.
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindNearbyResourcesRejectsInvalidOrigin(t *testing.T) {
	it(func() {
		_, err := d.FindNearbyResources(context.Background(), models.Coordinate{Lat: 91, Lng: 0}, 1000, "")
		assert.Error(t, err)

		_, err = d.FindNearbyResources(context.Background(), models.Coordinate{Lat: 0, Lng: 181}, 1000, "")
		assert.Error(t, err)
	})
}

func TestFindNearbyResourcesBoundaryRadiiAccepted(t *testing.T) {
	it(func() {
		for _, radius := range []int{MinRadiusMeters, MaxRadiusMeters} {
			mock.ExpectQuery(`(?s)SELECT .+ FROM resources`).
				WillReturnRows(nearbyResourceRows())
			_, err := d.FindNearbyResources(context.Background(), nycOrigin, radius, "")
			assert.NoError(t, err, "radius %d", radius)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func nearbyResourceRows(rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows([]string{
		"id", "disaster_id", "name", "type", "location_name",
		"latitude", "longitude", "quantity", "created_at", "distance_m",
	})
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func TestFindNearbyResourcesOrdersByDistanceThenID(t *testing.T) {
	it(func() {
		// The engine delegates ordering to the datastore; the query must
		// demand distance-then-id ordering and the exact spherical cut.
		mock.ExpectQuery(`(?s)ST_Distance_Sphere.+ORDER BY distance_m ASC, id ASC`).
			WillReturnRows(nearbyResourceRows(
				[]driver.Value{"r-1", nil, "Water Station", "water", "", 40.7150, -74.0055, 500, anyTime(), 500.0},
				[]driver.Value{"r-2", nil, "Shelter A", "shelter", "", 40.7480, -74.0010, 80, anyTime(), 4000.0},
			))

		results, err := d.FindNearbyResources(context.Background(), nycOrigin, 10000, "")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "r-1", results[0].ID)
		assert.InDelta(t, 500.0, results[0].DistanceMeters, 1e-9)
		assert.Equal(t, "r-2", results[1].ID)
		assert.InDelta(t, 4000.0, results[1].DistanceMeters, 1e-9)
	})
}

func TestFindNearbyResourcesExcludesRowsWithoutCoordinates(t *testing.T) {
	it(func() {
		// The WHERE clause must filter NULL coordinates in the datastore.
		mock.ExpectQuery(`latitude IS NOT NULL AND longitude IS NOT NULL`).
			WillReturnRows(nearbyResourceRows())

		results, err := d.FindNearbyResources(context.Background(), nycOrigin, 10000, "")
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindNearbyResourcesTypeFilter(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`AND type = \?`).
			WillReturnRows(nearbyResourceRows(
				[]driver.Value{"r-3", nil, "Medical Tent", "medical", "", 40.7130, -74.0060, 5, anyTime(), 120.0},
			))

		results, err := d.FindNearbyResources(context.Background(), nycOrigin, 10000, models.ResourceMedical)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, models.ResourceMedical, results[0].Type)
	})
}

func TestFindNearbyResourcesEmptyResultIsNotAnError(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`(?s)SELECT .+ FROM resources`).
			WillReturnRows(nearbyResourceRows())

		results, err := d.FindNearbyResources(context.Background(), nycOrigin, 10000, "")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})
}

func TestFindNearbyDisasters(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "title", "location_name", "description", "latitude", "longitude",
			"tags", "owner_id", "audit_trail", "created_at", "updated_at", "distance_m",
		}).AddRow("d-1", "NYC Flood", "Manhattan, NYC", "", 40.7831, -73.9712,
			`["flood"]`, "user-1", `[]`, anyTime(), anyTime(), 7900.0)

		mock.ExpectQuery(`(?s)ST_Distance_Sphere.+ORDER BY distance_m ASC, id ASC`).
			WillReturnRows(rows)

		results, err := d.FindNearbyDisasters(context.Background(), nycOrigin, 10000)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "d-1", results[0].ID)
		assert.InDelta(t, 7900.0, results[0].DistanceMeters, 1e-9)
	})
}

func TestFindNearbyDisastersRejectsOutOfRangeRadius(t *testing.T) {
	it(func() {
		_, err := d.FindNearbyDisasters(context.Background(), nycOrigin, 99)
		assert.ErrorIs(t, err, ErrRadiusOutOfRange)
	})
}
