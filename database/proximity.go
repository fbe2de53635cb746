package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"disaster-coordination/models"
)

// Radius bounds for proximity queries, in meters. Values outside the range
// are a caller input error, never silently clamped.
const (
	MinRadiusMeters = 100
	MaxRadiusMeters = 50000
)

const earthRadiusMeters = 6371010.0

// ErrRadiusOutOfRange is returned for radii outside [MinRadiusMeters,
// MaxRadiusMeters]. Callers surface it as 400.
var ErrRadiusOutOfRange = fmt.Errorf("radius must be within [%d, %d] meters", MinRadiusMeters, MaxRadiusMeters)

func validateProximityInput(origin models.Coordinate, radiusMeters int) error {
	if err := origin.Validate(); err != nil {
		return err
	}
	if radiusMeters < MinRadiusMeters || radiusMeters > MaxRadiusMeters {
		return ErrRadiusOutOfRange
	}
	return nil
}

// boundingRect returns the lat/lng bounds (degrees) of a rectangle that
// fully contains the search circle. It only prefilters on the indexed
// columns; the exact cut is made by the datastore's spherical distance.
func boundingRect(origin models.Coordinate, radiusMeters int) (latLo, latHi, lngLo, lngHi float64) {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(origin.Lat, origin.Lng))
	angle := s1.Angle(float64(radiusMeters) / earthRadiusMeters)
	rect := s2.CapFromCenterAngle(center, angle).RectBound()
	lo, hi := rect.Lo(), rect.Hi()
	return lo.Lat.Degrees(), hi.Lat.Degrees(), lo.Lng.Degrees(), hi.Lng.Degrees()
}

// FindNearbyResources returns resources within radiusMeters of origin,
// nearest first, ties broken by id. Rows without coordinates are excluded.
// Distance comes from MySQL's ST_Distance_Sphere and is treated as ground
// truth.
func (d *Database) FindNearbyResources(ctx context.Context, origin models.Coordinate, radiusMeters int, resourceType models.ResourceType) ([]models.NearbyResource, error) {
	if err := validateProximityInput(origin, radiusMeters); err != nil {
		return nil, err
	}

	latLo, latHi, lngLo, lngHi := boundingRect(origin, radiusMeters)

	query := `
		SELECT ` + resourceColumns + `,
		       ST_Distance_Sphere(POINT(longitude, latitude), POINT(?, ?)) AS distance_m
		FROM resources
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?`
	args := []any{
		origin.Lng, origin.Lat,
		latLo, latHi,
		lngLo, lngHi,
	}
	if resourceType != "" {
		query += ` AND type = ?`
		args = append(args, resourceType)
	}
	query += `
		HAVING distance_m <= ?
		ORDER BY distance_m ASC, id ASC`
	args = append(args, float64(radiusMeters))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby resources: %w", err)
	}
	defer rows.Close()

	results := []models.NearbyResource{}
	for rows.Next() {
		var distance float64
		resource, err := scanResource(rows.Scan, &distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nearby resource: %w", err)
		}
		results = append(results, models.NearbyResource{
			Resource:       *resource,
			DistanceMeters: distance,
		})
	}
	return results, rows.Err()
}

// FindNearbyDisasters returns disasters within radiusMeters of origin,
// nearest first, ties broken by id.
func (d *Database) FindNearbyDisasters(ctx context.Context, origin models.Coordinate, radiusMeters int) ([]models.NearbyDisaster, error) {
	if err := validateProximityInput(origin, radiusMeters); err != nil {
		return nil, err
	}

	latLo, latHi, lngLo, lngHi := boundingRect(origin, radiusMeters)

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+disasterColumns+`,
		       ST_Distance_Sphere(POINT(longitude, latitude), POINT(?, ?)) AS distance_m
		FROM disasters
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude BETWEEN ? AND ?
		  AND longitude BETWEEN ? AND ?
		HAVING distance_m <= ?
		ORDER BY distance_m ASC, id ASC`,
		origin.Lng, origin.Lat,
		latLo, latHi,
		lngLo, lngHi,
		float64(radiusMeters))
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby disasters: %w", err)
	}
	defer rows.Close()

	results := []models.NearbyDisaster{}
	for rows.Next() {
		var (
			disaster models.Disaster
			lat, lng sql.NullFloat64
			tags     []byte
			audit    []byte
			distance float64
		)
		err := rows.Scan(&disaster.ID, &disaster.Title, &disaster.LocationName, &disaster.Description,
			&lat, &lng, &tags, &disaster.OwnerID, &audit, &disaster.CreatedAt, &disaster.UpdatedAt,
			&distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nearby disaster: %w", err)
		}
		if lat.Valid && lng.Valid {
			disaster.Coordinates = &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		if err := json.Unmarshal(tags, &disaster.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		if err := json.Unmarshal(audit, &disaster.AuditTrail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit trail: %w", err)
		}
		results = append(results, models.NearbyDisaster{
			Disaster:       disaster,
			DistanceMeters: distance,
		})
	}
	return results, rows.Err()
}
