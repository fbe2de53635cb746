package database

import (
	"context"
	"database/sql"
	"fmt"

	"disaster-coordination/models"
)

const resourceColumns = `id, disaster_id, name, type, location_name, latitude, longitude, quantity, created_at`

func scanResource(scan func(dest ...any) error, extra ...any) (*models.Resource, error) {
	var (
		resource   models.Resource
		disasterID sql.NullString
		lat, lng   sql.NullFloat64
	)
	dest := []any{&resource.ID, &disasterID, &resource.Name, &resource.Type,
		&resource.LocationName, &lat, &lng, &resource.Quantity, &resource.CreatedAt}
	dest = append(dest, extra...)
	if err := scan(dest...); err != nil {
		return nil, err
	}
	if disasterID.Valid {
		resource.DisasterID = &disasterID.String
	}
	if lat.Valid && lng.Valid {
		resource.Coordinates = &models.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &resource, nil
}

// CreateResource inserts a resource.
func (d *Database) CreateResource(ctx context.Context, resource *models.Resource) error {
	var disasterID sql.NullString
	if resource.DisasterID != nil {
		disasterID = sql.NullString{String: *resource.DisasterID, Valid: true}
	}
	var lat, lng sql.NullFloat64
	if resource.Coordinates != nil {
		lat = sql.NullFloat64{Float64: resource.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: resource.Coordinates.Lng, Valid: true}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO resources (id, disaster_id, name, type, location_name, latitude, longitude, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		resource.ID, disasterID, resource.Name, resource.Type,
		resource.LocationName, lat, lng, resource.Quantity)
	if err != nil {
		return fmt.Errorf("failed to insert resource: %w", err)
	}
	return nil
}

// GetResource fetches one resource by id. Returns ErrNotFound when absent.
func (d *Database) GetResource(ctx context.Context, id string) (*models.Resource, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)

	resource, err := scanResource(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query resource: %w", err)
	}
	return resource, nil
}

// ListResources returns resources, newest first, optionally filtered by
// disaster and type.
func (d *Database) ListResources(ctx context.Context, disasterID string, resourceType models.ResourceType, limit int) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE 1=1`
	args := []any{}
	if disasterID != "" {
		query += ` AND disaster_id = ?`
		args = append(args, disasterID)
	}
	if resourceType != "" {
		query += ` AND type = ?`
		args = append(args, resourceType)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	resources := []models.Resource{}
	for rows.Next() {
		resource, err := scanResource(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, *resource)
	}
	return resources, rows.Err()
}

// UpdateResource persists the full resource record.
func (d *Database) UpdateResource(ctx context.Context, resource *models.Resource) error {
	var disasterID sql.NullString
	if resource.DisasterID != nil {
		disasterID = sql.NullString{String: *resource.DisasterID, Valid: true}
	}
	var lat, lng sql.NullFloat64
	if resource.Coordinates != nil {
		lat = sql.NullFloat64{Float64: resource.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: resource.Coordinates.Lng, Valid: true}
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE resources
		SET disaster_id = ?, name = ?, type = ?, location_name = ?, latitude = ?, longitude = ?, quantity = ?
		WHERE id = ?`,
		disasterID, resource.Name, resource.Type, resource.LocationName,
		lat, lng, resource.Quantity, resource.ID)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected == 0 {
		// Either absent or unchanged; disambiguate with a lookup.
		if _, getErr := d.GetResource(ctx, resource.ID); getErr != nil {
			return getErr
		}
	}
	return nil
}

// DeleteResource removes a resource by id. Returns ErrNotFound when absent.
func (d *Database) DeleteResource(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
