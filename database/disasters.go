package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"disaster-coordination/models"
)

func marshalJSONColumn(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json column: %w", err)
	}
	return string(data), nil
}

// CreateDisaster inserts a disaster. The audit trail must already contain
// the creation entry; the orchestrator owns audit semantics.
func (d *Database) CreateDisaster(ctx context.Context, disaster *models.Disaster) error {
	tags, err := marshalJSONColumn(disaster.Tags)
	if err != nil {
		return err
	}
	audit, err := marshalJSONColumn(disaster.AuditTrail)
	if err != nil {
		return err
	}

	var lat, lng sql.NullFloat64
	if disaster.Coordinates != nil {
		lat = sql.NullFloat64{Float64: disaster.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: disaster.Coordinates.Lng, Valid: true}
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO disasters (id, title, location_name, description, latitude, longitude, tags, owner_id, audit_trail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		disaster.ID, disaster.Title, disaster.LocationName, disaster.Description,
		lat, lng, tags, disaster.OwnerID, audit)
	if err != nil {
		return fmt.Errorf("failed to insert disaster: %w", err)
	}
	return nil
}

func scanDisaster(scan func(dest ...any) error) (*models.Disaster, error) {
	var (
		disaster models.Disaster
		lat, lng sql.NullFloat64
		tags     []byte
		audit    []byte
	)
	err := scan(&disaster.ID, &disaster.Title, &disaster.LocationName, &disaster.Description,
		&lat, &lng, &tags, &disaster.OwnerID, &audit, &disaster.CreatedAt, &disaster.UpdatedAt)
	if err != nil {
		return nil, err
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
	return &disaster, nil
}

const disasterColumns = `id, title, location_name, description, latitude, longitude, tags, owner_id, audit_trail, created_at, updated_at`

// GetDisaster fetches one disaster by id. Returns ErrNotFound when absent.
func (d *Database) GetDisaster(ctx context.Context, id string) (*models.Disaster, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+disasterColumns+` FROM disasters WHERE id = ?`, id)

	disaster, err := scanDisaster(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query disaster: %w", err)
	}
	return disaster, nil
}

// ListDisasters returns disasters, newest first, optionally filtered by tag.
func (d *Database) ListDisasters(ctx context.Context, tag string, limit int) ([]models.Disaster, error) {
	query := `SELECT ` + disasterColumns + ` FROM disasters`
	args := []any{}
	if tag != "" {
		query += ` WHERE JSON_CONTAINS(tags, JSON_QUOTE(?))`
		args = append(args, tag)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query disasters: %w", err)
	}
	defer rows.Close()

	disasters := []models.Disaster{}
	for rows.Next() {
		disaster, err := scanDisaster(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disaster: %w", err)
		}
		disasters = append(disasters, *disaster)
	}
	return disasters, rows.Err()
}

// UpdateDisaster persists the full record, including the appended audit
// trail. The caller appends the audit entry; rows are never rewritten
// without one.
func (d *Database) UpdateDisaster(ctx context.Context, disaster *models.Disaster) error {
	tags, err := marshalJSONColumn(disaster.Tags)
	if err != nil {
		return err
	}
	audit, err := marshalJSONColumn(disaster.AuditTrail)
	if err != nil {
		return err
	}

	var lat, lng sql.NullFloat64
	if disaster.Coordinates != nil {
		lat = sql.NullFloat64{Float64: disaster.Coordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: disaster.Coordinates.Lng, Valid: true}
	}

	result, err := d.db.ExecContext(ctx, `
		UPDATE disasters
		SET title = ?, location_name = ?, description = ?, latitude = ?, longitude = ?, tags = ?, audit_trail = ?
		WHERE id = ?`,
		disaster.Title, disaster.LocationName, disaster.Description,
		lat, lng, tags, audit, disaster.ID)
	if err != nil {
		return fmt.Errorf("failed to update disaster: %w", err)
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

// DeleteDisaster removes a disaster by id. Returns ErrNotFound when absent.
func (d *Database) DeleteDisaster(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM disasters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete disaster: %w", err)
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
