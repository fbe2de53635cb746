package database

import (
	"context"
	"database/sql"
	"fmt"

	"disaster-coordination/models"
)

const reportColumns = `id, disaster_id, user_id, content, image_url, verification_status, verification_notes, created_at`

func scanReport(scan func(dest ...any) error) (*models.Report, error) {
	var (
		report models.Report
		notes  sql.NullString
	)
	err := scan(&report.ID, &report.DisasterID, &report.UserID, &report.Content,
		&report.ImageURL, &report.VerificationStatus, &notes, &report.CreatedAt)
	if err != nil {
		return nil, err
	}
	report.VerificationNotes = notes.String
	return &report, nil
}

// CreateReport inserts a report.
func (d *Database) CreateReport(ctx context.Context, report *models.Report) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO reports (id, disaster_id, user_id, content, image_url, verification_status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.DisasterID, report.UserID, report.Content,
		report.ImageURL, report.VerificationStatus)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetReport fetches one report by id. Returns ErrNotFound when absent.
func (d *Database) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)

	report, err := scanReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	return report, nil
}

// ListReportsByDisaster returns a disaster's reports, newest first.
func (d *Database) ListReportsByDisaster(ctx context.Context, disasterID string, limit int) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE disaster_id = ? ORDER BY created_at DESC, id ASC LIMIT ?`,
		disasterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

// UpdateReportVerification records the verification outcome for a report.
func (d *Database) UpdateReportVerification(ctx context.Context, id, status, notes string) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE reports SET verification_status = ?, verification_notes = ? WHERE id = ?`,
		status, notes, id)
	if err != nil {
		return fmt.Errorf("failed to update report verification: %w", err)
	}
	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected == 0 {
		if _, getErr := d.GetReport(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// DeleteReport removes a report by id. Returns ErrNotFound when absent.
func (d *Database) DeleteReport(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
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
