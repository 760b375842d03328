package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Detection Methods
// -----------------------------------------------------------------------------

const detectionColumns = `id, url, hostname, page_id, title, company, description,
	method, confidence, content_hash, detected_at`

// SaveDetection inserts d. A zero ID, content hash or timestamp is filled in
// before the insert.
func (db *DB) SaveDetection(ctx context.Context, d *Detection) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ContentHash == "" {
		d.ContentHash = HashContent(d.Description)
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_detections (`+detectionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.URL, d.Hostname, d.PageID, d.Title, d.Company, d.Description,
		d.Method, d.Confidence, d.ContentHash, d.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save detection: %w", err)
	}
	return nil
}

// ListDetections returns the most recent detections, newest first
func (db *DB) ListDetections(ctx context.Context, limit int) ([]Detection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+detectionColumns+`
		 FROM job_detections
		 ORDER BY detected_at DESC
		 LIMIT $1`,
		NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var detections []Detection
	for rows.Next() {
		var d Detection
		if err := scanDetection(rows, &d); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	return detections, nil
}

// GetLatestByURL returns the newest detection for url, or nil if none exists
func (db *DB) GetLatestByURL(ctx context.Context, url string) (*Detection, error) {
	var d Detection
	err := scanDetection(db.pool.QueryRow(ctx,
		`SELECT `+detectionColumns+`
		 FROM job_detections
		 WHERE url = $1
		 ORDER BY detected_at DESC
		 LIMIT 1`,
		url,
	), &d)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return &d, nil
}

// DeleteDetection removes a detection by ID
func (db *DB) DeleteDetection(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM job_detections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete detection: %w", err)
	}
	return nil
}

func scanDetection(row pgx.Row, d *Detection) error {
	return row.Scan(&d.ID, &d.URL, &d.Hostname, &d.PageID, &d.Title, &d.Company,
		&d.Description, &d.Method, &d.Confidence, &d.ContentHash, &d.DetectedAt)
}
