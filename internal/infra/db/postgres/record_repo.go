package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

type RecordRepository struct{ db *sql.DB }

func NewRecordRepository(db *sql.DB) *RecordRepository { return &RecordRepository{db: db} }

// Save inserts a scan record (write-once, no update path)
func (r *RecordRepository) Save(ctx context.Context, rec *domain.ScanRecord) (string, error) {
	const q = `
INSERT INTO scan_records
(id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	backend := stringOrDash(rec.Backend)
	status := stringOrDash(string(rec.Status))
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	md := "{}"
	if len(rec.Metadata) > 0 {
		if b, err := json.Marshal(rec.Metadata); err == nil {
			md = string(b)
		}
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, string(rec.Image), backend, status, ts,
		rec.URL, rec.Blob, rec.ErrorDetail, rec.DurationMS, md,
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (r *RecordRepository) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	const q = `
SELECT id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json
FROM scan_records
WHERE id=$1 LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, id)
	rec, err := scanRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return rec, err
}

func (r *RecordRepository) Latest(ctx context.Context, limit int) ([]*domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json
FROM scan_records
ORDER BY ts DESC LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ScanRecord
	for rows.Next() {
		rec, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRow(scan func(dest ...any) error) (*domain.ScanRecord, error) {
	var rec domain.ScanRecord
	var image, metadata string
	if err := scan(
		&rec.ID, &image, &rec.Backend, &rec.Status, &rec.Timestamp,
		&rec.URL, &rec.Blob, &rec.ErrorDetail, &rec.DurationMS, &metadata,
	); err != nil {
		return nil, err
	}
	rec.Image = domain.ImageRef(image)
	if metadata != "" && metadata != "{}" {
		var md map[string]any
		if json.Unmarshal([]byte(metadata), &md) == nil {
			rec.Metadata = md
		}
	}
	return &rec, nil
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
