package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Save inserts a scan record. Records are write-once: outcomes are
// immutable after the sink finalizes them, so there is no update path.
func (r *RecordRepository) Save(ctx context.Context, rec *domain.ScanRecord) (string, error) {
	const q = `
INSERT INTO scan_records
(id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	backend := stringOrDash(rec.Backend)
	status := stringOrDash(string(rec.Status))
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, string(rec.Image), backend, status, ts,
		rec.URL, rec.Blob, rec.ErrorDetail, rec.DurationMS,
		marshalMetadata(rec.Metadata),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Get by record ID
func (r *RecordRepository) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	const q = `
SELECT id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json
FROM scan_records
WHERE id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	rec, err := scanRecordRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return rec, err
}

// Latest scan records, newest first
func (r *RecordRepository) Latest(ctx context.Context, limit int) ([]*domain.ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, image, backend, status, ts, url, blob_key, error_detail, duration_ms, metadata_json
FROM scan_records
ORDER BY ts DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ScanRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecordRow(scan func(dest ...any) error) (*domain.ScanRecord, error) {
	var rec domain.ScanRecord
	var image, metadata string
	if err := scan(
		&rec.ID, &image, &rec.Backend, &rec.Status, &rec.Timestamp,
		&rec.URL, &rec.Blob, &rec.ErrorDetail, &rec.DurationMS, &metadata,
	); err != nil {
		return nil, err
	}
	rec.Image = domain.ImageRef(image)
	rec.Metadata = unmarshalMetadata(metadata)
	return &rec, nil
}
