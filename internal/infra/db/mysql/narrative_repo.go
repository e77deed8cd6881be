package mysql

import (
	"context"
	"database/sql"

	domain "github.com/bryanwahyu/fleetscan/internal/domain/narrative"
)

type NarrativeRepository struct {
	db *sql.DB
}

func NewNarrativeRepository(db *sql.DB) *NarrativeRepository {
	return &NarrativeRepository{db: db}
}

func (r *NarrativeRepository) Save(ctx context.Context, n *domain.Narrative) error {
	const q = `
INSERT INTO scan_narratives (id, record_id, report_url, result_json, created_at)
VALUES (?,?,?,?,?);
`
	_, err := r.db.ExecContext(ctx, q,
		string(n.ID), stringOrDash(n.RecordID), n.ReportURL, n.Result, n.CreatedAt)
	return err
}

func (r *NarrativeRepository) LatestByRecord(ctx context.Context, recordID string) (*domain.Narrative, error) {
	const q = `
SELECT id, record_id, report_url, result_json, created_at
FROM scan_narratives
WHERE record_id=?
ORDER BY created_at DESC LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, recordID)
	var n domain.Narrative
	var id string
	if err := row.Scan(&id, &n.RecordID, &n.ReportURL, &n.Result, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = domain.NarrativeID(id)
	return &n, nil
}
