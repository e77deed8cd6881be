package scans

import (
	"context"
	"time"
)

// Executor port: runs one scan for one image. Every terminal condition is
// returned as a ScanOutcome value, never as an error.
type Executor interface {
	Execute(ctx context.Context, image ImageRef, timeout time.Duration) ScanOutcome
}

// BlobStore port (object storage collaborator)
type BlobStore interface {
	PutBlob(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
}

// ScanRecord is the metadata document indexing one persisted scan.
// The raw scan payload lives only in the blob, never in the record.
type ScanRecord struct {
	ID          string         `json:"id"`
	Image       ImageRef       `json:"image"`
	Backend     string         `json:"backend"`
	Status      Status         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	URL         string         `json:"url"`
	Blob        string         `json:"blob"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RecordStore port (document store collaborator)
type RecordStore interface {
	Save(ctx context.Context, rec *ScanRecord) (string, error)
	Get(ctx context.Context, id string) (*ScanRecord, error)
	Latest(ctx context.Context, limit int) ([]*ScanRecord, error)
}

// ReportBuilder port: renders report descriptors into documents.
// External collaborator boundary; the core only constructs descriptors.
type ReportBuilder interface {
	BuildAggregate(ctx context.Context, report *AggregateReport) (*StorageRef, error)
	BuildScan(ctx context.Context, outcome ScanOutcome) (*StorageRef, error)
}
