package scans

import (
	"fmt"
	"strings"
	"time"
)

// ImageRef identifies a scannable container image (registry/name:tag)
type ImageRef string

// Status enum
type Status string

const (
	StatusOK        Status = "ok"
	StatusToolError Status = "tool_error"
	StatusTimeout   Status = "timeout"
)

// Validate cek image ref: non-empty, no whitespace
func (i ImageRef) Validate() error {
	s := string(i)
	if s == "" {
		return fmt.Errorf("%w: empty image reference", ErrInvalidRequest)
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return fmt.Errorf("%w: image reference %q contains whitespace", ErrInvalidRequest, s)
	}
	return nil
}

// StorageRef points at a persisted scan artifact: blob + metadata record
type StorageRef struct {
	BlobKey  string `json:"blob"`
	RecordID string `json:"id"`
	URL      string `json:"url"`
}

// ScanOutcome is the terminal result of scanning one image.
// Every terminal condition (success, tool failure, timeout) is a value,
// never a raised error; immutable once the sink has returned it.
type ScanOutcome struct {
	Image          ImageRef    `json:"image"`
	Backend        string      `json:"backend"`
	Status         Status      `json:"status"`
	StartedAt      time.Time   `json:"started"`
	FinishedAt     time.Time   `json:"finished"`
	RawReport      []byte      `json:"-"`
	ErrorDetail    string      `json:"error_detail,omitempty"`
	StoredRef      *StorageRef `json:"stored_ref,omitempty"`
	PersistWarning string      `json:"persist_warning,omitempty"`
	Attempts       int         `json:"attempts,omitempty"`

	// Metadata carries caller-supplied scalar fields into the metadata
	// record verbatim. Never holds the raw scan payload.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Transient marks a tool_error worth retrying (network error,
	// rate-limit response). Set by the executor, consumed by the
	// coordinator's retry loop.
	Transient bool `json:"-"`
}

// Retryable reports whether the coordinator may re-dispatch this outcome.
func (o ScanOutcome) Retryable() bool {
	return o.Status == StatusToolError && o.Transient
}

// ScanRequest is immutable once dispatched
type ScanRequest struct {
	Images       []ImageRef     `json:"images"`
	Backend      string         `json:"backend,omitempty"`
	Aggregate    bool           `json:"aggregate"`
	Individual   bool           `json:"individual"`
	IgnoreFailed bool           `json:"ignore_failed"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate rejects empty requests and malformed refs before any dispatch.
func (r ScanRequest) Validate() error {
	if len(r.Images) == 0 {
		return fmt.Errorf("%w: no images given", ErrInvalidRequest)
	}
	for _, img := range r.Images {
		if err := img.Validate(); err != nil {
			return err
		}
	}
	return ValidateMetadata(r.Metadata)
}

// DedupedImages returns distinct images preserving first-occurrence order.
func (r ScanRequest) DedupedImages() []ImageRef {
	seen := make(map[ImageRef]struct{}, len(r.Images))
	out := make([]ImageRef, 0, len(r.Images))
	for _, img := range r.Images {
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
	}
	return out
}

// ValidateMetadata enforces the closed metadata schema: scalar values only
// (string, number, bool), no nested structures.
func ValidateMetadata(md map[string]any) error {
	for k, v := range md {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: metadata field %q must be a string, number or bool", ErrInvalidRequest, k)
		}
	}
	return nil
}

// BatchResult collects all outcomes of one orchestration request.
// Outcomes follow dispatch order, not completion order.
type BatchResult struct {
	ID       string        `json:"batch_id"`
	Request  ScanRequest   `json:"request"`
	Outcomes []ScanOutcome `json:"outcomes"`

	// Failed marks the batch incomplete when ignore_failed=false and any
	// outcome is not ok. Partial results are still surfaced.
	Failed bool `json:"failed"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Add accumulates another count set into this one.
func (c *SeverityCounts) Add(other SeverityCounts) {
	c.Critical += other.Critical
	c.High += other.High
	c.Medium += other.Medium
	c.Low += other.Low
	c.Total += other.Total
}

// Summary holds the aggregate statistics for one batch
type Summary struct {
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	BySeverity SeverityCounts `json:"by_severity"`
	Score      float64        `json:"score"`
}

// ImageSummary is one per-image row inside an aggregate report
type ImageSummary struct {
	Image    ImageRef       `json:"image"`
	Status   Status         `json:"status"`
	Counts   SeverityCounts `json:"counts"`
	Score    float64        `json:"score"`
	URL      string         `json:"url,omitempty"`
	ParseErr string         `json:"parse_error,omitempty"`
}

// AggregateReport is computed once from a finalized BatchResult
type AggregateReport struct {
	BatchID   string         `json:"batch_id"`
	Request   ScanRequest    `json:"request"`
	Summary   Summary        `json:"summary"`
	Images    []ImageSummary `json:"images"`
	ReportRef *StorageRef    `json:"report_ref,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
