package scans

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/application"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Service implements the gateway use-cases: validate a request, run the
// coordinator, aggregate when asked, and shape the response.
// Safe for concurrent use.
type Service struct {
	Coordinator *Coordinator
	Aggregator  *Aggregator
	Sink        *Sink
	Builder     domain.ReportBuilder // optional, for individual reports
	Records     domain.RecordStore
	Clock       application.Clock
	Log         zerolog.Logger
}

//
// ==== USE CASES ====
//

// Command untuk trigger batch scan
type CreateReportCommand struct {
	Images       []string       `json:"images"`
	Backend      string         `json:"backend"`
	Aggregate    bool           `json:"aggregate"`
	Individual   bool           `json:"individual"`
	IgnoreFailed bool           `json:"ignore_failed"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type ImageResult struct {
	Image     string `json:"image"`
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	ReportURL string `json:"report_url,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

type AggregateResult struct {
	Summary   domain.Summary `json:"summary"`
	ReportURL string         `json:"report_url,omitempty"`
}

type CreateReportResult struct {
	BatchID   string           `json:"batch_id"`
	Failed    bool             `json:"failed"`
	Images    []ImageResult    `json:"images"`
	Aggregate *AggregateResult `json:"aggregate,omitempty"`
}

// CreateReport runs the full pipeline for one request. Only validation
// errors are returned as errors; per-image failures are data in the result.
func (s *Service) CreateReport(ctx context.Context, cmd CreateReportCommand) (CreateReportResult, error) {
	req := domain.ScanRequest{
		Backend:      cmd.Backend,
		Aggregate:    cmd.Aggregate,
		Individual:   cmd.Individual,
		IgnoreFailed: cmd.IgnoreFailed,
		Metadata:     cmd.Metadata,
	}
	for _, img := range cmd.Images {
		req.Images = append(req.Images, domain.ImageRef(img))
	}
	if err := req.Validate(); err != nil {
		return CreateReportResult{}, err
	}

	batch := s.Coordinator.Run(ctx, req)

	out := CreateReportResult{
		BatchID: batch.ID,
		Failed:  batch.Failed,
		Images:  make([]ImageResult, 0, len(batch.Outcomes)),
	}
	for _, o := range batch.Outcomes {
		ir := ImageResult{
			Image:    string(o.Image),
			Status:   string(o.Status),
			Warning:  o.PersistWarning,
			Detail:   o.ErrorDetail,
			Attempts: o.Attempts,
		}
		if o.StoredRef != nil {
			ir.URL = o.StoredRef.URL
		}
		if req.Individual && o.Status == domain.StatusOK && s.Builder != nil {
			// per-image rendered document, best-effort
			ref, err := s.Builder.BuildScan(ctx, o)
			if err != nil {
				s.Log.Error().Str("image", ir.Image).Err(err).Msg("individual report rendering failed")
			} else if ref != nil {
				ir.ReportURL = ref.URL
			}
		}
		out.Images = append(out.Images, ir)
	}

	if req.Aggregate {
		report := s.Aggregator.Aggregate(ctx, batch)
		agg := &AggregateResult{Summary: report.Summary}
		if report.ReportRef != nil {
			agg.ReportURL = report.ReportRef.URL
		}
		out.Aggregate = agg
	}
	return out, nil
}

// Command for the result-ingestion endpoint: an externally executed scan
// handed to the sink for durable storage.
type IngestResultCommand struct {
	Image    string         `json:"image"`
	Backend  string         `json:"backend"`
	Status   string         `json:"status"`
	Stderr   string         `json:"stderr,omitempty"`
	Scan     string         `json:"scan,omitempty"` // raw report JSON, stored as blob only
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type IngestResultReply struct {
	Image     string    `json:"image"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Blob      string    `json:"blob"`
	Backend   string    `json:"backend"`
	Status    string    `json:"status"`
}

// IngestResult persists an outcome produced outside the coordinator.
func (s *Service) IngestResult(ctx context.Context, cmd IngestResultCommand) (IngestResultReply, error) {
	img := domain.ImageRef(cmd.Image)
	if err := img.Validate(); err != nil {
		return IngestResultReply{}, err
	}
	if err := domain.ValidateMetadata(cmd.Metadata); err != nil {
		return IngestResultReply{}, err
	}
	status := domain.Status(cmd.Status)
	switch status {
	case domain.StatusOK, domain.StatusToolError, domain.StatusTimeout:
	default:
		return IngestResultReply{}, domain.ErrInvalidRequest
	}

	finished := cmd.Finished
	if finished.IsZero() {
		finished = s.Clock.Now()
	}
	o := domain.ScanOutcome{
		Image:       img,
		Backend:     cmd.Backend,
		Status:      status,
		StartedAt:   cmd.Started,
		FinishedAt:  finished,
		ErrorDetail: cmd.Stderr,
		Metadata:    cmd.Metadata,
	}
	if cmd.Scan != "" {
		o.RawReport = []byte(cmd.Scan)
	}

	o = s.Sink.Persist(ctx, "", o)

	reply := IngestResultReply{
		Image:     cmd.Image,
		Timestamp: finished,
		Backend:   cmd.Backend,
		Status:    cmd.Status,
	}
	if o.StoredRef != nil {
		reply.ID = o.StoredRef.RecordID
		reply.URL = o.StoredRef.URL
		reply.Blob = o.StoredRef.BlobKey
	}
	return reply, nil
}

// GetScan ambil 1 scan record by id
func (s *Service) GetScan(ctx context.Context, id string) (*domain.ScanRecord, error) {
	return s.Records.Get(ctx, id)
}

// LatestScans ambil N record terakhir
func (s *Service) LatestScans(ctx context.Context, limit int) ([]*domain.ScanRecord, error) {
	return s.Records.Latest(ctx, limit)
}
