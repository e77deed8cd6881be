package scans

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/application"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Aggregator folds a finalized BatchResult into an AggregateReport.
// Summary computation is a pure function of the batch: calling Aggregate
// twice on the same value yields identical summary statistics.
type Aggregator struct {
	Policy  domain.ScorePolicy
	Builder domain.ReportBuilder // optional; nil skips rendering
	Clock   application.Clock
	Log     zerolog.Logger
}

// Aggregate computes summary statistics and, when a builder is wired,
// hands the descriptor off for rendering. A successful scan whose report
// cannot be parsed is counted as failed, never silently dropped.
func (a *Aggregator) Aggregate(ctx context.Context, batch domain.BatchResult) domain.AggregateReport {
	policy := a.Policy
	if policy == nil {
		policy = domain.DefaultWeights()
	}

	report := domain.AggregateReport{
		BatchID: batch.ID,
		Request: batch.Request,
		Images:  make([]domain.ImageSummary, 0, len(batch.Outcomes)),
	}
	report.Summary.Total = len(batch.Outcomes)

	for _, o := range batch.Outcomes {
		row := domain.ImageSummary{Image: o.Image, Status: o.Status}
		if o.StoredRef != nil {
			row.URL = o.StoredRef.URL
		}

		if o.Status != domain.StatusOK {
			report.Summary.Failed++
			report.Images = append(report.Images, row)
			continue
		}

		counts, err := domain.ParseSeverityCounts(o.RawReport)
		if err != nil {
			// aggregation error: report exists but is unusable
			report.Summary.Failed++
			row.ParseErr = err.Error()
			report.Images = append(report.Images, row)
			a.Log.Warn().Str("image", string(o.Image)).Err(err).
				Msg("could not parse severity data from scan report")
			continue
		}

		report.Summary.Succeeded++
		report.Summary.BySeverity.Add(counts)
		row.Counts = counts
		row.Score = policy.Score(counts)
		report.Images = append(report.Images, row)
	}
	report.Summary.Score = policy.Score(report.Summary.BySeverity)

	if a.Clock != nil {
		report.CreatedAt = a.Clock.Now()
	}

	if a.Builder != nil {
		ref, err := a.Builder.BuildAggregate(ctx, &report)
		if err != nil {
			// rendering is best-effort; summary values stand on their own
			a.Log.Error().Str("batch_id", batch.ID).Err(err).Msg("aggregate report rendering failed")
		} else {
			report.ReportRef = ref
		}
	}
	return report
}
