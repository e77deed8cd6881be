package scans

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fleetscan/internal/application"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

func rawWithSeverities(sevs ...string) []byte {
	body := `{"vulnerabilities":[`
	for i, s := range sevs {
		if i > 0 {
			body += ","
		}
		body += `{"id":"VULN-` + s + `","severity":"` + s + `"}`
	}
	return []byte(body + `]}`)
}

func TestAggregateMixedBatch(t *testing.T) {
	agg := &Aggregator{Log: zerolog.Nop()}
	batch := domain.BatchResult{
		ID: "batch-1",
		Request: domain.ScanRequest{
			Images:  []domain.ImageRef{"repo/a:1", "repo/b:1"},
			Backend: "snyk",
		},
		Outcomes: []domain.ScanOutcome{
			{
				Image:     "repo/a:1",
				Status:    domain.StatusOK,
				RawReport: rawWithSeverities("high", "high"),
				StoredRef: &domain.StorageRef{URL: "http://blobs.test/a.json"},
			},
			{
				Image:       "repo/b:1",
				Status:      domain.StatusToolError,
				ErrorDetail: "no supported projects",
			},
		},
		Failed: true,
	}

	rep := agg.Aggregate(context.Background(), batch)

	assert.Equal(t, "batch-1", rep.BatchID)
	assert.Equal(t, 2, rep.Summary.Total)
	assert.Equal(t, 1, rep.Summary.Succeeded)
	assert.Equal(t, 1, rep.Summary.Failed)
	assert.Equal(t, domain.SeverityCounts{High: 2, Total: 2}, rep.Summary.BySeverity)

	require.Len(t, rep.Images, 2)
	assert.Equal(t, domain.ImageRef("repo/a:1"), rep.Images[0].Image)
	assert.Equal(t, "http://blobs.test/a.json", rep.Images[0].URL)
	assert.InDelta(t, 15.0, rep.Images[0].Score, 1e-9)
	assert.Equal(t, domain.StatusToolError, rep.Images[1].Status)
	assert.Zero(t, rep.Images[1].Score)
}

func TestAggregateIsDeterministic(t *testing.T) {
	agg := &Aggregator{Log: zerolog.Nop()}
	batch := domain.BatchResult{
		ID: "batch-1",
		Outcomes: []domain.ScanOutcome{
			{Image: "repo/a:1", Status: domain.StatusOK, RawReport: rawWithSeverities("critical", "low")},
			{Image: "repo/b:1", Status: domain.StatusOK, RawReport: rawWithSeverities("medium")},
		},
	}

	first := agg.Aggregate(context.Background(), batch)
	second := agg.Aggregate(context.Background(), batch)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Images, second.Images)
}

func TestAggregateUnparsableReportCountsAsFailed(t *testing.T) {
	agg := &Aggregator{Log: zerolog.Nop()}
	batch := domain.BatchResult{
		ID: "batch-1",
		Outcomes: []domain.ScanOutcome{
			{Image: "repo/a:1", Status: domain.StatusOK, RawReport: []byte(`{"truncated":`)},
		},
	}

	rep := agg.Aggregate(context.Background(), batch)

	assert.Equal(t, 1, rep.Summary.Total)
	assert.Zero(t, rep.Summary.Succeeded)
	assert.Equal(t, 1, rep.Summary.Failed)
	require.Len(t, rep.Images, 1)
	assert.NotEmpty(t, rep.Images[0].ParseErr)
}

func TestAggregateRendersThroughBuilder(t *testing.T) {
	builder := &stubBuilder{}
	agg := &Aggregator{Builder: builder, Log: zerolog.Nop()}
	batch := domain.BatchResult{
		ID: "batch-1",
		Outcomes: []domain.ScanOutcome{
			{Image: "repo/a:1", Status: domain.StatusOK, RawReport: rawWithSeverities("low")},
		},
	}

	rep := agg.Aggregate(context.Background(), batch)

	assert.Equal(t, 1, builder.aggCalls)
	require.NotNil(t, rep.ReportRef)
	assert.Equal(t, "http://reports.test/aggregate.pdf", rep.ReportRef.URL)
}

func TestAggregateBuilderFailureKeepsSummary(t *testing.T) {
	builder := &stubBuilder{err: errors.New("renderer down")}
	agg := &Aggregator{Builder: builder, Log: zerolog.Nop()}
	batch := domain.BatchResult{
		ID: "batch-1",
		Outcomes: []domain.ScanOutcome{
			{Image: "repo/a:1", Status: domain.StatusOK, RawReport: rawWithSeverities("critical")},
		},
	}

	rep := agg.Aggregate(context.Background(), batch)

	assert.Nil(t, rep.ReportRef)
	assert.Equal(t, 1, rep.Summary.Succeeded)
	assert.Equal(t, domain.SeverityCounts{Critical: 1, Total: 1}, rep.Summary.BySeverity)
}

func TestAggregateStampsCreatedAt(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	agg := &Aggregator{Clock: application.FixedClock{T: at}, Log: zerolog.Nop()}

	rep := agg.Aggregate(context.Background(), domain.BatchResult{ID: "batch-1"})

	assert.Equal(t, at, rep.CreatedAt)
	assert.Zero(t, rep.Summary.Total)
}
