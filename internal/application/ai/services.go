package ai

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/fleetscan/internal/domain/narrative"
)

// Service produces and stores plain-language narratives for scan reports.
type Service struct {
	Client narrative.Client
	Repo   narrative.Repository
}

func NewService(client narrative.Client, repo narrative.Repository) *Service {
	return &Service{Client: client, Repo: repo}
}

// SummarizeAndStore asks the model for a narrative of the report at
// reportURL and persists it keyed by the scan record id.
func (s *Service) SummarizeAndStore(ctx context.Context, recordID, reportURL string) (*narrative.Narrative, error) {
	result, err := s.Client.Summarize(ctx, reportURL)
	if err != nil {
		return nil, err
	}
	n := &narrative.Narrative{
		ID:        narrative.NarrativeID(uuid.New().String()),
		RecordID:  recordID,
		ReportURL: reportURL,
		Result:    result,
		CreatedAt: time.Now(),
	}
	if s.Repo != nil {
		if err := s.Repo.Save(ctx, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Latest returns the newest stored narrative for a scan record.
func (s *Service) Latest(ctx context.Context, recordID string) (*narrative.Narrative, error) {
	return s.Repo.LatestByRecord(ctx, recordID)
}
