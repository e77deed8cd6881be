package narrative

import (
	"context"
	"errors"
)

// Client port for the language model backend
type Client interface {
	Summarize(ctx context.Context, reportURL string) (string, error)
}

// Repository port for persisting and querying narratives
type Repository interface {
	Save(ctx context.Context, n *Narrative) error
	LatestByRecord(ctx context.Context, recordID string) (*Narrative, error)
}

// ErrQuotaExceeded indicates the model provider returned a quota/limit
// error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")
