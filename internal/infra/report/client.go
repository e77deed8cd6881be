package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Client talks to the reporter service, which renders report descriptors
// into documents (PDF) and stores them. Implements domain.ReportBuilder.
type Client struct {
	baseURL   string
	http      *http.Client
	retryBase time.Duration
	retryMax  time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: timeout},
		retryBase: time.Second,
		retryMax:  60 * time.Second,
	}
}

// BuildAggregate renders the aggregate document for a batch.
func (c *Client) BuildAggregate(ctx context.Context, rep *domain.AggregateReport) (*domain.StorageRef, error) {
	return c.post(ctx, c.baseURL+"/reports", rep)
}

// BuildScan renders a single-image document.
func (c *Client) BuildScan(ctx context.Context, outcome domain.ScanOutcome) (*domain.StorageRef, error) {
	return c.post(ctx, c.baseURL+"/reports/scan", outcome)
}

// transientStatus marks reporter responses worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func (c *Client) post(ctx context.Context, url string, body any) (*domain.StorageRef, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode report descriptor: %w", err)
	}

	var ref domain.StorageRef
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			res, err := c.http.Do(req)
			if err != nil {
				// network-level trouble reaching the reporter
				return transientError{err}
			}
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
				err := fmt.Errorf("reporter returned %d: %s", res.StatusCode, msg)
				if transientStatus(res.StatusCode) {
					return transientError{err}
				}
				return err
			}
			return json.NewDecoder(res.Body).Decode(&ref)
		},
		retry.Attempts(3),
		retry.Delay(c.retryBase),
		retry.MaxDelay(c.retryMax),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			_, ok := err.(transientError)
			return ok
		}),
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
