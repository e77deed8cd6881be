package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/fleetscan/internal/application"
	appscans "github.com/bryanwahyu/fleetscan/internal/application/scans"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

type okExecutor struct{}

func (okExecutor) Execute(ctx context.Context, img domain.ImageRef, timeout time.Duration) domain.ScanOutcome {
	now := time.Now()
	return domain.ScanOutcome{
		Image:      img,
		Backend:    "snyk",
		Status:     domain.StatusOK,
		StartedAt:  now,
		FinishedAt: now,
		RawReport:  []byte(`{"vulnerabilities":[{"id":"CVE-1","severity":"high"}]}`),
	}
}

type memBlobs struct{ keys []string }

func (m *memBlobs) PutBlob(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.keys = append(m.keys, key)
	return "http://blobs.test/" + key, nil
}

type memRecords struct {
	byID map[string]*domain.ScanRecord
}

func (m *memRecords) Save(ctx context.Context, rec *domain.ScanRecord) (string, error) {
	if m.byID == nil {
		m.byID = make(map[string]*domain.ScanRecord)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	m.byID[rec.ID] = rec
	return rec.ID, nil
}

func (m *memRecords) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	rec, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

func (m *memRecords) Latest(ctx context.Context, limit int) ([]*domain.ScanRecord, error) {
	var out []*domain.ScanRecord
	for _, rec := range m.byID {
		out = append(out, rec)
	}
	return out, nil
}

func testHandler(t *testing.T) (http.Handler, *memRecords) {
	t.Helper()
	records := &memRecords{}
	sink := &appscans.Sink{Blobs: &memBlobs{}, Records: records, Log: zerolog.Nop()}
	svc := &appscans.Service{
		Coordinator: &appscans.Coordinator{
			Exec:        okExecutor{},
			Sink:        sink,
			Limit:       2,
			ScanTimeout: time.Second,
			Log:         zerolog.Nop(),
		},
		Aggregator: &appscans.Aggregator{Log: zerolog.Nop()},
		Sink:       sink,
		Records:    records,
		Clock:      application.SystemClock{},
		Log:        zerolog.Nop(),
	}
	return NewRouter(svc, nil, 5*time.Second, nil), records
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCreateReportEndpoint(t *testing.T) {
	h, _ := testHandler(t)

	rr := postJSON(t, h, "/v1/reports", map[string]any{
		"images":    []string{"alpine:3.20", "nginx:1.27"},
		"backend":   "snyk",
		"aggregate": true,
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res appscans.CreateReportResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.NotEmpty(t, res.BatchID)
	assert.False(t, res.Failed)
	require.Len(t, res.Images, 2)
	assert.NotEmpty(t, res.Images[0].URL)
	require.NotNil(t, res.Aggregate)
	assert.Equal(t, 2, res.Aggregate.Summary.Succeeded)
	assert.Equal(t, 2, res.Aggregate.Summary.BySeverity.High)
}

func TestCreateReportEndpointRejectsEmptyImages(t *testing.T) {
	h, _ := testHandler(t)

	rr := postJSON(t, h, "/v1/reports", map[string]any{
		"images":  []string{},
		"backend": "snyk",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateReportEndpointRejectsMalformedImage(t *testing.T) {
	h, _ := testHandler(t)

	rr := postJSON(t, h, "/v1/reports", map[string]any{
		"images":  []string{"alpine:3.20; rm -rf /"},
		"backend": "snyk",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateReportEndpointRejectsUnknownBackend(t *testing.T) {
	h, _ := testHandler(t)

	rr := postJSON(t, h, "/v1/reports", map[string]any{
		"images":  []string{"alpine:3.20"},
		"backend": "trivy",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateReportEndpointRejectsBadJSON(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/reports", bytes.NewReader([]byte(`{"images": [`)))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngestAndFetchScan(t *testing.T) {
	h, _ := testHandler(t)

	rr := postJSON(t, h, "/v1/scans/results", map[string]any{
		"image":   "alpine:3.20",
		"backend": "snyk",
		"status":  "ok",
		"scan":    `{"vulnerabilities":[]}`,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var reply appscans.IngestResultReply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	require.NotEmpty(t, reply.ID)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans/"+reply.ID, nil)
	get := httptest.NewRecorder()
	h.ServeHTTP(get, req)

	require.Equal(t, http.StatusOK, get.Code)
	var rec domain.ScanRecord
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &rec))
	assert.Equal(t, domain.ImageRef("alpine:3.20"), rec.Image)
}

func TestGetScanNotFound(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNarrativeUnconfigured(t *testing.T) {
	h, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/scans/abc/narrative", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := testHandler(t)

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}
