package scans

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/domain/faults"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// scripted per-image behavior for the stub executor
type scanScript struct {
	status    domain.Status
	raw       []byte
	detail    string
	delay     time.Duration
	transient int // number of leading attempts that fail transiently
}

type stubExecutor struct {
	mu       sync.Mutex
	scripts  map[domain.ImageRef]*scanScript
	calls    map[domain.ImageRef]int
	inFlight int
	maxSeen  int
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		scripts: make(map[domain.ImageRef]*scanScript),
		calls:   make(map[domain.ImageRef]int),
	}
}

func (s *stubExecutor) script(img domain.ImageRef, sc scanScript) {
	s.scripts[img] = &sc
}

func (s *stubExecutor) callCount(img domain.ImageRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[img]
}

func (s *stubExecutor) Execute(ctx context.Context, img domain.ImageRef, timeout time.Duration) domain.ScanOutcome {
	s.mu.Lock()
	s.calls[img]++
	call := s.calls[img]
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	sc := s.scripts[img]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	started := time.Now()
	if sc == nil {
		sc = &scanScript{status: domain.StatusOK, raw: []byte(`{"vulnerabilities":[]}`)}
	}
	if sc.delay > 0 {
		select {
		case <-time.After(sc.delay):
		case <-ctx.Done():
			return domain.ScanOutcome{
				Image: img, Backend: "stub", Status: domain.StatusTimeout,
				StartedAt: started, FinishedAt: time.Now(),
				ErrorDetail: ctx.Err().Error(),
			}
		}
	}

	out := domain.ScanOutcome{
		Image: img, Backend: "stub",
		StartedAt: started, FinishedAt: time.Now(),
	}
	if call <= sc.transient {
		out.Status = domain.StatusToolError
		out.ErrorDetail = "connection reset by backend"
		out.Transient = true
		return out
	}
	out.Status = sc.status
	out.RawReport = sc.raw
	out.ErrorDetail = sc.detail
	return out
}

// in-memory blob store
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: make(map[string][]byte)}
}

func (m *memBlobStore) PutBlob(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, exists := m.blobs[key]; exists {
		return "", fmt.Errorf("duplicate blob key %s", key)
	}
	m.blobs[key] = data
	return "http://blobs.test/" + key, nil
}

// in-memory record store
type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*domain.ScanRecord
	order   []string
	err     error
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[string]*domain.ScanRecord)}
}

func (m *memRecordStore) Save(ctx context.Context, rec *domain.ScanRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	cp := *rec
	m.records[rec.ID] = &cp
	m.order = append(m.order, rec.ID)
	return rec.ID, nil
}

func (m *memRecordStore) Get(ctx context.Context, id string) (*domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

func (m *memRecordStore) Latest(ctx context.Context, limit int) ([]*domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.ScanRecord
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[m.order[i]])
	}
	return out, nil
}

// in-memory fault audit
type memFaultRepo struct {
	mu     sync.Mutex
	faults []*faults.Fault
}

func (m *memFaultRepo) Save(ctx context.Context, f *faults.Fault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, f)
	return nil
}

func (m *memFaultRepo) ListByBatch(ctx context.Context, batchID string, limit int) ([]*faults.Fault, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*faults.Fault
	for _, f := range m.faults {
		if f.BatchID == batchID {
			out = append(out, f)
		}
	}
	return out, nil
}

// stub report builder
type stubBuilder struct {
	mu        sync.Mutex
	aggCalls  int
	scanCalls int
	err       error
}

func (b *stubBuilder) BuildAggregate(ctx context.Context, rep *domain.AggregateReport) (*domain.StorageRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aggCalls++
	if b.err != nil {
		return nil, b.err
	}
	return &domain.StorageRef{
		BlobKey:  "aggregate.pdf",
		RecordID: "agg-1",
		URL:      "http://reports.test/aggregate.pdf",
	}, nil
}

func (b *stubBuilder) BuildScan(ctx context.Context, o domain.ScanOutcome) (*domain.StorageRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanCalls++
	if b.err != nil {
		return nil, b.err
	}
	return &domain.StorageRef{
		BlobKey:  string(o.Image) + ".pdf",
		RecordID: "scan-1",
		URL:      "http://reports.test/" + string(o.Image) + ".pdf",
	}, nil
}

func testSink(blobs *memBlobStore, records *memRecordStore, faultRepo *memFaultRepo) *Sink {
	s := &Sink{Blobs: blobs, Records: records, Log: zerolog.Nop()}
	if faultRepo != nil {
		s.Faults = faultRepo
	}
	return s
}

func testCoordinator(exec domain.Executor, sink *Sink) *Coordinator {
	return &Coordinator{
		Exec:        exec,
		Sink:        sink,
		Limit:       4,
		ScanTimeout: time.Second,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Log:         zerolog.Nop(),
	}
}
