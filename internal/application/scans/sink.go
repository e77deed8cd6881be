package scans

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/application"
	"github.com/bryanwahyu/fleetscan/internal/domain/faults"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Sink durably persists scan outcomes: raw report blob to object storage,
// metadata record to the document store. The blob is the artifact of
// record; a failed metadata write is reported as partial_persist but the
// blob is never rolled back.
type Sink struct {
	Blobs   domain.BlobStore
	Records domain.RecordStore
	Faults  faults.Repository // optional audit trail
	Clock   application.Clock
	Log     zerolog.Logger
}

// Persist returns a copy of the outcome with StoredRef populated.
// Failed outcomes are persisted too; only their record is written since
// there is no report blob to store.
func (s *Sink) Persist(ctx context.Context, batchID string, o domain.ScanOutcome) domain.ScanOutcome {
	ref := &domain.StorageRef{}

	if o.RawReport != nil {
		key := blobKey(o.Image, o.FinishedAt)
		url, err := s.Blobs.PutBlob(ctx, key, o.RawReport, "application/json")
		if err != nil {
			o.PersistWarning = fmt.Sprintf("blob write failed: %v", err)
			s.Log.Error().Err(err).Str("image", string(o.Image)).Msg("blob write failed")
		} else {
			ref.BlobKey = key
			ref.URL = url
		}
	}

	rec := &domain.ScanRecord{
		ID:          uuid.New().String(),
		Image:       o.Image,
		Backend:     o.Backend,
		Status:      o.Status,
		Timestamp:   o.FinishedAt,
		URL:         ref.URL,
		Blob:        ref.BlobKey,
		ErrorDetail: o.ErrorDetail,
		DurationMS:  o.FinishedAt.Sub(o.StartedAt).Milliseconds(),
		Metadata:    o.Metadata,
	}
	id, err := s.Records.Save(ctx, rec)
	if err != nil {
		if ref.BlobKey != "" {
			// blob survived, index did not
			o.PersistWarning = domain.ErrPartialPersist.Error()
			s.recordFault(batchID, o, "persist", fmt.Sprintf("%v: %v", domain.ErrPartialPersist, err))
			s.Log.Warn().Err(err).Str("image", string(o.Image)).Str("blob", ref.BlobKey).
				Msg("metadata record failed after blob write")
		} else {
			o.PersistWarning = fmt.Sprintf("record write failed: %v", err)
			s.Log.Error().Err(err).Str("image", string(o.Image)).Msg("record write failed")
		}
	} else {
		ref.RecordID = id
	}

	if ref.BlobKey != "" || ref.RecordID != "" {
		o.StoredRef = ref
	}

	if o.Status != domain.StatusOK {
		s.recordFault(batchID, o, "execute", o.ErrorDetail)
	}
	return o
}

func (s *Sink) recordFault(batchID string, o domain.ScanOutcome, phase, msg string) {
	if s.Faults == nil {
		return
	}
	now := o.FinishedAt
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	f := &faults.Fault{
		BatchID:   batchID,
		Image:     string(o.Image),
		Phase:     phase,
		Status:    string(o.Status),
		Message:   msg,
		CreatedAt: now,
	}
	// audit only, never blocks the pipeline
	if err := s.Faults.Save(context.Background(), f); err != nil {
		s.Log.Warn().Err(err).Str("image", string(o.Image)).Msg("fault audit write failed")
	}
}

// blobKey derives a storage key unique per (image, timestamp). The random
// suffix closes the sub-second collision window for two scans of the same
// image finishing within the clock's resolution.
func blobKey(image domain.ImageRef, finished time.Time) string {
	sanitized := strings.NewReplacer("/", "-", ":", "-", "@", "-").Replace(string(image))
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%d_%09d_%s.json", sanitized, finished.Unix(), finished.Nanosecond(), suffix)
}
