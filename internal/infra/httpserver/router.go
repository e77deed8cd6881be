package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/fleetscan/internal/application/ai"
	appscans "github.com/bryanwahyu/fleetscan/internal/application/scans"
	domnarr "github.com/bryanwahyu/fleetscan/internal/domain/narrative"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
	"github.com/bryanwahyu/fleetscan/internal/middleware"
)

type Router struct {
	scansSvc       *appscans.Service
	aiSvc          *appai.Service
	requestTimeout time.Duration
}

func NewRouter(scansSvc *appscans.Service, aiSvc *appai.Service, requestTimeout time.Duration, health map[string]middleware.HealthChecker) http.Handler {
	r := &Router{scansSvc: scansSvc, aiSvc: aiSvc, requestTimeout: requestTimeout}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	mux.Get("/health", middleware.HealthHandler(health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/reports", r.wrap(r.handleCreateReport))
		rt.Post("/scans/results", r.wrap(r.handleIngestResult))
		rt.Get("/scans/latest", r.wrap(r.handleLatest))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Post("/scans/{id}/narrative", r.wrap(r.handleNarrative))
		rt.Get("/scans/{id}/narrative", r.wrap(r.handleNarrativeGet))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domnarr.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// POST /v1/reports
// Runs the whole batch under the server's request deadline and returns
// explicit per-image outcomes; partial failures are data, never a 500.
func (r *Router) handleCreateReport(w http.ResponseWriter, req *http.Request) error {
	var cmd appscans.CreateReportCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	// gateway-level shape checks before any dispatch
	for _, img := range cmd.Images {
		if err := middleware.ValidateImageName(img); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
		}
	}
	if err := middleware.ValidateBackend(cmd.Backend); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	ctx := req.Context()
	if r.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()
	}

	result, err := r.scansSvc.CreateReport(ctx, cmd)
	if err != nil {
		return err
	}

	middleware.CountBatch(result.Failed)
	failedScans := 0
	for _, ir := range result.Images {
		if ir.Status != string(domain.StatusOK) {
			failedScans++
		}
	}
	middleware.CountScans(len(result.Images), failedScans)

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(result)
}

// POST /v1/scans/results
func (r *Router) handleIngestResult(w http.ResponseWriter, req *http.Request) error {
	var cmd appscans.IngestResultCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	reply, err := r.scansSvc.IngestResult(req.Context(), cmd)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(reply)
}

// GET /v1/scans/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.scansSvc.LatestScans(req.Context(), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	rec, err := r.scansSvc.GetScan(req.Context(), id)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(rec)
}

// POST /v1/scans/{id}/narrative
// The server fetches the record's report URL and asks the model for a
// plain-language summary.
func (r *Router) handleNarrative(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return fmt.Errorf("%w: ai narratives are not configured", domain.ErrInvalidRequest)
	}
	id := chi.URLParam(req, "id")

	rec, err := r.scansSvc.GetScan(req.Context(), id)
	if err != nil {
		return err
	}
	if rec.URL == "" {
		return fmt.Errorf("%w: scan %s has no stored report", domain.ErrInvalidRequest, id)
	}

	n, err := r.aiSvc.SummarizeAndStore(req.Context(), id, rec.URL)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(n)
}

// GET /v1/scans/{id}/narrative
func (r *Router) handleNarrativeGet(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return fmt.Errorf("%w: ai narratives are not configured", domain.ErrInvalidRequest)
	}
	id := chi.URLParam(req, "id")

	n, err := r.aiSvc.Latest(req.Context(), id)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(n)
}
