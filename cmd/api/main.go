package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/fleetscan/internal/application"
	appai "github.com/bryanwahyu/fleetscan/internal/application/ai"
	appscans "github.com/bryanwahyu/fleetscan/internal/application/scans"
	"github.com/bryanwahyu/fleetscan/internal/config"
	domnarr "github.com/bryanwahyu/fleetscan/internal/domain/narrative"
	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
	aiopenai "github.com/bryanwahyu/fleetscan/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/fleetscan/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/fleetscan/internal/infra/db/postgres"
	snykrunner "github.com/bryanwahyu/fleetscan/internal/infra/executor/snyk"
	"github.com/bryanwahyu/fleetscan/internal/infra/httpserver"
	"github.com/bryanwahyu/fleetscan/internal/infra/report"
	minioStore "github.com/bryanwahyu/fleetscan/internal/infra/storage"
	"github.com/bryanwahyu/fleetscan/internal/middleware"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "fleetscan").Logger()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx := context.Background()

	// connect database (mysql by default, postgres variant supported)
	var db *sql.DB
	var records domain.RecordStore
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connect error")
		}
		records = postgresp.NewRecordRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("mysql connect error")
		}
		records = mysqlp.NewRecordRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("minio init error")
	}

	// fault audit trail lives in mysql only
	var faultRepo *mysqlp.FaultRepository
	if cfg.Database.Driver != "postgres" {
		faultRepo = mysqlp.NewFaultRepository(db)
	}

	clock := application.SystemClock{}

	sink := &appscans.Sink{
		Blobs:   store,
		Records: records,
		Clock:   clock,
		Log:     log,
	}
	if faultRepo != nil {
		sink.Faults = faultRepo
	}

	coordinator := &appscans.Coordinator{
		Exec:        snykrunner.NewRunner(cfg.Scanner.Bin, cfg.Scanner.Org),
		Sink:        sink,
		Limit:       cfg.Scanner.Concurrency,
		ScanTimeout: cfg.ScanTimeoutDuration(),
		Attempts:    cfg.Scanner.Retry.Attempts,
		BaseDelay:   time.Duration(cfg.Scanner.Retry.BaseDelay) * time.Second,
		MaxDelay:    time.Duration(cfg.Scanner.Retry.MaxDelay) * time.Second,
		Clock:       clock,
		Log:         log,
	}

	// reporter collaborator is optional
	var builder domain.ReportBuilder
	if cfg.Reporter.URL != "" {
		builder = report.NewClient(cfg.Reporter.URL, time.Duration(cfg.Reporter.Timeout)*time.Second)
	}

	aggregator := &appscans.Aggregator{
		Policy:  domain.DefaultWeights(),
		Builder: builder,
		Clock:   clock,
		Log:     log,
	}

	svc := &appscans.Service{
		Coordinator: coordinator,
		Aggregator:  aggregator,
		Sink:        sink,
		Builder:     builder,
		Records:     records,
		Clock:       clock,
		Log:         log,
	}

	// ai narratives are optional
	var aiSvc *appai.Service
	if cfg.AI.APIKey != "" {
		var narrRepo domnarr.Repository
		if cfg.Database.Driver != "postgres" {
			narrRepo = mysqlp.NewNarrativeRepository(db)
		}
		aiSvc = appai.NewService(aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.Model), narrRepo)
	}

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage":  middleware.CheckerFunc(store.Ping),
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	mux.Mount("/", httpserver.NewRouter(svc, aiSvc, cfg.RequestTimeoutDuration(), health))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		// batch requests can legitimately run for minutes
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeoutDuration() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
