package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/biblioteca-api/api/swagger"
	"github.com/noah-isme/biblioteca-api/internal/handler"
	internalmiddleware "github.com/noah-isme/biblioteca-api/internal/middleware"
	"github.com/noah-isme/biblioteca-api/internal/repository"
	"github.com/noah-isme/biblioteca-api/internal/service"
	"github.com/noah-isme/biblioteca-api/internal/store"
	"github.com/noah-isme/biblioteca-api/pkg/cache"
	"github.com/noah-isme/biblioteca-api/pkg/config"
	"github.com/noah-isme/biblioteca-api/pkg/database"
	"github.com/noah-isme/biblioteca-api/pkg/jobs"
	"github.com/noah-isme/biblioteca-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/biblioteca-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/biblioteca-api/pkg/middleware/requestid"
	"github.com/noah-isme/biblioteca-api/pkg/storage"
)

// @title Biblioteca API
// @version 1.0.0
// @description Loan lifecycle and inventory ledger for the institute library
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var db *sqlx.DB
	var persister store.Persister
	if cfg.Storage.Driver != config.StorageMemory {
		var err error
		db, err = database.Open(cfg.Storage, cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		stateRepo := repository.NewStateRepository(db, database.Dialect(cfg.Storage.Driver), cfg.Storage.StateTable)
		if err := stateRepo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure state schema: %w", err)
		}
		persister = stateRepo
		checks["database"] = db.PingContext
	} else {
		logr.Warn("state kept in memory only; changes are lost on restart")
	}

	st := store.New(persister, logr.Named("store"), store.WithPersistObserver(metricsSvc.ObserveStatePersist))
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	ledger := service.NewInventoryLedger(logr.Named("ledger"))

	if cfg.Seed.Enabled {
		seeder := service.NewSeedService(st, ledger, service.SeedConfig{
			RandomSeed: cfg.Seed.RandomSeed,
			Books:      cfg.Seed.Books,
			Students:   cfg.Seed.Students,
			Loans:      cfg.Seed.Loans,
		}, logr.Named("seed"))
		if _, err := seeder.SeedIfEmpty(ctx); err != nil {
			return fmt.Errorf("seed sample data: %w", err)
		}
	}

	var cacheSvc *service.CacheService
	if cfg.Dashboard.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("dashboard cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheSvc = service.NewCacheService(repository.NewCacheRepository(client, logr), metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
			checks["redis"] = redisCheck(client)
		}
	}

	bookSvc := service.NewBookService(st, ledger, cacheSvc, validate, logr.Named("books"))
	studentSvc := service.NewStudentService(st, cacheSvc, validate, logr.Named("students"))
	loanSvc := service.NewLoanService(st, ledger, cacheSvc, metricsSvc, service.LoanServiceConfig{
		DefaultPeriod:       cfg.Loans.DefaultPeriod,
		MaxActivePerStudent: cfg.Loans.MaxActivePerStudent,
	}, validate, logr.Named("loans"))
	dashboardSvc := service.NewDashboardService(st, cacheSvc, service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL}, logr.Named("dashboard"))
	preferenceSvc := service.NewPreferenceService(st, validate, logr)
	sessionSvc := service.NewSessionService(st, validate, logr)

	reportSvc, queue, err := buildReports(ctx, cfg, db, st, metricsSvc, validate, logr.Named("reports"))
	if err != nil {
		return err
	}
	if queue != nil {
		defer queue.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(corsmiddleware.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc))
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	handler.RegisterRoutes(api, handler.Handlers{
		Books:          handler.NewBookHandler(bookSvc),
		Students:       handler.NewStudentHandler(studentSvc),
		Loans:          handler.NewLoanHandler(loanSvc),
		Dashboard:      handler.NewDashboardHandler(dashboardSvc),
		Reports:        handler.NewReportHandler(reportSvc, logr.Named("reports")),
		Desk:           handler.NewDeskHandler(preferenceSvc, sessionSvc),
		ExportsEnabled: queue != nil,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildReports wires the report service. Exports get a job store, object
// storage and a worker queue only when reports are enabled; the daily
// breakdown is always served.
func buildReports(ctx context.Context, cfg *config.Config, db *sqlx.DB, st *store.Store, metricsSvc *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ReportService, *jobs.Queue, error) {
	if !cfg.Reports.Enabled {
		return service.NewReportService(st, nil, nil, nil, metricsSvc, validate, logr, service.ReportServiceConfig{}), nil, nil
	}

	objects, err := storage.New(ctx, cfg.Reports)
	if err != nil {
		return nil, nil, fmt.Errorf("init report storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(st, objects, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.ResultTTL,
	}, logr, nil, nil)

	var jobStore service.ReportJobStore
	if db != nil {
		repo := repository.NewReportRepository(db, database.Dialect(cfg.Storage.Driver))
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure report schema: %w", err)
		}
		jobStore = repo
	} else {
		jobStore = repository.NewMemoryReportRepository()
	}

	worker := service.NewReportWorker(jobStore, exporter, metricsSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
		Observer: func(job jobs.Job, outcome string, err error) {
			if outcome == jobs.OutcomeExhausted {
				logr.Error("report job abandoned", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			}
		},
	})
	queue.Start(ctx)

	reportSvc := service.NewReportService(st, jobStore, queue, exporter, metricsSvc, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.ResultTTL,
		CleanupInterval: cfg.Reports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)
	return reportSvc, queue, nil
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
