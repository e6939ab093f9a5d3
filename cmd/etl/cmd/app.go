package cmd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/database"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/lock"
	"github.com/tradepath/roi-ingest/internal/logger"
	"github.com/tradepath/roi-ingest/internal/metrics"
	"github.com/tradepath/roi-ingest/internal/repository"
	"github.com/tradepath/roi-ingest/internal/service"
	"github.com/tradepath/roi-ingest/internal/validator"
)

// app holds the per-run dependencies shared by every command.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	runID   uuid.UUID
	db      *pgxpool.Pool
	rdb     *redis.Client
	lock    *lock.RunLock
	metrics *metrics.Metrics
}

// loadConfig reads configuration and applies the global flag overrides.
func loadConfig() (*config.Config, zerolog.Logger) {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	return cfg, logger.Setup(cfg.LogLevel, cfg.LogFormat)
}

// newApp connects to PostgreSQL and, when configured, Redis.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, stage string) (*app, error) {
	runID := uuid.New()
	log = log.With().Str("run_id", runID.String()).Str("stage", stage).Logger()
	log.Info().Str("log_level", cfg.LogLevel).Msg("Starting run")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	db, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, etlerr.New(etlerr.KindConfig, "database", "cannot connect to PostgreSQL", err)
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		db.Close()
		return nil, etlerr.New(etlerr.KindConfig, "redis", "cannot connect to Redis", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		runID:   runID,
		db:      db,
		rdb:     rdb,
		lock:    lock.New(rdb, lock.DefaultTTL, log),
		metrics: metrics.New(),
	}, nil
}

// close pushes metrics and releases connections.
func (a *app) close(job string) {
	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(pushCtx, a.cfg.PushgatewayURL, job, a.runID.String()); err != nil {
		a.log.Warn().Err(err).Msg("Failed to push metrics")
	}

	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	a.db.Close()
}

// acquire takes the run lock for key.
func (a *app) acquire(ctx context.Context, key string) (func(), error) {
	return a.lock.Acquire(ctx, key, a.runID.String())
}

// writer builds the run's Writer over the PostgreSQL repositories.
func (a *app) writer() *service.Writer {
	return service.NewWriter(service.Stores{
		Schools:   repository.NewSchoolRepository(a.db),
		Programs:  repository.NewProgramRepository(a.db),
		Crosswalk: repository.NewCrosswalkRepository(a.db),
		Wages:     repository.NewWageRepository(a.db),
	}, a.metrics, a.log)
}
