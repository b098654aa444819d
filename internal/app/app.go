// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/camilorv/aeropolicy/internal/clock/system"
	"github.com/camilorv/aeropolicy/internal/config"
	"github.com/camilorv/aeropolicy/internal/extract"
	"github.com/camilorv/aeropolicy/internal/fetcher"
	"github.com/camilorv/aeropolicy/internal/fetcher/headless"
	sha "github.com/camilorv/aeropolicy/internal/hash/sha256"
	"github.com/camilorv/aeropolicy/internal/logging"
	"github.com/camilorv/aeropolicy/internal/metrics"
	"github.com/camilorv/aeropolicy/internal/pipeline"
	"github.com/camilorv/aeropolicy/internal/policy"
	"github.com/camilorv/aeropolicy/internal/report"
	"github.com/camilorv/aeropolicy/internal/score"
	snapgcs "github.com/camilorv/aeropolicy/internal/snapshot/gcs"
	snaplocal "github.com/camilorv/aeropolicy/internal/snapshot/local"
	snapmem "github.com/camilorv/aeropolicy/internal/snapshot/memory"
	storemem "github.com/camilorv/aeropolicy/internal/storage/memory"
	"github.com/camilorv/aeropolicy/internal/storage/postgres"
)

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	memStore *storemem.PolicyStore
	pgStore  *postgres.PolicyStore
	renderer *headless.Renderer
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Pipeline returns the configured scrape pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// Records returns everything persisted by the in-memory store, or nil when a
// database backend is in use.
func (a *App) Records() []policy.Extracted {
	if a.memStore == nil {
		return nil
	}
	return a.memStore.Records()
}

// Close releases database and browser resources.
func (a *App) Close() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	_ = a.logger.Sync()
}

// New loads configuration and wires every service. It fails fast when any
// critical collaborator cannot be initialized.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Info("initializing services",
		zap.Int("sources", len(cfg.Sources)),
		zap.String("snapshot_backend", cfg.Snapshot.Backend),
	)

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			if serveErr := metrics.Serve(cfg.Metrics.Port); serveErr != nil {
				logger.Error("metrics server stopped", zap.Error(serveErr))
			}
		}()
	}

	a := &App{cfg: cfg, logger: logger}

	snapshots, err := a.buildSnapshotStore(ctx)
	if err != nil {
		return nil, err
	}
	policyStore, err := a.buildPolicyStore(ctx)
	if err != nil {
		return nil, err
	}

	var renderer fetcher.Retriever
	if cfg.Headless.Enabled {
		r, rErr := headless.New(headless.Config{
			NavigationTimeout: cfg.Headless.PageLoadTimeout(),
			QPS:               cfg.Headless.DomainQPS,
		})
		if rErr != nil {
			return nil, fmt.Errorf("init headless renderer: %w", rErr)
		}
		a.renderer = r
		renderer = r
	}

	f := fetcher.New(
		fetcher.Config{
			MinDelay:    time.Duration(cfg.Fetch.MinDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Fetch.MaxDelayMs) * time.Millisecond,
			MaxRetries:  cfg.Fetch.MaxRetries,
			BackoffBase: time.Duration(cfg.Fetch.BackoffBaseMs) * time.Millisecond,
			BackoffMax:  time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
			UserAgents:  cfg.Fetch.UserAgents,
		},
		fetcher.NewCollyRetriever(cfg.Fetch.Timeout()),
		renderer,
		snapshots,
		sha.New(),
		system.New(),
		logger,
	)

	scorer := score.New(score.Config{
		ReviewThreshold: cfg.Score.ReviewThreshold,
		MaxCostCOP:      cfg.Score.MaxCostCOP,
		MaxCostUSD:      cfg.Score.MaxCostUSD,
	})
	reportCfg := report.Config{
		CoverageIdeal:        cfg.Viability.CoverageViablePct,
		CoverageMinimum:      cfg.Viability.CoverageRestrictedPct,
		MaxAcceptableCostCOP: cfg.Viability.MaxAcceptableCostCOP,
		MinViableSources:     cfg.Viability.MinViableSources,
	}

	a.pipeline = pipeline.New(
		f,
		extract.New(logger),
		scorer,
		policyStore,
		system.New(),
		reportCfg,
		logger,
	)
	return a, nil
}

func (a *App) buildSnapshotStore(ctx context.Context) (policy.SnapshotStore, error) {
	switch a.cfg.Snapshot.Backend {
	case "local":
		store, err := snaplocal.New(snaplocal.Config{BaseDir: a.cfg.Snapshot.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshot store: %w", err)
		}
		return store, nil
	case "memory":
		return snapmem.New(), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := snapgcs.New(client, snapgcs.Config{
			Bucket: a.cfg.Snapshot.GCSBucket,
			Prefix: a.cfg.Snapshot.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs snapshot store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", a.cfg.Snapshot.Backend)
	}
}

func (a *App) buildPolicyStore(ctx context.Context) (policy.PolicyStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no database configured, keeping records in memory")
		a.memStore = storemem.NewPolicyStore()
		return a.memStore, nil
	}
	store, err := postgres.NewPolicyStore(ctx, postgres.PolicyStoreConfig{
		DSN:   a.cfg.DB.DSN,
		Table: a.cfg.DB.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("init policy store: %w", err)
	}
	a.pgStore = store
	return store, nil
}
