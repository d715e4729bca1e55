// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the harvester.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/api"
	archivegcs "github.com/JakeFAU/openlibrary-harvester/internal/archive/gcs"
	archivelocal "github.com/JakeFAU/openlibrary-harvester/internal/archive/local"
	archivememory "github.com/JakeFAU/openlibrary-harvester/internal/archive/memory"
	"github.com/JakeFAU/openlibrary-harvester/internal/catalog"
	"github.com/JakeFAU/openlibrary-harvester/internal/clock/system"
	"github.com/JakeFAU/openlibrary-harvester/internal/config"
	"github.com/JakeFAU/openlibrary-harvester/internal/harvest"
	iduuid "github.com/JakeFAU/openlibrary-harvester/internal/id/uuid"
	"github.com/JakeFAU/openlibrary-harvester/internal/logging"
	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
	notifymemory "github.com/JakeFAU/openlibrary-harvester/internal/notify/memory"
	notifypubsub "github.com/JakeFAU/openlibrary-harvester/internal/notify/pubsub"
	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
	"github.com/JakeFAU/openlibrary-harvester/internal/progress/sinks"
	storecsv "github.com/JakeFAU/openlibrary-harvester/internal/store/csv"
	storememory "github.com/JakeFAU/openlibrary-harvester/internal/store/memory"
	storepostgres "github.com/JakeFAU/openlibrary-harvester/internal/store/postgres"
	"github.com/JakeFAU/openlibrary-harvester/internal/telemetry"
)

const (
	serviceName     = "openlibrary-harvester"
	shutdownTimeout = 10 * time.Second
)

// App holds the shared, long-lived services of the harvester. It is
// initialized once at startup and drives exactly one harvest run.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	hub    *progress.Hub
	recent *sinks.RecentSink
	orch   *harvest.Orchestrator

	server *http.Server
	ln     net.Listener

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New builds every service the run needs from the configuration. It fails
// fast: any provider that cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	logger.Info("initializing harvester services",
		zap.String("subject", cfg.Harvest.Subject),
		zap.Int("pages", cfg.Harvest.Pages),
	)

	tracer, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closer{name: "tracer provider", fn: func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tracer.Shutdown(flushCtx)
	}})

	store, err := a.buildStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	archiver, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	fetcher := catalog.NewCollyFetcher(catalog.FetcherConfig{
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.CatalogTimeout(),
	})
	client := catalog.NewClient(catalog.ClientConfig{
		BaseURL:   cfg.Catalog.BaseURL,
		Subject:   cfg.Harvest.Subject,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.CatalogTimeout(),
	}, fetcher, archiver, logger.Named("catalog"))

	a.recent = sinks.NewRecentSink(0)
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}

	if cfg.Server.Enabled {
		handler := api.NewServer(
			api.NewProgressHandler(a.recent, logger.Named("api")),
			storeReady(store),
			cfg.Server,
			logger.Named("api"),
		)
		ln, err := net.Listen("tcp", cfg.Server.Addr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
		}
		a.ln = ln
		a.server = &http.Server{
			Handler:           handler.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	a.hub = progress.NewHub(progress.Config{
		Buffer:        cfg.Progress.Buffer,
		BatchSize:     cfg.Progress.BatchSize,
		FlushInterval: cfg.FlushInterval(),
		Logger:        logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("progress")), promSink, a.recent)

	gate := harvest.NewGate(cfg.Harvest.Concurrency)
	enricher := harvest.NewDetailEnricher(client, logger.Named("enrich"))
	processor := harvest.NewPageProcessor(client, enricher, gate, cfg.Harvest.Limit, logger.Named("page"))
	a.orch = harvest.NewOrchestrator(
		cfg.Harvest.Pages,
		processor,
		harvest.NewLedger(),
		store,
		publisher,
		system.New(),
		iduuid.New(),
		a.hub,
		logger.Named("harvest"),
	)

	logger.Info("harvester services initialized")
	return a, nil
}

// Run serves the ops endpoints for the duration of one harvest run. The
// run's outcome is the returned error; ops server trouble is logged but
// never fails the harvest.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.logger.Info("ops server listening", zap.String("addr", a.ln.Addr().String()))
			if err := a.server.Serve(a.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	summary, runErr := a.orch.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the hub flushes buffered events and closes the recent sink,
	// which ends any open SSE streams before the server shuts down.
	if err := a.hub.Close(shutdownCtx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops server shutdown failed", zap.Error(err))
		}
		select {
		case err := <-serverErr:
			a.logger.Error("ops server failed", zap.Error(err))
		default:
		}
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("harvest run summary",
		zap.String("run_id", summary.RunID),
		zap.Int("pages", summary.Pages),
		zap.Int("appended", summary.Appended),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("dur", summary.Finished.Sub(summary.Started)),
	)
	return nil
}

// Close gracefully shuts down all services in the App container. It is
// called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.logger.Info("shutting down harvester services")
	if a.ln != nil {
		_ = a.ln.Close()
	}
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort: stderr sync commonly fails on ttys.
		_ = err
	}
}

// OpsAddr returns the bound ops listener address, or "" when the server
// is disabled.
func (a *App) OpsAddr() string {
	if a.ln == nil {
		return ""
	}
	return a.ln.Addr().String()
}

func (a *App) buildStore(ctx context.Context) (harvest.Store, error) {
	switch a.cfg.Store.Provider {
	case "csv":
		a.logger.Info("using csv store", zap.String("path", a.cfg.Store.CSV.Path))
		store, err := storecsv.NewWorkStore(a.cfg.Store.CSV.Path)
		if err != nil {
			return nil, fmt.Errorf("init csv store: %w", err)
		}
		return store, nil
	case "postgres":
		a.logger.Info("using postgres store")
		store, err := storepostgres.NewWorkStore(ctx, storepostgres.Config{DSN: a.cfg.Store.Postgres.DSN})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, closer{name: "postgres store", fn: func() error {
			store.Close()
			return nil
		}})
		return store, nil
	case "memory":
		a.logger.Info("using in-memory store; records are discarded on exit")
		return storememory.NewWorkStore(), nil
	default:
		return nil, fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
}

func (a *App) buildArchive(ctx context.Context) (catalog.Archiver, error) {
	switch a.cfg.Archive.Provider {
	case "none":
		return nil, nil
	case "local":
		a.logger.Info("archiving payloads locally", zap.String("dir", a.cfg.Archive.Local.Dir))
		archive, err := archivelocal.New(archivelocal.Config{BaseDir: a.cfg.Archive.Local.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return archive, nil
	case "gcs":
		a.logger.Info("archiving payloads to gcs", zap.String("bucket", a.cfg.Archive.GCS.Bucket))
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		archive, err := archivegcs.New(client, archivegcs.Config{
			Bucket: a.cfg.Archive.GCS.Bucket,
			Prefix: a.cfg.Archive.GCS.Prefix,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, closer{name: "gcs client", fn: client.Close})
		return archive, nil
	case "memory":
		return archivememory.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", a.cfg.Archive.Provider)
	}
}

func (a *App) buildNotifier(ctx context.Context) (harvest.Publisher, error) {
	switch a.cfg.Notify.Provider {
	case "none":
		return nil, nil
	case "memory":
		return notifymemory.New(), nil
	case "pubsub":
		a.logger.Info("publishing append notifications",
			zap.String("project", a.cfg.Notify.PubSub.ProjectID),
			zap.String("topic", a.cfg.Notify.PubSub.Topic),
		)
		client, err := pubsub.NewClient(ctx, a.cfg.Notify.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		publisher := client.Publisher(a.cfg.Notify.PubSub.Topic)
		a.closers = append(a.closers, closer{name: "pubsub client", fn: func() error {
			publisher.Stop()
			return client.Close()
		}})
		return notifypubsub.New(publisher), nil
	default:
		return nil, fmt.Errorf("unknown notify provider: %s", a.cfg.Notify.Provider)
	}
}

func storeReady(store harvest.Store) api.ReadyCheck {
	return func(ctx context.Context) error {
		if _, err := store.Exists(ctx); err != nil {
			return fmt.Errorf("probe store: %w", err)
		}
		return nil
	}
}
