package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/clipmark/highlights/internal/api"
	"github.com/clipmark/highlights/internal/api/handlers"
	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/jobs"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/service"
	"github.com/clipmark/highlights/internal/workers"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg           *config.Config
	logger        *slog.Logger
	store         *service.StoreHandle
	server        *http.Server
	river         *river.Client[pgx.Tx]
	meterProvider observability.MeterProviderShutdown
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, fmt.Errorf("the API server needs STORE_DRIVER=%s for its job queue, got %q",
			config.StoreDriverPostgres, cfg.StoreDriver)
	}

	var cleanups []func()

	defer func() {
		if err != nil {
			for i := len(cleanups) - 1; i >= 0; i-- {
				cleanups[i]()
			}
		}
	}()

	var (
		meterProvider  observability.MeterProviderShutdown
		metricsHandler http.Handler
		metrics        = &observability.Metrics{}
	)

	if cfg.MetricsEnabled {
		mp, handler, meter, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		cleanups = append(cleanups, func() { _ = mp.Shutdown(context.Background()) })

		if metrics, err = observability.NewMetrics(meter); err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}

		meterProvider, metricsHandler = mp, handler
	} else {
		logger.Warn("metrics not enabled (METRICS_ENABLED false or unset)")
	}

	store, err := service.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cleanups = append(cleanups, store.Close)

	gateway, err := service.NewGateway(ctx, cfg.Providers, metrics.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("select model provider: %w", err)
	}

	logger.Info("model provider selected", "provider", gateway.Name())

	orchestrator := service.NewOrchestrator(cfg.Pipeline, gateway, store.Store, metrics.Pipeline, logger)

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewProcessVideoWorker(orchestrator, cfg.Pipeline.ProcessTimeout, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(store.Pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Pipeline.ProcessWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &jobs.ErrorHandler{Logger: logger},
		MaxAttempts:  cfg.Pipeline.ProcessMaxAttempts,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	engine, err := service.NewEngine(cfg.Search, store.Store, gateway, metrics.Retrieval, logger)
	if err != nil {
		return nil, fmt.Errorf("create retrieval engine: %w", err)
	}

	videosService := service.NewVideosService(store.Store,
		jobs.NewRiverJobInserter(riverClient, cfg.Pipeline.ProcessMaxAttempts))
	chatService := service.NewChatService(engine)

	router := api.NewRouter(api.RouterConfig{
		APIKey:         cfg.APIKey,
		Health:         handlers.NewHealthHandler(store.Pool),
		Chat:           handlers.NewChatHandler(chatService),
		Videos:         handlers.NewVideosHandler(videosService),
		MetricsHandler: metricsHandler,
		HTTPMetrics:    metrics.HTTP,
		Logger:         logger,
	})

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 15 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		server: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		river:         riverClient,
		meterProvider: meterProvider,
	}, nil
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled (e.g. signal)
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 2)

	// River gets its own lifetime so Shutdown can stop it gracefully after ctx is cancelled.
	if err := a.river.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("river: %w", err)
	}

	go func() {
		a.logger.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown stops the server, then River (waiting for in-flight jobs), then closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	defer a.store.Close()

	var errs []error

	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := a.river.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("river stop: %w", err))
	}

	if a.meterProvider != nil {
		if err := a.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
