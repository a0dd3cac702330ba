package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/bpforge/internal/api/http"
	"github.com/GriffinCanCode/bpforge/internal/api/middleware"
	"github.com/GriffinCanCode/bpforge/internal/api/ws"
	"github.com/GriffinCanCode/bpforge/internal/domain/blueprint"
	"github.com/GriffinCanCode/bpforge/internal/domain/pipeline"
	"github.com/GriffinCanCode/bpforge/internal/domain/registry"
	"github.com/GriffinCanCode/bpforge/internal/domain/runs"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/config"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/bpforge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bpforge/internal/report"
	"github.com/GriffinCanCode/bpforge/internal/sandbox"
	"github.com/GriffinCanCode/bpforge/internal/shared/paths"
	"github.com/GriffinCanCode/bpforge/internal/synthesizer"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	runs    *runs.Manager
	store   *report.Store
	catalog *registry.Manager
	pool    *sandbox.Pool
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance. A nil logger is built from cfg.
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		var err error
		if logger, err = logging.New(logging.FromConfig(cfg.Logging)); err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	logger.Info("Initializing bpforge server",
		zap.String("port", cfg.Server.Port),
		zap.Float64("threshold", cfg.Pipeline.Threshold),
		zap.Bool("remote_synthesizer", cfg.Synthesizer.Endpoint != ""),
	)

	layout := paths.Layout{Reports: cfg.Storage.ReportDir, Blueprints: cfg.Storage.BlueprintDir}
	if err := layout.Ensure(); err != nil {
		return nil, fmt.Errorf("failed to prepare storage: %w", err)
	}

	opts, err := PipelineOptions(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	// Metrics first, other components report into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("bpforge", logger.Component("tracing"))

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Sandbox.Timeout.Std()
	if cfg.Sandbox.MaxCallStack > 0 {
		sandboxCfg.MaxCallStackSize = cfg.Sandbox.MaxCallStack
	}
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	synth, breaker := newSynthesizer(cfg.Synthesizer, metrics, logger.Component("synthesizer"))

	p, err := pipeline.New(
		monitoring.InstrumentExecutor(pool, metrics),
		synth,
		opts,
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger.Component("pipeline")),
	)
	if err != nil {
		pool.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	store, err := report.NewStore(cfg.Storage.ReportDir)
	if err != nil {
		pool.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	catalog := registry.NewManager(cfg.Storage.BlueprintDir)
	parser := blueprint.NewParser(blueprint.WithSchemaVersions(opts.SchemaVersions...))
	seeded, err := registry.NewSeeder(catalog, parser, cfg.Storage.BlueprintDir, logger.Component("registry")).Seed(ctx)
	if err != nil {
		logger.Warn("Failed to seed blueprints", zap.Error(err))
	} else if seeded.Failed > 0 {
		logger.Warn("Some blueprints failed to load", zap.Int("failed", seeded.Failed), zap.Strings("errors", seeded.Errors))
	}

	runManager := runs.NewManager(p, store,
		runs.WithTracer(tracer),
		runs.WithTracker(metrics),
		runs.WithLogger(logger.Component("runs")),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(logger.GinMiddleware())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}
	if cfg.Server.MaxBodySize > 0 {
		router.Use(middleware.BodyLimit(cfg.Server.MaxBodySize))
	}

	handlers := apihttp.NewHandlers(runManager, store, catalog, metrics, breaker, logger.Component("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(runManager, metrics, cfg.Server.CORSOrigins, logger.Component("ws"))
	router.GET("/v1/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully",
		zap.Int("recipes", len(p.Recipes().Kinds())),
		zap.Int("blueprints", catalog.Stats().Total))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		runs:    runManager,
		store:   store,
		catalog: catalog,
		pool:    pool,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// PipelineOptions maps the pipeline section onto pipeline options
func PipelineOptions(cfg config.PipelineConfig) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.Threshold = cfg.Threshold
	opts.SampleCount = cfg.SampleCount
	opts.Seed = cfg.Seed
	opts.MaxPasses = cfg.MaxPasses
	opts.SynthesisAttempts = cfg.SynthesisAttempts
	opts.Workers = cfg.Workers

	if len(cfg.SchemaVersions) > 0 {
		opts.SchemaVersions = nil
		for _, s := range cfg.SchemaVersions {
			v, err := blueprint.ParseVersion(s)
			if err != nil {
				return pipeline.Options{}, fmt.Errorf("schema versions: %w", err)
			}
			opts.SchemaVersions = append(opts.SchemaVersions, v)
		}
	}
	return opts, nil
}

// newSynthesizer selects the remote client when an endpoint is configured and
// the template synthesizer otherwise. The breaker is nil for the template.
func newSynthesizer(cfg config.SynthesizerConfig, metrics *monitoring.Metrics, logger *zap.Logger) (synthesizer.Synthesizer, *resilience.Breaker) {
	if cfg.Endpoint == "" {
		logger.Info("Using template synthesizer")
		return synthesizer.Instrument(synthesizer.NewTemplate(), metrics), nil
	}

	client := synthesizer.NewHTTP(synthesizer.HTTPConfig{
		Endpoint:         cfg.Endpoint,
		Token:            cfg.Token,
		Timeout:          cfg.Timeout.Std(),
		RateLimit:        cfg.RateLimit,
		Burst:            cfg.Burst,
		TransportRetries: 1,
		FailureThreshold: uint32(max(cfg.BreakerFailures, 1)),
		OpenTimeout:      cfg.BreakerOpenTimeout.Std(),
	}, logger)
	retrying := synthesizer.NewRetrying(client, synthesizer.Policy{
		Attempts:        cfg.Retries + 1,
		Timeout:         cfg.Timeout.Std(),
		InitialInterval: cfg.InitialBackoff.Std(),
		MaxInterval:     cfg.MaxBackoff.Std(),
	}, logger)

	logger.Info("Using remote synthesizer", zap.String("endpoint", cfg.Endpoint))
	return synthesizer.Instrument(retrying, metrics), client.Breaker()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels live runs and releases resources
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := s.runs.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("runs: %w", err))
	}
	s.tracer.Close()
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sandbox pool: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("report store: %w", err))
	}

	// Sync logger before exit
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
