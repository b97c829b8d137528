package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/cache"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/database"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/middleware"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/negotiation"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/profiles"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/queue"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/resource"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/session"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/streaming"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/tracing"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/transcoder"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.ErrorWithErr("server exited", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer closer.Close()

	checks := map[string]HealthCheck{}
	var sinks session.MultiSink
	var history EventHistory

	// Initialize database
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := database.NewSessionEventRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, repo)
		history = repo
		checks["database"] = db.Health
		logger.Info("session event history enabled")
	}

	// Initialize queue
	if cfg.Queue.Enabled {
		publisher, err := queue.New(cfg.Queue)
		if err != nil {
			return fmt.Errorf("failed to connect to queue: %w", err)
		}
		defer publisher.Close()

		sinks = append(sinks, publisher)
		logger.Infof("publishing session events to exchange %s", cfg.Queue.Exchange)
	}

	// Initialize storage
	resources, err := resource.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	manager, err := profiles.NewManager(cfg.Profiles, cfg.DefaultProfile, logger)
	if err != nil {
		return fmt.Errorf("failed to load client profiles: %w", err)
	}

	ffmpeg := transcoder.NewFFmpeg(cfg.Transcoder.FFmpegPath, cfg.Transcoder.FFprobePath, cfg.Transcoder.ProbeTimeout, resources, logger)
	runtime := transcoder.NewRuntime(cfg.Transcoder, resources, logger)

	engine := negotiation.NewEngine(manager, transcoder.Projector{}, negotiation.Options{
		TranscodingEnabled:     cfg.Negotiation.TranscodingEnabled,
		BurnInSubtitlesAllowed: cfg.Negotiation.BurnInSubtitlesAllowed,
	}, logger)

	registryOpts := []session.Option{session.WithLogger(logger)}
	if len(sinks) > 0 {
		registryOpts = append(registryOpts, session.WithEventSink(sinks))
	}
	registry := session.NewRegistry(runtime, resources, registryOpts...)

	serviceOpts := []streaming.Option{streaming.WithLogger(logger)}

	var limiter middleware.Limiter
	var localLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		c, err := cache.New(cfg.Redis)
		if err != nil {
			return err
		}
		defer c.Close()

		serviceOpts = append(serviceOpts, streaming.WithCache(c))
		checks["redis"] = c.Ping
		if cfg.RateLimit.Enabled {
			limiter = middleware.NewSharedLimiter(c, int64(cfg.RateLimit.RequestsPerSecond), time.Second)
		}
	}
	if cfg.RateLimit.Enabled && limiter == nil {
		localLimiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		limiter = localLimiter
	}

	service := streaming.NewService(ffmpeg, manager, engine, registry, serviceOpts...)

	api := &API{
		service:  service,
		registry: registry,
		history:  history,
		checks:   checks,
		logger:   logger.WithComponent("api"),
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      setupRouter(api, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sweeper := &session.Sweeper{
			Registry: registry,
			Conf: session.SweeperConfig{
				Interval:    cfg.Sessions.SweepInterval,
				IdleTimeout: cfg.Sessions.IdleTimeout,
			},
			Logger: logger,
		}
		sweeper.Run(gctx)
		return nil
	})

	if localLimiter != nil {
		g.Go(func() error {
			localLimiter.Run(gctx, 10*time.Minute, 30*time.Minute)
			return nil
		})
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		g.Go(metricsServer.Start)
	}

	// Shut everything down once a signal arrives or a component fails
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		registry.DeleteAll(shutdownCtx)
		if err := runtime.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		logger.Info("Server stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}
