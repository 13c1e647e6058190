package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/mentorpath-service/config"
	database "github.com/duynhne/mentorpath-service/internal/core"
	"github.com/duynhne/mentorpath-service/internal/core/domain"
	"github.com/duynhne/mentorpath-service/internal/core/repository"
	"github.com/duynhne/mentorpath-service/internal/core/suggest"
	"github.com/duynhne/mentorpath-service/internal/identity"
	logicv1 "github.com/duynhne/mentorpath-service/internal/logic/v1"
	v1 "github.com/duynhne/mentorpath-service/internal/web/v1"
	"github.com/duynhne/mentorpath-service/middleware"
	"github.com/duynhne/pkg/logger/zerolog"
)

const clientSweepInterval = time.Minute

type stores struct {
	records domain.RecordStore
	users   domain.UserRepository
	tokens  domain.TokenRepository
	close   func()
}

// openStores connects the configured backend.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory stores, data is lost on restart")
		return &stores{
			records: repository.NewMemoryRecordStore(),
			users:   repository.NewMemoryUserRepository(),
			tokens:  repository.NewMemoryTokenRepository(),
			close:   func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("Database connection pool established")
	return &stores{
		records: repository.NewRecordStore(pool),
		users:   repository.NewUserRepository(pool),
		tokens:  repository.NewTokenRepository(pool),
		close:   pool.Close,
	}, nil
}

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	zerolog.Setup(cfg.Logging.Level)

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Msg("Service starting")

	// Initialize OpenTelemetry tracing
	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			tp = provider
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().
				Str("endpoint", cfg.Profiling.Endpoint).
				Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	st, err := openStores(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer st.close()

	if cfg.Mentors.SeedFile != "" {
		seeds, err := repository.LoadMentorSeeds(cfg.Mentors.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load mentor seeds")
		}
		n, err := repository.SeedMentors(context.Background(), st.records, seeds)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed mentors")
		}
		log.Info().Int("seeded", n).Str("file", cfg.Mentors.SeedFile).Msg("Mentor seeds applied")
	}

	// Identity provider
	var exchangers []identity.FederatedExchanger
	if cfg.GoogleEnabled() {
		exchangers = append(exchangers, identity.NewGoogleExchanger(
			cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL,
		))
		log.Info().Msg("Google sign-in enabled")
	} else {
		log.Info().Msg("Google sign-in disabled (GOOGLE_CLIENT_ID not set)")
	}
	authority := identity.NewAuthority(
		st.users,
		st.tokens,
		identity.NewTokenSigner(cfg.Auth.TokenSecret, cfg.GetTokenTTLDuration()),
		exchangers...,
	)

	// Tag suggestions are optional.
	var tagGen logicv1.TagGenerator
	if cfg.GenAI.APIKey != "" {
		gen, err := suggest.NewGenAIGenerator(context.Background(), cfg.GenAI.APIKey, cfg.GenAI.Model)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize GenAI client, tag suggestions disabled")
		} else {
			tagGen = gen
			log.Info().Str("model", cfg.GenAI.Model).Msg("Tag suggestions enabled")
		}
	}

	registry := v1.NewClientRegistry(authority, st.records, cfg.Auth.MaxClients, logicv1.WithStrictLookup(cfg.Auth.StrictLookup))
	handler := v1.NewHandler(
		registry,
		authority,
		logicv1.NewSignupService(authority, st.records),
		logicv1.NewMentorService(st.records),
		logicv1.NewTagService(tagGen),
		cfg.Auth.CookieSecure,
	)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.Run(sweepCtx, clientSweepInterval, cfg.GetClientIdleTimeoutDuration())

	r := gin.Default()

	var isShuttingDown atomic.Bool

	// Tracing middleware
	r.Use(middleware.TracingMiddleware())

	// Logging middleware
	r.Use(middleware.LoggingMiddleware())

	// Prometheus middleware
	r.Use(middleware.PrometheusMiddleware())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics endpoint
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:    ":" + cfg.Service.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting mentorpath service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay started")
		time.Sleep(drainDelay)
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay completed")
	}

	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server...")

	// 1. Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	// 2. Dispose browser clients
	stopSweep()
	registry.Close()
	log.Info().Msg("Client registry closed")

	// 3. Close stores
	st.close()
	log.Info().Msg("Stores closed")

	// 4. Shutdown tracer
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}
