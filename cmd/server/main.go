// Decoy - Agentic Honeypot Server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/decoy/internal/api"
	"github.com/ashureev/decoy/internal/config"
	"github.com/ashureev/decoy/internal/engage"
	"github.com/ashureev/decoy/internal/feed"
	"github.com/ashureev/decoy/internal/health"
	"github.com/ashureev/decoy/internal/middleware"
	"github.com/ashureev/decoy/internal/report"
	"github.com/ashureev/decoy/internal/responder"
	"github.com/ashureev/decoy/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "reports_enabled", cfg.ReportsEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live feed of engagement events.
	hub := feed.NewHub(cfg.AllowedOrigins, logger)
	defer hub.Close()

	store := session.NewStore(
		session.WithTTL(cfg.Session.TTL),
		session.WithLogger(logger),
		session.WithEvictCallback(func(sessionID string) {
			hub.Publish(feed.EventSessionEvicted, sessionID, nil)
		}),
	)

	var reporter engage.Reporter
	if cfg.ReportsEnabled() {
		reporter = report.NewCallbackClient(cfg.Callback.URL, cfg.Callback.Timeout, logger)
		slog.Info("Completion reports enabled", "callback_url", cfg.Callback.URL)
	} else {
		reporter = report.NewLogReporter(logger)
		slog.Info("CALLBACK_URL not set, completion reports will only be logged")
	}

	svc := engage.NewService(store,
		responder.New(responder.NewSource(cfg.RandomSeed)),
		reporter,
		engage.WithEventSink(hub),
		engage.WithReportTimeout(cfg.Callback.Timeout),
		engage.WithLogger(logger),
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.StartEviction(ctx, time.Minute)

	handler := api.NewHandler(svc, cfg.APIKey,
		api.WithRateLimiter(limiter),
		api.WithFeed(hub),
	)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recover)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	handler.RegisterRoutes(r)

	// WriteTimeout stays 0 so the WebSocket feed is not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	// Start TTL worker.
	var ttlDone <-chan struct{}
	if cfg.Session.SweepInterval > 0 {
		ttlDone = session.StartTTLWorker(ctx, store, cfg.Session.SweepInterval)
	} else {
		slog.Info("Background TTL worker disabled, sessions are swept on access")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		// Close feed subscribers first; hijacked WebSocket connections are
		// not tracked by Shutdown.
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.GRPCHealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "port", cfg.GRPCHealthPort, "error", err)
			os.Exit(1)
		}
		hs := health.NewServer(logger)
		g.Go(func() error {
			return hs.Serve(gctx, lis)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		stop()
		if ttlDone != nil {
			<-ttlDone
		}
		os.Exit(1)
	}

	if ttlDone != nil {
		<-ttlDone
	}
	slog.Info("Server stopped successfully")
}
