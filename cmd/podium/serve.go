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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/archive"
	"github.com/alfredjeanlab/podium/internal/config"
	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/server"
	"github.com/alfredjeanlab/podium/internal/store"
	"github.com/alfredjeanlab/podium/internal/store/memory"
	"github.com/alfredjeanlab/podium/internal/store/postgres"
	"github.com/alfredjeanlab/podium/internal/template"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the podium HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		logger.Info("store opened", "store", cfg.Store)

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (PODIUM_NATS_URL not set)")
		}

		svc := workflow.New(st,
			workflow.WithPublisher(publisher),
			workflow.WithLogger(logger),
			workflow.WithPublicURL(cfg.PublicURL),
		)

		if cfg.TemplatesDir != "" {
			tpls, err := template.LoadDir(cfg.TemplatesDir)
			if err != nil {
				publisher.Close()
				st.Close()
				return err
			}
			n, err := svc.SeedTemplates(context.Background(), tpls, "system")
			if err != nil {
				publisher.Close()
				st.Close()
				return err
			}
			logger.Info("templates seeded", "dir", cfg.TemplatesDir, "loaded", len(tpls), "created", n)
		}

		limiter, redisClient, stopLimiter := openLimiter(cfg, logger)

		srv := server.New(svc,
			server.WithLimiter(limiter),
			server.WithTrustedProxies(cfg.TrustedProxies),
			server.WithLogger(logger),
		)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			stopLimiter()
			publisher.Close()
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			dest, err := archive.NewS3Destination(
				context.Background(),
				cfg.ArchiveS3Bucket,
				cfg.ArchiveS3Key,
				cfg.ArchiveS3Region,
				cfg.ArchiveS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 archive destination", "error", err)
			} else {
				scheduler = archive.NewScheduler(st, []archive.Destination{dest}, cfg.ArchiveInterval, logger)
				scheduler.Start()
				logger.Info("archive scheduler started", "interval", cfg.ArchiveInterval, "destination", dest.Name())
			}
		}

		if cfg.AuthToken == "" {
			logger.Warn("admin auth disabled (PODIUM_AUTH_TOKEN not set)")
		}
		logger.Info("podium server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"public_url", cfg.PublicURL,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("archive scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		logger.Info("HTTP server stopped")

		stopLimiter()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Error("error closing redis", "error", err)
			}
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}
	return postgres.New(cfg.DatabaseURL)
}

// openLimiter builds the signing rate limiter. Redis is used when configured
// and reachable; otherwise an in-process limiter. A zero limit disables
// limiting and returns a nil Limiter.
func openLimiter(cfg *config.Config, logger *slog.Logger) (server.Limiter, *redis.Client, func()) {
	noop := func() {}
	if cfg.SignRateLimit == 0 {
		logger.Info("signing rate limit disabled")
		return nil, nil, noop
	}
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := server.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err == nil {
			logger.Info("signing rate limit via redis", "limit", cfg.SignRateLimit, "window", cfg.SignRateWindow)
			return server.NewRedisLimiter(rc, cfg.SignRateLimit, cfg.SignRateWindow), rc, noop
		}
		logger.Warn("redis unavailable, using in-process rate limiter", "addr", cfg.RedisAddr, "error", err)
	}
	ml := server.NewMemoryLimiter(cfg.SignRateLimit, cfg.SignRateWindow)
	logger.Info("signing rate limit in process", "limit", cfg.SignRateLimit, "window", cfg.SignRateWindow)
	return ml, nil, ml.Stop
}
