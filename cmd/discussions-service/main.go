package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/pribylovaa/go-discussions/internal/cache"
	"github.com/pribylovaa/go-discussions/internal/config"
	"github.com/pribylovaa/go-discussions/internal/metrics"
	"github.com/pribylovaa/go-discussions/internal/service"
	"github.com/pribylovaa/go-discussions/internal/storage"
	"github.com/pribylovaa/go-discussions/internal/storage/mongo"
	"github.com/pribylovaa/go-discussions/internal/storage/postgres"
	grpcserver "github.com/pribylovaa/go-discussions/internal/transport/grpc"
	httpapi "github.com/pribylovaa/go-discussions/internal/transport/http"
	"github.com/pribylovaa/go-discussions/internal/transport/http/handlers"
	"github.com/pribylovaa/go-discussions/internal/transport/http/middleware"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting discussions-service", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	dbCtx, dbCancel := context.WithTimeout(rootCtx, 30*time.Second)
	store, err := openStorage(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("storage_open_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("storage_ready", slog.String("driver", cfg.DB.Driver))

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := []service.Option{service.WithMetrics(m)}

	var commentsCache cache.CommentsCache
	if cfg.Redis.URL != "" {
		cacheCtx, cacheCancel := context.WithTimeout(rootCtx, 5*time.Second)
		commentsCache, err = cache.NewRedisCache(cacheCtx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL)
		cacheCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			rootCancel()
			_ = store.Close(context.Background())
			os.Exit(1)
		}
		opts = append(opts, service.WithCache(commentsCache))
		log.Info("redis_connected")
	}

	notifications := service.NewNotificationService(store, opts...)
	comments := service.NewCommentService(store, notifications, *cfg, opts...)
	log.Info("service_initialized")

	var ready atomic.Bool

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: httpapi.NewRouter(handlers.New(comments, notifications), httpapi.Options{
			Logger:   log,
			Metrics:  m,
			Timeout:  cfg.Timeouts.Service,
			BasePath: cfg.HTTP.BasePath,
			Auth: middleware.AuthConfig{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			},
			Ready:          ready.Load,
			MetricsHandler: promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)
	go func() {
		log.Info("http_listen_start", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("http: %w", err)
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()

	grpcSrv := grpcserver.NewServer(grpcserver.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Service,
		Reflection: cfg.Env == envLocal || cfg.Env == envDev,
	})

	addr := cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", addr),
			slog.String("err", err.Error()),
		)
		rootCancel()
		_ = httpSrv.Shutdown(context.Background())
		closeAll(log, store, commentsCache)
		os.Exit(1)
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	go func() {
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	grpcSrv.SetServing(true)
	ready.Store(true)

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		log.Error("serve_failed", slog.String("err", err.Error()))
	}

	ready.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}
	if grpcSrv.Shutdown(shutdownCtx) {
		log.Info("grpc_stopped")
	} else {
		log.Warn("grpc_force_stop")
	}
	shutdownCancel()

	rootCancel()
	closeAll(log, store, commentsCache)

	log.Info("service_stopped")
}

// openStorage подключает выбранный драйвер; для postgres применяет миграции.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.DB.URL)
		if err != nil {
			return nil, err
		}

		if err := st.Migrate(ctx); err != nil {
			_ = st.Close(context.Background())
			return nil, err
		}

		return st, nil
	case config.DriverMongo:
		st, err := mongo.New(ctx, cfg.DB.URL)
		if err != nil {
			return nil, err
		}

		return st, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}
}

func closeAll(log *slog.Logger, st storage.Storage, c cache.CommentsCache) {
	if c != nil {
		if err := c.Close(); err != nil {
			log.Warn("redis_close_failed", slog.String("err", err.Error()))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		log.Warn("storage_close_failed", slog.String("err", err.Error()))
	}
}

// setupLogger — text для local, JSON для dev/prod.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
