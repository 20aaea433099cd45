package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"foundation_site/internal/api"
	"foundation_site/internal/auth"
	"foundation_site/internal/config"
	"foundation_site/internal/notify"
	"foundation_site/internal/publisher"
	"foundation_site/internal/render"
	"foundation_site/internal/resource"
	"foundation_site/internal/scheduler"
	"foundation_site/internal/service"
	"foundation_site/internal/storage/objectstore"
	"foundation_site/internal/storage/postgres"
	"foundation_site/internal/storage/rest"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var (
		gateway service.Gateway
		tx      service.TransactionManager
	)
	switch cfg.Backend.Mode {
	case config.BackendREST:
		gateway = rest.New(rest.Config{
			BaseURL: cfg.Backend.BaseURL,
			APIKey:  cfg.Backend.APIKey,
			Timeout: cfg.Backend.Timeout,
		}, logger)
		logger.Info("using rest backend", "base_url", cfg.Backend.BaseURL)
	default:
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		gateway = postgres.NewGateway(db)
		tx = postgres.NewTransactionManager(db)
	}

	feed := notify.NewFeed(100)
	notifiers := notify.Fanout{notify.NewLog(logger), feed}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
			Source:     cfg.Site.Name,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()

		notifiers = append(notifiers, notify.NewBroker(rabbitMQ, cfg.RabbitMQ.Timeout, logger))
	}

	var objects service.ObjectStore
	if cfg.Storage.Bucket != "" {
		store, err := objectstore.NewS3(ctx, objectstore.Config{
			Endpoint:     cfg.Storage.Endpoint,
			Region:       cfg.Storage.Region,
			Bucket:       cfg.Storage.Bucket,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			UsePathStyle: cfg.Storage.UsePathStyle,
			PublicURL:    cfg.Storage.PublicURL,
		}, logger)
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Error("failed to prepare storage bucket", "error", err)
			os.Exit(1)
		}
		objects = store
	} else {
		logger.Warn("storage.bucket is empty, gallery uploads are disabled")
	}

	cache := resource.NewCache(cfg.Cache.TTL, nil)
	retry := resource.WithRetry(resource.RetryPolicy{
		MaxRetries:     cfg.Retry.MaxRetries,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	})

	services := api.Services{
		Projects: service.NewProjectService(gateway, cache, objects, notifiers, logger, retry),
		Blogs:    service.NewBlogService(gateway, cache, notifiers, logger, retry),
		Comments: service.NewCommentService(gateway, cache, notifiers, logger, cfg.Comments.RequireApproval, retry),
		Messages: service.NewMessageService(gateway, cache, notifiers, logger, retry),
		Admins:   service.NewAdminService(gateway, cache, tx, notifiers, logger, retry),
		Settings: service.NewSettingService(gateway, cache, notifiers, logger, retry),
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		logger.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}

	renderer, err := render.New()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.New(api.Config{
		SiteName:       cfg.Site.Name,
		Lang:           cfg.Site.Lang,
		MaxUploadSize:  cfg.HTTP.MaxUploadSize,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, services, verifier, renderer, feed, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	sweeper := scheduler.NewScheduler(scheduler.NewCacheSweep(cache, logger), cfg.Cache.SweepInterval, logger)
	go func() {
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			"addr", cfg.HTTP.Addr,
			"backend", cfg.Backend.Mode,
			"cache_ttl", cfg.Cache.TTL,
		)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
