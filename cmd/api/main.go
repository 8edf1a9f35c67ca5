package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"mri-console/internal/backend"
	"mri-console/internal/config"
	"mri-console/internal/db"
	"mri-console/internal/help"
	httpSrv "mri-console/internal/http"
	"mri-console/internal/logging"
	"mri-console/internal/migrations"
	"mri-console/internal/session"
	"mri-console/internal/storage"
	"mri-console/internal/tasks"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := backend.New(cfg.Backend.URL,
		backend.WithTimeout(cfg.GetBackendTimeout()),
		backend.WithLogger(logger.Named("backend")),
	)
	if err != nil {
		logger.Fatal("backend client", zap.Error(err))
	}
	center, err := help.Load()
	if err != nil {
		logger.Fatal("help content", zap.Error(err))
	}

	srv := &httpSrv.Server{
		Backend:  api,
		Sessions: session.NewStore(),
		Help:     center,
		Log:      logger,
		Settings: httpSrv.Settings{
			Addr:             cfg.Server.Addr,
			APIToken:         cfg.Server.APIToken,
			AllowedOrigins:   cfg.Server.AllowedOrigins,
			MaxUploadBytes:   cfg.Server.MaxUploadBytes,
			PredictionsLimit: cfg.Backend.PredictionsLimit,
		},
	}

	if cfg.ArchiveEnabled() {
		// Run embedded migrations (idempotent)
		if err := migrations.Run(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
		dbase, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer dbase.Close()
		srv.Archive = db.NewArchive(dbase)

		if cfg.StorageEnabled() {
			s3c, err := storage.New(ctx, storage.Options{
				Endpoint:  cfg.Storage.Endpoint,
				Bucket:    cfg.Storage.Bucket,
				AccessKey: cfg.Storage.AccessKey,
				SecretKey: cfg.Storage.SecretKey,
				Region:    cfg.Storage.Region,
			}, logger.Named("storage"))
			if err != nil {
				logger.Fatal("storage", zap.Error(err))
			}
			srv.Blobs = s3c

			if cfg.RedisAddr != "" {
				asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
				q := tasks.NewEnqueuer(asq, cfg.Worker.MaxRetry)
				defer q.Close()
				srv.Queue = q
			}
		}
	} else {
		logger.Info("archive disabled; results are kept in memory only")
	}

	go srv.Sessions.Janitor(ctx, cfg.GetSessionTTL(), time.Minute, func(n int) {
		logger.Debug("expired sessions", zap.Int("count", n))
	})

	hs := httpSrv.NewServer(srv)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	logger.Info("console listening", zap.String("addr", hs.Addr), zap.String("backend", api.BaseURL()))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
