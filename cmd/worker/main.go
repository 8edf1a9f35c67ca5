package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"mri-console/internal/config"
	"mri-console/internal/db"
	"mri-console/internal/logging"
	"mri-console/internal/storage"
	"mri-console/internal/worker"
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

	if !cfg.ArchiveEnabled() || !cfg.StorageEnabled() || cfg.RedisAddr == "" {
		logger.Fatal("worker needs DATABASE_URL, REDIS_ADDR and MINIO_ENDPOINT/MINIO_BUCKET")
	}

	ctx := context.Background()
	dbase, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer dbase.Close()

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

	s := &worker.Server{
		Archive: db.NewArchive(dbase),
		Reports: s3c,
		Log:     logger.Named("worker"),
		Now:     time.Now,
	}
	if err := worker.Run(cfg.RedisAddr, cfg.Worker.Concurrency, s); err != nil {
		logger.Fatal("worker", zap.Error(err))
	}
}
