package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/cache"
	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/extract"
	"github.com/hyperjump/transmatch/internal/keyword"
	"github.com/hyperjump/transmatch/internal/logstream"
	"github.com/hyperjump/transmatch/internal/pipeline"
	"github.com/hyperjump/transmatch/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	KeywordIndex *keyword.BleveIndex
	Cache        *cache.Cache
	Orchestrator *pipeline.Orchestrator
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.BleveIndexPath), 0755); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c := cache.New(store, extract.NewExtractor(),
		cache.WithIndexer(keywordIndex),
		cache.WithLogger(logger),
	)

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Cache:        c,
		Orchestrator: pipeline.New(store, c,
			pipeline.WithLogger(logger),
			pipeline.WithLockFile(cfg.Storage.LockPath),
		),
	}, nil
}

// startLogMirror republishes broker events to Redis when configured. The returned
// function stops the mirror.
func startLogMirror(ctx context.Context, cfg *config.Config, broker *logstream.Broker, logger *zap.Logger) func() {
	if !cfg.LogMirror.Enabled() {
		return func() {}
	}
	mirror, err := logstream.NewRedisMirror(logstream.RedisConfig{
		Addr:     cfg.LogMirror.RedisAddr,
		Password: cfg.LogMirror.RedisPassword,
		DB:       cfg.LogMirror.RedisDB,
		Channel:  cfg.LogMirror.Channel,
	}, logger)
	if err != nil {
		logger.Warn("log mirror disabled", zap.Error(err))
		return func() {}
	}
	logger.Info("mirroring pipeline logs to redis",
		zap.String("addr", cfg.LogMirror.RedisAddr), zap.String("channel", cfg.LogMirror.Channel))

	mirrorCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		mirror.Run(mirrorCtx, broker)
	}()
	return func() {
		cancel()
		<-done
		_ = mirror.Close()
	}
}
