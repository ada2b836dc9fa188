package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/logstream"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/server"
	"github.com/hyperjump/transmatch/internal/watcher"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "pre-warm the extraction cache when corpus files change")
	return cmd
}

func runServe(parent context.Context, ctx *commandContext, watch bool) error {
	signalCtx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	broker := logstream.NewBroker(logstream.DefaultBuffer)
	defer broker.Close()
	logger, err := ctx.newLogger(logstream.NewCore(broker, zapcore.InfoLevel))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded", zap.String("config_path", ctx.configPath), zap.Bool("debug", ctx.debug()))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	stopMirror := startLogMirror(signalCtx, cfg, broker, logger)
	defer stopMirror()

	if watch || cfg.Watch.Enabled {
		w := newCorpusWatcher(cfg, comps, logger)
		if err := w.Start(signalCtx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
	}

	srv := server.NewServer(comps.Orchestrator, comps.Storage, cfg, logger,
		server.WithKeywordIndex(comps.KeywordIndex),
		server.WithLogStream(broker),
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-signalCtx.Done():
	}

	logger.Info("Shutting down...")
	if comps.Orchestrator.Stop() {
		comps.Orchestrator.Wait()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func newCorpusWatcher(cfg *config.Config, comps *Components, logger *zap.Logger) *watcher.Watcher {
	roots := []watcher.Root{
		{Path: cfg.SourceCorpus.PDFFolder, Side: models.SideSource},
		{Path: cfg.TargetCorpus.PDFFolder, Side: models.SideTarget},
	}
	return watcher.New(roots, unionExtensions(cfg.SourceCorpus.Extensions, cfg.TargetCorpus.Extensions),
		cfg.Watch.RecursiveOrDefault(),
		watcher.CacheHandler(comps.Cache, logger),
		watcher.WithLogger(logger),
		watcher.WithBusy(func() bool { return comps.Orchestrator.Status().IsRunning }),
	)
}

func unionExtensions(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, ext := range list {
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			out = append(out, ext)
		}
	}
	return out
}
