package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/hyperjump/transmatch/internal/cli"
	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/logstream"
	"github.com/hyperjump/transmatch/internal/pipeline"
)

type runOptions struct {
	source         string
	target         string
	manifest       string
	sheets         []string
	noCitations    bool
	indexDocuments bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the matching pipeline once in the foreground",
		Long: `Run extracts both corpora, segments the manifest into articles, matches them
against the source corpus and stores verified matches. Interrupting the command stops
the run after the current item; matches stored so far are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyRunOptions(base, opts)
			if err != nil {
				return err
			}
			return runPipeline(cmd, ctx, cfg)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", "", "source corpus folder (overrides config)")
	flags.StringVar(&opts.target, "target", "", "target corpus folder (overrides config)")
	flags.StringVar(&opts.manifest, "manifest", "", "manifest workbook (overrides config)")
	flags.StringArrayVar(&opts.sheets, "sheet", nil, "sheet to process as NAME:FILENAME_COLUMN; repeatable, replaces configured sheets")
	flags.BoolVar(&opts.noCitations, "no-citations", false, "skip the citation pass")
	flags.BoolVar(&opts.indexDocuments, "index-documents", false, "ask the oracle to summarize newly extracted documents")
	return cmd
}

// applyRunOptions returns a copy of base with command-line overrides applied.
func applyRunOptions(base *config.Config, opts runOptions) (*config.Config, error) {
	cfg := base.Clone()
	if opts.source != "" {
		cfg.SourceCorpus.PDFFolder = opts.source
	}
	if opts.target != "" {
		cfg.TargetCorpus.PDFFolder = opts.target
	}
	if opts.manifest != "" {
		cfg.TargetCorpus.ManifestPath = opts.manifest
	}
	if len(opts.sheets) > 0 {
		sheets := make([]config.SheetConfig, 0, len(opts.sheets))
		for _, s := range opts.sheets {
			sc, err := parseSheetFlag(s)
			if err != nil {
				return nil, err
			}
			sheets = append(sheets, sc)
		}
		cfg.TargetCorpus.Sheets = sheets
	}
	if opts.noCitations {
		off := false
		cfg.Matching.Citations = &off
	}
	if opts.indexDocuments {
		cfg.AI.IndexDocuments = true
	}
	return cfg, nil
}

// parseSheetFlag parses NAME:COLUMN. The last colon separates the column so sheet
// names may contain colons.
func parseSheetFlag(s string) (config.SheetConfig, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return config.SheetConfig{}, fmt.Errorf("invalid --sheet %q: want NAME:FILENAME_COLUMN", s)
	}
	return config.SheetConfig{
		Name:           strings.TrimSpace(s[:i]),
		FilenameColumn: strings.TrimSpace(s[i+1:]),
		Selected:       true,
	}, nil
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, cfg *config.Config) error {
	format, err := ctx.format()
	if err != nil {
		return err
	}
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	broker := logstream.NewBroker(logstream.DefaultBuffer)
	defer broker.Close()
	logger, err := ctx.newLogger(logstream.NewCore(broker, zapcore.InfoLevel))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	stopMirror := startLogMirror(context.Background(), cfg, broker, logger)
	defer stopMirror()

	rep, err := comps.Orchestrator.Run(signalCtx, cfg)
	if rep == nil {
		return err
	}
	st := pipeline.Status{
		State:       rep.Outcome,
		RunID:       rep.RunID,
		LastOutcome: rep.Outcome,
		Stats:       rep.Stats,
	}
	if rep.Err != nil {
		st.LastError = rep.Err.Error()
	}
	if werr := cli.WriteStatus(cmd.OutOrStdout(), st, format); werr != nil {
		return werr
	}
	return err
}
