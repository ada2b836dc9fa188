package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/transmatch/internal/cli"
	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/export"
	"github.com/hyperjump/transmatch/internal/keyword"
	"github.com/hyperjump/transmatch/internal/manifest"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/pipeline"
	"github.com/hyperjump/transmatch/internal/storage"
)

// withStore opens only the database. The keyword index is left alone so these
// commands work while a server holds it.
func (c *commandContext) withStore(fn func(*storage.SQLiteStorage) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// storeSummary is what status reports when no server is queried.
type storeSummary struct {
	SourceDocuments int64            `json:"sourceDocuments"`
	TargetDocuments int64            `json:"targetDocuments"`
	Matches         int64            `json:"matches"`
	Candidates      int              `json:"candidates"`
	DiskUsage       map[string]int64 `json:"diskUsage,omitempty"`
	DiskUsageBytes  int64            `json:"diskUsageBytes"`
	DatabasePath    string           `json:"databasePath"`
	BleveIndexPath  string           `json:"bleveIndexPath"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status (with --server) or stored totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ctx.format()
			if err != nil {
				return err
			}
			if u := ctx.serverURL(); u != "" {
				var st pipeline.Status
				if err := getJSON(u, "/api/v1/pipeline/status", &st); err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st, format)
			}
			return ctx.withStore(func(store *storage.SQLiteStorage) error {
				summary, err := summarizeStore(cmd.Context(), store, ctx.config)
				if err != nil {
					return err
				}
				return writeSummary(cmd.OutOrStdout(), summary, format)
			})
		},
	}
}

func summarizeStore(ctx context.Context, store storage.Store, cfg *config.Config) (*storeSummary, error) {
	s := &storeSummary{DatabasePath: cfg.Storage.DatabasePath, BleveIndexPath: cfg.Storage.BleveIndexPath}
	var err error
	if s.SourceDocuments, err = store.CountDocuments(ctx, models.SideSource); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if s.TargetDocuments, err = store.CountDocuments(ctx, models.SideTarget); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if s.Matches, err = store.CountMatches(ctx); err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}
	cands, err := store.ListCandidates(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	s.Candidates = len(cands)
	usage, total, err := storage.DiskUsage(map[string]string{
		"database": cfg.Storage.DatabasePath,
		"index":    cfg.Storage.BleveIndexPath,
	})
	if err == nil {
		s.DiskUsage = usage
		s.DiskUsageBytes = total
	}
	return s, nil
}

func writeSummary(w io.Writer, s *storeSummary, format cli.OutputFormat) error {
	switch format {
	case cli.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case cli.OutputText:
		fmt.Fprintf(w, "source_documents:  %d\n", s.SourceDocuments)
		fmt.Fprintf(w, "target_documents:  %d\n", s.TargetDocuments)
		fmt.Fprintf(w, "matches:           %d\n", s.Matches)
		fmt.Fprintf(w, "candidates:        %d   # from the latest run\n", s.Candidates)
		fmt.Fprintf(w, "disk_usage_bytes:  %d\n", s.DiskUsageBytes)
		fmt.Fprintf(w, "database_path:     %s\n", s.DatabasePath)
		fmt.Fprintf(w, "bleve_index_path:  %s\n", s.BleveIndexPath)
		return nil
	}
	rows := [][]string{
		{"Source documents", strconv.FormatInt(s.SourceDocuments, 10)},
		{"Target documents", strconv.FormatInt(s.TargetDocuments, 10)},
		{"Matches", strconv.FormatInt(s.Matches, 10)},
		{"Candidates (latest run)", strconv.Itoa(s.Candidates)},
		{"Disk usage (bytes)", strconv.FormatInt(s.DiskUsageBytes, 10)},
	}
	_, err := fmt.Fprintln(w, cli.RenderTable([]string{"Item", "Value"}, rows, []cli.Alignment{cli.AlignLeft, cli.AlignRight}))
	return err
}

func newResultsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "List stored matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ctx.format()
			if err != nil {
				return err
			}
			matches, err := fetchMatches(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			return cli.WriteMatches(cmd.OutOrStdout(), matches, format)
		},
	}
}

func fetchMatches(ctx context.Context, c *commandContext) ([]*models.Match, error) {
	if u := c.serverURL(); u != "" {
		var body struct {
			Matches []*models.Match `json:"matches"`
		}
		if err := getJSON(u, "/api/v1/results", &body); err != nil {
			return nil, fmt.Errorf("results failed: %w", err)
		}
		return body.Matches, nil
	}
	var matches []*models.Match
	err := c.withStore(func(store *storage.SQLiteStorage) error {
		var err error
		matches, err = store.ListMatches(ctx)
		return err
	})
	return matches, err
}

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	var minConfidence float64
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List candidate verdicts from the latest run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ctx.format()
			if err != nil {
				return err
			}
			var cands []*models.CandidateRecord
			if u := ctx.serverURL(); u != "" {
				var body struct {
					Candidates []*models.CandidateRecord `json:"candidates"`
				}
				path := "/api/v1/candidates?min_confidence=" + strconv.FormatFloat(minConfidence, 'f', -1, 64)
				if err := getJSON(u, path, &body); err != nil {
					return fmt.Errorf("candidates failed: %w", err)
				}
				cands = body.Candidates
			} else {
				err = ctx.withStore(func(store *storage.SQLiteStorage) error {
					var err error
					cands, err = store.ListCandidates(cmd.Context(), minConfidence)
					return err
				})
				if err != nil {
					return err
				}
			}
			return cli.WriteCandidates(cmd.OutOrStdout(), cands, format)
		},
	}
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "hide candidates below this confidence")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	cmd := &cobra.Command{
		Use:   "export <path|s3://bucket/key>",
		Short: "Export stored matches as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			f, err := export.ParseFormat(exportFormat(formatFlag, dest))
			if err != nil {
				return err
			}
			matches, err := fetchMatches(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			n, err := export.NewExporter(ctx.config.Export).Export(cmd.Context(), dest, f, matches)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d matches (%d bytes) to %s\n", len(matches), n, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "", "json or csv (default: from the destination extension, else json)")
	return cmd
}

// exportFormat prefers an explicit flag, then the destination's extension.
func exportFormat(flag, dest string) string {
	if flag != "" {
		return flag
	}
	if strings.EqualFold(filepath.Ext(dest), ".csv") {
		return string(export.FormatCSV)
	}
	return ""
}

func newSheetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [manifest]",
		Short: "List the sheets and columns of a manifest workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ctx.format()
			if err != nil {
				return err
			}
			path := ctx.config.TargetCorpus.ManifestPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no manifest given and target_corpus.manifest_path is not set")
			}
			wb, err := manifest.Read(path)
			if err != nil {
				return err
			}
			return cli.WriteSheets(cmd.OutOrStdout(), wb.Info(), format)
		},
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		side  string
		limit int
		fuzzy bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the extracted corpora by keyword",
		Long: `Search looks up extracted documents in the keyword index. The query is all
remaining arguments joined by spaces. When nothing matches, the search is retried
with typo tolerance and a spelling suggestion is shown if one exists.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ctx.format()
			if err != nil {
				return err
			}
			q := models.SearchQuery{Query: buildSearchQuery(args), Side: models.CorpusSide(side), Limit: limit, Fuzzy: fuzzy}
			if err := q.Validate(); err != nil {
				return err
			}

			var search func(models.SearchQuery) (*keyword.Results, error)
			if u := ctx.serverURL(); u != "" {
				search = func(q models.SearchQuery) (*keyword.Results, error) {
					return searchViaHTTP(u, q)
				}
			} else {
				idx, err := keyword.NewBleveIndex(ctx.config.Storage.BleveIndexPath)
				if err != nil {
					return fmt.Errorf("failed to open keyword index: %w", err)
				}
				defer idx.Close()
				search = func(q models.SearchQuery) (*keyword.Results, error) {
					return idx.Search(cmd.Context(), q)
				}
			}

			res, err := search(q)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(res.Hits) == 0 && !q.Fuzzy {
				q.Fuzzy = true
				if fuzzyRes, ferr := search(q); ferr == nil && len(fuzzyRes.Hits) > 0 {
					res = fuzzyRes
				}
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), q.Query, res, format)
		},
	}
	cmd.Flags().StringVar(&side, "side", "", "restrict to one corpus: source or target")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of documents")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "tolerate typos")
	return cmd
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func searchViaHTTP(serverURL string, q models.SearchQuery) (*keyword.Results, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Side != "" {
		params.Set("side", string(q.Side))
	}
	if q.Fuzzy {
		params.Set("fuzzy", "true")
	}
	var res keyword.Results
	if err := getJSON(serverURL, "/api/v1/documents/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}
