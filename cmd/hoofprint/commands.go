package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/query"
	"github.com/HendryAvila/hoofprint/internal/server"
	"github.com/HendryAvila/hoofprint/internal/tools"
)

// ─── serve ───────────────────────────────────────────────────────────────────

func serveCmd(g *globals) *cobra.Command {
	var (
		metricsAddr     string
		processInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			app, cfg, logger, err := g.openApp(ctx, reg)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			if metricsAddr == "" {
				metricsAddr = cfg.Metrics.Addr
			}
			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, reg, logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if _, err := app.Pipeline.RecoverStale(ctx); err != nil {
				logger.Warn("stale task recovery failed", "error", err)
			}
			if processInterval > 0 {
				go processLoop(ctx, app.Pipeline, processInterval, logger)
			}

			logger.Info("hoofprint ready", "version", server.Version, "data_dir", cfg.DataDir)
			return mcpserver.ServeStdio(server.NewMCPServer(app))
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&processInterval, "process-interval", 0, "Process pending tasks in the background at this interval (0 disables)")
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}

// processLoop drains the queue every interval until ctx is done.
func processLoop(ctx context.Context, pipe *pipeline.Pipeline, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				res, err := pipe.ProcessPending(ctx, "", 0)
				if err != nil {
					if ctx.Err() == nil {
						logger.Warn("background processing", "error", err)
					}
					break
				}
				if res.Total() < pipe.Config().BatchLimit {
					break
				}
			}
		}
	}
}

// ─── process ─────────────────────────────────────────────────────────────────

func processCmd(g *globals) *cobra.Command {
	var (
		sinkName string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run pending projection tasks",
		Long: `Claims up to --limit pending tasks, oldest first, and runs each against
its sink. A failing task is recorded and the batch continues.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			res, err := app.Pipeline.ProcessPending(cmd.Context(), capture.SinkType(strings.ToLower(sinkName)), limit)
			fmt.Fprint(cmd.OutOrStdout(), tools.FormatBatch(res))
			return err
		},
	}
	cmd.Flags().StringVar(&sinkName, "sink", "", "Only process tasks of this sink (similarity, graph)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max tasks to run (default: pipeline.batch_limit)")
	return cmd
}

// ─── reprocess ───────────────────────────────────────────────────────────────

func reprocessCmd(g *globals) *cobra.Command {
	var (
		sinks []string
		run   bool
	)
	cmd := &cobra.Command{
		Use:   "reprocess <analysis-id>",
		Short: "Queue fresh projection tasks for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			types := make([]capture.SinkType, 0, len(sinks))
			for _, s := range sinks {
				types = append(types, capture.SinkType(strings.ToLower(s)))
			}
			queued, found, err := app.Pipeline.Reprocess(cmd.Context(), args[0], types)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("analysis %s not found", args[0])
			}
			if queued == 0 {
				return errors.New(tools.NothingQueued(types))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s requeued (%d task(s)).\n", args[0], queued)
			if !run {
				return nil
			}
			res, err := app.Pipeline.ProcessAnalysis(cmd.Context(), args[0])
			fmt.Fprint(cmd.OutOrStdout(), tools.FormatBatch(res))
			return err
		},
	}
	cmd.Flags().StringSliceVar(&sinks, "sink", nil, "Sinks to requeue (default: every enabled sink)")
	cmd.Flags().BoolVar(&run, "run", false, "Process the new tasks immediately")
	return cmd
}

// ─── status ──────────────────────────────────────────────────────────────────

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Show the processing tasks of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			report, found, err := app.Query.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("analysis %s not found", args[0])
			}
			writeStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func writeStatus(w io.Writer, report *query.StatusReport) {
	fmt.Fprintf(w, "Analysis %s: %s\n", report.AnalysisID, report.Status)
	for _, t := range report.Tasks {
		line := fmt.Sprintf("  %-10s %-11s %s", t.SinkType, t.Status, t.CreatedAt.Format(time.RFC3339))
		if t.ErrorMessage != "" {
			line += "  " + t.ErrorMessage
		}
		fmt.Fprintln(w, line)
	}
}

// ─── stats ───────────────────────────────────────────────────────────────────

func statsCmd(g *globals) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate statistics as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			st, err := app.Query.Stats(cmd.Context(), top)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "How many busiest threads to list")
	return cmd
}

// ─── export ──────────────────────────────────────────────────────────────────

func exportCmd(g *globals) *cobra.Command {
	var (
		format, output string
		since, until   string
		status         string
		opts           capture.SearchOptions
		allTags        bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export analyses with their processing tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := query.ParseFormat(format)
			if err != nil {
				return err
			}
			if allTags {
				opts.TagMode = capture.TagMatchAll
			}
			if status != "" {
				if opts.Status, err = capture.ParseStatus(status); err != nil {
					return err
				}
			}
			if opts.CreatedAfter, err = parseTimeFlag("since", since); err != nil {
				return err
			}
			if opts.CreatedBefore, err = parseTimeFlag("until", until); err != nil {
				return err
			}

			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer func() { _ = file.Close() }()
				w = file
			}
			n, err := app.Query.Export(cmd.Context(), opts, w, f)
			if err != nil {
				return err
			}
			logger.Info("export finished", "analyses", n, "format", f)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&format, "format", "json", "Output format: json or jsonl")
	fl.StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	fl.StringVar(&opts.ThreadID, "thread", "", "Filter by thread id")
	fl.StringVar(&opts.SessionID, "session", "", "Filter by session id")
	fl.StringVar(&opts.ProcessInstanceID, "process-instance", "", "Filter by process instance id")
	fl.StringVar(&opts.TaskNamePattern, "task", "", "Filter by task name substring")
	fl.StringSliceVar(&opts.Tags, "tag", nil, "Filter by tag (repeatable)")
	fl.BoolVar(&allTags, "all-tags", false, "Require every --tag instead of any")
	fl.StringVar(&status, "status", "", "Filter by analysis status")
	fl.StringVar(&opts.SourceService, "source", "", "Filter by source service")
	fl.StringVar(&since, "since", "", "Only analyses created at or after (RFC 3339 or YYYY-MM-DD)")
	fl.StringVar(&until, "until", "", "Only analyses created before (RFC 3339 or YYYY-MM-DD)")
	fl.IntVar(&opts.Limit, "limit", query.DefaultExportLimit, "Max analyses (capped at 1000)")
	return cmd
}

func parseTimeFlag(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("--%s must be RFC 3339 or YYYY-MM-DD, got %q", name, s)
}

// ─── import ──────────────────────────────────────────────────────────────────

func importCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import analyses written by export",
		Long: `Reads an export file ("-" for stdin). Analyses whose id already exists
are skipped; every new one is queued for each enabled sink.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := query.ParseFormat(format)
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer func() { _ = file.Close() }()
				r = file
			}
			data, err := query.ReadExport(r, f)
			if err != nil {
				return err
			}

			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			res, err := app.Pipeline.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tools.FormatImport(res))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Input format: json or jsonl")
	return cmd
}

// ─── archive ─────────────────────────────────────────────────────────────────

func archiveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <analysis-id>",
		Short: "Mark an analysis ARCHIVED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			found, err := app.Pipeline.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("analysis %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis %s archived.\n", args[0])
			return nil
		},
	}
}

// ─── recover-stale ───────────────────────────────────────────────────────────

func recoverStaleCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "recover-stale",
		Short: "Fail tasks left IN_PROGRESS longer than pipeline.stale_after",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, logger, err := g.openApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(app, logger)

			n, err := app.Pipeline.RecoverStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recovered %d stale task(s).\n", n)
			return nil
		},
	}
}

// ─── version ─────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hoofprint v%s\n", server.Version)
		},
	}
}
