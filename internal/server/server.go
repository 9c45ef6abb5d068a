// Package server wires all Hoofprint components and creates the MCP server
// instance.
//
// This is the composition root: it opens the capture store and every sink
// backend, builds the pipeline and query facade, and injects them into the
// tools and resources. No business logic lives here, only wiring.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/HendryAvila/hoofprint/internal/capture"
	"github.com/HendryAvila/hoofprint/internal/config"
	"github.com/HendryAvila/hoofprint/internal/pipeline"
	"github.com/HendryAvila/hoofprint/internal/prompts"
	"github.com/HendryAvila/hoofprint/internal/query"
	"github.com/HendryAvila/hoofprint/internal/resources"
	"github.com/HendryAvila/hoofprint/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App is the wired core shared by the MCP server and the CLI commands.
type App struct {
	Pipeline *pipeline.Pipeline
	Query    *query.Facade
}

// Open creates the capture store, opens every configured sink backend and
// builds the pipeline. Sink backends that fail to open are disabled and
// logged; only a store failure is an error. reg may be nil.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := capture.New(cfg.CaptureStore())
	if err != nil {
		return nil, fmt.Errorf("opening capture store: %w", err)
	}

	sinks := openSinks(ctx, cfg, logger)
	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if reg != nil {
		opts = append(opts, pipeline.WithRegisterer(reg))
	}
	pipe := pipeline.New(store, sinks, cfg.PipelineOptions(), opts...)

	return &App{
		Pipeline: pipe,
		Query:    query.New(store, sinks),
	}, nil
}

// Close releases the store and every sink backend.
func (a *App) Close(ctx context.Context) error {
	return a.Pipeline.Close(ctx)
}

// New creates the MCP server with every tool, prompt and resource
// registered.
//
// The returned cleanup function closes the store and sink backends and
// must be called on shutdown (typically via defer). It is always non-nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*server.MCPServer, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	app, err := Open(ctx, cfg, logger, reg)
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
	return NewMCPServer(app), cleanup, nil
}

// NewMCPServer registers the tools, prompts and resources for app.
func NewMCPServer(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"hoofprint",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Capture ---

	captureTool := tools.NewCaptureTool(app.Pipeline)
	s.AddTool(captureTool.Definition(), captureTool.Handle)

	captureResult := tools.NewCaptureResultTool(app.Pipeline)
	s.AddTool(captureResult.Definition(), captureResult.Handle)

	// --- Query & retrieval ---

	getTool := tools.NewGetTool(app.Query)
	s.AddTool(getTool.Definition(), getTool.Handle)

	searchTool := tools.NewSearchTool(app.Query)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	threadTool := tools.NewThreadTool(app.Query)
	s.AddTool(threadTool.Definition(), threadTool.Handle)

	threadsTool := tools.NewThreadsTool(app.Query)
	s.AddTool(threadsTool.Definition(), threadsTool.Handle)

	statusTool := tools.NewStatusTool(app.Query)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	statsTool := tools.NewStatsTool(app.Query)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	exportTool := tools.NewExportTool(app.Query)
	s.AddTool(exportTool.Definition(), exportTool.Handle)

	// --- Processing ---

	processTool := tools.NewProcessTool(app.Pipeline)
	s.AddTool(processTool.Definition(), processTool.Handle)

	reprocessTool := tools.NewReprocessTool(app.Pipeline)
	s.AddTool(reprocessTool.Definition(), reprocessTool.Handle)

	// --- Administration ---

	archiveTool := tools.NewArchiveTool(app.Pipeline)
	s.AddTool(archiveTool.Definition(), archiveTool.Handle)

	importTool := tools.NewImportTool(app.Pipeline)
	s.AddTool(importTool.Definition(), importTool.Handle)

	// --- Projections ---

	similarTool := tools.NewSimilarTool(app.Query)
	s.AddTool(similarTool.Definition(), similarTool.Handle)

	graphTool := tools.NewGraphTool(app.Query)
	s.AddTool(graphTool.Definition(), graphTool.Handle)

	// --- Prompts ---

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	healthPrompt := prompts.NewHealthPrompt()
	s.AddPrompt(healthPrompt.Definition(), healthPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(app.Query)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	return s
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// serverInstructions tells the host how to use Hoofprint.
func serverInstructions() string {
	return `You have access to Hoofprint, an analysis capture server.

Hoofprint keeps a durable record of every analysis a task produces: the
input it was given, its structured output and its raw response. Each
record is projected asynchronously into a similarity index and a
knowledge graph.

## WHEN TO CAPTURE

Call analysis_capture (or analysis_capture_result for a finished
recommendation) every time a task produces a result worth keeping:
vendor selections, budget reviews, risk assessments, stakeholder maps.
Always pass the same thread_id for one conversation or workflow run.

## WHEN TO LOOK BACK

- analysis_thread / analysis_search to recall earlier results before
  repeating work
- analysis_similar to find past analyses about a comparable problem
- analysis_graph to see the entities and relationships extracted from
  one analysis

## PROJECTION

Captures are queued per sink. analysis_process runs pending work;
analysis_status shows each task with its error message;
analysis_reprocess queues a fresh attempt. A failed projection never
loses the captured record.

## ADMINISTRATION

analysis_archive retires an analysis without deleting it.
analysis_import loads the output of analysis_export into this store.`
}
