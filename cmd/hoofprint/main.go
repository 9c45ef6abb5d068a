// Hoofprint: analysis capture and projection server.
//
// Hoofprint records every analysis a task produces and projects it into a
// similarity index and a knowledge graph.
//
// Usage:
//
//	hoofprint serve               # Start MCP server (stdio transport)
//	hoofprint process             # Run pending projection tasks
//	hoofprint status <id>         # Show the tasks of one analysis
//	hoofprint export --format jsonl
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/HendryAvila/hoofprint/internal/config"
	"github.com/HendryAvila/hoofprint/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:   "hoofprint",
		Short: "Analysis capture and projection server",
		Long: `Hoofprint keeps a durable record of every analysis a task produces
(its input, structured output and raw response) and projects each record
into a similarity index and a knowledge graph.

Configuration is read from --config or $HOOFPRINT_DATA_DIR/config.yaml
(default ~/.hoofprint/config.yaml).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(g),
		processCmd(g),
		reprocessCmd(g),
		statusCmd(g),
		statsCmd(g),
		exportCmd(g),
		importCmd(g),
		archiveCmd(g),
		recoverStaleCmd(g),
		versionCmd(),
	)
	return cmd
}

// load reads the configuration and builds the stderr logger. stdout is
// left alone because serve speaks MCP over it.
func (g *globals) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp loads configuration and opens the store and sink backends. The
// caller must Close the returned app.
func (g *globals) openApp(ctx context.Context, reg prometheus.Registerer) (*server.App, *config.Config, *slog.Logger, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, nil, nil, err
	}
	app, err := server.Open(ctx, cfg, logger, reg)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, cfg, logger, nil
}

func closeApp(app *server.App, logger *slog.Logger) {
	if err := app.Close(context.Background()); err != nil {
		logger.Warn("shutdown", "error", err)
	}
}
