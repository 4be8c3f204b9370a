package main

import (
	"github.com/spf13/cobra"

	"github.com/trailofbits/slither-mcp/internal/analyzer"
	"github.com/trailofbits/slither-mcp/internal/config"
	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/logging"
	"github.com/trailofbits/slither-mcp/internal/storage"
	"github.com/trailofbits/slither-mcp/internal/version"
)

var (
	projectFlag string
	outputFlag  string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "slither-mcp",
	Short: "slither-mcp - Solidity fact-graph queries for MCP clients",
	Long: `slither-mcp runs Slither over a Solidity project once, freezes the result
into a cached fact graph, and answers inheritance, call graph, and detector
queries against it from the command line or over the Model Context Protocol.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("slither-mcp version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", ".",
		"Path to the Solidity project")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "human",
		"Output format: human, json, or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, or error (overrides config)")
}

// buildEngine wires config, logger, analyzer, registry, and engine for one
// command invocation.
func buildEngine() (*engine.Engine, *config.Config, *logging.Logger, error) {
	cfg, err := config.Load(projectFlag)
	if err != nil {
		return nil, nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.ParseLevel(level),
	})

	runner := analyzer.NewSlitherRunner(logger)
	runner.SlitherBin = cfg.Analyzer.SlitherBin
	runner.ExtraArgs = cfg.Analyzer.ExtraArgs
	runner.Detectors = cfg.Analyzer.Detectors

	var registry *storage.Registry
	if cfg.Cache.Enabled {
		registry, err = storage.Open(cfg.CacheDir(), logger)
		if err != nil {
			// Queries still work without the registry; only cache
			// bookkeeping is lost.
			logger.Warn("artifact registry unavailable", logging.Fields{
				"error": err.Error(),
			})
			registry = nil
		}
	}

	return engine.New(cfg, runner, registry, logger), cfg, logger, nil
}
