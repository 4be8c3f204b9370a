package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trailofbits/slither-mcp/internal/artifacts"
	"github.com/trailofbits/slither-mcp/internal/storage"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean cached fact-graph artifacts",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts recorded in the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, logger, err := buildEngine()
		if err != nil {
			return err
		}
		registry, err := storage.Open(cfg.CacheDir(), logger)
		if err != nil {
			return err
		}
		defer registry.Close()

		entries, err := registry.List()
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{"artifacts": entries},
			OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the project's artifact and registry entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, logger, err := buildEngine()
		if err != nil {
			return err
		}

		cache := artifacts.New(cfg.CacheDir(), logger)
		if err := cache.Remove(); err != nil {
			return err
		}

		registry, err := storage.Open(cfg.CacheDir(), logger)
		if err == nil {
			defer registry.Close()
			if err := registry.Forget(cfg.ProjectRoot); err != nil {
				return err
			}
		}

		fmt.Fprintln(os.Stdout, "cache cleaned")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}
