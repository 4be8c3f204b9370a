package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeForce bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run slither and cache the project's fact graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if analyzeForce {
			if _, err := eng.Refresh(ctx, projectFlag); err != nil {
				return err
			}
		} else if _, err := eng.Facts(ctx, projectFlag); err != nil {
			return err
		}

		overview, err := eng.ProjectOverview(ctx, projectFlag)
		if err != nil {
			return err
		}
		out, err := FormatResponse(overview, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false,
		"Discard any cached artifact and re-analyze")
	rootCmd.AddCommand(analyzeCmd)
}
