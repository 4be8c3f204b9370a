package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List detectors and inspect their findings",
}

var detectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detectors known to the analysis with finding counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		detectors, err := eng.ListDetectors(cmd.Context(), projectFlag)
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{"detectors": detectors},
			OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var detectorsFindingsCmd = &cobra.Command{
	Use:   "findings <detector>",
	Short: "Show the findings of one detector run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		findings, err := eng.DetectorFindings(cmd.Context(), projectFlag, args[0])
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{"findings": findings},
			OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	detectorsCmd.AddCommand(detectorsListCmd, detectorsFindingsCmd)
	rootCmd.AddCommand(detectorsCmd)
}
