package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/pagination"
)

var (
	contractsFilter  string
	contractsPattern string
	contractsExclude []string
	contractsOffset  int
	contractsLimit   int
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List and inspect contracts in the fact graph",
}

var contractsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts with optional filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		res, err := eng.ListContracts(cmd.Context(), projectFlag, engine.ListContractsRequest{
			Filter:       engine.ContractFilter(contractsFilter),
			NamePattern:  contractsPattern,
			ExcludePaths: contractsExclude,
			Page:         pagination.Request{Offset: contractsOffset, Limit: contractsLimit},
		})
		if err != nil {
			return err
		}
		out, err := FormatResponse(res, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var contractsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the full fact record for a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		contract, err := resolveContract(cmd, eng, args[0])
		if err != nil {
			return err
		}
		out, err := FormatResponse(contract, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var treeMaxDepth int

var contractsParentsCmd = &cobra.Command{
	Use:   "parents <name>",
	Short: "Show a contract's ancestor tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		contract, err := resolveContract(cmd, eng, args[0])
		if err != nil {
			return err
		}
		res, err := eng.Ancestors(cmd.Context(), projectFlag, contract.Key, treeMaxDepth)
		if err != nil {
			return err
		}
		out, err := FormatResponse(res, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var contractsChildrenCmd = &cobra.Command{
	Use:   "children <name>",
	Short: "Show a contract's descendant tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		contract, err := resolveContract(cmd, eng, args[0])
		if err != nil {
			return err
		}
		res, err := eng.Descendants(cmd.Context(), projectFlag, contract.Key, treeMaxDepth)
		if err != nil {
			return err
		}
		out, err := FormatResponse(res, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var contractsSourceCmd = &cobra.Command{
	Use:   "source <name>",
	Short: "Print the source file declaring a contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		contract, err := resolveContract(cmd, eng, args[0])
		if err != nil {
			return err
		}
		res, err := eng.ContractSource(cmd.Context(), projectFlag, contract.Key)
		if err != nil {
			return err
		}
		if OutputFormat(outputFlag) == FormatHuman {
			fmt.Print(res.Source)
			return nil
		}
		out, err := FormatResponse(res, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var contractPathFlag string

// resolveContract looks up a contract by name, or by name plus the
// --contract-path disambiguator.
func resolveContract(cmd *cobra.Command, eng *engine.Engine, name string) (*facts.ContractFact, error) {
	if contractPathFlag != "" {
		return eng.Contract(cmd.Context(), projectFlag,
			facts.ContractKey{Name: name, Path: contractPathFlag})
	}
	return eng.ContractByName(cmd.Context(), projectFlag, name)
}

func init() {
	contractsListCmd.Flags().StringVar(&contractsFilter, "filter", "all",
		"Contract kind: all, concrete, interface, library, or abstract")
	contractsListCmd.Flags().StringVar(&contractsPattern, "name-pattern", "",
		"Regex applied to contract names")
	contractsListCmd.Flags().StringSliceVar(&contractsExclude, "exclude-path", nil,
		"Path prefixes to exclude (repeatable)")
	contractsListCmd.Flags().IntVar(&contractsOffset, "offset", 0, "Results to skip")
	contractsListCmd.Flags().IntVar(&contractsLimit, "limit", 0, "Maximum results (0 = all)")

	for _, c := range []*cobra.Command{contractsShowCmd, contractsParentsCmd, contractsChildrenCmd, contractsSourceCmd} {
		c.Flags().StringVar(&contractPathFlag, "contract-path", "",
			"Source file declaring the contract, for ambiguous names")
	}
	for _, c := range []*cobra.Command{contractsParentsCmd, contractsChildrenCmd} {
		c.Flags().IntVar(&treeMaxDepth, "max-depth", 0,
			"Maximum tree depth (0 = configured default, -1 = unlimited)")
	}

	contractsCmd.AddCommand(contractsListCmd, contractsShowCmd, contractsParentsCmd,
		contractsChildrenCmd, contractsSourceCmd)
	rootCmd.AddCommand(contractsCmd)
}
