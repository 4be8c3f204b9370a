package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/facts"
	"github.com/trailofbits/slither-mcp/internal/pagination"
)

var functionCmd = &cobra.Command{
	Use:   "function",
	Short: "Inspect functions and their call graph",
}

// functionKey resolves <contract> <signature> args into a full key
func functionKey(cmd *cobra.Command, eng *engine.Engine, contractName, signature string) (facts.FunctionKey, error) {
	contract, err := resolveContract(cmd, eng, contractName)
	if err != nil {
		return facts.FunctionKey{}, err
	}
	return facts.FunctionKey{Signature: signature, Contract: contract.Key}, nil
}

var functionShowCmd = &cobra.Command{
	Use:   "show <contract> <signature>",
	Short: "Show a function's fact record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		key, err := functionKey(cmd, eng, args[0], args[1])
		if err != nil {
			return err
		}
		fact, actual, err := eng.Function(cmd.Context(), projectFlag, key)
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{
			"function":    fact,
			"declared_by": actual.Contract,
		}, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var calleesContext string

var functionCalleesCmd = &cobra.Command{
	Use:   "callees <contract> <signature>",
	Short: "Classify a function's call sites",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		key, err := functionKey(cmd, eng, args[0], args[1])
		if err != nil {
			return err
		}
		var callingContext *facts.ContractKey
		if calleesContext != "" {
			ctxContract, err := eng.ContractByName(cmd.Context(), projectFlag, calleesContext)
			if err != nil {
				return err
			}
			callingContext = &ctxContract.Key
		}
		res, err := eng.Callees(cmd.Context(), projectFlag, key, callingContext)
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

var functionCallersCmd = &cobra.Command{
	Use:   "callers <contract> <signature>",
	Short: "List the functions calling a given function",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		key, err := functionKey(cmd, eng, args[0], args[1])
		if err != nil {
			return err
		}
		res, err := eng.Callers(cmd.Context(), projectFlag, key)
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

var implsRoot string

var functionImplsCmd = &cobra.Command{
	Use:   "implementations <signature>",
	Short: "List contracts declaring a signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		var root *facts.ContractKey
		if implsRoot != "" {
			contract, err := eng.ContractByName(cmd.Context(), projectFlag, implsRoot)
			if err != nil {
				return err
			}
			root = &contract.Key
		}
		impls, err := eng.Implementations(cmd.Context(), projectFlag, args[0], root)
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{"implementations": impls},
			OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var functionSourceCmd = &cobra.Command{
	Use:   "source <contract> <signature>",
	Short: "Print a function's source from its recorded line range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		key, err := functionKey(cmd, eng, args[0], args[1])
		if err != nil {
			return err
		}
		res, err := eng.FunctionSource(cmd.Context(), projectFlag, key)
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

var (
	searchOffset int
	searchLimit  int
)

var functionSearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search declared functions by regex over qualified signatures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := buildEngine()
		if err != nil {
			return err
		}
		matches, page, err := eng.SearchFunctions(cmd.Context(), projectFlag, args[0],
			pagination.Request{Offset: searchOffset, Limit: searchLimit})
		if err != nil {
			return err
		}
		out, err := FormatResponse(map[string]interface{}{
			"matches": matches,
			"page":    page,
		}, OutputFormat(outputFlag))
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	functionCalleesCmd.Flags().StringVar(&calleesContext, "calling-context", "",
		"Resolve hint-less internal calls as if invoked through this contract")
	functionImplsCmd.Flags().StringVar(&implsRoot, "root", "",
		"Restrict the scan to this contract and its descendants")
	functionSearchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Results to skip")
	functionSearchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum results (0 = all)")

	for _, c := range []*cobra.Command{functionShowCmd, functionCalleesCmd, functionCallersCmd, functionSourceCmd} {
		c.Flags().StringVar(&contractPathFlag, "contract-path", "",
			"Source file declaring the contract, for ambiguous names")
	}

	functionCmd.AddCommand(functionShowCmd, functionCalleesCmd, functionCallersCmd,
		functionImplsCmd, functionSearchCmd, functionSourceCmd)
	rootCmd.AddCommand(functionCmd)
}
