package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/nodeflow/internal/cli"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [NODE...]",
	Short: "Run nodes of the graph",
	Long: `Without arguments, runs every node in dependency order and skips nodes
downstream of a failure. With node IDs, runs each node after its ancestors,
or alone with --only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		only, _ := cmd.Flags().GetBool("only")
		asJSON, _ := cmd.Flags().GetBool("json")

		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		var results []domain.TestResult
		switch {
		case len(args) == 0:
			results, err = rt.Engine.RunAll(ctx)
		case only:
			for _, id := range args {
				var res domain.TestResult
				res, err = rt.Engine.Run(ctx, id)
				if err != nil {
					break
				}
				results = append(results, res)
			}
		default:
			for _, id := range args {
				var batch []domain.TestResult
				batch, err = rt.Engine.RunPipeline(ctx, id)
				results = append(results, batch...)
				if err != nil {
					break
				}
			}
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(results); encErr != nil {
				return encErr
			}
		} else {
			cli.PrintResults(out, results)
		}
		if err != nil {
			return err
		}
		return failures(results)
	},
}

// failures reports how many results failed, or nil when all succeeded.
func failures(results []domain.TestResult) error {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d node(s) failed", n)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("only", false, "Run the given nodes without their ancestors")
	runCmd.Flags().Bool("json", false, "Print results as JSON")
}
