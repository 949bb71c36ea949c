package main

import (
	"fmt"

	"github.com/aretw0/nodeflow/internal/cli"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply FILE...",
	Short: "Apply workflow files to the graph",
	Long: `Reads YAML, JSON or HCL workflow files and upserts their nodes and edges.
Applying the same file twice changes nothing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, _ := cmd.Flags().GetBool("run")

		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		for _, path := range args {
			changed, err := rt.Engine.Load(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d change(s)\n", path, changed)
		}

		if !run {
			return nil
		}
		results, err := rt.Engine.RunAll(cmd.Context())
		cli.PrintResults(out, results)
		if err != nil {
			return err
		}
		return failures(results)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().Bool("run", false, "Run the whole graph after applying")
}
