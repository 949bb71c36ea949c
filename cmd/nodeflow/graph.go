package main

import (
	"fmt"

	"github.com/aretw0/nodeflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the graph as a Mermaid diagram",
	Long:  `Outputs a Mermaid flowchart of the nodes and edges, styled by the last run results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")

		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		state := rt.Engine.State()
		var overlay *graph.GraphOverlay
		if !plain {
			overlay = graph.OverlayFromState(state)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(state, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("plain", false, "Omit result styling")
}
