package main

import (
	"fmt"

	"github.com/aretw0/nodeflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe every node, its inputs and its last result",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		width, _ := cmd.Flags().GetInt("width")

		rt, cfg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		report := tui.Report(cfg.GraphID, rt.Engine.State())
		if raw {
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		}

		render, err := tui.NewRenderer(width)
		if err != nil {
			return err
		}
		rendered, err := render(report)
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("raw", false, "Print the Markdown source")
	inspectCmd.Flags().Int("width", 100, "Word wrap width (0 disables)")
}
