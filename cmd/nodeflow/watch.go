package main

import (
	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/internal/cli"
	"github.com/aretw0/nodeflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Re-apply and run a workflow file whenever it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debounce, _ := cmd.Flags().GetDuration("debounce")

		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		tui.PrintBanner(cmd.ErrOrStderr(), nodeflow.Version)
		return cli.Watch(cmd.Context(), rt.Engine, cli.WatchOptions{
			Path:     args[0],
			Debounce: debounce,
			Out:      cmd.OutOrStdout(),
		}, rt.Logger)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", cli.DefaultDebounce, "Quiet period before reacting to a change")
}
