package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/nodeflow/pkg/definition"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the graph state as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rt.Engine.State())
	},
}

var stateExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the graph as a workflow file",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		rt, cfg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		data, err := rt.Engine.Export(cfg.GraphID).Marshal(definition.Format(format))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the graphs kept by the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, _, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.Store == nil {
			return errors.New("the memory backend keeps no graphs between runs")
		}
		ids, err := rt.Store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every node, edge and result from the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.Engine.Dispatch(cmd.Context(), domain.ClearAll{}) {
			fmt.Fprintf(cmd.OutOrStdout(), "graph %q cleared\n", cfg.GraphID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateExportCmd, stateListCmd, stateResetCmd)
	stateExportCmd.Flags().String("format", string(definition.FormatYAML), "Output format: yaml or json")
}
