package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/nodeflow/internal/cli"
	"github.com/aretw0/nodeflow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nodeflow",
	Short: "nodeflow builds and runs dataflow graphs of HTTP requests and transforms",
	Long: `nodeflow keeps a graph of source nodes (HTTP requests) and transform nodes
(filters, field projections, Lua scripts). Each node picks the fields it passes
downstream, and every node sees the projected results of its upstream nodes.

Settings come from nodeflow.yaml, a .env file and NODEFLOW_* variables,
with command line flags applied last.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default nodeflow.yaml when present)")
	rootCmd.PersistentFlags().String("env-file", "", "Env file to load (default .env)")
	rootCmd.PersistentFlags().StringP("graph", "g", "", "Graph ID")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, file, redis or postgres")
	rootCmd.PersistentFlags().String("store-path", "", "Directory of the file store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the configuration layers and applies the persistent flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return cfg, err
	}

	override := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	override("graph", &cfg.GraphID)
	override("store", &cfg.Store.Backend)
	override("store-path", &cfg.Store.Path)
	override("log-level", &cfg.Log.Level)

	return cfg, cfg.Validate()
}

// openRuntime builds the engine described by the configuration.
// Callers must Close the runtime.
func openRuntime(cmd *cobra.Command) (*cli.Runtime, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		return nil, cfg, err
	}
	rt, err := cli.NewRuntime(cmd.Context(), &cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}
