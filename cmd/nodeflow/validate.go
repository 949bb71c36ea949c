package main

import (
	"fmt"

	"github.com/aretw0/nodeflow/internal/validator"
	"github.com/aretw0/nodeflow/pkg/definition"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check workflow files without touching the graph",
	Long: `Parses each workflow file, checks that its edges form a DAG and validates
every node the way a run would. Warnings are printed but do not fail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			issues, err := validateFile(path)
			if err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				failed++
				continue
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "%s: %s [%s] %s: %s\n", path, issue.NodeID, issue.Severity, issue.Field, issue.Message)
			}
			if validator.HasErrors(issues) {
				failed++
				continue
			}
			fmt.Fprintf(out, "%s: valid\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("validation failed for %d file(s)", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateFile(path string) ([]domain.ValidationError, error) {
	def, err := definition.Load(path)
	if err != nil {
		return nil, err
	}
	actions, err := def.Actions()
	if err != nil {
		return nil, err
	}

	state := domain.NewState()
	for _, a := range actions {
		state, _ = domain.Reduce(state, a)
	}

	var issues []domain.ValidationError
	for _, id := range state.NodeIDs() {
		issues = append(issues, validator.Validate(state.Configurations[id])...)
	}
	return issues, nil
}
