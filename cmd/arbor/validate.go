package main

import (
	"fmt"

	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the manifests for consistency",
	Long: `Checks every manifest document (required fields, reserved ids, unknown
dependencies, dependency cycles, contributions to undeclared extension points),
then merges them and fails if the merge reported any error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := openSource(cfg)
		if err != nil {
			return err
		}

		docs, err := src.Documents(cmd.Context())
		if err != nil {
			return err
		}
		if err := validator.ValidateModules(docs); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		t, err := buildTree(cmd.Context(), cfg, src, nil, "validate", domain.LifecycleHooks{})
		if err != nil {
			return err
		}

		errs, warnings := countErrors(t.Errors())
		for _, e := range t.Errors() {
			kind := "error"
			if e.Warning {
				kind = "warning"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s] %s\n", kind, e.ModuleID, e.Message)
		}
		if errs > 0 {
			return fmt.Errorf("validation failed: %d merge errors", errs)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d modules are valid! ✅", len(docs))
		if warnings > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d warnings)", warnings)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
