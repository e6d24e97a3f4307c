package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate -f pipeline.yaml",
	Short: "Check a pipeline without running it.",
	Long: `Resolve a pipeline file: look up its kind, load external parameters and bind
and validate every parameter. Nothing is read or written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		comp, err := a.resolveFile(cmd.Context(), getString(cmd, "file"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", comp.Kind())
		return nil
	},
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "pipeline file")
	rootCmd.AddCommand(validateCmd)
}
