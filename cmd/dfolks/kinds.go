package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dfolks/internal/registry"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered component kinds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close(cmd.Context())

		out := cmd.OutOrStdout()
		for _, ns := range registry.LookupOrder {
			fmt.Fprintf(out, "%s:\n", ns)
			for _, kind := range a.registry.Kinds(ns) {
				fmt.Fprintf(out, "  %s\n", kind)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
