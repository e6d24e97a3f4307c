package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/exporter"
	"dfolks/internal/infrastructure"
	"dfolks/internal/workflows"
)

var runCmd = &cobra.Command{
	Use:   "run -f pipeline.yaml",
	Short: "Run a workflow.",
	Long: `Resolve a workflow from a pipeline file and run it. Workflows whose output
is an in-memory table print it to stdout as CSV.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if runID := getString(cmd, "run-id"); runID != "" {
			ctx = infrastructure.WithTraceID(ctx, runID)
		}
		ctx = infrastructure.EnsureTraceID(ctx)
		defer a.close(ctx)

		comp, err := a.resolveFile(ctx, getString(cmd, "file"))
		if err != nil {
			return err
		}
		wf, ok := comp.(component.Runnable)
		if !ok {
			return apperrors.NewConfigError(fmt.Sprintf("%s is not a workflow", comp.Kind()), nil).
				WithContext("kind", comp.Kind())
		}

		start := time.Now()
		out, err := wf.Run(ctx)
		if err != nil {
			return err
		}
		a.logger.InfoContext(ctx, "run finished",
			slog.String("kind", comp.Kind()),
			slog.Int("rows", out.NumRows()),
			slog.Duration("duration", time.Since(start)))

		if !printsTable(comp) {
			return nil
		}
		return exporter.Encode(cmd.OutOrStdout(), out, exporter.WriteOptions{})
	},
}

// printsTable reports whether the workflow's result only exists in memory
func printsTable(c component.Component) bool {
	if w, ok := c.(*workflows.DataIngestion); ok {
		return w.Format == workflows.FormatDF
	}
	return true
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "pipeline file")
	runCmd.Flags().String("run-id", "", "trace id attached to every log line of the run")
	rootCmd.AddCommand(runCmd)
}
