package infrastructure

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the instruments recorded while resolving and running pipelines
type PipelineMetrics struct {
	WorkflowRuns      metric.Int64Counter
	WorkflowDuration  metric.Float64Histogram
	ChainSteps        metric.Int64Counter
	ChainStepDuration metric.Float64Histogram
	RowsWritten       metric.Int64Counter
	WriteDuration     metric.Float64Histogram
	ValidationErrors  metric.Int64Counter
}

// CreatePipelineMetrics creates the pipeline instruments on the given meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	workflowRuns, err := meter.Int64Counter(
		"dfolks_workflow_runs_total",
		metric.WithDescription("Total number of workflow runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("workflow runs counter: %w", err)
	}

	workflowDuration, err := meter.Float64Histogram(
		"dfolks_workflow_duration_seconds",
		metric.WithDescription("Workflow run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("workflow duration histogram: %w", err)
	}

	chainSteps, err := meter.Int64Counter(
		"dfolks_chain_steps_total",
		metric.WithDescription("Total number of chain steps executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("chain steps counter: %w", err)
	}

	chainStepDuration, err := meter.Float64Histogram(
		"dfolks_chain_step_duration_seconds",
		metric.WithDescription("Chain step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("chain step duration histogram: %w", err)
	}

	rowsWritten, err := meter.Int64Counter(
		"dfolks_rows_written_total",
		metric.WithDescription("Total number of rows persisted by the file write engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("rows written counter: %w", err)
	}

	writeDuration, err := meter.Float64Histogram(
		"dfolks_write_duration_seconds",
		metric.WithDescription("File write duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("write duration histogram: %w", err)
	}

	validationErrors, err := meter.Int64Counter(
		"dfolks_schema_violations_total",
		metric.WithDescription("Total number of schema violations raised"),
	)
	if err != nil {
		return nil, fmt.Errorf("schema violations counter: %w", err)
	}

	return &PipelineMetrics{
		WorkflowRuns:      workflowRuns,
		WorkflowDuration:  workflowDuration,
		ChainSteps:        chainSteps,
		ChainStepDuration: chainStepDuration,
		RowsWritten:       rowsWritten,
		WriteDuration:     writeDuration,
		ValidationErrors:  validationErrors,
	}, nil
}

// NoopPipelineMetrics returns instruments bound to the global meter provider,
// which records nothing until a real provider is installed.
func NoopPipelineMetrics() *PipelineMetrics {
	m, err := CreatePipelineMetrics(otel.Meter(MeterName))
	if err != nil {
		// the global delegating meter does not fail instrument creation
		panic(err)
	}
	return m
}

func statusAttr(success bool) attribute.KeyValue {
	if success {
		return attribute.String("status", "success")
	}
	return attribute.String("status", "failure")
}

// RecordWorkflowRun records one workflow execution
func (m *PipelineMetrics) RecordWorkflowRun(ctx context.Context, kind string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("workflow_kind", kind), statusAttr(success))
	m.WorkflowRuns.Add(ctx, 1, attrs)
	m.WorkflowDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordChainStep records one chain element being applied
func (m *PipelineMetrics) RecordChainStep(ctx context.Context, kind, action string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("step_kind", kind),
		attribute.String("step_action", action),
		statusAttr(success),
	)
	m.ChainSteps.Add(ctx, 1, attrs)
	m.ChainStepDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordWrite records a persisted table
func (m *PipelineMetrics) RecordWrite(ctx context.Context, fileType, mode string, rows int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("file_type", fileType),
		attribute.String("write_mode", mode),
	)
	m.RowsWritten.Add(ctx, int64(rows), attrs)
	m.WriteDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSchemaViolation records a failed schema check for a column
func (m *PipelineMetrics) RecordSchemaViolation(ctx context.Context, column, constraint string) {
	if m == nil {
		return
	}
	m.ValidationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("column", column),
		attribute.String("constraint", constraint),
	))
}
