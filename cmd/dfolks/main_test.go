package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dfolks/internal/errors"
)

type workspace struct {
	dir     string
	hive    string
	config  string
	metrics string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:     dir,
		hive:    filepath.Join(dir, "hive"),
		config:  filepath.Join(dir, "dfolks.yaml"),
		metrics: filepath.Join(dir, "metrics.prom"),
	}
	w.write(t, "dfolks.yaml", "logging:\n  level: error\nstorage:\n  hive_root: "+w.hive+
		"\n  project_root: "+dir+"\ntelemetry:\n  metrics_file: "+w.metrics+"\n")
	return w
}

func (w *workspace) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(w.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and resets every flag afterwards
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

const pricesCSV = "code,close,volume\n1301,100.5,10\n1332,,20\n"

func TestRunPrintsTable(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "data/prices.csv", pricesCSV)
	pipeline := w.write(t, "pipeline.yaml", `
kind: DataIngestion
format: df
parser:
  kind: SimpleParser
  source: file
  source_path: data/prices.csv
chains:
  - kind: FillNaTransformer
    values:
      - column: close
        value: 0
retain_cols: [code, close]
`)

	out, err := execute(t, "run", "--config", w.config, "-f", pipeline)
	require.NoError(t, err)
	assert.Equal(t, "code,close\n1301,100.5\n1332,0\n", out)

	metrics, err := os.ReadFile(w.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "dfolks_workflow_runs_total")
}

func TestRunPersistsToHive(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "data/prices.csv", pricesCSV)
	pipeline := w.write(t, "pipeline.yaml", `
kind: DataIngestion
format: csv
target_db: market
target_output: prices.csv
parser: {kind: SimpleParser, source: file, source_path: data/prices.csv}
`)

	out, err := execute(t, "run", "--config", w.config, "--log-level", "debug", "-f", pipeline, "--run-id", "cli-1")
	require.NoError(t, err)
	assert.Empty(t, out)

	written, err := os.ReadFile(filepath.Join(w.hive, "market", "prices.csv"))
	require.NoError(t, err)
	assert.Equal(t, pricesCSV, string(written))
}

func TestRunRejectsNonWorkflow(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "data/prices.csv", pricesCSV)
	pipeline := w.write(t, "parser.yaml", "kind: SimpleParser\nsource: file\nsource_path: data/prices.csv\n")

	_, err := execute(t, "run", "--config", w.config, "-f", pipeline)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestValidate(t *testing.T) {
	w := newWorkspace(t)
	w.write(t, "conf/parser.yaml", "kind: SimpleParser\nsource: file\nsource_path: data/prices.csv\n")

	tests := []struct {
		name    string
		content string
		want    string
		errType apperrors.ErrorType
	}{
		{
			name:    "valid workflow with external parser",
			content: "kind: DataIngestion\nformat: df\nparser: file://conf/parser.yaml\n",
			want:    "ok: DataIngestion\n",
		},
		{
			name:    "unknown kind",
			content: "kind: XBRLParser\n",
			errType: apperrors.ErrTypeUnknownDiscriminator,
		},
		{
			name:    "bad parameter",
			content: "kind: DataIngestion\nformat: df\nparser: {kind: SimpleParser}\nwrite_mode: replace\n",
			errType: apperrors.ErrTypeParameterValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := w.write(t, "pipeline.yaml", tt.content)
			out, err := execute(t, "validate", "--config", w.config, "-f", pipeline)
			if tt.errType != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestValidateNeedsFile(t *testing.T) {
	w := newWorkspace(t)
	_, err := execute(t, "validate", "--config", w.config)
	assert.Error(t, err)
}

func TestKinds(t *testing.T) {
	w := newWorkspace(t)
	out, err := execute(t, "kinds", "--config", w.config)
	require.NoError(t, err)

	assert.Contains(t, out, "transformer:\n  StandardScalerTransformer\n")
	assert.Contains(t, out, "workflow:\n  DataIngestion\n  DataExtractor\n")
	assert.Contains(t, out, "plain:\n  Validator\n  SaveFile\n  SimpleParser\n")
}
