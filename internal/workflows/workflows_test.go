package workflows_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dfolks/internal/catalog"
	"dfolks/internal/component"
	"dfolks/internal/config"
	"dfolks/internal/dataprocessing"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/infrastructure"
	"dfolks/internal/registry"
	"dfolks/internal/resolver"
	"dfolks/internal/tabular"
	"dfolks/internal/workflows"
)

type env struct {
	project string
	hive    string
	r       *resolver.Resolver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	reg, err := catalog.NewRegistry(registry.Options{})
	require.NoError(t, err)

	rt := component.DefaultRuntime()
	rt.ProjectRoot = t.TempDir()
	rt.HiveRoot = t.TempDir()
	return &env{project: rt.ProjectRoot, hive: rt.HiveRoot, r: resolver.New(reg, rt)}
}

func (e *env) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.project, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (e *env) run(t *testing.T, ctx context.Context, cfg string) (*tabular.Table, error) {
	t.Helper()
	c, err := e.r.Resolve(ctx, cfg)
	require.NoError(t, err)
	wf, ok := c.(component.Runnable)
	require.True(t, ok)
	return wf.Run(ctx)
}

const ingestDF = `
kind: DataIngestion
format: df
parser: file://conf/parser.yaml
chains:
  - kind: RenameColumnsTransformer
    columns: {Code: code, Close: close, Volume: volume}
  - kind: ReplaceNanStrTransformer
  - kind: DropDuplicatesTransformer
  - kind: FillNaTransformer
    values:
      - column: close
        value: 0
retain_cols: [code, close, volume]
validation:
  schemas:
    code: {type: str, nullable: false, primary_key: true}
    close: {type: float}
    volume: {type: int}
`

func TestDataIngestion_DataFrame(t *testing.T) {
	e := newEnv(t)
	e.write(t, "data/prices.csv", "Code,Close,Volume,Note\n1301,100.5,10,x\n1332,,20,nan\n1301,100.5,10,x\n")
	e.write(t, "conf/parser.yaml", "kind: SimpleParser\nsource: file\nsource_path: data/prices.csv\n")

	out, err := e.run(t, context.Background(), ingestDF)
	require.NoError(t, err)

	assert.Equal(t, []string{"code", "close", "volume"}, out.Columns())
	assert.Equal(t, [][]any{
		{"1301", 100.5, int64(10)},
		{"1332", 0.0, int64(20)},
	}, out.Records())
}

func ingestParquet(source, mode string) string {
	return `
kind: DataIngestion
format: parquet
target_db: market
target_output: prices
compression: zstd
write_mode: ` + mode + `
parser:
  kind: SimpleParser
  source: file
  source_path: ` + source + `
validation:
  schemas:
    code: {type: str, nullable: false, primary_key: true}
    market: {type: str, partition_key: true}
    close: {type: float}
`
}

func TestDataIngestion_ParquetUpsert(t *testing.T) {
	e := newEnv(t)
	e.write(t, "first.csv", "code,market,close\nA,prime,1.0\nB,growth,2.0\n")
	e.write(t, "second.csv", "code,market,close\nB,growth,2.5\nC,prime,3.0\n")

	_, err := e.run(t, context.Background(), ingestParquet("first.csv", "overwrite"))
	require.NoError(t, err)
	_, err = e.run(t, context.Background(), ingestParquet("second.csv", "upsert"))
	require.NoError(t, err)

	target := filepath.Join(e.hive, "market", "prices")
	assert.DirExists(t, filepath.Join(target, "market=prime"))
	assert.DirExists(t, filepath.Join(target, "market=growth"))

	stored, err := dataprocessing.ReadParquet(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "market", "close"}, stored.Columns())

	closes := make(map[string]any)
	for r := 0; r < stored.NumRows(); r++ {
		closes[stored.Value(r, "code").(string)] = stored.Value(r, "close")
	}
	assert.Equal(t, map[string]any{"A": 1.0, "B": 2.5, "C": 3.0}, closes)
}

func TestDataIngestion_Failures(t *testing.T) {
	e := newEnv(t)
	e.write(t, "prices.csv", "code,close\nA,1\n")
	parser := "parser: {kind: SimpleParser, source: file, source_path: prices.csv}\n"

	tests := []struct {
		name    string
		cfg     string
		errType apperrors.ErrorType
	}{
		{
			name:    "unsupported format",
			cfg:     "kind: DataIngestion\nformat: json\n" + parser,
			errType: apperrors.ErrTypeNotImplemented,
		},
		{
			name:    "chain element is not a mapping",
			cfg:     "kind: DataIngestion\nformat: df\n" + parser + "chains: [RemoveNanColsTransformer]\n",
			errType: apperrors.ErrTypeInvalidChainElement,
		},
		{
			name:    "unknown parser kind",
			cfg:     "kind: DataIngestion\nformat: df\nparser: {kind: XBRLParser}\n",
			errType: apperrors.ErrTypeUnknownDiscriminator,
		},
		{
			name:    "retained column missing",
			cfg:     "kind: DataIngestion\nformat: df\n" + parser + "retain_cols: [volume]\n",
			errType: apperrors.ErrTypeConfig,
		},
		{
			name: "schema violation",
			cfg: "kind: DataIngestion\nformat: df\n" + parser +
				"validation:\n  schemas:\n    volume: {type: int}\n",
			errType: apperrors.ErrTypeSchemaViolation,
		},
		{
			name:    "csv output without target",
			cfg:     "kind: DataIngestion\nformat: csv\n" + parser,
			errType: apperrors.ErrTypeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, context.Background(), tt.cfg)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.errType), err.Error())
		})
	}

	_, err := e.r.Resolve(context.Background(), "kind: DataIngestion\nformat: df\n"+parser+"write_mode: replace\n")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParameterValidation))
}

func TestDataIngestion_RunLog(t *testing.T) {
	e := newEnv(t)
	e.write(t, "prices.csv", "code,close\nA,1\n")
	logPath := filepath.Join(e.project, "logs", "ingest.log")

	cfg := "kind: DataIngestion\nformat: csv\ntarget_output: " + filepath.Join(e.project, "out.csv") +
		"\nlog_level: debug\nlog_path: " + logPath +
		"\nparser: {kind: SimpleParser, source: file, source_path: prices.csv}\n"

	ctx := infrastructure.WithTraceID(context.Background(), "run-42")
	_, err := e.run(t, ctx, cfg)
	require.NoError(t, err)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"workflow started"`)
	assert.Contains(t, string(content), `"trace_id":"run-42"`)

	written, err := os.ReadFile(filepath.Join(e.project, "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, "code,close\nA,1\n", string(written))
}

func (e *env) writeHive(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.hive, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const extractCfg = `
kind: DataExtractor
base_df:
  target_db: market
  target_path: prices.csv
  schemas:
    code: {type: str}
    day: {type: date}
join_dfs:
  - target_db: ref
    target_path: listings.csv
    join_type: left
    join_keys: [code]
    schemas:
      code: {type: str}
fillna_data:
  - column: close
    value: 0
  - column: name
    value: unknown
filters:
  - column: close
    op: ">="
    value: 100
schema_final_df:
  schemas:
    code: {type: str}
    name: {type: str}
    close: {type: float}
save_final_df: true
`

func TestDataExtractor(t *testing.T) {
	e := newEnv(t)
	e.writeHive(t, "market/prices.csv", "code,close,day\n1301,100,2024-01-04\n1332,200,2024-01-04\n1333,,2024-01-05\n1379,150,2024-01-05\n")
	e.writeHive(t, "ref/listings.csv", "code,name\n1301,Kyokuyo\n1332,Nissui\n")

	c, err := e.r.Resolve(context.Background(), extractCfg)
	require.NoError(t, err)
	extractor := c.(*workflows.DataExtractor)

	out, err := extractor.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"code", "name", "close"}, out.Columns())
	assert.Equal(t, [][]any{
		{"1301", "Kyokuyo", 100.0},
		{"1332", "Nissui", 200.0},
		{"1379", "unknown", 150.0},
	}, out.Records())

	cached := extractor.CachePath()
	require.NotEmpty(t, cached)
	assert.Equal(t, filepath.Join(e.hive, "cache"), filepath.Dir(cached))
	assert.True(t, strings.HasPrefix(filepath.Base(cached), config.CacheFilePrefix))

	content, err := os.ReadFile(cached)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "code,name,close\n1301,Kyokuyo,"))
}

func TestDataExtractor_UnsupportedSource(t *testing.T) {
	e := newEnv(t)
	e.writeHive(t, "market/prices.xlsx", "")

	_, err := e.run(t, context.Background(), "kind: DataExtractor\nbase_df: {target_db: market, target_path: prices.xlsx}\n")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotImplemented))

	_, err = e.run(t, context.Background(), "kind: DataExtractor\nbase_df: {target_db: market, target_path: missing.csv}\n")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFileNotFound))
}
