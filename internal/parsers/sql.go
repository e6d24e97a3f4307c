package parsers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"dfolks/internal/component"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// SQLParserKind is the registered kind of the database parser
const SQLParserKind = "SQLParser"

// SQLDrivers lists the database/sql driver names linked into the binary
var SQLDrivers = []string{"sqlite", "pgx", "mysql", "sqlserver"}

// SQLParser runs a query and returns its result set
type SQLParser struct {
	component.Base `yaml:"-"`

	Driver string `yaml:"driver" validate:"required,oneof=sqlite pgx mysql sqlserver"`
	DSN    string `yaml:"dsn" validate:"required"`
	Query  string `yaml:"query" validate:"required"`
	Args   []any  `yaml:"args"`
}

// NewSQLParser creates an unconfigured parser
func NewSQLParser() component.Component {
	return &SQLParser{}
}

// Kind implements component.Component
func (p *SQLParser) Kind() string { return SQLParserKind }

// Variables implements component.Component
func (p *SQLParser) Variables() map[string]any {
	return map[string]any{
		"driver": p.Driver,
		"dsn":    p.DSN,
		"query":  p.Query,
		"args":   p.Args,
	}
}

// Parse opens the database, runs the query and collects every row
func (p *SQLParser) Parse(ctx context.Context) (*tabular.Table, error) {
	logger := p.Runtime().ComponentLogger(SQLParserKind)

	db, err := sql.Open(p.Driver, p.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s database", p.Driver), err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, p.Query, p.Args...)
	if err != nil {
		return nil, apperrors.NewStorageError("query failed", err).WithContext("driver", p.Driver)
	}
	defer rows.Close()

	table, err := scanRows(rows)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read query results", err).WithContext("driver", p.Driver)
	}

	logger.InfoContext(ctx, "query loaded",
		slog.String("driver", p.Driver),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", table.NumCols()))
	return table, nil
}

func scanRows(rows *sql.Rows) (*tabular.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		records = append(records, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tabular.FromRows(columns, records)
}
