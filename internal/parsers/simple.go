package parsers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"dfolks/internal/component"
	"dfolks/internal/dataprocessing"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// SimpleParserKind is the registered kind of the flat-file parser
const SimpleParserKind = "SimpleParser"

// SourceFile is the only source SimpleParser understands
const SourceFile = "file"

// SimpleParser loads a flat file, or every flat file of a directory
type SimpleParser struct {
	component.Base `yaml:"-"`

	Source     string `yaml:"source" validate:"required"`
	SourcePath string `yaml:"source_path" validate:"required"`
	LoadAll    bool   `yaml:"load_all"`
	Sep        string `yaml:"sep"`
	Encoding   string `yaml:"encoding"`
}

// NewSimpleParser creates an unconfigured parser
func NewSimpleParser() component.Component {
	return &SimpleParser{}
}

// Kind implements component.Component
func (p *SimpleParser) Kind() string { return SimpleParserKind }

// Variables implements component.Component
func (p *SimpleParser) Variables() map[string]any {
	return map[string]any{
		"source":      p.Source,
		"source_path": p.SourcePath,
		"load_all":    p.LoadAll,
		"sep":         p.Sep,
		"encoding":    p.Encoding,
	}
}

// Validate checks the separator and encoding
func (p *SimpleParser) Validate() error {
	if p.Sep != "" && utf8.RuneCountInString(p.Sep) != 1 {
		return apperrors.NewParameterValidationError(SimpleParserKind,
			fmt.Sprintf("sep must be a single character, got %q", p.Sep), nil)
	}
	if _, err := dataprocessing.Decoder(p.Encoding); err != nil {
		return err
	}
	return nil
}

func (p *SimpleParser) readOptions() dataprocessing.ReadOptions {
	opts := dataprocessing.ReadOptions{Encoding: p.Encoding}
	if p.Sep != "" {
		opts.Separator, _ = utf8.DecodeRuneInString(p.Sep)
	}
	return opts
}

// Parse loads the configured source
func (p *SimpleParser) Parse(ctx context.Context) (*tabular.Table, error) {
	rt := p.Runtime()
	logger := rt.ComponentLogger(SimpleParserKind)

	if p.Source != SourceFile {
		return nil, apperrors.NewNotImplementedError(fmt.Sprintf("source %q", p.Source))
	}

	path := p.SourcePath
	if !filepath.IsAbs(path) && rt.ProjectRoot != "" {
		path = filepath.Join(rt.ProjectRoot, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.NewFileNotFoundError(path)
	}

	var table *tabular.Table
	switch {
	case info.IsDir() && p.LoadAll:
		table, err = dataprocessing.LoadDirectory(path, p.readOptions())
	case info.IsDir():
		return nil, apperrors.NewConfigError(
			fmt.Sprintf("%s is a directory, set load_all to load every file in it", path), nil).
			WithContext("path", path)
	default:
		table, err = dataprocessing.LoadFlatFile(path, p.readOptions())
	}
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "source loaded",
		slog.String("path", path),
		slog.Int("rows", table.NumRows()),
		slog.Int("columns", table.NumCols()))
	return table, nil
}
