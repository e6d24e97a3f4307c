package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dfolks/internal/config"
)

// Log outputs accepted by config.LoggingConfig.Output
const (
	OutputConsole = "console"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// process logger state, set by InitializeLogger and cleared by CloseLogger
var (
	processMu       sync.Mutex
	processLogger   *slog.Logger
	processClose    func() error
	previousDefault *slog.Logger
)

// InitializeLogger builds the process logger from cfg and installs it as the slog
// default. Until CloseLogger is called, later calls return the same logger.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	processMu.Lock()
	defer processMu.Unlock()

	if processLogger != nil {
		return processLogger, nil
	}
	logger, closeLog, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	processLogger, processClose = logger, closeLog
	previousDefault = slog.Default()
	slog.SetDefault(logger)
	return logger, nil
}

// GetLogger returns the process logger, or the slog default before initialization
func GetLogger() *slog.Logger {
	processMu.Lock()
	defer processMu.Unlock()
	if processLogger == nil {
		return slog.Default()
	}
	return processLogger
}

// CloseLogger closes the process log file, if any, and restores the previous slog default
func CloseLogger() error {
	processMu.Lock()
	defer processMu.Unlock()

	if processLogger == nil {
		return nil
	}
	closeLog := processClose
	slog.SetDefault(previousDefault)
	processLogger, processClose, previousDefault = nil, nil, nil
	return closeLog()
}

// NewLogger creates a JSON logger for cfg without touching process state.
// The returned function closes the log file when one was opened.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	out, closeLog, err := logOutput(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return NewJSONLogger(out, &slog.HandlerOptions{Level: ParseLogLevel(cfg.Level)}), closeLog, nil
}

// NewRunLogger builds the logger of a single workflow run: a file logger when filePath
// is set, stderr otherwise. The returned function must be called when the run ends.
func NewRunLogger(level, filePath string) (*slog.Logger, func() error, error) {
	output := OutputConsole
	if filePath != "" {
		output = OutputFile
	}
	return NewLogger(config.LoggingConfig{Level: level, Output: output, FilePath: filePath})
}

func logOutput(output, filePath string) (io.Writer, func() error, error) {
	output = strings.ToLower(output)
	switch output {
	case "", OutputConsole:
		return os.Stderr, func() error { return nil }, nil
	case OutputFile, OutputBoth:
		file, err := openLogFile(filePath)
		if err != nil {
			return nil, nil, err
		}
		if output == OutputBoth {
			return io.MultiWriter(os.Stderr, file), file.Close, nil
		}
		return file, file.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", output)
	}
}

func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// NewJSONLogger writes JSON records to w, tagging each with the run's trace_id
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(runHandler{slog.NewJSONHandler(w, opts)})
}

// runHandler copies the trace id of the record's context into a trace_id attribute
type runHandler struct {
	slog.Handler
}

func (h runHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return runHandler{h.Handler.WithAttrs(attrs)}
}

func (h runHandler) WithGroup(name string) slog.Handler {
	return runHandler{h.Handler.WithGroup(name)}
}

// ParseLogLevel maps a level name to slog; unknown names mean info
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
