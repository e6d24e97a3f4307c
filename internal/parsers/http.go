package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dfolks/internal/component"
	"dfolks/internal/config"
	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// HTTPParserKind is the registered kind of the remote JSON parser
const HTTPParserKind = "HTTPParser"

// maxResponseBytes caps a single response body
const maxResponseBytes = 64 << 20

// Iterate issues one request per value, passing it as a query parameter
type Iterate struct {
	Param  string   `yaml:"param" validate:"required"`
	Values []string `yaml:"values" validate:"required,min=1"`
}

// HTTPParser fetches JSON records from a remote endpoint
type HTTPParser struct {
	component.Base `yaml:"-"`

	URL         string            `yaml:"url" validate:"required,url"`
	Method      string            `yaml:"method" validate:"omitempty,oneof=GET POST get post"`
	Headers     map[string]string `yaml:"headers"`
	Query       map[string]string `yaml:"query"`
	Iterate     *Iterate          `yaml:"iterate"`
	RecordsPath string            `yaml:"records_path"`
	Interval    string            `yaml:"interval" validate:"omitempty,duration"`
	Timeout     string            `yaml:"timeout" validate:"omitempty,duration"`

	client *http.Client
}

// NewHTTPParser creates an unconfigured parser
func NewHTTPParser() component.Component {
	return &HTTPParser{}
}

// Kind implements component.Component
func (p *HTTPParser) Kind() string { return HTTPParserKind }

// Variables implements component.Component
func (p *HTTPParser) Variables() map[string]any {
	return map[string]any{
		"url":          p.URL,
		"method":       p.Method,
		"headers":      p.Headers,
		"query":        p.Query,
		"iterate":      p.Iterate,
		"records_path": p.RecordsPath,
		"interval":     p.Interval,
		"timeout":      p.Timeout,
	}
}

// SetClient replaces the HTTP client used by Parse
func (p *HTTPParser) SetClient(c *http.Client) {
	p.client = c
}

func (p *HTTPParser) interval() time.Duration {
	if d, err := time.ParseDuration(p.Interval); err == nil && p.Interval != "" {
		return d
	}
	return config.DefaultCallInterval
}

func (p *HTTPParser) httpClient() *http.Client {
	if p.client != nil {
		return p.client
	}
	timeout := config.DefaultHTTPTimeout
	if d, err := time.ParseDuration(p.Timeout); err == nil && p.Timeout != "" {
		timeout = d
	}
	return &http.Client{Timeout: timeout}
}

// Parse performs every request, waiting at least the interval between calls,
// and stacks the returned records
func (p *HTTPParser) Parse(ctx context.Context) (*tabular.Table, error) {
	logger := p.Runtime().ComponentLogger(HTTPParserKind)
	client := p.httpClient()
	limiter := rate.NewLimiter(rate.Every(p.interval()), 1)

	var calls []string
	if p.Iterate != nil {
		calls = p.Iterate.Values
	} else {
		calls = []string{""}
	}

	var tables []*tabular.Table
	for _, value := range calls {
		if err := limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewNetworkError("request cancelled", err)
		}

		records, err := p.fetch(ctx, client, value)
		if err != nil {
			return nil, err
		}
		if p.Iterate != nil {
			for _, rec := range records {
				if _, ok := rec[p.Iterate.Param]; !ok {
					rec[p.Iterate.Param] = value
				}
			}
		}
		table, err := recordsTable(records)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to build table from records", err)
		}
		tables = append(tables, table)

		logger.DebugContext(ctx, "records fetched",
			slog.String("value", value),
			slog.Int("records", len(records)))
	}

	out := tabular.Concat(tables...)
	logger.InfoContext(ctx, "remote source loaded",
		slog.Int("calls", len(calls)),
		slog.Int("rows", out.NumRows()))
	return out, nil
}

func (p *HTTPParser) fetch(ctx context.Context, client *http.Client, value string) ([]map[string]any, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, apperrors.NewParameterValidationError(HTTPParserKind, "invalid url", err)
	}
	q := u.Query()
	for k, v := range p.Query {
		q.Set(k, v)
	}
	if p.Iterate != nil {
		q.Set(p.Iterate.Param, value)
	}
	u.RawQuery = q.Encode()

	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, u.Redacted()), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("%s %s returned %d: %s", method, u.Redacted(), resp.StatusCode, strings.TrimSpace(string(body))), nil).
			WithContext("status", resp.StatusCode)
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, apperrors.NewParsingError("invalid JSON response", err)
	}
	return extractRecords(payload, p.RecordsPath)
}

// extractRecords follows a dot path to an array of objects
func extractRecords(payload any, path string) ([]map[string]any, error) {
	node := payload
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, apperrors.NewParsingError(fmt.Sprintf("records_path %q: %q is not an object", path, key), nil)
			}
			if node, ok = obj[key]; !ok {
				return nil, apperrors.NewParsingError(fmt.Sprintf("records_path %q: key %q not found", path, key), nil)
			}
		}
	}

	switch v := node.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		records := make([]map[string]any, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, apperrors.NewParsingError(fmt.Sprintf("record %d is %T, expected an object", i, item), nil)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, apperrors.NewParsingError(fmt.Sprintf("records are %T, expected an array", node), nil)
	}
}

// recordsTable builds a table over the union of record keys in first-seen order,
// visiting each record's keys sorted
func recordsTable(records []map[string]any) (*tabular.Table, error) {
	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	rows := make([][]any, len(records))
	for r, rec := range records {
		row := make([]any, len(columns))
		for c, name := range columns {
			row[c] = rec[name]
		}
		rows[r] = row
	}
	return tabular.FromRows(columns, rows)
}
