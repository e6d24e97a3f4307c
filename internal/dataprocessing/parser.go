package dataprocessing

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "dfolks/internal/errors"
	"dfolks/internal/tabular"
)

// Encodings lists the accepted text encodings
var Encodings = []string{"utf-8", "utf-8-sig", "utf-16", "shift_jis", "euc-jp"}

// ReadOptions configures text file parsing
type ReadOptions struct {
	Separator rune
	Encoding  string
}

// Decoder returns the decoder for a named encoding. UTF-8 decoders strip a leading BOM.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "shift-jis", "sjis", "cp932":
		return japanese.ShiftJIS.NewDecoder(), nil
	case "euc-jp", "eucjp":
		return japanese.EUCJP.NewDecoder(), nil
	default:
		return nil, apperrors.NewParameterValidationError("encoding",
			fmt.Sprintf("unsupported encoding %q, expected one of %v", name, Encodings), nil)
	}
}

// ReadCSV reads a delimited text file. The first record is the header; cell types are inferred.
func ReadCSV(filePath string, options ReadOptions) (*tabular.Table, error) {
	decoder, err := Decoder(options.Encoding)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewFileNotFoundError(filePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return decodeCSV(transform.NewReader(f, decoder), filePath, options)
}

func decodeCSV(r io.Reader, filePath string, options ReadOptions) (*tabular.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if options.Separator != 0 {
		reader.Comma = options.Separator
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", filePath), err)
	}
	if len(records) == 0 {
		return tabular.New(), nil
	}

	table, err := tabular.FromRecords(records[0], records[1:])
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", filePath), err)
	}

	slog.Debug("Parsed delimited file",
		slog.String("file_path", filePath),
		slog.Int("total_rows", table.NumRows()),
		slog.Int("total_columns", table.NumCols()))
	return table.InferTypes(), nil
}

// ReadExcel reads the first sheet of an .xlsx workbook. The first row is the header.
func ReadExcel(filePath string) (*tabular.Table, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, apperrors.NewFileNotFoundError(filePath)
	}

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to open workbook %s", filePath), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tabular.New(), nil
	}
	sheetName := sheets[0]

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheetName), err)
	}

	// Trailing rows without any data are dropped
	lastDataRow := -1
	for i := len(rows) - 1; i >= 0; i-- {
		if hasData(rows[i]) {
			lastDataRow = i
			break
		}
	}
	if lastDataRow < 0 {
		return tabular.New(), nil
	}
	rows = rows[:lastDataRow+1]

	header := make([]string, 0, len(rows[0]))
	for j, cell := range rows[0] {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", j)
		}
		header = append(header, name)
	}
	width := len(header)
	for _, row := range rows[1:] {
		for len(header) < len(row) {
			header = append(header, fmt.Sprintf("column_%d", len(header)))
		}
	}
	if len(header) > width {
		slog.Warn("Sheet rows are wider than the header",
			slog.String("sheet_name", sheetName),
			slog.Int("header_columns", width),
			slog.Int("data_columns", len(header)))
	}

	table, err := tabular.FromRecords(header, rows[1:])
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse sheet %q", sheetName), err)
	}

	slog.Info("Loaded workbook sheet",
		slog.String("file_path", filePath),
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", table.NumRows()))
	return table.InferTypes(), nil
}

func hasData(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return true
		}
	}
	return false
}
