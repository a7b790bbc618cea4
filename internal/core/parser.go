package core

// parser.go turns an uploaded workbook into ImportRows.
//
// Limits are enforced before and during parsing:
//   - Declared size is checked before reading a byte
//   - The body is read through a bounded reader, so an undeclared size
//     cannot exceed the ceiling either
//   - Data rows are counted while streaming and parsing stops as soon as
//     the ceiling is passed
//
// The first row holds the headers. Empty rows are skipped and do not
// count toward the ceiling. Row numbers are spreadsheet rows (header = 1).

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Default limits, used when a Limits field is zero.
const (
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	DefaultMaxRows           = 1000
)

// ContextCheckInterval is how often (in rows) long loops check for cancellation.
var ContextCheckInterval = 100

// TemplateSheet is the sheet name of the import template. Parsing prefers it
// over the active sheet.
const TemplateSheet = "Plantilla Items"

// File formats accepted by ParseUpload.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Upload is a file received from a caller.
type Upload struct {
	Name string
	Size int64 // declared size; 0 when unknown
	Body io.Reader
}

// Limits bounds the work a single import may cause.
type Limits struct {
	MaxFileSize int64
	MaxRows     int
}

func (l Limits) withDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxRows <= 0 {
		l.MaxRows = DefaultMaxRows
	}
	return l
}

// ParsedFile is the result of parsing an upload.
type ParsedFile struct {
	FileName string
	Format   string
	Encoding string
	Headers  []string
	Index    HeaderIndex
	Rows     []ImportRow
}

// DetectFormat returns the format for a file name, or an error wrapping
// ErrInvalidFormat.
func DetectFormat(name string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case "":
		return "", fmt.Errorf("%w: file has no extension (use .xlsx or .csv)", ErrInvalidFormat)
	default:
		return "", fmt.Errorf("%w: %s files are not supported (use .xlsx or .csv)", ErrInvalidFormat, ext)
	}
}

// ParseUpload reads an upload into rows. File-level problems are returned
// as errors wrapping the sentinels in errors.go; no partial result is
// produced.
func ParseUpload(ctx context.Context, up Upload, limits Limits) (*ParsedFile, error) {
	limits = limits.withDefaults()

	if up.Body == nil {
		return nil, ErrNoFile
	}

	format, err := DetectFormat(up.Name)
	if err != nil {
		return nil, err
	}

	if up.Size > limits.MaxFileSize {
		return nil, &FileTooLargeError{Size: up.Size, Limit: limits.MaxFileSize}
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, limits.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limits.MaxFileSize {
		return nil, &FileTooLargeError{Limit: limits.MaxFileSize}
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	var src rowSource
	switch format {
	case FormatXLSX:
		src, err = openXLSX(data)
	default:
		src, err = openCSV(data)
	}
	if err != nil {
		return nil, err
	}
	defer src.Close()

	parsed, err := readRows(ctx, src, limits.MaxRows)
	if err != nil {
		return nil, err
	}
	parsed.FileName = filepath.Base(up.Name)
	parsed.Format = format
	parsed.Encoding = EncodingUTF8
	if c, ok := src.(*csvSource); ok {
		parsed.Encoding = c.encoding
	}
	return parsed, nil
}

// rowSource yields raw records; Next returns io.EOF after the last one.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

// typedSource is a rowSource whose cells carry a type, so numeric date
// cells can be told apart from numbers typed as text.
type typedSource interface {
	resolveDates(row *ImportRow, idx HeaderIndex) error
}

// dateColumns are the columns read as dates.
var dateColumns = []string{ColAcquiredOn, ColWarranty, ColLeasingUntil}

func readRows(ctx context.Context, src rowSource, maxRows int) (*ParsedFile, error) {
	header, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, err
	}
	if isEmptyRow(header) {
		return nil, fmt.Errorf("%w: first row must contain the column headers", ErrMissingHeaders)
	}

	idx, err := ValidateHeaders(header)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedFile{Headers: header, Index: idx}
	names := make([]string, len(header))
	for name, pos := range idx {
		names[pos] = name
	}

	for line := 2; ; line++ {
		if line%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isEmptyRow(record) {
			continue
		}
		if len(parsed.Rows) == maxRows {
			return nil, &TooManyRowsError{Limit: maxRows}
		}
		row := buildRow(line, names, record)
		if typed, ok := src.(typedSource); ok {
			if err := typed.resolveDates(&row, idx); err != nil {
				return nil, err
			}
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	if len(parsed.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows after the header", ErrEmptyFile)
	}
	return parsed, nil
}

func buildRow(line int, names, record []string) ImportRow {
	row := ImportRow{
		RowNumber:  line,
		Raw:        make(map[string]string, len(names)),
		Normalized: make(map[string]string, len(names)),
	}
	for pos, name := range names {
		if name == "" {
			continue
		}
		var cell string
		if pos < len(record) {
			cell = record[pos]
		}
		row.Raw[name] = cell
		row.Normalized[name] = CleanCell(cell)
	}
	return row
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if CleanCell(v) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// XLSX
// =============================================================================

type xlsxSource struct {
	file  *excelize.File
	sheet string
	rows  *excelize.Rows
}

func openXLSX(data []byte) (*xlsxSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a readable xlsx workbook: %v", ErrInvalidFormat, err)
	}

	sheet := TemplateSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidFormat)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrInvalidFormat, sheet, err)
	}
	return &xlsxSource{file: f, sheet: sheet, rows: rows}, nil
}

func (s *xlsxSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		return nil, io.EOF
	}
	// Raw values keep dates as serials and prices unformatted.
	cols, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return cols, nil
}

// resolveDates rewrites serial day numbers in the date columns of row to
// YYYY-MM-DD. Only numeric cells are rewritten: a number stored as text
// is left alone and fails date validation like it would in a CSV.
func (s *xlsxSource) resolveDates(row *ImportRow, idx HeaderIndex) error {
	for _, col := range dateColumns {
		pos, ok := idx[col]
		if !ok {
			continue
		}
		iso, ok := ExcelSerialDate(row.Normalized[col])
		if !ok {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(pos+1, row.RowNumber)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		typ, err := s.file.GetCellType(s.sheet, cell)
		if err != nil {
			return fmt.Errorf("%w: read cell %s: %v", ErrInvalidFormat, cell, err)
		}
		if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
			row.Normalized[col] = iso
		}
	}
	return nil
}

func (s *xlsxSource) Close() error {
	s.rows.Close()
	return s.file.Close()
}

// =============================================================================
// CSV
// =============================================================================

type csvSource struct {
	reader   *csv.Reader
	encoding string
}

func openCSV(data []byte) (*csvSource, error) {
	text, enc, err := TextReader(data)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(text)
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false
	return &csvSource{reader: r, encoding: enc}, nil
}

func (s *csvSource) Next() ([]string, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrInvalidFormat, err)
	}
	return record, nil
}

func (s *csvSource) Close() error { return nil }

// sniffDelimiter picks ';' when the header line uses it more than ','.
// Spreadsheets in Spanish locales export CSV that way.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
