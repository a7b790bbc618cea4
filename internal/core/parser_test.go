package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

const csvHeader = "serie,nombre,area,tipo_item,precio,fecha_adquisicion,codigo_utp\n"

func csvUpload(body string) Upload {
	return Upload{Name: "items.csv", Size: int64(len(body)), Body: strings.NewReader(body)}
}

// =============================================================================
// CSV
// =============================================================================

func TestParseUpload_CSV(t *testing.T) {
	body := csvHeader +
		"SN1,Laptop,sistemas,Laptop,\"3,500.00\",15/01/2026,utp1\n" +
		",,,,,,\n" +
		"SN2,  Monitor  ,sistemas,Monitor,800,2026-01-20,\n"

	parsed, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}

	if parsed.Format != FormatCSV || parsed.FileName != "items.csv" {
		t.Errorf("format/name = %s/%s", parsed.Format, parsed.FileName)
	}
	if len(parsed.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (empty row skipped)", len(parsed.Rows))
	}

	first, second := parsed.Rows[0], parsed.Rows[1]
	if first.RowNumber != 2 || second.RowNumber != 4 {
		t.Errorf("row numbers = %d, %d; want 2, 4", first.RowNumber, second.RowNumber)
	}
	if first.Raw[ColPrice] != "3,500.00" {
		t.Errorf("raw price = %q", first.Raw[ColPrice])
	}
	if second.Raw[ColName] != "  Monitor  " || second.Normalized[ColName] != "Monitor" {
		t.Errorf("name raw/normalized = %q/%q", second.Raw[ColName], second.Normalized[ColName])
	}
	if _, ok := first.Raw[ColLocation]; ok {
		t.Error("columns absent from the header should not appear in the row")
	}
}

func TestParseUpload_CSVSemicolonAndBOM(t *testing.T) {
	body := "\xEF\xBB\xBFSERIE;Nombre;AREA;tipo_item;precio;fecha_adquisicion\n" +
		"SN1;Balanza analítica;laboratorio;Balanza;1200,50;03/02/2026\n"

	parsed, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	row := parsed.Rows[0]
	if row.Value(ColSerial) != "SN1" || row.Value(ColCategory) != "laboratorio" {
		t.Errorf("row = %+v", row.Normalized)
	}
	if row.Value(ColName) != "Balanza analítica" {
		t.Errorf("name = %q", row.Value(ColName))
	}
	if parsed.Encoding != EncodingUTF8 {
		t.Errorf("encoding = %q, want %q", parsed.Encoding, EncodingUTF8)
	}
}

func TestParseUpload_CSVWindows1252(t *testing.T) {
	// "Proyección" and "dañado" as Excel's plain "CSV" save writes them.
	body := "serie,nombre,area,tipo_item,precio,fecha_adquisicion,estado\n" +
		"SN1,Proyecci\xF3n,audiovisual,Proyector,900,2026-01-15,da\xF1ado\n"

	parsed, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if parsed.Encoding != EncodingWindows1252 {
		t.Errorf("encoding = %q, want %q", parsed.Encoding, EncodingWindows1252)
	}
	row := parsed.Rows[0]
	if row.Value(ColName) != "Proyección" {
		t.Errorf("name = %q, want Proyección", row.Value(ColName))
	}
	if row.Value(ColStatus) != "dañado" {
		t.Errorf("status = %q, want dañado", row.Value(ColStatus))
	}
}

func TestParseUpload_CSVMixedEncodingRejected(t *testing.T) {
	body := csvHeader + "SN1,Balanza analítica,laboratorio,Balanza,900,2026-01-15,\n" +
		"SN2,Proyecci\xF3n,audiovisual,Proyector,900,2026-01-15,\n"

	_, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
	if got := MapError(err).Code; got != "FILE003" {
		t.Errorf("code = %s, want FILE003", got)
	}
}

func TestParseUpload_CSVNumberIsNotADate(t *testing.T) {
	body := csvHeader + "SN1,Laptop,sistemas,Laptop,900,4000,\n"

	parsed, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if got := parsed.Rows[0].Value(ColAcquiredOn); got != "4000" {
		t.Errorf("fecha_adquisicion = %q, want the text left as typed", got)
	}
}

func TestParseUpload_RaggedRows(t *testing.T) {
	body := csvHeader + "SN1,Laptop,sistemas\n"

	parsed, err := ParseUpload(context.Background(), csvUpload(body), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if got, ok := parsed.Rows[0].Raw[ColPrice]; !ok || got != "" {
		t.Errorf("missing trailing cell = %q, %v; want empty, present", got, ok)
	}
}

// =============================================================================
// File-level rejections
// =============================================================================

func TestParseUpload_FileErrors(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
		limits Limits
		want   error
	}{
		{"no body", Upload{Name: "items.csv"}, Limits{}, ErrNoFile},
		{"bad extension", Upload{Name: "items.pdf", Body: strings.NewReader("x")}, Limits{}, ErrInvalidFormat},
		{"no extension", Upload{Name: "items", Body: strings.NewReader("x")}, Limits{}, ErrInvalidFormat},
		{"declared too large", Upload{Name: "items.csv", Size: 2048, Body: strings.NewReader("x")}, Limits{MaxFileSize: 1024}, ErrFileTooLarge},
		{"undeclared too large", Upload{Name: "items.csv", Body: strings.NewReader(strings.Repeat("a", 2048))}, Limits{MaxFileSize: 1024}, ErrFileTooLarge},
		{"zero bytes", csvUpload(""), Limits{}, ErrEmptyFile},
		{"header only", csvUpload(csvHeader), Limits{}, ErrEmptyFile},
		{"blank rows only", csvUpload(csvHeader + ",,\n,,\n"), Limits{}, ErrEmptyFile},
		{"blank header", csvUpload(",,,\nSN1,Laptop\n"), Limits{}, ErrMissingHeaders},
		{"missing required column", csvUpload("serie,nombre\nSN1,Laptop\n"), Limits{}, ErrMissingHeaders},
		{"corrupt xlsx", Upload{Name: "items.xlsx", Body: strings.NewReader("not a zip")}, Limits{}, ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseUpload(context.Background(), tt.upload, tt.limits)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseUpload() error = %v, want %v", err, tt.want)
			}
			if parsed != nil {
				t.Error("no partial result expected")
			}
		})
	}
}

func TestParseUpload_MissingHeadersListed(t *testing.T) {
	_, err := ParseUpload(context.Background(), csvUpload("serie,nombre,area\nSN1,x,sistemas\n"), Limits{})

	var mh *MissingHeadersError
	if !errors.As(err, &mh) {
		t.Fatalf("error = %v, want *MissingHeadersError", err)
	}
	want := []string{ColItemType, ColPrice, ColAcquiredOn}
	if strings.Join(mh.Missing, ",") != strings.Join(want, ",") {
		t.Errorf("missing = %v, want %v", mh.Missing, want)
	}
}

func TestParseUpload_RowLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString(csvHeader)
	for i := 1; i <= 4; i++ {
		fmt.Fprintf(&b, "SN%d,Laptop,sistemas,Laptop,100,2026-01-15,\n", i)
	}
	body := b.String()

	if _, err := ParseUpload(context.Background(), csvUpload(body), Limits{MaxRows: 4}); err != nil {
		t.Errorf("exactly at the limit: error = %v", err)
	}

	_, err := ParseUpload(context.Background(), csvUpload(body), Limits{MaxRows: 3})
	var tm *TooManyRowsError
	if !errors.As(err, &tm) || tm.Limit != 3 {
		t.Fatalf("error = %v, want TooManyRowsError{3}", err)
	}
	if !errors.Is(err, ErrTooManyRows) {
		t.Error("TooManyRowsError should unwrap to ErrTooManyRows")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"items.xlsx", FormatXLSX, false},
		{"ITEMS.XLSX", FormatXLSX, false},
		{"export.csv", FormatCSV, false},
		{"old.xls", "", true},
		{"notes.txt", "", true},
		{"README", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, %v", tt.name, got, err)
		}
	}
}

// =============================================================================
// XLSX
// =============================================================================

// buildXLSX writes rows into the named sheet of a new workbook.
func buildXLSX(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatal(err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func xlsxUpload(data []byte) Upload {
	return Upload{Name: "items.xlsx", Size: int64(len(data)), Body: strings.NewReader(string(data))}
}

func TestParseUpload_XLSX(t *testing.T) {
	data := buildXLSX(t, "Datos", [][]any{
		{"serie", "nombre", "area", "tipo_item", "precio", "fecha_adquisicion", "codigo_utp"},
		{"SN1", "Laptop", "sistemas", "Laptop", 3500.5, "2026-01-15", "UTP1"},
		{},
		{"SN2", "Monitor", "sistemas", "Monitor", 800, 46037, nil},
	})

	parsed, err := ParseUpload(context.Background(), xlsxUpload(data), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if parsed.Format != FormatXLSX {
		t.Errorf("format = %s", parsed.Format)
	}
	if len(parsed.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(parsed.Rows))
	}

	second := parsed.Rows[1]
	if second.RowNumber != 4 {
		t.Errorf("row number = %d, want 4", second.RowNumber)
	}
	if got := second.Value(ColAcquiredOn); got != "2026-01-15" {
		t.Errorf("serial date resolved as %q", got)
	}
	if got := FormatNumeric(ToPgNumeric(parsed.Rows[0].Value(ColPrice))); got != "3500.5" {
		t.Errorf("price = %q", got)
	}
}

func TestParseUpload_XLSXTextNumberIsNotADate(t *testing.T) {
	data := buildXLSX(t, "Datos", [][]any{
		{"serie", "nombre", "area", "tipo_item", "precio", "fecha_adquisicion", "garantia_hasta"},
		{"SN1", "Laptop", "sistemas", "Laptop", 900, "4000", 47133},
	})

	parsed, err := ParseUpload(context.Background(), xlsxUpload(data), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	row := parsed.Rows[0]
	if got := row.Value(ColAcquiredOn); got != "4000" {
		t.Errorf("text cell fecha_adquisicion = %q, want it left as typed", got)
	}
	if got := row.Value(ColWarranty); got != "2029-01-15" {
		t.Errorf("numeric cell garantia_hasta = %q, want 2029-01-15", got)
	}
	if got := row.Raw[ColWarranty]; got != "47133" {
		t.Errorf("raw garantia_hasta = %q, want the serial", got)
	}
}

func TestParseUpload_XLSXPrefersTemplateSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"notas"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet(TemplateSheet); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"serie", "nombre", "area", "tipo_item", "precio", "fecha_adquisicion"},
		{"SN1", "Laptop", "sistemas", "Laptop", "10", "2026-01-15"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := f.SetSheetRow(TemplateSheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseUpload(context.Background(), xlsxUpload(buf.Bytes()), Limits{})
	if err != nil {
		t.Fatalf("ParseUpload() error = %v", err)
	}
	if parsed.Rows[0].Value(ColSerial) != "SN1" {
		t.Errorf("parsed the wrong sheet: %+v", parsed.Rows[0].Normalized)
	}
}
