package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/inventory/internal/core"
)

func TestTemplateCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "plantilla.xlsx")

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"template", "-o", out})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("template: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("template is not an xlsx archive")
	}
	if !strings.Contains(stdout.String(), "wrote "+out) {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestImportFlagsValidated(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"import", "--user", "u-1"}},
		{"missing user", []string{"preview", "items.csv"}},
		{"both batch flags", []string{"import", "items.csv", "--user", "u-1", "--batch", "LOT-2026-0001", "--new-batch", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err == nil {
				t.Error("expected a usage error")
			}
		})
	}
}

func TestRequesterFromFlags(t *testing.T) {
	f := identityFlags{user: "u-9", role: "admin"}
	req := f.requester()
	if !req.Elevated || !req.MayImport || req.Name != "u-9" {
		t.Errorf("requester = %+v", req)
	}

	f = identityFlags{user: "u-3", role: "externo", area: "Sistemas"}
	if req := f.requester(); req.MayImport || req.Category != "sistemas" {
		t.Errorf("requester = %+v", req)
	}
}

func TestBatchChoiceFromFlags(t *testing.T) {
	tests := []struct {
		flags batchFlags
		want  core.BatchChoice
	}{
		{batchFlags{}, core.BatchChoice{}},
		{batchFlags{newBatch: "Compra marzo"}, core.BatchChoice{Mode: core.BatchNew, Description: "Compra marzo"}},
		{batchFlags{batch: "LOT-2026-0002"}, core.BatchChoice{Mode: core.BatchExisting, Code: "LOT-2026-0002"}},
	}
	for _, tt := range tests {
		if got := tt.flags.choice(); got != tt.want {
			t.Errorf("choice() = %+v, want %+v", got, tt.want)
		}
	}
}

func TestPrintReport(t *testing.T) {
	report := core.ImportReport{
		TotalRows: 2, ValidCount: 1, RejectedCount: 1,
		Rows: []core.ReportRow{
			{Row: core.ImportRow{RowNumber: 2, Raw: map[string]string{core.ColSerial: "SN1"}}, Status: core.StatusValid},
			{
				Row:    core.ImportRow{RowNumber: 3, Raw: map[string]string{core.ColSerial: "SN1"}},
				Status: core.StatusRejected,
				Outcome: core.ValidationOutcome{Errors: []core.ValidationError{
					{Field: core.ColSerial, Message: "duplicated in file (first seen on row 2)"},
				}},
			},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, report, false)
	out := buf.String()

	if !strings.Contains(out, "rows: 2  valid: 1  warned: 0  rejected: 1") {
		t.Errorf("missing counts:\n%s", out)
	}
	if !strings.Contains(out, "serie: duplicated in file") {
		t.Errorf("missing rejection message:\n%s", out)
	}
	if strings.Count(out, "SN1") != 1 {
		t.Errorf("valid rows should be hidden without verbose:\n%s", out)
	}

	buf.Reset()
	printReport(&buf, report, true)
	if strings.Count(buf.String(), "SN1") != 2 {
		t.Errorf("verbose should list valid rows:\n%s", buf.String())
	}
}

func TestPrintCommit(t *testing.T) {
	var buf bytes.Buffer
	printCommit(&buf, &core.CommitResult{
		CreatedCount: 1,
		BatchCode:    "LOT-2026-0001",
		ReceiptKey:   "receipts/2026/t.xlsx",
		Items:        []core.CreatedItem{{RowNumber: 2, Code: "SIS-2026-0001", Serial: "SN1", Tag: "PENDING", Name: "Laptop"}},
	})
	out := buf.String()
	for _, want := range []string{"created 1 items in batch LOT-2026-0001", "receipt: receipts/2026/t.xlsx", "SIS-2026-0001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCommitFailure(t *testing.T) {
	var buf bytes.Buffer
	printCommitFailure(&buf, &core.CommitResult{Failure: core.MapCommitError(errors.New("storage unavailable")).Message})

	out := buf.String()
	if !strings.HasPrefix(out, "created 0 items: ") || !strings.Contains(out, "no items were created") {
		t.Errorf("output = %q", out)
	}
}

func TestUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "mapped error carries code and action",
			err:  core.ErrEncoding,
			want: "File contains invalid characters (Code: FILE003). Save the file as .xlsx or as \"CSV UTF-8\" and try again: encoding error",
		},
		{
			name: "unmapped error keeps its text",
			err:  errors.New("storage unavailable"),
			want: "[ERR000] storage unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userError(tt.err)
			if got.Error() != tt.want {
				t.Errorf("userError() = %q, want %q", got.Error(), tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("userError() must wrap the original error")
			}
		})
	}
}
