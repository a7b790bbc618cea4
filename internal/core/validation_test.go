package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Whole-file scenarios
// =============================================================================

func TestValidateAll_CleanRows(t *testing.T) {
	v := NewRowValidator(newFakeLookup(), systemsUser, WarnNever)

	results, err := v.ValidateAll(context.Background(), cleanRows(5))
	if err != nil {
		t.Fatalf("ValidateAll() error = %v", err)
	}

	report := Aggregate(results)
	if report.TotalRows != 5 || report.ValidCount != 5 || report.WarnedCount != 0 || report.RejectedCount != 0 {
		t.Fatalf("report = %d/%d/%d/%d, want 5/5/0/0",
			report.TotalRows, report.ValidCount, report.WarnedCount, report.RejectedCount)
	}
	if !report.Committable() {
		t.Error("expected a committable report")
	}

	staged := Staged(results)
	if len(staged) != 5 {
		t.Fatalf("Staged() = %d items, want 5", len(staged))
	}
	first := staged[0]
	if first.Serial != "SN0001" || first.Tag != "UTP000001" {
		t.Errorf("first staged = %s/%s", first.Serial, first.Tag)
	}
	if first.ItemTypeID != "it-1" || first.LocationID != "loc-1" {
		t.Errorf("resolved ids = %q/%q, want it-1/loc-1", first.ItemTypeID, first.LocationID)
	}
	if first.Status != DefaultItemStatus {
		t.Errorf("status = %q, want %q", first.Status, DefaultItemStatus)
	}
	if first.Category != "sistemas" {
		t.Errorf("category = %q, want sistemas", first.Category)
	}
}

func TestValidateAll_DuplicateSerialInFile(t *testing.T) {
	rows := []ImportRow{
		makeRow(2, cleanCells(1)),
		makeRow(3, with(cleanCells(2), ColSerial, "SN0001")),
	}

	results, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatalf("ValidateAll() error = %v", err)
	}

	if got := results[0].Outcome.Status(); got != StatusValid {
		t.Errorf("row 2 status = %s, want valid", got)
	}
	if got := results[1].Outcome.Status(); got != StatusRejected {
		t.Fatalf("row 3 status = %s, want rejected", got)
	}
	if !hasMessage(results[1].Outcome.Errors, ColSerial, "duplicated within file (first used in row 2)") {
		t.Errorf("row 3 errors = %v", results[1].Outcome.Errors)
	}
	if results[1].Staged != nil {
		t.Error("a rejected row must not be staged")
	}

	report := Aggregate(results)
	if report.Committable() {
		t.Error("report with a rejected row must not be committable")
	}
	if Staged(results) != nil {
		t.Error("Staged() must be nil when any row is rejected")
	}
}

func TestValidateAll_Idempotent(t *testing.T) {
	lookup := newFakeLookup()
	lookup.serials["SN0003"] = true
	rows := cleanRows(4)
	rows[1] = makeRow(3, with(cleanCells(2), ColLocation, "", ColTag, "pendiente"))

	v := NewRowValidator(lookup, systemsUser, WarnNever)
	first, err := v.ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("ValidateAll over unchanged data produced different results")
	}
	if !reflect.DeepEqual(Aggregate(first), Aggregate(second)) {
		t.Error("Aggregate over identical results produced different reports")
	}
}

func TestValidateAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).ValidateAll(ctx, cleanRows(3))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ValidateAll() error = %v, want context.Canceled", err)
	}
}

func TestValidate_LookupFailure(t *testing.T) {
	lookup := newFakeLookup()
	lookup.err = errors.New("connection reset by peer")

	_, err := NewRowValidator(lookup, systemsUser, WarnNever).Validate(context.Background(), makeRow(2, cleanCells(1)))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Validate() error = %v, want lookup failure", err)
	}
}

// =============================================================================
// Blocking rules
// =============================================================================

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cells   map[string]string
		field   string
		message string
	}{
		{"missing serial", with(cleanCells(1), ColSerial, ""), ColSerial, "required field is empty"},
		{"missing name", with(cleanCells(1), ColName, "  "), ColName, "required field is empty"},
		{"missing area", with(cleanCells(1), ColCategory, ""), ColCategory, "required field is empty"},
		{"unknown area", with(cleanCells(1), ColCategory, "finanzas"), ColCategory, "must be one of: laboratorio, operaciones, sistemas"},
		{"missing item type", with(cleanCells(1), ColItemType, ""), ColItemType, "required field is empty"},
		{"unregistered item type", with(cleanCells(1), ColItemType, "Impresora"), ColItemType, "not registered for area sistemas"},
		{"missing price", with(cleanCells(1), ColPrice, ""), ColPrice, "required field is empty"},
		{"invalid price", with(cleanCells(1), ColPrice, "tres mil"), ColPrice, "invalid number format"},
		{"negative price", with(cleanCells(1), ColPrice, "-1"), ColPrice, "must not be negative"},
		{"price too large", with(cleanCells(1), ColPrice, "99999999999999999999"), ColPrice, "must be less than 10^12"},
		{"price at the ceiling", with(cleanCells(1), ColPrice, "1,000,000,000,000.00"), ColPrice, "must be less than 10^12"},
		{"price with three decimals", with(cleanCells(1), ColPrice, "3500.125"), ColPrice, "at most 2 decimal places"},
		{"missing acquisition date", with(cleanCells(1), ColAcquiredOn, ""), ColAcquiredOn, "required field is empty"},
		{"invalid acquisition date", with(cleanCells(1), ColAcquiredOn, "01/31/2026"), ColAcquiredOn, "invalid date format"},
		{"acquisition date as bare number", with(cleanCells(1), ColAcquiredOn, "4000"), ColAcquiredOn, "invalid date format"},
		{"unknown location", with(cleanCells(1), ColLocation, "LIM-Z-999"), ColLocation, "location does not exist"},
		{"unknown batch", with(cleanCells(1), ColBatch, "LOT-2020-0009"), ColBatch, "batch does not exist"},
		{"malformed tag", with(cleanCells(1), ColTag, "ABC123"), ColTag, "must be UTP followed by digits"},
		{"tag without digits", with(cleanCells(1), ColTag, "UTP"), ColTag, "must be UTP followed by digits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRowValidator(newFakeLookup(), systemsUser, WarnNever)
			res, err := v.Validate(context.Background(), makeRow(2, tt.cells))
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if res.Outcome.Status() != StatusRejected {
				t.Fatalf("status = %s, want rejected", res.Outcome.Status())
			}
			if !hasMessage(res.Outcome.Errors, tt.field, tt.message) {
				t.Errorf("errors = %v, want %s: %q", res.Outcome.Errors, tt.field, tt.message)
			}
			if res.Staged != nil {
				t.Error("rejected row must not be staged")
			}
		})
	}
}

func TestValidate_TwoDigitYearUsesClock(t *testing.T) {
	clock := func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	v := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).WithClock(clock)

	res, err := v.Validate(context.Background(), makeRow(2, with(cleanCells(1), ColAcquiredOn, "01/03/50")))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := res.Row.Normalized[ColAcquiredOn]; got != "1950-03-01" {
		t.Errorf("fecha_adquisicion = %q, want 1950-03-01", got)
	}
}

func TestValidate_ExistingRecords(t *testing.T) {
	lookup := newFakeLookup()
	lookup.serials["SN0001"] = true
	lookup.tags["UTP000002"] = true

	v := NewRowValidator(lookup, systemsUser, WarnNever)
	results, err := v.ValidateAll(context.Background(), cleanRows(2))
	if err != nil {
		t.Fatal(err)
	}

	if !hasMessage(results[0].Outcome.Errors, ColSerial, "an item with this serial already exists") {
		t.Errorf("row 2 errors = %v", results[0].Outcome.Errors)
	}
	if !hasMessage(results[1].Outcome.Errors, ColTag, "already assigned to another item") {
		t.Errorf("row 3 errors = %v", results[1].Outcome.Errors)
	}
}

func TestValidate_SerialCheckedInFileBeforeStore(t *testing.T) {
	lookup := newFakeLookup()
	lookup.serials["SN0001"] = true
	rows := []ImportRow{
		makeRow(2, cleanCells(1)),
		makeRow(3, with(cleanCells(2), ColSerial, "SN0001")),
	}

	results, err := NewRowValidator(lookup, systemsUser, WarnNever).ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}

	errs := results[1].Outcome.Errors
	if !hasMessage(errs, ColSerial, "duplicated within file") {
		t.Errorf("row 3 errors = %v, want in-file duplicate", errs)
	}
	if hasMessage(errs, ColSerial, "already exists") {
		t.Error("an in-file duplicate should not also report the store collision")
	}
}

func TestValidate_AreaMismatch(t *testing.T) {
	ops := Requester{ID: "u-2", Name: "Luis", Category: "operaciones", MayImport: true}

	res, err := NewRowValidator(newFakeLookup(), ops, WarnNever).Validate(context.Background(), makeRow(2, cleanCells(1)))
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(res.Outcome.Errors, ColCategory, "area mismatch") {
		t.Errorf("errors = %v, want area mismatch", res.Outcome.Errors)
	}
	if !strings.Contains(res.Outcome.Errors[0].Message, "(operaciones)") {
		t.Errorf("message %q should name the requester's area", res.Outcome.Errors[0].Message)
	}

	res, err = NewRowValidator(newFakeLookup(), adminUser, WarnNever).Validate(context.Background(), makeRow(2, cleanCells(1)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Status() != StatusValid {
		t.Errorf("elevated requester: status = %s, errors = %v", res.Outcome.Status(), res.Outcome.Errors)
	}
}

func TestValidate_AreaIsCaseInsensitive(t *testing.T) {
	res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).
		Validate(context.Background(), makeRow(2, with(cleanCells(1), ColCategory, "SISTEMAS")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Status() != StatusValid {
		t.Fatalf("status = %s, errors = %v", res.Outcome.Status(), res.Outcome.Errors)
	}
	if got := res.Row.Normalized[ColCategory]; got != "sistemas" {
		t.Errorf("normalized area = %q, want sistemas", got)
	}
}

// =============================================================================
// Advisories
// =============================================================================

func TestValidate_MissingLocationAndWarranty(t *testing.T) {
	cells := with(cleanCells(1), ColLocation, "", ColWarranty, "")

	res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).Validate(context.Background(), makeRow(2, cells))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Status() != StatusWarned {
		t.Fatalf("status = %s, want warned", res.Outcome.Status())
	}
	if len(res.Outcome.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", res.Outcome.Warnings)
	}
	if !hasMessage(res.Outcome.Warnings, ColLocation, "no location") ||
		!hasMessage(res.Outcome.Warnings, ColWarranty, "no warranty") {
		t.Errorf("warnings = %v", res.Outcome.Warnings)
	}
	if res.Staged == nil || res.Staged.LocationID != "" {
		t.Error("warned row should be staged without a location")
	}
}

func TestValidate_Status(t *testing.T) {
	tests := []struct {
		input    string
		want     string
		warnings int
	}{
		{"", "nuevo", 0},
		{"instalado", "instalado", 0},
		{"DAÑADO", "dañado", 0},
		{"Obsoleto", "obsoleto", 0},
		{"roto", "nuevo", 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).
				Validate(context.Background(), makeRow(2, with(cleanCells(1), ColStatus, tt.input)))
			if err != nil {
				t.Fatal(err)
			}
			if len(res.Outcome.Warnings) != tt.warnings {
				t.Errorf("warnings = %v, want %d", res.Outcome.Warnings, tt.warnings)
			}
			if res.Row.Normalized[ColStatus] != tt.want || res.Staged.Status != tt.want {
				t.Errorf("status = %q/%q, want %q", res.Row.Normalized[ColStatus], res.Staged.Status, tt.want)
			}
		})
	}
}

func TestValidate_InvalidWarrantyIsIgnored(t *testing.T) {
	res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).
		Validate(context.Background(), makeRow(2, with(cleanCells(1), ColWarranty, "algún día")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Status() != StatusWarned || !hasMessage(res.Outcome.Warnings, ColWarranty, "warranty ignored") {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if res.Staged.WarrantyUntil.Valid {
		t.Error("unparseable warranty should not be staged")
	}
}

// =============================================================================
// Tags
// =============================================================================

func TestValidate_TagNormalization(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		pending bool
	}{
		{"lowercase", "utp45", "UTP45", false},
		{"inner whitespace", " utp 296 375 ", "UTP296375", false},
		{"empty", "", TagPending, true},
		{"spanish sentinel", "pendiente", TagPending, true},
		{"english sentinel", "Pending", TagPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := makeRow(2, with(cleanCells(1), ColTag, tt.input))
			before := row.Normalized[ColTag]

			res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).Validate(context.Background(), row)
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Row.Normalized[ColTag]; got != tt.want {
				t.Errorf("normalized tag = %q, want %q", got, tt.want)
			}
			if res.Staged == nil || res.Staged.Tag != tt.want {
				t.Fatalf("staged = %+v, want tag %q", res.Staged, tt.want)
			}
			if got := hasMessage(res.Outcome.Warnings, ColTag, "physical tag pending"); got != tt.pending {
				t.Errorf("pending warning = %v, want %v", got, tt.pending)
			}
			if row.Normalized[ColTag] != before {
				t.Error("Validate must not modify the input row")
			}
		})
	}
}

func TestValidate_PendingTagsMayRepeat(t *testing.T) {
	rows := []ImportRow{
		makeRow(2, with(cleanCells(1), ColTag, "")),
		makeRow(3, with(cleanCells(2), ColTag, "PENDIENTE")),
		makeRow(4, with(cleanCells(3), ColTag, "pending")),
	}

	results, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Outcome.Status() != StatusWarned {
			t.Errorf("row %d: status = %s, errors = %v", res.Row.RowNumber, res.Outcome.Status(), res.Outcome.Errors)
		}
	}
}

func TestValidate_DuplicateTagInFile(t *testing.T) {
	rows := []ImportRow{
		makeRow(2, with(cleanCells(1), ColTag, "UTP100")),
		makeRow(3, with(cleanCells(2), ColTag, "utp100")),
	}

	results, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).ValidateAll(context.Background(), rows)
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(results[1].Outcome.Errors, ColTag, "tag duplicated within file (first used in row 2)") {
		t.Errorf("row 3 errors = %v", results[1].Outcome.Errors)
	}
}

// =============================================================================
// Leasing and extras
// =============================================================================

func TestValidate_Leasing(t *testing.T) {
	cells := with(cleanCells(1),
		ColLeasing, "sí",
		ColLeasingContract, "CTR-2026-009",
		ColLeasingUntil, "31/12/2028",
	)

	res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).Validate(context.Background(), makeRow(2, cells))
	if err != nil {
		t.Fatal(err)
	}
	if !hasMessage(res.Outcome.Warnings, ColLeasingCompany, "without leasing company") {
		t.Errorf("warnings = %v", res.Outcome.Warnings)
	}
	l := res.Staged.Leasing
	if !l.Active || l.Contract != "CTR-2026-009" || FormatDate(l.Until) != "2028-12-31" {
		t.Errorf("leasing = %+v", l)
	}
	if res.Row.Normalized[ColLeasing] != "SI" {
		t.Errorf("normalized leasing = %q, want SI", res.Row.Normalized[ColLeasing])
	}
}

func TestValidate_TechnicalSpecs(t *testing.T) {
	cells := with(cleanCells(1),
		ColBrand, "Dell",
		ColRAMTotal, "16.0",
		ColRAMType, "ddr4",
		ColStorageSize, "quinientos",
		ColStorageType, "nvme",
	)

	res, err := NewRowValidator(newFakeLookup(), systemsUser, WarnNever).Validate(context.Background(), makeRow(2, cells))
	if err != nil {
		t.Fatal(err)
	}
	if res.Staged == nil || res.Staged.Extras == nil {
		t.Fatalf("expected staged extras, got %+v", res.Staged)
	}

	want := map[string]string{
		ColBrand:       "Dell",
		ColRAMTotal:    "16",
		ColRAMType:     "DDR4",
		ColStorageType: "NVMe",
	}
	if !reflect.DeepEqual(res.Staged.Extras.Values, want) {
		t.Errorf("extras = %v, want %v", res.Staged.Extras.Values, want)
	}
	if res.Staged.Extras.Kind != ExtraKindTechnicalSpecs {
		t.Errorf("kind = %q", res.Staged.Extras.Kind)
	}
	if !hasMessage(res.Outcome.Warnings, ColStorageSize, "not a whole number") {
		t.Errorf("warnings = %v", res.Outcome.Warnings)
	}
}

func TestValidate_ExtrasOnlyForSystems(t *testing.T) {
	ops := Requester{ID: "u-2", Category: "operaciones", MayImport: true}
	cells := with(cleanCells(1),
		ColCategory, "operaciones",
		ColItemType, "Proyector",
		ColBrand, "Epson",
	)

	res, err := NewRowValidator(newFakeLookup(), ops, WarnNever).Validate(context.Background(), makeRow(2, cells))
	if err != nil {
		t.Fatal(err)
	}
	if res.Staged == nil {
		t.Fatalf("errors = %v", res.Outcome.Errors)
	}
	if res.Staged.Extras != nil {
		t.Errorf("operaciones row should carry no extras, got %+v", res.Staged.Extras)
	}
}

// =============================================================================
// Warning policy
// =============================================================================

func TestValidate_WarningPolicy(t *testing.T) {
	warnedCells := with(cleanCells(1), ColLocation, "")

	tests := []struct {
		name      string
		policy    WarningPolicy
		requester Requester
		want      RowStatus
	}{
		{"never", WarnNever, adminUser, StatusWarned},
		{"always", WarnAlways, systemsUser, StatusRejected},
		{"elevated escalates for elevated", WarnElevated, adminUser, StatusRejected},
		{"elevated keeps warnings for others", WarnElevated, systemsUser, StatusWarned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewRowValidator(newFakeLookup(), tt.requester, tt.policy).
				Validate(context.Background(), makeRow(2, warnedCells))
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Outcome.Status(); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseWarningPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    WarningPolicy
		wantErr bool
	}{
		{"", WarnNever, false},
		{"never", WarnNever, false},
		{" Always ", WarnAlways, false},
		{"ELEVATED", WarnElevated, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParseWarningPolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWarningPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseWarningPolicy(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRequester_CanImportInto(t *testing.T) {
	tests := []struct {
		name string
		req  Requester
		area string
		want bool
	}{
		{"own area", systemsUser, "sistemas", true},
		{"own area other case", systemsUser, "Sistemas", true},
		{"other area", systemsUser, "laboratorio", false},
		{"elevated", adminUser, "laboratorio", true},
		{"no area", Requester{ID: "u", MayImport: true}, "sistemas", false},
	}
	for _, tt := range tests {
		if got := tt.req.CanImportInto(tt.area); got != tt.want {
			t.Errorf("%s: CanImportInto(%q) = %v, want %v", tt.name, tt.area, got, tt.want)
		}
	}
}
