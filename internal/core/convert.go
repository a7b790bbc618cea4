package core

// convert.go turns spreadsheet cell text into typed values.
//
// Cells arrive in whatever shape the person filling the template produced:
//   - Day-first dates (DD/MM/YYYY) as well as ISO dates
//   - Prices with currency symbols and thousands separators
//   - Spanish and English yes/no spellings
//   - Excel formula prefixes (="value")
//
// All ToPg* functions return pgtype values with Valid=false for empty/invalid input.

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/xuri/excelize/v2"
)

// HeaderIndex maps column names (lowercase) to their position in the row.
type HeaderIndex map[string]int

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Excel serial dates accepted by ExcelSerialDate, roughly 1910 through 2199.
// Small integers are rejected so a bare year is not read as a serial.
const (
	minExcelSerial = 3654
	maxExcelSerial = 109575
)

// Date layouts are day-first, matching how the template is filled in.
var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "02-01-06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006",
		"2006/01/02", "2.1.2006", "02.01.2006",
		"2006-01-02 15:04:05", time.RFC3339,
	}
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date, pivoting 2-digit years on the
// current year. See ToPgDateAt.
func ToPgDate(s string) pgtype.Date {
	return ToPgDateAt(s, time.Now())
}

// ToPgDateAt converts a string to pgtype.Date.
// Supports day-first and ISO layouts and 2-digit years, which are pivoted
// on now's year. Bare numbers are never dates here; serials from typed
// spreadsheet cells are resolved by ExcelSerialDate before validation.
func ToPgDateAt(s string, now time.Time) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: truncateDay(t), Valid: true}
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ExcelSerialDate converts the raw value of a numeric date cell to
// YYYY-MM-DD. ok is false for non-numbers and serials outside 1910-2199.
func ExcelSerialDate(raw string) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return truncateDay(t).Format("2006-01-02"), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a valid date as YYYY-MM-DD, or "" when invalid.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range []string{"S/.", "S/", "US$", "USD", "PEN", "$", "€"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}

	return n
}

// IsNegative reports whether a valid numeric is below zero.
func IsNegative(n pgtype.Numeric) bool {
	return n.Valid && n.Int != nil && n.Int.Sign() < 0
}

// NumericScale returns the number of significant decimal places of n,
// ignoring trailing zeros: 3500.50 has scale 1.
func NumericScale(n pgtype.Numeric) int {
	if !n.Valid || n.Int == nil || n.Exp >= 0 {
		return 0
	}
	ten := big.NewInt(10)
	v := new(big.Int).Set(n.Int)
	q, r := new(big.Int), new(big.Int)
	scale := int(-n.Exp)
	for scale > 0 {
		q.QuoRem(v, ten, r)
		if r.Sign() != 0 {
			break
		}
		v, q = q, v
		scale--
	}
	return scale
}

// NumericIntegerDigitsExceed reports whether |n| >= 10^digits, i.e. whether
// its integer part needs more than digits digits.
func NumericIntegerDigitsExceed(n pgtype.Numeric, digits int) bool {
	if !n.Valid || n.Int == nil || n.Int.Sign() == 0 {
		return false
	}
	// |Int| * 10^Exp >= 10^digits  <=>  |Int| >= 10^(digits-Exp)
	exp := int64(digits) - int64(n.Exp)
	if exp <= 0 {
		return true
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
	return new(big.Int).Abs(n.Int).Cmp(limit) >= 0
}

// FormatNumeric renders a valid numeric in plain decimal notation, or "" when invalid.
func FormatNumeric(n pgtype.Numeric) string {
	if !n.Valid {
		return ""
	}
	b, err := n.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(b)
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts Spanish and English spellings: si/sí/s, yes/y, true/t, 1 and their negatives.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "si", "sí", "s", "yes", "y", "true", "t", "1", "x":
		return pgtype.Bool{Bool: true, Valid: true}
	case "no", "n", "false", "f", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching. The first occurrence
// of a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace, including non-breaking spaces
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", " "))

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
