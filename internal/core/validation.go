package core

// validation.go applies the business rule set to spreadsheet rows.
//
// Rules run in a fixed order so messages are deterministic:
//  1. Blocking checks: serial, name, area, item type, price, acquisition
//     date, location and batch references
//  2. Advisory checks: missing location or warranty, unknown status,
//     unparseable warranty, pending tag
//  3. Tag format and uniqueness
//  4. Leasing terms and the category's extra attribute schema
//
// A RowValidator carries a SeenKeySet so later rows in the same file see
// serials and tags used by earlier ones. The validator only reads from the
// store; it never writes.

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ValidationError represents a single validation message for a field.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Lookup answers existence and resolution questions against persisted data.
// Find* methods return nil, nil when nothing matches.
type Lookup interface {
	SerialExists(ctx context.Context, serial string) (bool, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	FindItemType(ctx context.Context, category, name string) (*ItemType, error)
	FindLocation(ctx context.Context, code string) (*Location, error)
	FindBatch(ctx context.Context, code string) (*Batch, error)
}

// TagPending is the canonical sentinel for an item without a physical tag.
const TagPending = "PENDING"

// tagSentinels are the spellings accepted as "no tag yet" (compared uppercased).
var tagSentinels = []string{TagPending, "PENDIENTE"}

var tagPattern = regexp.MustCompile(`^UTP\d+$`)

// Item statuses accepted in the estado column.
var ItemStatuses = []string{"nuevo", "instalado", "dañado", "obsoleto"}

// DefaultItemStatus replaces absent or unknown statuses.
const DefaultItemStatus = "nuevo"

// WarningPolicy decides when warnings are escalated to errors.
type WarningPolicy string

const (
	WarnNever    WarningPolicy = "never"
	WarnElevated WarningPolicy = "elevated"
	WarnAlways   WarningPolicy = "always"
)

// ParseWarningPolicy validates a policy name. Empty means WarnNever.
func ParseWarningPolicy(s string) (WarningPolicy, error) {
	switch p := WarningPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return WarnNever, nil
	case WarnNever, WarnElevated, WarnAlways:
		return p, nil
	default:
		return "", fmt.Errorf("unknown warning policy %q (use never, elevated or always)", s)
	}
}

// RowValidator validates rows for one requester within one file.
type RowValidator struct {
	lookup    Lookup
	requester Requester
	policy    WarningPolicy
	seen      *SeenKeySet
	now       func() time.Time
}

// NewRowValidator creates a validator with an empty SeenKeySet.
func NewRowValidator(lookup Lookup, requester Requester, policy WarningPolicy) *RowValidator {
	if policy == "" {
		policy = WarnNever
	}
	return &RowValidator{
		lookup:    lookup,
		requester: requester,
		policy:    policy,
		seen:      NewSeenKeySet(),
		now:       time.Now,
	}
}

// WithClock replaces time.Now as the reference for 2-digit year pivots.
func (v *RowValidator) WithClock(now func() time.Time) *RowValidator {
	v.now = now
	return v
}

// Reset forgets every key seen so far.
func (v *RowValidator) Reset() {
	v.seen = NewSeenKeySet()
}

// ValidateAll validates rows in order with a fresh SeenKeySet, so calling it
// twice over unchanged data yields identical results.
func (v *RowValidator) ValidateAll(ctx context.Context, rows []ImportRow) ([]RowResult, error) {
	v.Reset()
	results := make([]RowResult, 0, len(rows))
	for i, row := range rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res, err := v.Validate(ctx, row)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// rowCheck accumulates messages and resolved values for one row.
type rowCheck struct {
	row      ImportRow
	outcome  ValidationOutcome
	norm     map[string]string
	category Category
	catOK    bool
	itemType *ItemType
	location *Location
	batch    *Batch
	price    pgtype.Numeric
	acquired pgtype.Date
	warranty pgtype.Date
	tag      string
	status   string
	leasing  Leasing
	extras   *ExtraAttributes
	now      time.Time
}

func (c *rowCheck) fail(field, value, msg string) {
	c.outcome.Errors = append(c.outcome.Errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (c *rowCheck) warn(field, value, msg string) {
	c.outcome.Warnings = append(c.outcome.Warnings, ValidationError{Field: field, Value: value, Message: msg})
}

// Validate applies the rule set to one row. The returned error is reserved
// for lookup failures; rule violations are reported in the outcome. The
// row's serial and non-sentinel tag are recorded in the SeenKeySet
// whatever the outcome.
func (v *RowValidator) Validate(ctx context.Context, row ImportRow) (RowResult, error) {
	c := &rowCheck{row: row, norm: make(map[string]string, len(row.Normalized)+2), now: v.now()}
	for k, val := range row.Normalized {
		c.norm[k] = val
	}

	serial := row.Value(ColSerial)
	if err := v.checkSerial(ctx, c, serial); err != nil {
		return RowResult{}, err
	}

	if row.Value(ColName) == "" {
		c.fail(ColName, "", "required field is empty")
	}

	v.checkCategory(c)

	if err := v.checkItemType(ctx, c); err != nil {
		return RowResult{}, err
	}

	checkPrice(c)
	checkAcquiredOn(c)

	if err := v.checkReferences(ctx, c); err != nil {
		return RowResult{}, err
	}

	checkAdvisories(c)

	if err := v.checkTag(ctx, c); err != nil {
		return RowResult{}, err
	}

	checkLeasing(c)

	if c.catOK && c.category.Extras != nil {
		extras, warnings := c.category.Extras.Stage(row)
		c.outcome.Warnings = append(c.outcome.Warnings, warnings...)
		c.extras = extras
	}

	v.applyPolicy(&c.outcome)

	if serial != "" {
		v.seen.Add(KeySerial, serial, row.RowNumber)
	}
	if c.tag != "" && c.tag != TagPending {
		v.seen.Add(KeyTag, c.tag, row.RowNumber)
	}

	result := RowResult{
		Row:     ImportRow{RowNumber: row.RowNumber, Raw: row.Raw, Normalized: c.norm},
		Outcome: c.outcome,
	}
	if len(c.outcome.Errors) == 0 {
		result.Staged = c.stage()
	}
	return result, nil
}

func (v *RowValidator) checkSerial(ctx context.Context, c *rowCheck, serial string) error {
	if serial == "" {
		c.fail(ColSerial, "", "required field is empty")
		return nil
	}
	if first, ok := v.seen.FirstRow(KeySerial, serial); ok {
		c.fail(ColSerial, serial, fmt.Sprintf("duplicated within file (first used in row %d)", first))
		return nil
	}
	exists, err := v.lookup.SerialExists(ctx, serial)
	if err != nil {
		return fmt.Errorf("check serial %q: %w", serial, err)
	}
	if exists {
		c.fail(ColSerial, serial, "an item with this serial already exists")
	}
	return nil
}

func (v *RowValidator) checkCategory(c *rowCheck) {
	raw := c.row.Value(ColCategory)
	cat, ok := LookupCategory(raw)
	if !ok {
		msg := fmt.Sprintf("must be one of: %s", strings.Join(CategoryCodes(), ", "))
		if raw == "" {
			msg = "required field is empty"
		}
		c.fail(ColCategory, raw, msg)
		return
	}
	c.category, c.catOK = cat, true
	c.norm[ColCategory] = cat.Code

	if !v.requester.CanImportInto(cat.Code) {
		assigned := v.requester.Category
		if assigned == "" {
			assigned = "none"
		}
		c.fail(ColCategory, raw, fmt.Sprintf("area mismatch: you may only import items for your area (%s)", assigned))
	}
}

func (v *RowValidator) checkItemType(ctx context.Context, c *rowCheck) error {
	name := c.row.Value(ColItemType)
	if name == "" {
		c.fail(ColItemType, "", "required field is empty")
		return nil
	}
	if !c.catOK {
		return nil
	}
	it, err := v.lookup.FindItemType(ctx, c.category.Code, name)
	if err != nil {
		return fmt.Errorf("find item type %q: %w", name, err)
	}
	if it == nil {
		c.fail(ColItemType, name, fmt.Sprintf("item type is not registered for area %s", c.category.Code))
		return nil
	}
	c.itemType = it
	return nil
}

// Prices are stored as NUMERIC(14, 2).
const (
	PriceIntegerDigits = 12
	PriceScale         = 2
)

func checkPrice(c *rowCheck) {
	raw := c.row.Value(ColPrice)
	if raw == "" {
		c.fail(ColPrice, "", "required field is empty")
		return
	}
	n := ToPgNumeric(raw)
	switch {
	case !n.Valid:
		c.fail(ColPrice, raw, "invalid number format")
	case IsNegative(n):
		c.fail(ColPrice, raw, "must not be negative")
	case NumericIntegerDigitsExceed(n, PriceIntegerDigits):
		c.fail(ColPrice, raw, fmt.Sprintf("must be less than 10^%d", PriceIntegerDigits))
	case NumericScale(n) > PriceScale:
		c.fail(ColPrice, raw, fmt.Sprintf("must have at most %d decimal places", PriceScale))
	default:
		c.price = n
		c.norm[ColPrice] = FormatNumeric(n)
	}
}

func checkAcquiredOn(c *rowCheck) {
	raw := c.row.Value(ColAcquiredOn)
	if raw == "" {
		c.fail(ColAcquiredOn, "", "required field is empty")
		return
	}
	d := ToPgDateAt(raw, c.now)
	if !d.Valid {
		c.fail(ColAcquiredOn, raw, "invalid date format (use YYYY-MM-DD or DD/MM/YYYY)")
		return
	}
	c.acquired = d
	c.norm[ColAcquiredOn] = FormatDate(d)
}

func (v *RowValidator) checkReferences(ctx context.Context, c *rowCheck) error {
	if code := c.row.Value(ColLocation); code != "" {
		loc, err := v.lookup.FindLocation(ctx, code)
		if err != nil {
			return fmt.Errorf("find location %q: %w", code, err)
		}
		if loc == nil {
			c.fail(ColLocation, code, "location does not exist or is inactive")
		}
		c.location = loc
	}

	if code := c.row.Value(ColBatch); code != "" {
		b, err := v.lookup.FindBatch(ctx, code)
		if err != nil {
			return fmt.Errorf("find batch %q: %w", code, err)
		}
		if b == nil {
			c.fail(ColBatch, code, "batch does not exist or is inactive")
		}
		c.batch = b
	}
	return nil
}

func checkAdvisories(c *rowCheck) {
	if c.row.Value(ColLocation) == "" {
		c.warn(ColLocation, "", "no location assigned")
	}

	warranty := c.row.Value(ColWarranty)
	if warranty == "" {
		c.warn(ColWarranty, "", "no warranty expiry date")
	}

	c.status = DefaultItemStatus
	if raw := c.row.Value(ColStatus); raw != "" {
		if canon, ok := matchFold(raw, ItemStatuses); ok {
			c.status = canon
		} else {
			c.warn(ColStatus, raw, fmt.Sprintf("unknown status, using %q (allowed: %s)",
				DefaultItemStatus, strings.Join(ItemStatuses, ", ")))
		}
	}
	c.norm[ColStatus] = c.status

	if warranty != "" {
		d := ToPgDateAt(warranty, c.now)
		if !d.Valid {
			c.warn(ColWarranty, warranty, "invalid date format, warranty ignored")
		} else {
			c.warranty = d
			c.norm[ColWarranty] = FormatDate(d)
		}
	}
}

// isTagSentinel reports whether an uppercased tag means "no tag yet".
func isTagSentinel(tag string) bool {
	for _, s := range tagSentinels {
		if tag == s {
			return true
		}
	}
	return false
}

func (v *RowValidator) checkTag(ctx context.Context, c *rowCheck) error {
	raw := c.row.Value(ColTag)
	tag := strings.ToUpper(strings.Join(strings.Fields(raw), ""))

	if tag == "" || isTagSentinel(tag) {
		c.tag = TagPending
		c.norm[ColTag] = TagPending
		c.warn(ColTag, raw, "physical tag pending")
		return nil
	}

	c.norm[ColTag] = tag
	if !tagPattern.MatchString(tag) {
		c.fail(ColTag, raw, "must be UTP followed by digits (e.g. UTP296375)")
		return nil
	}
	c.tag = tag

	if first, ok := v.seen.FirstRow(KeyTag, tag); ok {
		c.fail(ColTag, tag, fmt.Sprintf("tag duplicated within file (first used in row %d)", first))
		return nil
	}
	exists, err := v.lookup.TagExists(ctx, tag)
	if err != nil {
		return fmt.Errorf("check tag %q: %w", tag, err)
	}
	if exists {
		c.fail(ColTag, tag, "tag is already assigned to another item")
	}
	return nil
}

func checkLeasing(c *rowCheck) {
	raw := c.row.Value(ColLeasing)
	if raw == "" {
		return
	}
	b := ToPgBool(raw)
	if !b.Valid {
		c.warn(ColLeasing, raw, "must be SI or NO, treated as NO")
		c.norm[ColLeasing] = "NO"
		return
	}
	if !b.Bool {
		c.norm[ColLeasing] = "NO"
		return
	}
	c.norm[ColLeasing] = "SI"

	c.leasing = Leasing{
		Active:   true,
		Company:  c.row.Value(ColLeasingCompany),
		Contract: c.row.Value(ColLeasingContract),
	}
	if c.leasing.Company == "" {
		c.warn(ColLeasingCompany, "", "leasing item without leasing company")
	}
	if until := c.row.Value(ColLeasingUntil); until != "" {
		d := ToPgDateAt(until, c.now)
		if !d.Valid {
			c.warn(ColLeasingUntil, until, "invalid date format, leasing end date ignored")
		} else {
			c.leasing.Until = d
			c.norm[ColLeasingUntil] = FormatDate(d)
		}
	}
}

// applyPolicy escalates warnings to errors when the policy says so.
func (v *RowValidator) applyPolicy(o *ValidationOutcome) {
	escalate := v.policy == WarnAlways || (v.policy == WarnElevated && v.requester.Elevated)
	if !escalate || len(o.Warnings) == 0 {
		return
	}
	o.Errors = append(o.Errors, o.Warnings...)
	o.Warnings = nil
}

func (c *rowCheck) stage() *StagedItem {
	item := &StagedItem{
		RowNumber:     c.row.RowNumber,
		Serial:        c.row.Value(ColSerial),
		Tag:           c.tag,
		Name:          c.row.Value(ColName),
		Description:   c.row.Value(ColDescription),
		Category:      c.category.Code,
		Status:        c.status,
		Notes:         c.row.Value(ColNotes),
		AcquiredOn:    c.acquired,
		Price:         c.price,
		WarrantyUntil: c.warranty,
		Leasing:       c.leasing,
		Extras:        c.extras,
	}
	if c.itemType != nil {
		item.ItemTypeID = c.itemType.ID
	}
	if c.location != nil {
		item.LocationID = c.location.ID
	}
	if c.batch != nil {
		item.BatchID = c.batch.ID
	}
	return item
}
