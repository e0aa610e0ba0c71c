package dataimport

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/buildflow/buildflow/modules/construction/domain/entities/budget"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/project"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/resource"
	"github.com/buildflow/buildflow/modules/construction/domain/entities/task"
	"github.com/buildflow/buildflow/modules/construction/domain/enums"
)

// Header aliases per field. The first alias is the canonical column name.
var (
	colName           = []string{"name"}
	colProjectName    = []string{"name", "project_name"}
	colTaskName       = []string{"name", "task_name"}
	colResourceName   = []string{"name", "resource_name"}
	colCategory       = []string{"category"}
	colDescription    = []string{"description"}
	colStatus         = []string{"status"}
	colPriority       = []string{"priority"}
	colStartDate      = []string{"start_date"}
	colPlannedEnd     = []string{"end_date", "planned_end_date"}
	colActualEnd      = []string{"actual_end_date"}
	colTotalBudget    = []string{"total_budget", "budget"}
	colSpentAmount    = []string{"spent_amount", "spent"}
	colLocation       = []string{"location"}
	colProgress       = []string{"progress", "progress_percentage"}
	colAssignedTo     = []string{"assigned_to"}
	colDependsOn      = []string{"depends_on_task_id", "depends_on"}
	colResourceType   = []string{"resource_type", "type"}
	colQuantity       = []string{"quantity"}
	colUnit           = []string{"unit"}
	colUnitCost       = []string{"unit_cost"}
	colSupplier       = []string{"supplier"}
	colPlannedAmount  = []string{"planned_amount"}
	colActualAmount   = []string{"actual_amount"}
	colBudgetDate     = []string{"budget_date"}
	colProjectID      = []string{"project_id"}
	colProjectRefName = []string{"project_name", "project"}
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1-2-06",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// Excel serial day numbers for 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var (
	numberNoise = regexp.MustCompile(`[\s$€£¥₹]`)
	// 1,234 and 1,234,567.89: commas group exactly three digits.
	thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)
	// 12,5 and 0,75: a single comma used as the decimal separator.
	decimalComma = regexp.MustCompile(`^[+-]?\d+,\d+$`)
)

// fieldCoercer turns raw cells of one row into typed values. It never
// fails; unusable input yields a safe default and a diagnostic.
type fieldCoercer struct {
	row   Row
	diags []Diagnostic
}

func newFieldCoercer(row Row) *fieldCoercer {
	return &fieldCoercer{row: row}
}

func (c *fieldCoercer) note(level Level, field, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{
		Row:    c.row.Number,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
		Level:  level,
	})
}

func (c *fieldCoercer) String(aliases ...string) string {
	return c.row.Value(aliases...)
}

// Date returns nil when the cell is absent, blank or unparseable.
func (c *fieldCoercer) Date(aliases ...string) *time.Time {
	raw, field, present := c.row.Lookup(aliases...)
	if raw == "" {
		if present {
			c.note(LevelDebug, field, "blank date")
		}
		return nil
	}
	if t, ok := ParseDate(raw); ok {
		return &t
	}
	c.note(LevelWarning, field, "invalid date %q, left empty", raw)
	return nil
}

// ParseDate accepts the common spreadsheet date renderings and Excel
// serial day numbers. Results are in UTC.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseNumber strips currency symbols, thousands separators and a
// trailing percent sign before parsing. A comma that does not group
// thousands is read as a decimal separator; any other comma usage is
// rejected.
func ParseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "%")
	raw = numberNoise.ReplaceAllString(raw, "")
	if raw == "" {
		return 0, false
	}
	if strings.Contains(raw, ",") {
		switch {
		case thousandsGrouped.MatchString(raw):
			raw = strings.ReplaceAll(raw, ",", "")
		case decimalComma.MatchString(raw):
			raw = strings.Replace(raw, ",", ".", 1)
		default:
			return 0, false
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (c *fieldCoercer) Float(aliases ...string) float64 {
	raw, field, _ := c.row.Lookup(aliases...)
	if raw == "" {
		return 0
	}
	v, ok := ParseNumber(raw)
	if !ok {
		c.note(LevelWarning, field, "invalid number %q, using 0", raw)
		return 0
	}
	return v
}

// Amount is Float clamped to zero or above.
func (c *fieldCoercer) Amount(aliases ...string) float64 {
	v := c.Float(aliases...)
	if v < 0 {
		_, field, _ := c.row.Lookup(aliases...)
		c.note(LevelWarning, field, "negative value %v clamped to 0", v)
		return 0
	}
	return v
}

func (c *fieldCoercer) Progress(aliases ...string) float64 {
	v := c.Float(aliases...)
	clamped := task.ClampProgress(v)
	if clamped != v {
		_, field, _ := c.row.Lookup(aliases...)
		c.note(LevelWarning, field, "progress %v clamped to %v", v, clamped)
	}
	return clamped
}

// OptionalID parses a positive integer id; anything else is nil.
func (c *fieldCoercer) OptionalID(aliases ...string) *uint {
	raw, field, _ := c.row.Lookup(aliases...)
	if raw == "" {
		return nil
	}
	id, ok := parseID(raw)
	if !ok {
		c.note(LevelWarning, field, "invalid id %q, ignored", raw)
		return nil
	}
	return &id
}

func parseID(raw string) (uint, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n > 0 {
		return uint(n), true
	}
	// Spreadsheet cells often render integers as 12.0.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 && f == math.Trunc(f) && f <= math.MaxUint32 {
		return uint(f), true
	}
	return 0, false
}

func coerceEnum[T ~string](c *fieldCoercer, parse func(string) (T, bool), def T, aliases ...string) T {
	raw, field, _ := c.row.Lookup(aliases...)
	if raw == "" {
		return def
	}
	if v, ok := parse(raw); ok {
		return v
	}
	c.note(LevelWarning, field, "unrecognized value %q, using %q", raw, string(def))
	return def
}

// CoerceProject builds a project from a row. The name is taken as is;
// callers check it before persisting.
func CoerceProject(row Row) (*project.Project, []Diagnostic) {
	c := newFieldCoercer(row)
	p := &project.Project{
		Name:           c.String(colProjectName...),
		Description:    c.String(colDescription...),
		Status:         coerceEnum(c, enums.ParseProjectStatus, enums.CoerceProjectStatus(""), colStatus...),
		StartDate:      c.Date(colStartDate...),
		PlannedEndDate: c.Date(colPlannedEnd...),
		ActualEndDate:  c.Date(colActualEnd...),
		TotalBudget:    c.Amount(colTotalBudget...),
		SpentAmount:    c.Amount(colSpentAmount...),
		Location:       c.String(colLocation...),
	}
	return p, c.diags
}

// CoerceTask builds a task without its owning project.
func CoerceTask(row Row) (*task.Task, []Diagnostic) {
	c := newFieldCoercer(row)
	t := &task.Task{
		Name:               c.String(colTaskName...),
		Description:        c.String(colDescription...),
		Status:             coerceEnum(c, enums.ParseTaskStatus, enums.CoerceTaskStatus(""), colStatus...),
		Priority:           coerceEnum(c, enums.ParseTaskPriority, enums.CoerceTaskPriority(""), colPriority...),
		StartDate:          c.Date(colStartDate...),
		PlannedEndDate:     c.Date(colPlannedEnd...),
		ActualEndDate:      c.Date(colActualEnd...),
		ProgressPercentage: c.Progress(colProgress...),
		AssignedTo:         c.String(colAssignedTo...),
		DependsOnTaskID:    c.OptionalID(colDependsOn...),
	}
	return t, c.diags
}

// CoerceResource builds a resource without its owning project. Total
// cost is derived from quantity and unit cost.
func CoerceResource(row Row) (*resource.Resource, []Diagnostic) {
	c := newFieldCoercer(row)
	unit := c.String(colUnit...)
	if unit == "" {
		unit = resource.DefaultUnit
	}
	r := &resource.Resource{
		Name:         c.String(colResourceName...),
		ResourceType: coerceEnum(c, enums.ParseResourceType, enums.CoerceResourceType(""), colResourceType...),
		Status:       coerceEnum(c, enums.ParseResourceStatus, enums.CoerceResourceStatus(""), colStatus...),
		Quantity:     c.Amount(colQuantity...),
		Unit:         unit,
		UnitCost:     c.Amount(colUnitCost...),
		Supplier:     c.String(colSupplier...),
	}
	r.RecalculateTotalCost()
	return r, c.diags
}

// CoerceBudget builds a budget line without its owning project. A
// missing budget date falls back to now.
func CoerceBudget(row Row, now time.Time) (*budget.Budget, []Diagnostic) {
	c := newFieldCoercer(row)
	b := &budget.Budget{
		Category:      c.String(colCategory...),
		Description:   c.String(colDescription...),
		PlannedAmount: c.Amount(colPlannedAmount...),
		ActualAmount:  c.Amount(colActualAmount...),
		BudgetDate:    now,
	}
	if d := c.Date(colBudgetDate...); d != nil {
		b.BudgetDate = *d
	}
	return b, c.diags
}
