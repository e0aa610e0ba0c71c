package dataimport

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Level string

// Debug diagnostics are logged but not returned to the caller.
const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Diagnostic describes one row-level event. Row is the 1-based data row
// number within its sheet (the header row is not counted).
type Diagnostic struct {
	Sheet  string `json:"sheet,omitempty"`
	Kind   Kind   `json:"kind,omitempty"`
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
	Level  Level  `json:"level"`
}

// Counts maps record kind to the number of persisted rows. All four
// kinds are always present.
type Counts map[Kind]int

func newCounts() Counts {
	return Counts{KindProject: 0, KindTask: 0, KindResource: 0, KindBudget: 0}
}

func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

type Result struct {
	RunID       uuid.UUID    `json:"run_id"`
	Counts      Counts       `json:"counts"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	DryRun      bool         `json:"dry_run,omitempty"`
}

// Skipped is the number of rows that produced an error diagnostic.
func (r *Result) Skipped() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Level == LevelError {
			n++
		}
	}
	return n
}

// report collects diagnostics for one import call and mirrors each of
// them to the logger.
type report struct {
	log   *logrus.Entry
	diags []Diagnostic
}

func newReport(log *logrus.Entry) *report {
	return &report{log: log, diags: []Diagnostic{}}
}

func (r *report) add(d Diagnostic) {
	if d.Level != LevelDebug {
		r.diags = append(r.diags, d)
	}
	entry := r.log.WithFields(logrus.Fields{
		"sheet": d.Sheet,
		"kind":  d.Kind,
		"row":   d.Row,
		"field": d.Field,
	})
	switch d.Level {
	case LevelError:
		entry.Warn("row skipped: " + d.Reason)
	case LevelWarning, LevelInfo:
		entry.Info(d.Reason)
	default:
		entry.Debug(d.Reason)
	}
}

// scoped stamps sheet and kind onto diagnostics produced for one sheet.
func (r *report) scoped(sheet string, kind Kind) func(Diagnostic) {
	return func(d Diagnostic) {
		d.Sheet = sheet
		d.Kind = kind
		r.add(d)
	}
}
