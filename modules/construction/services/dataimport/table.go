package dataimport

import (
	"strings"
)

const utf8BOM = "\ufeff"

// Sheet is one table of rows keyed by normalized header.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []Row
}

// Row is one data row. Cells holds the raw text under each normalized
// header; a header absent from the sheet is absent from Cells.
type Row struct {
	Number int
	Cells  map[string]string
}

// NormalizeHeader trims, lowercases and strips a leading byte order mark.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, utf8BOM)
	return strings.ToLower(strings.TrimSpace(h))
}

// NewSheet builds a Sheet from raw records whose first record is the
// header. Duplicate headers keep the first column. Short rows are padded
// as absent cells.
func NewSheet(name string, records [][]string) *Sheet {
	s := &Sheet{Name: name}
	if len(records) == 0 {
		return s
	}
	index := make(map[string]int, len(records[0]))
	for i, raw := range records[0] {
		h := NormalizeHeader(raw)
		if h == "" {
			continue
		}
		if _, dup := index[h]; dup {
			continue
		}
		index[h] = i
		s.Headers = append(s.Headers, h)
	}
	for n, rec := range records[1:] {
		row := Row{Number: n + 1, Cells: make(map[string]string, len(index))}
		for h, i := range index {
			if i < len(rec) {
				row.Cells[h] = rec[i]
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// HasHeader reports whether any of names is a header of s.
func (s *Sheet) HasHeader(names ...string) bool {
	for _, h := range s.Headers {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}

// Lookup returns the trimmed value of the first alias present with a
// non-blank value. present is true when any alias column exists in the
// row even if blank.
func (r Row) Lookup(aliases ...string) (value string, field string, present bool) {
	for _, a := range aliases {
		raw, ok := r.Cells[a]
		if !ok {
			continue
		}
		if !present {
			field = a
		}
		present = true
		if v := strings.TrimSpace(raw); v != "" {
			return v, a, true
		}
	}
	return "", field, present
}

// Value returns the trimmed value of the first non-blank alias.
func (r Row) Value(aliases ...string) string {
	v, _, _ := r.Lookup(aliases...)
	return v
}

// Blank reports whether every cell is empty after trimming.
func (r Row) Blank() bool {
	for _, v := range r.Cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
