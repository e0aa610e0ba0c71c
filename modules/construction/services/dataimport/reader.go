package dataimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnparseable  = errors.New("payload is not a parseable delimited table")
	ErrOpenWorkbook = errors.New("cannot open workbook")
)

type Format string

const (
	FormatUnknown  Format = ""
	FormatWorkbook Format = "workbook"
	FormatFlat     Format = "flat"
)

// Delimiters tried in order when sniffing flat files.
var flatDelimiters = []rune{',', ';', '\t'}

// DetectFormat decides between workbook and flat-file handling from the
// file extension, falling back to content sniffing.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return FormatWorkbook
	case ".csv", ".tsv", ".txt":
		return FormatFlat
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"),
			m.Is("application/zip"):
			return FormatWorkbook
		case m.Is("text/csv"), m.Is("text/tab-separated-values"), m.Is("text/plain"):
			return FormatFlat
		}
	}
	return FormatUnknown
}

// ReadFlatFile parses a delimited text payload, sniffing the delimiter.
// The first delimiter that yields more than one header column wins.
func ReadFlatFile(name string, data []byte) (*Sheet, error) {
	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnparseable)
	}
	for _, delim := range flatDelimiters {
		r := csv.NewReader(bytes.NewReader(data))
		r.Comma = delim
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		records, err := r.ReadAll()
		if err != nil || len(records) == 0 {
			continue
		}
		if headerColumns(records[0]) < 2 {
			continue
		}
		if !validHeader(records[0]) {
			return nil, fmt.Errorf("%w: header is not valid UTF-8 text", ErrUnparseable)
		}
		return NewSheet(name, records), nil
	}
	return nil, fmt.Errorf("%w: no delimiter among comma, semicolon and tab yields more than one column", ErrUnparseable)
}

func headerColumns(header []string) int {
	n := 0
	for _, h := range header {
		if NormalizeHeader(h) != "" {
			n++
		}
	}
	return n
}

func validHeader(header []string) bool {
	for _, h := range header {
		if !utf8.ValidString(h) {
			return false
		}
	}
	return true
}

// ReadWorkbook reads every sheet of an xlsx payload as formatted cell text.
func ReadWorkbook(data []byte) ([]*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	var sheets []*Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrOpenWorkbook, name, err)
		}
		sheets = append(sheets, NewSheet(name, rows))
	}
	return sheets, nil
}
