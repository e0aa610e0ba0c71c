package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/buildflow/buildflow/modules/construction/services/dataimport"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDBWrite, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

var diagnosticsHeader = []string{"sheet", "kind", "row", "field", "level", "reason"}

// writeDiagnosticsCSV writes one CSV line per diagnostic so a spreadsheet
// user can fix the source file row by row.
func writeDiagnosticsCSV(path string, diags []dataimport.Diagnostic) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return withCode(exitUsage, fmt.Errorf("mkdir %s: %w", dir, err))
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("create %s: %w", path, err))
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(diagnosticsHeader); err != nil {
		return withCode(exitDBWrite, err)
	}
	for _, d := range diags {
		record := []string{d.Sheet, string(d.Kind), strconv.Itoa(d.Row), d.Field, string(d.Level), d.Reason}
		if err := w.Write(record); err != nil {
			return withCode(exitDBWrite, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return withCode(exitDBWrite, fmt.Errorf("write %s: %w", path, err))
	}
	return f.Close()
}
