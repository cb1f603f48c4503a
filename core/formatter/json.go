package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/warpmodel/core/convention"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatList formats a list of records as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, def *convention.Definition, records []map[string]any, opts FormatOptions) error {
	return f.encode(w, listOutput(def, records, opts), opts.Compact)
}

// FormatRecord formats a single record as JSON.
func (f *JSONFormatter) FormatRecord(w io.Writer, def *convention.Definition, rec map[string]any, opts FormatOptions) error {
	return f.encode(w, recordOutput(def, rec, opts), opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]any{"error": err.Error()}, false)
}

func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func listOutput(def *convention.Definition, records []map[string]any, opts FormatOptions) map[string]any {
	columns := Columns(def, opts.Columns)
	data := make([]map[string]any, len(records))
	for i, rec := range records {
		data[i] = plain(rec, columns)
	}
	return map[string]any{
		"className": def.ClassName(),
		"count":     len(data),
		"data":      data,
	}
}

func recordOutput(def *convention.Definition, rec map[string]any, opts FormatOptions) map[string]any {
	out := map[string]any{"className": def.ClassName(), "data": nil}
	if rec != nil {
		out["data"] = plain(rec, Columns(def, opts.Columns))
	}
	return out
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
