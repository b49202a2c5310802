// Package output renders raw API payloads for the terminal. Commands hand it
// unmodified JSON; it handles format selection (json, yaml, table), optional
// jq-style filtering, and color.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format selects the rendering of a payload.
type Format string

// Supported formats. Auto picks table on a terminal and json otherwise.
const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
	FormatAuto  Format = "auto"
)

// ParseFormat validates a -o flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatYAML, FormatTable, FormatAuto:
		return Format(s), nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml, table, or auto)", s)
	}
}

// resolveAuto picks the concrete format for a writer: table for humans at a
// terminal, json for pipes and files.
func resolveAuto(w io.Writer) Format {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

// Printer renders payloads to a writer in one configured format.
type Printer struct {
	w      io.Writer
	format Format
	// query is an optional gojq filter applied before rendering.
	query string
}

// NewPrinter creates a Printer. An empty query disables filtering.
func NewPrinter(w io.Writer, format Format, query string) *Printer {
	if format == FormatAuto {
		format = resolveAuto(w)
	}
	return &Printer{w: w, format: format, query: query}
}

// Print renders one raw JSON payload. The payload is decoded into generic
// values first so filtering and YAML re-encoding see real structure, not a
// string.
func (p *Printer) Print(raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	if p.query != "" {
		results, err := applyQuery(p.query, value)
		if err != nil {
			return err
		}
		for _, r := range results {
			if err := p.render(r); err != nil {
				return err
			}
		}
		return nil
	}
	return p.render(value)
}

// PrintValue renders an already-decoded value (used for locally built
// documents like profile listings).
func (p *Printer) PrintValue(value any) error {
	// Round-trip through JSON so struct tags and json.RawMessage fields
	// render the same as API payloads.
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	return p.Print(raw)
}

func (p *Printer) render(value any) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return renderTable(p.w, value)
	default:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
}

// renderTable prints maps as aligned key/value rows and arrays of maps as a
// row per element. Anything else falls back to its JSON form.
func renderTable(w io.Writer, value any) error {
	keyColor := color.New(color.FgCyan, color.Bold)

	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		width := 0
		for _, k := range keys {
			if len(k) > width {
				width = len(k)
			}
		}
		for _, k := range keys {
			keyColor.Fprintf(w, "%-*s", width, k)
			fmt.Fprintf(w, "  %s\n", scalar(v[k]))
		}
		return nil
	case []any:
		for i, elem := range v {
			if i > 0 {
				fmt.Fprintln(w, strings.Repeat("-", 40))
			}
			if err := renderTable(w, elem); err != nil {
				return err
			}
		}
		return nil
	default:
		fmt.Fprintln(w, scalar(value))
		return nil
	}
}

// scalar formats a leaf cell. Nested structures collapse to compact JSON so
// rows stay one line each.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
