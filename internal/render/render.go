// Package render produces output from a validated value and its schema.Document.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/structsure/internal/schema"
)

// JSON produces a pretty-printed JSON representation of value.
// Object keys come out sorted, so output is stable across runs.
func JSON(value map[string]any) ([]byte, error) {
	if value == nil {
		return nil, fmt.Errorf("render: nil value")
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// Markdown produces a GitHub-flavoured Markdown table of value with one row
// per declared field, in the document's field order. Absent optional fields
// render as an empty cell; arrays and objects render as inline JSON.
func Markdown(doc *schema.Document, value map[string]any) string {
	if doc == nil || value == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", mdEscape(doc.Title))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	for _, f := range doc.Fields {
		fmt.Fprintf(&sb, "| %s | %s |\n", mdEscape(f.Name), cell(value[f.Name]))
	}
	sb.WriteString("\n")

	return sb.String()
}

// SchemaMarkdown describes doc as a Markdown table, for the schema subcommand.
func SchemaMarkdown(doc *schema.Document) string {
	if doc == nil {
		return ""
	}
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", mdEscape(doc.Title))
	sb.WriteString("| Field | Type | Required | Description |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, f := range doc.Fields {
		required := "no"
		if f.Required {
			required = "yes"
		}
		desc := mdEscape(f.Description)
		if len(f.Enum) > 0 {
			allowed := make([]string, len(f.Enum))
			for i, e := range f.Enum {
				allowed[i] = "`" + mdEscape(e) + "`"
			}
			if desc != "" {
				desc += " "
			}
			desc += "(one of " + strings.Join(allowed, ", ") + ")"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", mdEscape(f.Name), f.Kind, required, desc)
	}
	if doc.RejectExtra {
		sb.WriteString("\nUndeclared fields are rejected.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// cell formats a single value for a table cell.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return mdEscape(x)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return mdEscape(fmt.Sprint(x))
		}
		return "`" + mdEscape(string(b)) + "`"
	default:
		return mdEscape(fmt.Sprint(x))
	}
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
