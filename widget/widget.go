// Package widget parses and executes the WIDGET ... END dashboard
// definition language (§4.8): a name, a single dataset alias, and an
// ordered list of computed fields, each a typed formula expression
// evaluated over the dataset's loaded entries.
package widget

import (
	"regexp"
	"strings"

	"github.com/daqhub/metriq/pipeline"
)

var (
	headerRe  = regexp.MustCompile(`^WIDGET\s+"([^"]*)"$`)
	datasetRe = regexp.MustCompile(`^(\w+)\s*=\s*(\w+)(?:\s+FROM\s+\w+)?$`)
	fieldRe   = regexp.MustCompile(`^"([^"]+)":\s*(int|float)\s*=\s*(.+)$`)
)

// ComputedField is one output field of a Widget: a label, its declared
// result type, and the formula-DSL expression producing it.
type ComputedField struct {
	Label string
	Type  string // "int" or "float"
	Expr  string
}

// Widget is a parsed WIDGET ... END definition (§4.8).
type Widget struct {
	Name    string
	Alias   string
	DefCode string
	Fields  []ComputedField
}

// Parse parses a complete widget source block. Missing END, missing
// fields, or a malformed header or dataset line all fail with a
// PARSE_ERROR naming the offending line (§4.8).
func Parse(src string) (*Widget, error) {
	lines := significantLines(src)
	if len(lines) < 3 {
		last := 0
		if len(lines) > 0 {
			last = lines[len(lines)-1].num
		}
		return nil, &pipeline.ParseError{Line: last, Message: "widget source requires a header, a dataset line, at least one field, and END"}
	}

	hm := headerRe.FindStringSubmatch(lines[0].text)
	if hm == nil {
		return nil, &pipeline.ParseError{Line: lines[0].num, Message: "malformed WIDGET header", Fragment: lines[0].text}
	}
	dm := datasetRe.FindStringSubmatch(lines[1].text)
	if dm == nil {
		return nil, &pipeline.ParseError{Line: lines[1].num, Message: "malformed dataset line", Fragment: lines[1].text}
	}

	w := &Widget{Name: hm[1], Alias: dm[1], DefCode: dm[2]}

	body := lines[2:]
	last := body[len(body)-1]
	if last.text != "END" {
		return nil, &pipeline.ParseError{Line: last.num, Message: "widget source must end with END", Fragment: last.text}
	}
	body = body[:len(body)-1]
	if len(body) == 0 {
		return nil, &pipeline.ParseError{Line: last.num, Message: "widget source requires at least one computed field"}
	}
	for _, ln := range body {
		fm := fieldRe.FindStringSubmatch(ln.text)
		if fm == nil {
			return nil, &pipeline.ParseError{Line: ln.num, Message: "malformed computed-field line", Fragment: ln.text}
		}
		w.Fields = append(w.Fields, ComputedField{Label: fm[1], Type: fm[2], Expr: strings.TrimSpace(fm[3])})
	}
	return w, nil
}

type rawLine struct {
	num  int
	text string
}

func significantLines(src string) []rawLine {
	var out []rawLine
	for i, raw := range strings.Split(src, "\n") {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		out = append(out, rawLine{num: i + 1, text: t})
	}
	return out
}
