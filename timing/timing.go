// Package timing implements the timing-block parser (§4.3): it turns a
// multi-line "HHMM-HHMM tokens" block into one parent MetricEntryInput per
// timing line, each carrying a nested TIM sub-input. It is selected, ahead
// of the tree builder, whenever a block has more than one significant line
// and its definition is timing-capable.
package timing

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mb0/xelf/cor"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/log"
	"github.com/daqhub/metriq/pipeline"
	"github.com/daqhub/metriq/schema"
)

var (
	headerRe = regexp.MustCompile(`^([A-Za-z0-9_]+)(?::([^;]*))?;([^;]*)(?:;(.*))?$`)
	lineRe   = regexp.MustCompile(`^(\d{2})(\d{2})-(\d{2})(\d{2})\s+(.+)$`)
	tokenRe  = regexp.MustCompile(`^([a-z][a-z/]*)(\d+)(.*)$`)
)

type rawLine struct {
	num  int
	text string
}

type header struct {
	defCode     string
	subdivision string
	attrs       map[string]string
	tags        map[string]string
}

type line struct {
	num           int
	timeInit      int
	timeEnd       int
	duration      int
	tokens        map[string]int
	attrOverrides map[string]string
	tags          map[string]string
}

// ParseBlock parses a complete timing block into one MetricEntryInput per
// timing line, failing the whole block on any validation error (§4.3
// "Atomicity"). logger may be nil; it receives skipped-key warnings.
func ParseBlock(reg *schema.Registry, block string, baseDate time.Time, logger log.Logger) ([]*entry.MetricEntryInput, error) {
	lines := significantLines(block)
	if len(lines) < 2 {
		return nil, &pipeline.ParseError{Message: "timing block requires a header line and at least one timing line"}
	}

	hdr, err := parseHeader(lines[0].text)
	if err != nil {
		return nil, &pipeline.ParseError{Line: lines[0].num, Message: err.Error(), Fragment: lines[0].text}
	}
	metric, ok := reg.DefinitionByCode(hdr.defCode)
	if !ok || metric.Kind != schema.KindMetric {
		return nil, &pipeline.ParseError{Line: lines[0].num, Message: "unknown definition", Fragment: hdr.defCode}
	}
	if !reg.IsTimingCapable(metric) {
		return nil, &pipeline.ParseError{Line: lines[0].num, Message: "definition is not timing-capable", Fragment: hdr.defCode}
	}
	timField, timDef, ok := findTIMField(reg, metric)
	if !ok {
		return nil, &pipeline.ParseError{Line: lines[0].num, Message: "metric has no field based on TIM"}
	}

	out := make([]*entry.MetricEntryInput, 0, len(lines)-1)
	prevEnd := -1
	for _, raw := range lines[1:] {
		ln, err := parseLine(raw.num, raw.text)
		if err != nil {
			return nil, &pipeline.ParseError{Line: raw.num, Message: err.Error(), Fragment: raw.text}
		}
		if ln.timeInit < prevEnd {
			return nil, &pipeline.ParseError{Line: raw.num, Message: "timing lines must be non-overlapping and in ascending order", Fragment: raw.text}
		}
		prevEnd = ln.timeEnd

		attrs := mergeStrings(hdr.attrs, ln.attrOverrides)
		fields, warnings := buildFieldInputs(reg, metric, attrs)
		if logger != nil {
			for _, w := range warnings {
				logger.Debug(w)
			}
		}

		timInput, err := buildTIMInput(reg, timDef, ln)
		if err != nil {
			return nil, &pipeline.ParseError{Line: raw.num, Message: err.Error(), Fragment: raw.text}
		}
		fields = append(fields, entry.FieldInput{
			FieldName: timField.Name,
			Values:    []entry.AttributeValueInput{{Nested: timInput}},
		})

		out = append(out, &entry.MetricEntryInput{
			DefinitionCode: metric.Code,
			Timestamp:      baseDate,
			Subdivision:    hdr.subdivision,
			Comments:       formatTags(mergeStrings(hdr.tags, ln.tags)),
			Fields:         fields,
		})
	}
	return out, nil
}

func findTIMField(reg *schema.Registry, metric *schema.Definition) (*schema.Field, *schema.Definition, bool) {
	for _, f := range reg.FieldsByMetric(metric.ID) {
		base, ok := reg.Definition(f.BaseDefinitionID)
		if ok && base.Code == "TIM" {
			return f, base, true
		}
	}
	return nil, nil, false
}

func significantLines(block string) []rawLine {
	var out []rawLine
	for i, raw := range strings.Split(block, "\n") {
		t := strings.TrimSpace(raw)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		out = append(out, rawLine{num: i + 1, text: t})
	}
	return out
}

func parseHeader(s string) (*header, error) {
	m := headerRe.FindStringSubmatch(s)
	if m == nil {
		return nil, cor.Errorf("malformed header line")
	}
	return &header{
		defCode:     m[1],
		subdivision: m[2],
		attrs:       parsePairs(m[3]),
		tags:        parsePairs(m[4]),
	}, nil
}

func parseLine(num int, s string) (*line, error) {
	parts := strings.SplitN(s, "|", 3)
	m := lineRe.FindStringSubmatch(strings.TrimSpace(parts[0]))
	if m == nil {
		return nil, cor.Errorf("malformed timing line")
	}
	initH, _ := strconv.Atoi(m[1])
	initM, _ := strconv.Atoi(m[2])
	endH, _ := strconv.Atoi(m[3])
	endM, _ := strconv.Atoi(m[4])
	if initM >= 60 || endM >= 60 {
		return nil, cor.Errorf("minutes must be less than 60")
	}
	timeInit := initH*60 + initM
	timeEnd := endH*60 + endM
	duration := timeEnd - timeInit
	if duration <= 0 {
		return nil, cor.Errorf("duration must be positive")
	}
	tokens, err := scanTokens(m[5])
	if err != nil {
		return nil, err
	}
	var sum int
	for _, v := range tokens {
		sum += v
	}
	if sum > duration {
		return nil, cor.Errorf("token sum %d exceeds duration %d", sum, duration)
	}
	ln := &line{num: num, timeInit: timeInit, timeEnd: timeEnd, duration: duration, tokens: tokens}
	if len(parts) > 1 {
		ln.attrOverrides = parsePairs(parts[1])
	}
	if len(parts) > 2 {
		ln.tags = parsePairs(parts[2])
	}
	return ln, nil
}

// scanTokens parses a run of (label)(digits) pairs, summing repeated
// labels (§4.3 "Token semantics"). A label is a run of lowercase letters
// optionally containing "/", so a compound subdivision like "m/thk" is
// one token's label, not two tokens with the separator stripped.
func scanTokens(raw string) (map[string]int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil, cor.Errorf("at least one token required")
	}
	sums := map[string]int{}
	rest := s
	for rest != "" {
		m := tokenRe.FindStringSubmatch(rest)
		if m == nil {
			return nil, cor.Errorf("malformed token at %q", rest)
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, cor.Errorf("malformed token value %q", m[2])
		}
		sums[m[1]] += n
		rest = m[3]
	}
	return sums, nil
}

func parsePairs(s string) map[string]string {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		key := strings.TrimSpace(kv[0])
		val := ""
		if len(kv) == 2 {
			val = strings.TrimSpace(kv[1])
		}
		out[key] = val
	}
	return out
}

func mergeStrings(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// buildFieldInputs turns the merged header+override attribute pairs into
// field inputs on metric, skipping (with a warning) keys that don't name a
// field, or name a metric-valued field (§4.3 output rules).
func buildFieldInputs(reg *schema.Registry, metric *schema.Definition, attrs map[string]string) ([]entry.FieldInput, []string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []entry.FieldInput
	var warnings []string
	for _, k := range keys {
		f, ok := reg.FieldByName(metric.ID, k)
		if !ok {
			warnings = append(warnings, "timing block: "+k+" is not a field of "+metric.Code+", skipping")
			continue
		}
		base, ok := reg.Definition(f.BaseDefinitionID)
		if !ok || base.Kind != schema.KindAttribute {
			warnings = append(warnings, "timing block: field "+k+" is not attribute-valued, skipping")
			continue
		}
		av, err := parseTypedValue(base.Datatype, attrs[k])
		if err != nil {
			warnings = append(warnings, "timing block: field "+k+": "+err.Error())
			continue
		}
		fields = append(fields, entry.FieldInput{FieldName: f.Name, Values: []entry.AttributeValueInput{av}})
	}
	return fields, warnings
}

func parseTypedValue(dt schema.Datatype, raw string) (entry.AttributeValueInput, error) {
	switch dt {
	case schema.Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return entry.AttributeValueInput{}, cor.Errorf("invalid int %q", raw)
		}
		return entry.AttributeValueInput{ValueInt: &n}, nil
	case schema.Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entry.AttributeValueInput{}, cor.Errorf("invalid float %q", raw)
		}
		return entry.AttributeValueInput{ValueFloat: &f}, nil
	case schema.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return entry.AttributeValueInput{}, cor.Errorf("invalid bool %q", raw)
		}
		return entry.AttributeValueInput{ValueBool: &b}, nil
	case schema.String, schema.Hierarchy:
		s := raw
		return entry.AttributeValueInput{ValueString: &s}, nil
	case schema.Timestamp:
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return entry.AttributeValueInput{}, cor.Errorf("invalid timestamp %q", raw)
		}
		return entry.AttributeValueInput{ValueTimestamp: &t}, nil
	}
	return entry.AttributeValueInput{}, cor.Errorf("unsupported datatype")
}

// buildTIMInput builds the nested TIM MetricEntryInput for one timing
// line: time_init/time_end/duration when TIM carries such fields, plus a
// time_type field with one value per distinct base letter, subdivision-
// tagged with the letter (§4.3 "Output per timing line").
func buildTIMInput(reg *schema.Registry, timDef *schema.Definition, ln *line) (*entry.MetricEntryInput, error) {
	var fields []entry.FieldInput
	if f, ok := reg.FieldByName(timDef.ID, "time_init"); ok {
		v := int64(ln.timeInit)
		fields = append(fields, entry.FieldInput{FieldName: f.Name, Values: []entry.AttributeValueInput{{ValueInt: &v}}})
	}
	if f, ok := reg.FieldByName(timDef.ID, "time_end"); ok {
		v := int64(ln.timeEnd)
		fields = append(fields, entry.FieldInput{FieldName: f.Name, Values: []entry.AttributeValueInput{{ValueInt: &v}}})
	}
	if f, ok := reg.FieldByName(timDef.ID, "duration"); ok {
		v := int64(ln.duration)
		fields = append(fields, entry.FieldInput{FieldName: f.Name, Values: []entry.AttributeValueInput{{ValueInt: &v}}})
	}

	ttField, ok := reg.FieldByName(timDef.ID, "time_type")
	if !ok {
		return nil, cor.Errorf("TIM definition has no time_type field")
	}
	letters := make([]string, 0, len(ln.tokens))
	for l := range ln.tokens {
		letters = append(letters, l)
	}
	sort.Strings(letters)
	values := make([]entry.AttributeValueInput, 0, len(letters))
	for _, l := range letters {
		n := int64(ln.tokens[l])
		sub := l
		values = append(values, entry.AttributeValueInput{ValueInt: &n, Subdivision: &sub})
	}
	fields = append(fields, entry.FieldInput{FieldName: ttField.Name, Values: values})

	return &entry.MetricEntryInput{DefinitionCode: timDef.Code, Fields: fields}, nil
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}
