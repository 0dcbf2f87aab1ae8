// Package pipeline implements the entry creation pipeline: tree building,
// hierarchy population, instance resolution, formula application, and
// cardinality validation (spec §4.1–§4.7), plus the error taxonomy of §7.
package pipeline

import (
	"fmt"

	"github.com/daqhub/metriq/schema"
)

// Kind identifies which pipeline stage raised an error (§7).
type Kind byte

const (
	KindSubdivision Kind = iota
	KindInstanceResolution
	KindFormula
	KindCardinality
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindSubdivision:
		return "SUBDIVISION_ERROR"
	case KindInstanceResolution:
		return "INSTANCE_RESOLUTION_ERROR"
	case KindFormula:
		return "FORMULA_ERROR"
	case KindCardinality:
		return "CARDINALITY_ERROR"
	case KindParse:
		return "PARSE_ERROR"
	}
	return "UNKNOWN_ERROR"
}

// PipelineError is the sum type every pipeline-stage failure satisfies.
type PipelineError interface {
	error
	Kind() Kind
}

// SubdivisionError is raised by the hierarchy populator (§4.2) when a
// hierarchy-only formula indexes past the end of its vector.
type SubdivisionError struct {
	Field      *schema.Field
	Formula    string
	Index      int
	VectorLen  int
	VectorName string
}

func (e *SubdivisionError) Kind() Kind { return KindSubdivision }
func (e *SubdivisionError) Error() string {
	return fmt.Sprintf("field %q: formula %q: index %d out of range for %s vector of length %d",
		e.Field.Name, e.Formula, e.Index, e.VectorName, e.VectorLen)
}

// InstanceResolutionError is raised by the instance resolver (§4.4).
type InstanceResolutionError struct {
	Field            *schema.Field
	MetricDefinition *schema.Definition
	IdentifierValue  interface{}
	MatchCount       int
}

func (e *InstanceResolutionError) Kind() Kind { return KindInstanceResolution }
func (e *InstanceResolutionError) Error() string {
	return fmt.Sprintf("field %q: resolving %v against %s: %d matches",
		e.Field.Name, e.IdentifierValue, e.MetricDefinition.Code, e.MatchCount)
}

// FormulaError is raised by the formula engine and applier (§4.5, §4.6).
type FormulaError struct {
	Field   *schema.Field // may be nil for widget-context errors
	Formula string
	Message string
	Details map[string]interface{}
}

func (e *FormulaError) Kind() Kind { return KindFormula }
func (e *FormulaError) Error() string {
	if e.Field != nil {
		return fmt.Sprintf("field %q: formula %q: %s", e.Field.Name, e.Formula, e.Message)
	}
	return fmt.Sprintf("formula %q: %s", e.Formula, e.Message)
}

// CardinalityError is raised by the cardinality validator (§4.7).
type CardinalityError struct {
	Field     *schema.Field
	FieldName string
	Expected  schema.Cardinality
	Actual    int
}

func (e *CardinalityError) Kind() Kind { return KindCardinality }
func (e *CardinalityError) Error() string {
	max := "unbounded"
	if !e.Expected.Unbounded() {
		max = fmt.Sprintf("%d", e.Expected.Max)
	}
	return fmt.Sprintf("field %q: expected [%d,%s] instances, got %d",
		e.FieldName, e.Expected.Min, max, e.Actual)
}

// ParseError is raised by the timing-block and widget-definition parsers
// (§4.3, §4.8).
type ParseError struct {
	Line      int
	Message   string
	Fragment  string
}

func (e *ParseError) Kind() Kind { return KindParse }
func (e *ParseError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Fragment)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
