package entry

import (
	"context"

	"github.com/daqhub/metriq/schema"
)

// ExistingEntries is the pure read oracle consulted by the instance
// resolver (§4.4, §6.2). Implementations must not mutate the returned
// trees; callers treat them as owned-by-oracle until spliced and cloned.
type ExistingEntries interface {
	FindByPrimaryIdentifier(ctx context.Context, metric *schema.Definition, value interface{}) ([]*ResolvedEntry, error)
}

// PipelineContext bundles the read-only lookup tables a pipeline run
// consults (spec §3 "PipelineState").
type PipelineContext struct {
	Registry *schema.Registry
	Oracle   ExistingEntries
}

// IDAllocator owns the three disjoint monotonic counters used during a
// single pipeline run: the builder counts up from 1, the hierarchy
// populator counts down from -1000, the formula applier counts down from
// -2000, so provenance is observable in traces (spec §3 invariant 5).
type IDAllocator struct {
	next       int64
	nextHier   int64
	nextFormula int64
}

// NewIDAllocator returns an allocator with its three counters at their
// starting positions.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1, nextHier: -1000, nextFormula: -2000}
}

// Builder allocates the next builder-owned id (root/builder counter, §3).
func (a *IDAllocator) Builder() int64 {
	id := a.next
	a.next++
	return id
}

// Hierarchy allocates the next hierarchy-populator-owned id.
func (a *IDAllocator) Hierarchy() int64 {
	id := a.nextHier
	a.nextHier--
	return id
}

// Formula allocates the next formula-applier-owned id.
func (a *IDAllocator) Formula() int64 {
	id := a.nextFormula
	a.nextFormula--
	return id
}

// Vectors holds the three precomputed hierarchical token vectors for a
// pipeline run: Division (schema-derived), Subdivision (user-provided,
// split on "/"), and Path (their concatenation). They are read-only for the
// duration of the run (spec §3).
type Vectors struct {
	Division    []string
	Subdivision []string
	Path        []string
}

// NewVectors derives the three vectors for a root whose definition is def
// and whose entry carries subdivision.
func NewVectors(reg *schema.Registry, def *schema.Definition, subdivision string) Vectors {
	division := reg.ParentChain(def)
	sub := SplitPath(subdivision)
	path := make([]string, 0, len(division)+len(sub))
	path = append(path, division...)
	path = append(path, sub...)
	return Vectors{Division: division, Subdivision: sub, Path: path}
}

// At returns the token at index i of the named vector ("division",
// "subdivision" or "path") and true, or "" and false when the name is
// unknown or i is out of range; callers build the SUBDIVISION_ERROR from
// Len (§4.2, §7).
func (v Vectors) At(vector string, i int) (string, bool) {
	var vec []string
	switch vector {
	case "division":
		vec = v.Division
	case "subdivision":
		vec = v.Subdivision
	case "path":
		vec = v.Path
	default:
		return "", false
	}
	if i < 0 || i >= len(vec) {
		return "", false
	}
	return vec[i], true
}

// Len returns the length of the named vector.
func (v Vectors) Len(vector string) int {
	switch vector {
	case "division":
		return len(v.Division)
	case "subdivision":
		return len(v.Subdivision)
	case "path":
		return len(v.Path)
	}
	return 0
}

// PipelineState is the root tree plus the PipelineContext and the three
// precomputed vectors, as described in spec §3.
type PipelineState struct {
	Root    *ResolvedEntry
	Ctx     *PipelineContext
	Vectors Vectors
	IDs     *IDAllocator
}
