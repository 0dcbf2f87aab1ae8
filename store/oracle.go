// Package store provides an in-memory implementation of the pipeline's two
// external read interfaces, entry.ExistingEntries and entry.WidgetLoader
// (§6.2, §6.3), grounded on the teacher's qry/qrymem table-map shape but
// holding plain ResolvedEntry trees rather than xelf literals.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/daqhub/metriq/entry"
	"github.com/daqhub/metriq/schema"
)

// MemStore holds persisted metric trees keyed by definition, indexed by
// primary-identifier value for oracle lookups and scanned linearly for
// widget loads. Safe for concurrent reads; writes (Put) must be externally
// serialized against pipeline runs (spec §5 "Shared-resource policy").
type MemStore struct {
	mu      sync.RWMutex
	reg     *schema.Registry
	byDef   map[int64][]*entry.ResolvedEntry
	byIdent map[int64]map[interface{}][]*entry.ResolvedEntry
}

// NewMemStore returns an empty store that resolves field/definition
// lookups against reg.
func NewMemStore(reg *schema.Registry) *MemStore {
	return &MemStore{
		reg:     reg,
		byDef:   make(map[int64][]*entry.ResolvedEntry),
		byIdent: make(map[int64]map[interface{}][]*entry.ResolvedEntry),
	}
}

// Put installs root as persisted state, indexing it by its metric
// definition and, if one exists, its primary-identifier field's value.
func (s *MemStore) Put(root *entry.ResolvedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defID := root.Entry.DefinitionID
	s.byDef[defID] = append(s.byDef[defID], root)

	def, ok := s.reg.Definition(defID)
	if !ok {
		return
	}
	f, ok := s.reg.PrimaryIdentifierField(def)
	if !ok {
		return
	}
	for _, c := range root.ChildrenByField(f) {
		if c.Attribute == nil {
			continue
		}
		v := c.Attribute.Scalar()
		if v == nil {
			continue
		}
		if s.byIdent[defID] == nil {
			s.byIdent[defID] = make(map[interface{}][]*entry.ResolvedEntry)
		}
		s.byIdent[defID][v] = append(s.byIdent[defID][v], root)
	}
}

// FindByPrimaryIdentifier implements entry.ExistingEntries (§6.2).
func (s *MemStore) FindByPrimaryIdentifier(ctx context.Context, metric *schema.Definition, value interface{}) ([]*entry.ResolvedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byIdent[metric.ID][value], nil
}

// LoadEntriesForWidget implements entry.WidgetLoader (§6.3): it resolves
// definitionCode, filters by params' period around its anchor, and
// flattens each surviving tree into a LoadedEntry.
func (s *MemStore) LoadEntriesForWidget(ctx context.Context, definitionCode string, params entry.LoadParams) ([]entry.LoadedEntry, error) {
	def, ok := s.reg.DefinitionByCode(definitionCode)
	if !ok {
		return nil, nil
	}
	s.mu.RLock()
	roots := append([]*entry.ResolvedEntry(nil), s.byDef[def.ID]...)
	s.mu.RUnlock()

	start, end := periodRange(params.Anchor, params.Period)
	out := make([]entry.LoadedEntry, 0, len(roots))
	for _, r := range roots {
		if r.Entry.Timestamp.Before(start) || !r.Entry.Timestamp.Before(end) {
			continue
		}
		out = append(out, flatten(s.reg, r))
	}
	return out, nil
}

// periodRange computes the [start, end) calendar range for period around
// anchor's local date (§6.3).
func periodRange(anchor time.Time, period entry.Period) (time.Time, time.Time) {
	midnight := entry.NormalizeTimestamp(anchor)
	switch period {
	case entry.PeriodWeek:
		offset := (int(midnight.Weekday()) + 6) % 7 // Monday = 0
		start := midnight.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case entry.PeriodMonth:
		y, m, _ := midnight.Date()
		start := time.Date(y, m, 1, 0, 0, 0, 0, midnight.Location())
		return start, start.AddDate(0, 1, 0)
	case entry.PeriodYear:
		y, _, _ := midnight.Date()
		start := time.Date(y, 1, 1, 0, 0, 0, 0, midnight.Location())
		return start, start.AddDate(1, 0, 0)
	default: // PeriodDay
		return midnight, midnight.AddDate(0, 0, 1)
	}
}

// flatten collapses root's attribute children into a scalar map and, for
// TIM-shaped entries, its time_type children into a subdivision-prefix sum
// map (§4.8).
func flatten(reg *schema.Registry, root *entry.ResolvedEntry) entry.LoadedEntry {
	def, _ := reg.Definition(root.Entry.DefinitionID)
	le := entry.LoadedEntry{
		ID:             root.Entry.ID,
		DefinitionCode: defCode(def),
		Timestamp:      root.Entry.Timestamp,
		Subdivision:    root.Entry.Subdivision,
		Attributes:     make(map[string]interface{}),
	}
	for _, c := range root.Children {
		if c.Field == nil || !c.IsAttribute() {
			continue
		}
		if c.Field.Name == "time_type" {
			if le.TimeValues == nil {
				le.TimeValues = make(map[string]int64)
			}
			if c.Attribute.ValueInt != nil {
				le.TimeValues[c.Entry.Subdivision] += *c.Attribute.ValueInt
			}
			continue
		}
		if v := c.Attribute.Scalar(); v != nil {
			le.Attributes[c.Field.Name] = v
		}
	}
	return le
}

func defCode(def *schema.Definition) string {
	if def == nil {
		return ""
	}
	return def.Code
}
