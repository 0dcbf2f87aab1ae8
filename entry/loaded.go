package entry

import (
	"context"
	"time"
)

// LoadedEntry is the flattened, read-only shape the widget loader (§6.3)
// returns: a metric entry with its attribute children collapsed into a
// scalar map, and — for TIM entries — their time_type children collapsed
// into a subdivision-prefix-keyed sum map (§4.8).
type LoadedEntry struct {
	ID             int64
	DefinitionCode string
	Timestamp      time.Time
	Subdivision    string
	Attributes     map[string]interface{}
	TimeValues     map[string]int64
}

// Period names the calendar range a widget's dataset is loaded over,
// relative to an anchor date (§6.3).
type Period byte

const (
	PeriodDay Period = iota
	PeriodWeek
	PeriodMonth
	PeriodYear
)

// LoadParams carries the caller-supplied context a WidgetLoader resolves a
// dataset against (§6.3).
type LoadParams struct {
	User   string
	Anchor time.Time
	Period Period
}

// WidgetLoader resolves a widget dataset's definition code to the loaded
// entries within the caller's period (§6.3). It is the widget-evaluation
// analogue of ExistingEntries.
type WidgetLoader interface {
	LoadEntriesForWidget(ctx context.Context, definitionCode string, params LoadParams) ([]LoadedEntry, error)
}
