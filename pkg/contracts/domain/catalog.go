package domain

import (
	"sort"
	"time"
)

// PeriodRecord holds the metric values of one entity for one period.
// Values only contains metrics that were present in some sheet; Value reads absent metrics as 0.
type PeriodRecord struct {
	Entity string               `json:"entity"`
	Period int                  `json:"period"`
	Values map[MetricID]float64 `json:"values"`
}

// Value returns the value of metric id, or 0 when the metric was not present
func (r PeriodRecord) Value(id MetricID) float64 {
	return r.Values[id]
}

// Has reports whether metric id was present for this period
func (r PeriodRecord) Has(id MetricID) bool {
	_, ok := r.Values[id]
	return ok
}

// TimeSeries is the period-ordered sequence of records of one entity
type TimeSeries []PeriodRecord

// Periods returns the period numbers of the series in order
func (ts TimeSeries) Periods() []int {
	out := make([]int, len(ts))
	for i, r := range ts {
		out[i] = r.Period
	}
	return out
}

// Find returns the record for period, if any
func (ts TimeSeries) Find(period int) (PeriodRecord, bool) {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Period >= period })
	if i < len(ts) && ts[i].Period == period {
		return ts[i], true
	}
	return PeriodRecord{}, false
}

// Catalog maps entities to their time series. A Catalog is immutable once built;
// a new ingestion produces a new Catalog rather than patching an existing one.
type Catalog struct {
	series   map[string]TimeSeries
	entities []string
	metrics  []MetricID
	source   string
	builtAt  time.Time
}

// NewCatalog assembles a catalog from already sorted series.
func NewCatalog(series map[string]TimeSeries, source string, builtAt time.Time) *Catalog {
	c := &Catalog{
		series:   make(map[string]TimeSeries, len(series)),
		entities: make([]string, 0, len(series)),
		source:   source,
		builtAt:  builtAt,
	}
	seen := make(map[MetricID]bool)
	for entity, ts := range series {
		c.series[entity] = ts
		c.entities = append(c.entities, entity)
		for _, rec := range ts {
			for id := range rec.Values {
				seen[id] = true
			}
		}
	}
	sort.Strings(c.entities)
	for _, id := range MetricIDs() {
		if seen[id] {
			c.metrics = append(c.metrics, id)
		}
	}
	return c
}

// Entities returns the entity identifiers in ascending order
func (c *Catalog) Entities() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.entities))
	copy(out, c.entities)
	return out
}

// Series returns the time series of entity
func (c *Catalog) Series(entity string) (TimeSeries, bool) {
	if c == nil {
		return nil, false
	}
	ts, ok := c.series[entity]
	return ts, ok
}

// Len returns the number of entities
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entities)
}

// Metrics returns the metrics present anywhere in the catalog, in registry order
func (c *Catalog) Metrics() []MetricID {
	if c == nil {
		return nil
	}
	out := make([]MetricID, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Source describes where the catalog was built from
func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// BuiltAt returns the build timestamp
func (c *Catalog) BuiltAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.builtAt
}

// RankingEntry is one position of a metric ranking
type RankingEntry struct {
	Rank   int     `json:"rank"`
	Entity string  `json:"entity"`
	Mean   float64 `json:"mean"`
	Tier   Tier    `json:"tier"`
}

// PeriodSnapshot holds every registered metric of an entity for one period, absent ones as 0
type PeriodSnapshot struct {
	Entity string               `json:"entity"`
	Period int                  `json:"period"`
	Values map[MetricID]float64 `json:"values"`
}

// EntityTotals holds the per-metric sum of an entity's series
type EntityTotals struct {
	Entity  string               `json:"entity"`
	Periods int                  `json:"periods"`
	Values  map[MetricID]float64 `json:"values"`
}

// IngestionReport summarizes one ingestion
type IngestionReport struct {
	ID             string         `json:"id"`
	Source         string         `json:"source"`
	SheetsRead     int            `json:"sheets_read"`
	SheetsSkipped  []SkippedSheet `json:"sheets_skipped,omitempty"`
	ColumnsDropped int            `json:"columns_dropped"`
	RowsDropped    int            `json:"rows_dropped"`
	CellsCoerced   int            `json:"cells_coerced"`
	Entities       int            `json:"entities"`
	Periods        int            `json:"periods"`
	Persisted      bool           `json:"persisted"`
	BuiltAt        time.Time      `json:"built_at"`
}
