package dataprocessing

import (
	"sort"

	"schoolpulse/pkg/contracts/domain"
)

// MeanFor returns the arithmetic mean of metric over the series of entity.
// Periods without the metric count as 0. Unknown entities and empty series give 0.
func MeanFor(c *domain.Catalog, entity string, metric domain.MetricID) float64 {
	ts, ok := c.Series(entity)
	if !ok {
		return 0
	}
	return seriesMean(ts, metric)
}

func seriesMean(ts domain.TimeSeries, metric domain.MetricID) float64 {
	if len(ts) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range ts {
		sum += rec.Value(metric)
	}
	return sum / float64(len(ts))
}

// RankingFor ranks every entity of the catalog by its mean for metric, highest first.
// Equal means are ordered by entity identifier ascending. Ranks start at 1.
func RankingFor(c *domain.Catalog, metric domain.MetricID) []domain.RankingEntry {
	m, known := domain.MetricByID(metric)
	entities := c.Entities()
	ranking := make([]domain.RankingEntry, 0, len(entities))
	for _, entity := range entities {
		ts, _ := c.Series(entity)
		entry := domain.RankingEntry{Entity: entity, Mean: seriesMean(ts, metric)}
		if known {
			entry.Tier = classify(m.Thresholds, entry.Mean)
		}
		ranking = append(ranking, entry)
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Mean != ranking[j].Mean {
			return ranking[i].Mean > ranking[j].Mean
		}
		return ranking[i].Entity < ranking[j].Entity
	})
	for i := range ranking {
		ranking[i].Rank = i + 1
	}
	return ranking
}

// TotalsFor sums each metric over the whole series of entity
func TotalsFor(c *domain.Catalog, entity string) (domain.EntityTotals, bool) {
	ts, ok := c.Series(entity)
	if !ok {
		return domain.EntityTotals{}, false
	}
	totals := domain.EntityTotals{
		Entity:  entity,
		Periods: len(ts),
		Values:  make(map[domain.MetricID]float64),
	}
	for _, id := range domain.MetricIDs() {
		totals.Values[id] = 0
	}
	for _, rec := range ts {
		for id, v := range rec.Values {
			totals.Values[id] += v
		}
	}
	return totals, true
}

// SnapshotFor returns every registered metric of entity for one period, absent ones as 0.
func SnapshotFor(c *domain.Catalog, entity string, period int) (domain.PeriodSnapshot, bool) {
	ts, ok := c.Series(entity)
	if !ok {
		return domain.PeriodSnapshot{}, false
	}
	rec, ok := ts.Find(period)
	if !ok {
		return domain.PeriodSnapshot{}, false
	}
	snap := domain.PeriodSnapshot{
		Entity: entity,
		Period: period,
		Values: make(map[domain.MetricID]float64, len(domain.MetricIDs())),
	}
	for _, id := range domain.MetricIDs() {
		snap.Values[id] = rec.Value(id)
	}
	return snap, true
}

// LatestPeriod returns the last period of ts
func LatestPeriod(ts domain.TimeSeries) (int, bool) {
	if len(ts) == 0 {
		return 0, false
	}
	return ts[len(ts)-1].Period, true
}
