package exporter

import (
	"io"

	"schoolpulse/pkg/contracts/domain"
)

// Column layouts
var (
	RankingHeaders = []string{"rank", "entity", "mean", "tier"}
	CatalogHeaders = []string{"entity", "period", "metric", "value"}
)

// WriteRanking writes one row per ranking entry in rank order
func WriteRanking(w io.Writer, entries []domain.RankingEntry, bom bool) (int, error) {
	cw, err := NewCSVWriter(w, WriteOptions{Headers: RankingHeaders, BOMPrefix: bom})
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := cw.WriteRecord([]string{formatInt(e.Rank), e.Entity, formatFloat(e.Mean), string(e.Tier)}); err != nil {
			return cw.Rows(), err
		}
	}
	return cw.Rows(), cw.Close()
}

// WriteCatalog writes the catalog in long form: one row per entity, period and
// registered metric, entities ascending then periods ascending. Absent values are written as 0.
func WriteCatalog(w io.Writer, c *domain.Catalog, bom bool) (int, error) {
	cw, err := NewCSVWriter(w, WriteOptions{Headers: CatalogHeaders, BOMPrefix: bom})
	if err != nil {
		return 0, err
	}

	metrics := domain.MetricIDs()
	for _, entity := range c.Entities() {
		ts, _ := c.Series(entity)
		for _, rec := range ts {
			for _, m := range metrics {
				row := []string{entity, formatInt(rec.Period), string(m), formatFloat(rec.Value(m))}
				if err := cw.WriteRecord(row); err != nil {
					return cw.Rows(), err
				}
			}
		}
	}
	return cw.Rows(), cw.Close()
}
