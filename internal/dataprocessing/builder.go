package dataprocessing

import (
	"log/slog"
	"sort"
	"time"

	"schoolpulse/pkg/contracts/domain"
)

// Series turns the accumulated values into one period-ordered series per entity.
// The result depends only on the accumulator contents.
func (a *Accumulator) Series() map[string]domain.TimeSeries {
	out := make(map[string]domain.TimeSeries, len(a.values))
	for entity, periods := range a.values {
		ts := make(domain.TimeSeries, 0, len(periods))
		for period, metrics := range periods {
			values := make(map[domain.MetricID]float64, len(metrics))
			for id, v := range metrics {
				values[id] = v
			}
			ts = append(ts, domain.PeriodRecord{
				Entity: entity,
				Period: period,
				Values: values,
			})
		}
		sort.Slice(ts, func(i, j int) bool { return ts[i].Period < ts[j].Period })
		out[entity] = ts
	}
	return out
}

// Pipeline runs normalization and series building over a decoded workbook
type Pipeline struct {
	normalizer *SheetNormalizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline; a nil logger falls back to slog.Default
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		normalizer: NewSheetNormalizer(logger),
		logger:     logger.With(slog.String("component", "series_builder")),
		now:        time.Now,
	}
}

// Build normalizes every sheet of wb and assembles the catalog.
// Irregular sheets, headers and cells never fail the build; they are counted in the report.
func (p *Pipeline) Build(wb domain.Workbook) (*domain.Catalog, domain.IngestionReport) {
	acc := NewAccumulator()
	report := domain.IngestionReport{Source: wb.Source}

	for _, sheet := range wb.Sheets {
		stats := p.normalizer.Normalize(sheet, acc)
		if stats.Skipped {
			report.SheetsSkipped = append(report.SheetsSkipped, domain.SkippedSheet{
				Name:   sheet.Name,
				Reason: stats.SkipReason,
			})
			continue
		}
		report.SheetsRead++
		report.ColumnsDropped += stats.ColumnsDropped
		report.RowsDropped += stats.RowsDropped
		report.CellsCoerced += stats.CellsCoerced
	}

	series := acc.Series()
	periods := make(map[int]struct{})
	for _, ts := range series {
		for _, rec := range ts {
			periods[rec.Period] = struct{}{}
		}
	}

	builtAt := p.now().UTC()
	catalog := domain.NewCatalog(series, wb.Source, builtAt)

	report.Entities = catalog.Len()
	report.Periods = len(periods)
	report.BuiltAt = builtAt

	p.logger.Info("catalog built",
		slog.String("source", wb.Source),
		slog.Int("sheets_read", report.SheetsRead),
		slog.Int("sheets_skipped", len(report.SheetsSkipped)),
		slog.Int("entities", report.Entities),
		slog.Int("periods", report.Periods))

	return catalog, report
}
