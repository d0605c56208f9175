package dataprocessing

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"schoolpulse/pkg/contracts/domain"
)

var periodPattern = regexp.MustCompile(`[0-9]+`)

// ParsePeriod extracts the first run of digits in a header text.
// "Semana 12" and "Week 12 (Mar)" both give 12; text without digits gives false.
func ParsePeriod(text string) (int, bool) {
	digits := periodPattern.FindString(text)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseHeaders converts the header row, minus the entity column, into period headers
func ParseHeaders(header []any) []domain.PeriodHeader {
	if len(header) <= 1 {
		return nil
	}
	out := make([]domain.PeriodHeader, len(header)-1)
	for i, cell := range header[1:] {
		text := strings.TrimSpace(cellText(cell))
		h := domain.PeriodHeader{Text: text}
		if p, ok := ParsePeriod(text); ok {
			h.Period = &p
		}
		out[i] = h
	}
	return out
}

// Accumulator collects coerced values keyed by (entity, period, metric) across sheets.
// Writing the same key twice keeps the later value.
type Accumulator struct {
	values map[string]map[int]map[domain.MetricID]float64
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{values: make(map[string]map[int]map[domain.MetricID]float64)}
}

// Set stores value for (entity, period, metric)
func (a *Accumulator) Set(entity string, period int, metric domain.MetricID, value float64) {
	periods, ok := a.values[entity]
	if !ok {
		periods = make(map[int]map[domain.MetricID]float64)
		a.values[entity] = periods
	}
	metrics, ok := periods[period]
	if !ok {
		metrics = make(map[domain.MetricID]float64)
		periods[period] = metrics
	}
	metrics[metric] = value
}

// Len returns the number of entities seen so far
func (a *Accumulator) Len() int {
	return len(a.values)
}

// SheetNormalizer walks one sheet into an Accumulator
type SheetNormalizer struct {
	logger *slog.Logger
}

// NewSheetNormalizer creates a normalizer; a nil logger falls back to slog.Default
func NewSheetNormalizer(logger *slog.Logger) *SheetNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SheetNormalizer{logger: logger.With(slog.String("component", "sheet_normalizer"))}
}

// SheetStats describes what normalizing a single sheet did
type SheetStats struct {
	Metric         domain.MetricID
	Skipped        bool
	SkipReason     domain.SkipReason
	ColumnsDropped int
	RowsDropped    int
	CellsCoerced   int
	CellsRead      int
}

// Normalize routes the sheet's cells into acc. Sheets with fewer than two rows
// or whose name is not a registered metric are skipped without error.
func (n *SheetNormalizer) Normalize(sheet domain.RawSheet, acc *Accumulator) SheetStats {
	metric, known := domain.LookupMetric(sheet.Name)
	if !known {
		n.logger.Info("sheet skipped",
			slog.String("sheet", sheet.Name),
			slog.String("reason", string(domain.SkipUnknownMetric)))
		return SheetStats{Skipped: true, SkipReason: domain.SkipUnknownMetric}
	}
	stats := SheetStats{Metric: metric.ID}

	if len(sheet.Rows) < 2 {
		n.logger.Info("sheet skipped",
			slog.String("sheet", sheet.Name),
			slog.String("reason", string(domain.SkipTooFewRows)),
			slog.Int("rows", len(sheet.Rows)))
		stats.Skipped = true
		stats.SkipReason = domain.SkipTooFewRows
		return stats
	}

	headers := ParseHeaders(sheet.Rows[0])
	for _, h := range headers {
		if h.Period == nil {
			stats.ColumnsDropped++
			n.logger.Debug("column dropped",
				slog.String("sheet", sheet.Name),
				slog.String("header", h.Text))
		}
	}

	for _, row := range sheet.Rows[1:] {
		entity := entityKey(row)
		if entity == "" {
			stats.RowsDropped++
			continue
		}
		// Only cells present in the row are recorded; a short row leaves later periods absent.
		for j := 1; j < len(row) && j-1 < len(headers); j++ {
			h := headers[j-1]
			if h.Period == nil {
				continue
			}
			value, numeric := coerce(row[j], metric.ID)
			if !numeric {
				stats.CellsCoerced++
			}
			stats.CellsRead++
			acc.Set(entity, *h.Period, metric.ID, value)
		}
	}

	n.logger.Debug("sheet normalized",
		slog.String("sheet", sheet.Name),
		slog.String("metric", string(metric.ID)),
		slog.Int("cells", stats.CellsRead),
		slog.Int("rows_dropped", stats.RowsDropped),
		slog.Int("columns_dropped", stats.ColumnsDropped))

	return stats
}

func entityKey(row []any) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(cellText(row[0]))
}

// cellText renders a raw cell as text; whole floats print without a fraction
func cellText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
