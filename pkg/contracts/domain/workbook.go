package domain

// RawSheet is one decoded workbook sheet. Rows[0] is the header row.
// Cell values are string, float64, int64, bool or nil.
type RawSheet struct {
	Name string  `json:"name"`
	Rows [][]any `json:"rows"`
}

// Workbook is the pre-normalization form of an ingested workbook.
// It is what gets persisted between sessions; the catalog is always rebuilt from it.
type Workbook struct {
	Source string     `json:"source,omitempty"`
	Sheets []RawSheet `json:"sheets"`
}

// PeriodHeader is a header cell together with the period number extracted from its text.
// Period is nil when the text carries no digits; such columns are dropped.
type PeriodHeader struct {
	Text   string `json:"text"`
	Period *int   `json:"period,omitempty"`
}

// SkipReason explains why a sheet did not contribute to the catalog
type SkipReason string

const (
	SkipTooFewRows    SkipReason = "too_few_rows"
	SkipUnknownMetric SkipReason = "unknown_metric"
)

// SkippedSheet records a sheet that was skipped during normalization
type SkippedSheet struct {
	Name   string     `json:"name"`
	Reason SkipReason `json:"reason"`
}
