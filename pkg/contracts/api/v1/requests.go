// Package api contains the request and response bodies of the v1 HTTP API.
package api

import (
	"time"

	"schoolpulse/pkg/contracts/domain"
)

// SheetsIngestRequest asks the server to pull a workbook from Google Sheets
type SheetsIngestRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,spreadsheet_id"`
}

// EntitiesResponse lists the entities of the published catalog
type EntitiesResponse struct {
	Entities []string `json:"entities"`
	Count    int      `json:"count"`
}

// SeriesResponse is the ordered time series of one entity
type SeriesResponse struct {
	Entity string            `json:"entity"`
	Series domain.TimeSeries `json:"series"`
}

// MeanResponse is the mean of one metric over an entity's periods
type MeanResponse struct {
	Entity string          `json:"entity"`
	Metric domain.MetricID `json:"metric"`
	Mean   float64         `json:"mean"`
	Tier   domain.Tier     `json:"tier,omitempty"`
}

// RankingResponse orders all entities by their mean for one metric
type RankingResponse struct {
	Metric  domain.MetricID       `json:"metric"`
	Entries []domain.RankingEntry `json:"entries"`
}

// TierResponse classifies a single value
type TierResponse struct {
	Metric domain.MetricID `json:"metric"`
	Value  float64         `json:"value"`
	Tier   domain.Tier     `json:"tier"`
}

// StatusResponse describes the published catalog
type StatusResponse struct {
	Ready       bool                    `json:"ready"`
	Sequence    uint64                  `json:"sequence"`
	Entities    int                     `json:"entities"`
	Source      string                  `json:"source,omitempty"`
	PublishedAt *time.Time              `json:"published_at,omitempty"`
	LastReport  *domain.IngestionReport `json:"last_report,omitempty"`
	SheetsReady bool                    `json:"sheets_enabled"`
}
