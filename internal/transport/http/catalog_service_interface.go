package http

import (
	"context"

	"schoolpulse/internal/services"
	"schoolpulse/pkg/contracts/domain"
)

// CatalogServiceInterface defines the catalog operations the handlers need
type CatalogServiceInterface interface {
	IngestWorkbook(ctx context.Context, source string, data []byte) (domain.IngestionReport, error)
	IngestSheets(ctx context.Context, spreadsheetID string) (domain.IngestionReport, error)

	Catalog() (*domain.Catalog, error)
	ListEntities() ([]string, error)
	SeriesFor(entity string) (domain.TimeSeries, error)
	MeanFor(entity string, metric domain.MetricID) (float64, error)
	RankingFor(metric domain.MetricID) ([]domain.RankingEntry, error)
	TierFor(metric domain.MetricID, value float64) (domain.Tier, error)
	TotalsFor(entity string) (domain.EntityTotals, error)
	SnapshotFor(entity string, period int) (domain.PeriodSnapshot, error)
	Status() services.CatalogStatus
}
