package services

import (
	"errors"

	"schoolpulse/internal/dataprocessing"
)

// Catalog service errors
var (
	// ErrNoCatalog means no workbook has been ingested or restored yet
	ErrNoCatalog = errors.New("no catalog published")

	ErrEntityNotFound = errors.New("entity not found")
	ErrPeriodNotFound = errors.New("period not found")
	ErrUnknownMetric  = dataprocessing.ErrUnknownMetric

	// ErrSheetsDisabled means no Google Sheets source is configured
	ErrSheetsDisabled = errors.New("google sheets source not configured")

	// ErrStaleIngestion means a newer ingestion was published while this one was building
	ErrStaleIngestion = errors.New("superseded by a newer ingestion")
)
