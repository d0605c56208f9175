// Package services holds the application services behind the HTTP handlers.
//
// CatalogService owns the ingestion lifecycle: it reads a workbook (uploaded
// bytes, a Google Sheets spreadsheet, or the persisted snapshot), builds a
// catalog, persists the raw workbook and swaps the published catalog in one
// step. Queries always read the most recently published catalog.
//
// HealthService reports liveness and readiness for the /health endpoints.
package services
