// Package dataprocessing turns metric workbooks into an entity catalog and computes
// the analytics served on top of it.
//
// # Architecture
//
// The package is organized into the stages of one ingestion:
//
// 1. Reader: decodes workbook bytes into raw sheets (excelize)
// 2. Normalizer: maps each sheet to a metric and its header cells to period numbers
// 3. Coercer: converts raw cells to finite numbers, scaling fractional percentages
// 4. Builder: merges all sheets into one period-ordered series per entity
//
// Analytics (mean, ranking, totals, snapshots) and the tier classifier read a built catalog.
//
// # Usage
//
//	wb, err := dataprocessing.NewWorkbookReader(logger).ReadBytes(data, "upload.xlsx")
//	if err != nil {
//	    return err // wraps ErrMalformedWorkbook
//	}
//	catalog, report := dataprocessing.NewPipeline(logger).Build(wb)
//	ranking := dataprocessing.RankingFor(catalog, domain.MetricAccuracyIndex)
//
// # Data Flow
//
//	Workbook bytes → Reader → RawSheets → Normalizer/Coercer → Accumulator → Builder → Catalog
//
// # Error Handling
//
// Only an unreadable workbook is an error. Short sheets, unknown sheet names, headers
// without a period number and non-numeric cells are absorbed and counted in the
// IngestionReport.
package dataprocessing
