// Package exporter writes catalog data as CSV.
//
// CSVWriter streams records to any io.Writer, optionally prefixed with a UTF-8
// BOM so Excel detects the encoding. WriteRanking and WriteCatalog build on it
// for the two export shapes served by the API and the ingest command:
//
//	rank,entity,mean,tier
//	1,A,1.90,warning
//
//	entity,period,metric,value
//	A,1,exercise_index,3.00
package exporter
