package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM makes Excel open the file as UTF-8 instead of the system code page
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	BOMPrefix bool
}

// CSVWriter streams records to an io.Writer
type CSVWriter struct {
	writer *csv.Writer
	rows   int
}

// NewCSVWriter writes the optional BOM and header row to w
func NewCSVWriter(w io.Writer, options WriteOptions) (*CSVWriter, error) {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	cw := &CSVWriter{writer: csv.NewWriter(w)}
	if len(options.Headers) > 0 {
		if err := cw.writer.Write(options.Headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return cw, nil
}

// WriteRecord writes a single record
func (c *CSVWriter) WriteRecord(record []string) error {
	if err := c.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record %d: %w", c.rows, err)
	}
	c.rows++
	return nil
}

// Rows returns the number of records written, excluding the header
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Close flushes buffered records
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.writer.Error()
}
