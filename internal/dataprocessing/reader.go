package dataprocessing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"schoolpulse/pkg/contracts/domain"
)

// ErrMalformedWorkbook is returned when input bytes are not a readable workbook container.
var ErrMalformedWorkbook = errors.New("malformed workbook")

// WorkbookReader decodes workbook bytes into raw sheets
type WorkbookReader struct {
	logger *slog.Logger
}

// NewWorkbookReader creates a reader; a nil logger falls back to slog.Default
func NewWorkbookReader(logger *slog.Logger) *WorkbookReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookReader{logger: logger.With(slog.String("component", "workbook_reader"))}
}

// ReadBytes decodes an in-memory workbook
func (r *WorkbookReader) ReadBytes(data []byte, source string) (domain.Workbook, error) {
	return r.Read(bytes.NewReader(data), source)
}

// Read decodes every sheet of the workbook in r. Sheets are returned in
// workbook order. Cells excelize types as numbers become float64, booleans
// become bool and every other cell keeps its text, so entity codes such as
// "007" survive unchanged.
func (r *WorkbookReader) Read(rd io.Reader, source string) (domain.Workbook, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return domain.Workbook{}, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer f.Close()

	wb := domain.Workbook{Source: source}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return domain.Workbook{}, fmt.Errorf("%w: sheet %q: %v", ErrMalformedWorkbook, name, err)
		}

		sheet := domain.RawSheet{Name: name, Rows: make([][]any, len(rows))}
		for i, row := range rows {
			cells := make([]any, len(row))
			for j, cell := range row {
				v, err := typedCell(f, name, j+1, i+1, cell)
				if err != nil {
					return domain.Workbook{}, fmt.Errorf("%w: sheet %q: %v", ErrMalformedWorkbook, name, err)
				}
				cells[j] = v
			}
			sheet.Rows[i] = cells
		}
		wb.Sheets = append(wb.Sheets, sheet)

		r.logger.Debug("sheet decoded",
			slog.String("sheet", name),
			slog.Int("rows", len(rows)))
	}

	r.logger.Info("workbook decoded",
		slog.String("source", source),
		slog.Int("sheets", len(wb.Sheets)))

	return wb, nil
}

// typedCell converts one raw cell value according to its stored type. Blanks are nil.
func typedCell(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	cellType, err := f.GetCellType(sheet, ref)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		// Cells without a type attribute hold numbers
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, nil
		}
		return raw, nil
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	default:
		return raw, nil
	}
}
