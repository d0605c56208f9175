// Package gsheets reads metric workbooks from Google Sheets spreadsheets.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"schoolpulse/pkg/contracts/domain"
)

// ErrSpreadsheetNotFound is returned when the spreadsheet does not exist or is not shared with the service account
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

// Source fetches every tab of a spreadsheet as raw sheets
type Source struct {
	service *sheets.Service
	logger  *slog.Logger
}

// New creates a Sheets-backed source. Credentials come from credentialsJSON when
// set, otherwise from credentialsFile.
func New(ctx context.Context, credentialsFile string, credentialsJSON []byte, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var credentialsOption option.ClientOption
	switch {
	case len(credentialsJSON) > 0:
		credentialsOption = option.WithCredentialsJSON(credentialsJSON)
	case credentialsFile != "":
		credentialsOption = option.WithCredentialsFile(credentialsFile)
	default:
		return nil, fmt.Errorf("google sheets credentials are not configured")
	}

	service, err := sheets.NewService(ctx, credentialsOption, option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewWithService(service, logger), nil
}

// NewWithService wraps an existing Sheets service
func NewWithService(service *sheets.Service, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		service: service,
		logger:  logger.With(slog.String("component", "gsheets_source")),
	}
}

// Fetch reads every tab of spreadsheetID with unformatted values.
func (s *Source) Fetch(ctx context.Context, spreadsheetID string) (domain.Workbook, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(spreadsheetID).
		Fields("properties.title", "sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Workbook{}, wrapAPIError(spreadsheetID, err)
	}

	titles := make([]string, 0, len(spreadsheet.Sheets))
	ranges := make([]string, 0, len(spreadsheet.Sheets))
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties == nil {
			continue
		}
		titles = append(titles, sh.Properties.Title)
		ranges = append(ranges, quoteSheetTitle(sh.Properties.Title))
	}

	wb := domain.Workbook{Source: "sheets:" + spreadsheetID}
	if spreadsheet.Properties != nil && spreadsheet.Properties.Title != "" {
		wb.Source = "sheets:" + spreadsheet.Properties.Title
	}
	if len(ranges) == 0 {
		return wb, nil
	}

	resp, err := s.service.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Workbook{}, wrapAPIError(spreadsheetID, err)
	}

	for i, vr := range resp.ValueRanges {
		if i >= len(titles) || vr == nil {
			break
		}
		wb.Sheets = append(wb.Sheets, SheetFromValues(titles[i], vr.Values))
	}

	s.logger.InfoContext(ctx, "spreadsheet fetched",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.Int("sheets", len(wb.Sheets)))

	return wb, nil
}

// SheetFromValues converts a Sheets API value grid into a raw sheet.
// Numbers arrive as float64 and are kept; blank strings become nil.
func SheetFromValues(title string, values [][]interface{}) domain.RawSheet {
	sheet := domain.RawSheet{Name: title, Rows: make([][]any, len(values))}
	for i, row := range values {
		cells := make([]any, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					cells[j] = v
				}
			case float64, bool:
				cells[j] = v
			case nil:
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		sheet.Rows[i] = cells
	}
	return sheet
}

// quoteSheetTitle renders a sheet title as an A1 range covering the whole tab
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func wrapAPIError(spreadsheetID string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", ErrSpreadsheetNotFound, spreadsheetID)
	}
	return fmt.Errorf("failed to read spreadsheet %s: %w", spreadsheetID, err)
}
