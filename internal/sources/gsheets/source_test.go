package gsheets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestSheetFromValues(t *testing.T) {
	sheet := SheetFromValues("accuracy index", [][]interface{}{
		{"Escola", "Semana 1", "Semana 2"},
		{"A", 0.8, ""},
		{"B", "  ", true},
		{},
	})

	assert.Equal(t, "accuracy index", sheet.Name)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, []any{"Escola", "Semana 1", "Semana 2"}, sheet.Rows[0])
	assert.Equal(t, []any{"A", 0.8, nil}, sheet.Rows[1])
	assert.Equal(t, []any{"B", nil, true}, sheet.Rows[2])
	assert.Empty(t, sheet.Rows[3])
}

func TestQuoteSheetTitle(t *testing.T) {
	assert.Equal(t, "'exercise index'", quoteSheetTitle("exercise index"))
	assert.Equal(t, "'Escola''s data'", quoteSheetTitle("Escola's data"))
}

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	service, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return NewWithService(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSource_Fetch(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/values:batchGet"):
			assert.Equal(t, []string{"'exercise index'", "'accuracy index'"}, r.URL.Query()["ranges"])
			assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
			json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId": "abc",
				"valueRanges": []map[string]any{
					{"range": "'exercise index'!A1:B2", "values": [][]any{{"Entity", "Period 1"}, {"A", 3}}},
					{"range": "'accuracy index'!A1:B2", "values": [][]any{{"Entity", "Period 1"}, {"A", 0.8}}},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/spreadsheets/abc"):
			json.NewEncoder(w).Encode(map[string]any{
				"spreadsheetId": "abc",
				"properties":    map[string]any{"title": "Weekly report"},
				"sheets": []map[string]any{
					{"properties": map[string]any{"title": "exercise index"}},
					{"properties": map[string]any{"title": "accuracy index"}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`)
		}
	})

	wb, err := src.Fetch(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, "sheets:Weekly report", wb.Source)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "exercise index", wb.Sheets[0].Name)
	assert.Equal(t, []any{"A", 3.0}, wb.Sheets[0].Rows[1])
	assert.Equal(t, "accuracy index", wb.Sheets[1].Name)
	assert.Equal(t, []any{"A", 0.8}, wb.Sheets[1].Rows[1])
}

func TestSource_FetchNotFound(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found."}}`)
	})

	_, err := src.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSpreadsheetNotFound)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), "", nil, nil)
	assert.Error(t, err)
}
