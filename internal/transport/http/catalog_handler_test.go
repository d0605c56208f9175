package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apierrors "schoolpulse/internal/errors"
	mw "schoolpulse/internal/middleware"
	"schoolpulse/internal/services"
	"schoolpulse/internal/shared/testutil"
	"schoolpulse/internal/store"
	api "schoolpulse/pkg/contracts/api/v1"
	"schoolpulse/pkg/contracts/domain"
)

const testSpreadsheetID = "1AbCdEfGhIjKlMnOpQrStUvWxYz0123456789"

type stubSheets struct {
	wb  domain.Workbook
	err error
}

func (s stubSheets) Fetch(ctx context.Context, id string) (domain.Workbook, error) {
	return s.wb, s.err
}

func fixtureSheets() [][]any {
	return [][]any{
		{"School", "Period 1", "Period 2"},
		{"A", 3.0, 0.8},
		{"B", 1.0, 1.2},
	}
}

func fixtureXLSX(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), "Exercise index"))
	_, err := f.NewSheet("Accuracy index")
	require.NoError(t, err)

	for _, name := range []string{"Exercise index", "Accuracy index"} {
		for r, row := range fixtureSheets() {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

type testServer struct {
	router  chi.Router
	service *services.CatalogService
}

func newTestServer(t *testing.T, maxUpload int64, opts ...services.CatalogOption) *testServer {
	t.Helper()

	logger := testutil.DiscardLogger()
	svc := services.NewCatalogService(store.NewMemoryStore(), logger, opts...)
	errHandler := apierrors.NewErrorHandler(logger, false)
	handler := NewCatalogHandler(svc, mw.NewValidator(), errHandler, maxUpload, logger)

	r := chi.NewRouter()
	r.Mount("/api/catalog", handler.Routes())
	return &testServer{router: r, service: svc}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, data)
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/workbooks", body)
	req.Header.Set("Content-Type", contentType)
	return s.do(t, req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCatalogHandler_NotReady(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, apierrors.TypeCatalogNotReady, body["type"])

	rec = srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[api.StatusResponse](t, rec)
	assert.False(t, status.Ready)
	assert.Nil(t, status.LastReport)
}

func TestCatalogHandler_UploadAndQuery(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := srv.upload(t, "schools.xlsx", fixtureXLSX(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	report := decode[domain.IngestionReport](t, rec)
	assert.Equal(t, "schools.xlsx", report.Source)
	assert.Equal(t, 2, report.Entities)
	assert.True(t, report.Persisted)

	t.Run("status", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/status", nil))
		status := decode[api.StatusResponse](t, rec)
		assert.True(t, status.Ready)
		assert.Equal(t, 2, status.Entities)
		require.NotNil(t, status.LastReport)
		assert.Equal(t, report.ID, status.LastReport.ID)
		assert.NotNil(t, status.PublishedAt)
	})

	t.Run("entities", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.EntitiesResponse](t, rec)
		assert.Equal(t, []string{"A", "B"}, resp.Entities)
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("series", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/A/series", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.SeriesResponse](t, rec)
		require.Len(t, resp.Series, 2)
		assert.Equal(t, 1, resp.Series[0].Period)
		assert.Equal(t, 3.0, resp.Series[0].Values[domain.MetricExerciseIndex])
		assert.InDelta(t, 80, resp.Series[1].Values[domain.MetricAccuracyIndex], 1e-9)
	})

	t.Run("mean", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/A/mean?metric=exercise_index", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.MeanResponse](t, rec)
		assert.InDelta(t, 1.9, resp.Mean, 1e-9)
		assert.Equal(t, domain.TierWarning, resp.Tier)
	})

	t.Run("totals", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/B/totals", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		totals := decode[domain.EntityTotals](t, rec)
		assert.InDelta(t, 2.2, totals.Values[domain.MetricExerciseIndex], 1e-9)
	})

	t.Run("period", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/B/periods/1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decode[domain.PeriodSnapshot](t, rec)
		assert.InDelta(t, 100, snap.Values[domain.MetricAccuracyIndex], 1e-9)
	})

	t.Run("latest period", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/A/periods/latest", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		snap := decode[domain.PeriodSnapshot](t, rec)
		assert.Equal(t, 2, snap.Period)
		assert.InDelta(t, 0.8, snap.Values[domain.MetricExerciseIndex], 1e-9)
	})

	t.Run("ranking", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/rankings/exercise_index", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.RankingResponse](t, rec)
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, "A", resp.Entries[0].Entity)
		assert.Equal(t, 1, resp.Entries[0].Rank)
	})

	t.Run("ranking by alias", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/rankings/Acerto", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[api.RankingResponse](t, rec)
		assert.Equal(t, domain.MetricAccuracyIndex, resp.Metric)
	})
}

func TestCatalogHandler_CSVExport(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/export.csv", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = srv.upload(t, "schools.xlsx", fixtureXLSX(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("ranking by query", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/rankings/exercise_index?format=csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "ranking-exercise_index.csv")

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "rank,entity,mean,tier", lines[0])
		assert.Equal(t, "1,A,1.90,warning", lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "2,B,1.10,"))
	})

	t.Run("ranking by accept header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/catalog/rankings/exercise_index", nil)
		req.Header.Set("Accept", "text/csv")
		rec := srv.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "rank,entity,mean,tier"))
	})

	t.Run("ranking with bom", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/rankings/exercise_index?format=csv&bom", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFFrank"))
	})

	t.Run("full catalog", func(t *testing.T) {
		rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/export.csv", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "catalog.csv")

		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		assert.Equal(t, "entity,period,metric,value", lines[0])
		assert.Len(t, lines, 1+2*2*len(domain.MetricIDs()))
		assert.Contains(t, lines, "A,1,exercise_index,3.00")
		assert.Contains(t, lines, "B,1,accuracy_index,100.00")
	})
}

func TestCatalogHandler_Errors(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	rec := srv.upload(t, "schools.xlsx", fixtureXLSX(t))
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantType   string
	}{
		{"unknown entity", "/api/catalog/entities/Z/series", http.StatusNotFound, apierrors.TypeNotFound},
		{"unknown entity totals", "/api/catalog/entities/Z/totals", http.StatusNotFound, apierrors.TypeNotFound},
		{"unknown period", "/api/catalog/entities/A/periods/9", http.StatusNotFound, apierrors.TypeNotFound},
		{"bad period", "/api/catalog/entities/A/periods/first", http.StatusBadRequest, apierrors.TypeValidation},
		{"unknown ranking metric", "/api/catalog/rankings/attendance", http.StatusNotFound, apierrors.TypeNotFound},
		{"mean without metric", "/api/catalog/entities/A/mean", http.StatusBadRequest, apierrors.TypeValidation},
		{"mean unknown metric", "/api/catalog/entities/A/mean?metric=attendance", http.StatusBadRequest, apierrors.TypeValidation},
		{"tier without value", "/api/catalog/tiers?metric=accuracy_index", http.StatusBadRequest, apierrors.TypeValidation},
		{"tier bad value", "/api/catalog/tiers?metric=accuracy_index&value=high", http.StatusBadRequest, apierrors.TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			body := decode[map[string]any](t, rec)
			assert.Equal(t, tt.wantType, body["type"])
		})
	}
}

func TestCatalogHandler_Tier(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	tests := []struct {
		value string
		want  domain.Tier
	}{
		{"72", domain.TierOnTarget},
		{"55", domain.TierWarning},
		{"40", domain.TierBelowTarget},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/catalog/tiers?metric=accuracy_index&value="+tt.value, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, decode[api.TierResponse](t, rec).Tier)
		})
	}
}

func TestCatalogHandler_UploadRejections(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		data       []byte
		maxUpload  int64
		wantStatus int
	}{
		{"malformed workbook", "broken.xlsx", []byte("not a zip file"), 1 << 20, http.StatusUnprocessableEntity},
		{"wrong extension", "schools.csv", []byte("a,b\n"), 1 << 20, http.StatusBadRequest},
		{"office lock file", "~$schools.xlsx", []byte("PK\x03\x04"), 1 << 20, http.StatusBadRequest},
		{"html renamed to xlsx", "page.xlsx", []byte("<html></html>"), 1 << 20, http.StatusUnprocessableEntity},
		{"too large", "big.xlsx", bytes.Repeat([]byte("x"), 256<<10), 1 << 10, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.maxUpload)
			rec := srv.upload(t, tt.filename, tt.data)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, srv.service.Status().Ready)
		})
	}
}

func TestCatalogHandler_UploadMissingFile(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	body, contentType := multipartBody(t, "attachment", "schools.xlsx", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/workbooks", body)
	req.Header.Set("Content-Type", contentType)

	rec := srv.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file")
}

func TestCatalogHandler_IngestSheets(t *testing.T) {
	header := []any{"School", "P1"}
	wb := domain.Workbook{
		Source: "sheets:" + testSpreadsheetID,
		Sheets: []domain.RawSheet{{Name: "Acessos", Rows: [][]any{header, {"A", 0.5}}}},
	}

	tests := []struct {
		name       string
		opts       []services.CatalogOption
		body       string
		wantStatus int
	}{
		{"success", []services.CatalogOption{services.WithSheetsSource(stubSheets{wb: wb})}, `{"spreadsheet_id":"` + testSpreadsheetID + `"}`, http.StatusCreated},
		{"disabled", nil, `{"spreadsheet_id":"` + testSpreadsheetID + `"}`, http.StatusServiceUnavailable},
		{"invalid id", []services.CatalogOption{services.WithSheetsSource(stubSheets{wb: wb})}, `{"spreadsheet_id":"short"}`, http.StatusBadRequest},
		{"unknown field", []services.CatalogOption{services.WithSheetsSource(stubSheets{wb: wb})}, `{"spreadsheet_id":"` + testSpreadsheetID + `","range":"A1"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, 1<<20, tt.opts...)

			req := httptest.NewRequest(http.MethodPost, "/api/catalog/sheets", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := srv.do(t, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestCatalogHandler_IngestMiddlewareWrapsOnlyPosts(t *testing.T) {
	logger := testutil.DiscardLogger()
	svc := services.NewCatalogService(store.NewMemoryStore(), logger)
	handler := NewCatalogHandler(svc, mw.NewValidator(), apierrors.NewErrorHandler(logger, false), 1<<20, logger)

	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}
	r := handler.Routes(blocked)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/workbooks", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
