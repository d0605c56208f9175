package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"schoolpulse/internal/config"
	"schoolpulse/internal/dataprocessing"
	apierrors "schoolpulse/internal/errors"
	"schoolpulse/internal/exporter"
	mw "schoolpulse/internal/middleware"
	"schoolpulse/internal/services"
	"schoolpulse/internal/validation"
	api "schoolpulse/pkg/contracts/api/v1"
	"schoolpulse/pkg/contracts/domain"
)

// multipart overhead allowed on top of the workbook size limit
const multipartSlack = 64 << 10

const csvContentType = "text/csv; charset=utf-8"

// CatalogHandler serves ingestion and catalog queries with RFC 7807 errors
type CatalogHandler struct {
	service        CatalogServiceInterface
	validator      *mw.Validator
	files          *validation.FileValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewCatalogHandler creates a catalog handler. Uploads larger than maxUploadBytes are rejected with 413.
func NewCatalogHandler(service CatalogServiceInterface, validator *mw.Validator, errorHandler *apierrors.ErrorHandler, maxUploadBytes int64, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service:        service,
		validator:      validator,
		files:          validation.NewFileValidator(logger),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "catalog_handler")),
	}
}

// Routes returns the catalog routes. ingestMiddleware wraps only the POST endpoints.
func (h *CatalogHandler) Routes(ingestMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/status", h.GetStatus)
	r.Get("/entities", h.ListEntities)
	r.Route("/entities/{entity}", func(r chi.Router) {
		r.Use(h.EntityCtx)
		r.Get("/series", h.GetSeries)
		r.Get("/mean", h.GetMean)
		r.Get("/totals", h.GetTotals)
		r.Get("/periods/{period}", h.GetPeriod)
	})
	r.Get("/rankings/{metric}", h.GetRanking)
	r.Get("/tiers", h.GetTier)
	r.Get("/export.csv", h.ExportCatalog)

	r.Group(func(r chi.Router) {
		r.Use(ingestMiddleware...)
		r.Post("/workbooks", h.UploadWorkbook)
		r.Post("/sheets", h.IngestSheets)
	})

	return r
}

// EntityCtx rejects blank entity segments
func (h *CatalogHandler) EntityCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(chi.URLParam(r, "entity")) == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("entity", "entity is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStatus handles GET /api/catalog/status
func (h *CatalogHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()
	resp := api.StatusResponse{
		Ready:       st.Ready,
		Sequence:    st.Sequence,
		Entities:    st.Entities,
		Source:      st.Source,
		SheetsReady: st.SheetsEnabled,
	}
	if st.Ready {
		publishedAt := st.PublishedAt
		report := st.LastReport
		resp.PublishedAt = &publishedAt
		resp.LastReport = &report
	}
	render.JSON(w, r, resp)
}

// ListEntities handles GET /api/catalog/entities
func (h *CatalogHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.ListEntities()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, api.EntitiesResponse{Entities: entities, Count: len(entities)})
}

// GetSeries handles GET /api/catalog/entities/{entity}/series
func (h *CatalogHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	series, err := h.service.SeriesFor(entity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, api.SeriesResponse{Entity: entity, Series: series})
}

// GetMean handles GET /api/catalog/entities/{entity}/mean?metric=
func (h *CatalogHandler) GetMean(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	metric, err := h.queryMetric(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	mean, err := h.service.MeanFor(entity, metric)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := api.MeanResponse{Entity: entity, Metric: metric, Mean: mean}
	if tier, err := h.service.TierFor(metric, mean); err == nil {
		resp.Tier = tier
	}
	render.JSON(w, r, resp)
}

// GetTotals handles GET /api/catalog/entities/{entity}/totals
func (h *CatalogHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.TotalsFor(chi.URLParam(r, "entity"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, totals)
}

// GetPeriod handles GET /api/catalog/entities/{entity}/periods/{period}.
// The period "latest" selects the last period of the entity's series.
func (h *CatalogHandler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	var period int
	if raw := chi.URLParam(r, "period"); raw == "latest" {
		series, err := h.service.SeriesFor(entity)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		latest, ok := dataprocessing.LatestPeriod(series)
		if !ok {
			h.fail(w, r, services.ErrPeriodNotFound)
			return
		}
		period = latest
	} else {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("period", "period must be a non-negative integer or \"latest\""))
			return
		}
		period = p
	}

	snap, err := h.service.SnapshotFor(entity, period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// GetRanking handles GET /api/catalog/rankings/{metric}.
// ?format=csv or an Accept of text/csv returns the ranking as a CSV download.
func (h *CatalogHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "metric")
	m, ok := domain.LookupMetric(raw)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError(fmt.Sprintf("metric %q", raw)))
		return
	}
	metric := m.ID

	entries, err := h.service.RankingFor(metric)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if wantsCSV(r) {
		h.writeCSV(w, r, fmt.Sprintf("ranking-%s.csv", metric), func(out io.Writer) (int, error) {
			return exporter.WriteRanking(out, entries, r.URL.Query().Has("bom"))
		})
		return
	}
	render.JSON(w, r, api.RankingResponse{Metric: metric, Entries: entries})
}

// ExportCatalog handles GET /api/catalog/export.csv
func (h *CatalogHandler) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeCSV(w, r, "catalog.csv", func(out io.Writer) (int, error) {
		return exporter.WriteCatalog(out, catalog, r.URL.Query().Has("bom"))
	})
}

// writeCSV renders into a buffer first so a failed export still gets a problem response
func (h *CatalogHandler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer) (int, error)) {
	var buf bytes.Buffer
	rows, err := write(&buf)
	if err != nil {
		h.errorHandler.HandleError(w, r, fmt.Errorf("csv export failed: %w", err))
		return
	}

	h.logger.DebugContext(r.Context(), "csv exported",
		slog.String("request_id", mw.GetRequestID(r.Context())),
		slog.String("filename", filename),
		slog.Int("rows", rows))

	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// GetTier handles GET /api/catalog/tiers?metric=&value=
func (h *CatalogHandler) GetTier(w http.ResponseWriter, r *http.Request) {
	metric, err := h.queryMetric(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	value, err := mw.QueryFloat(r, "value")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	tier, err := h.service.TierFor(metric, value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, r, api.TierResponse{Metric: metric, Value: value, Tier: tier})
}

// UploadWorkbook handles POST /api/catalog/workbooks
func (h *CatalogHandler) UploadWorkbook(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadBytes + multipartSlack
	if r.ContentLength > limit {
		h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(config.UploadFormField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(config.UploadFormField, "a workbook file is required"))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
		return
	}
	if err := h.files.ValidateWorkbookName(header.Filename); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(config.UploadFormField, err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.files.ValidateWorkbookContent(data); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NewParsingError("uploaded file is not an xlsx workbook", err).
			WithContext("source", filepath.Base(header.Filename)))
		return
	}

	h.logger.InfoContext(r.Context(), "workbook uploaded",
		slog.String("request_id", mw.GetRequestID(r.Context())),
		slog.String("filename", header.Filename),
		slog.Int("bytes", len(data)))

	report, err := h.service.IngestWorkbook(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, report)
}

// IngestSheets handles POST /api/catalog/sheets
func (h *CatalogHandler) IngestSheets(w http.ResponseWriter, r *http.Request) {
	var req api.SheetsIngestRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := h.service.IngestSheets(r.Context(), req.SpreadsheetID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, report)
}

func (h *CatalogHandler) queryMetric(r *http.Request) (domain.MetricID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("metric"))
	if err := h.validator.Var("metric", raw, "required,metric_name"); err != nil {
		return "", err
	}
	m, ok := domain.LookupMetric(raw)
	if !ok {
		return "", apierrors.ErrValidation("metric", fmt.Sprintf("unknown metric %q", raw))
	}
	return m.ID, nil
}

// fail maps service errors onto API errors
func (h *CatalogHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNoCatalog):
		err = apierrors.ErrCatalogNotReady
	case errors.Is(err, services.ErrEntityNotFound):
		err = apierrors.NotFoundError(fmt.Sprintf("entity %q", chi.URLParam(r, "entity")))
	case errors.Is(err, services.ErrPeriodNotFound):
		err = apierrors.NotFoundError(fmt.Sprintf("period %s", chi.URLParam(r, "period")))
	case errors.Is(err, services.ErrUnknownMetric):
		err = apierrors.ErrValidation("metric", err.Error())
	}
	h.errorHandler.HandleError(w, r, err)
}
