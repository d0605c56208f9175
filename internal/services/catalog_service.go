package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "schoolpulse/internal/errors"
	"schoolpulse/internal/dataprocessing"
	"schoolpulse/internal/infrastructure"
	"schoolpulse/internal/sources/gsheets"
	"schoolpulse/internal/store"
	"schoolpulse/pkg/contracts/domain"
	"schoolpulse/pkg/contracts/events"
)

// Ingestion source kinds, used as the metric label
const (
	SourceUpload  = "upload"
	SourceSheets  = "sheets"
	SourceRestore = "restore"
)

// WorkbookSource fetches a workbook from a remote spreadsheet service
type WorkbookSource interface {
	Fetch(ctx context.Context, spreadsheetID string) (domain.Workbook, error)
}

// Notifier receives catalog events after they happen
type Notifier interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{}) error
}

// CatalogStatus describes the published catalog
type CatalogStatus struct {
	Ready         bool
	Sequence      uint64
	Entities      int
	Source        string
	PublishedAt   time.Time
	LastReport    domain.IngestionReport
	SheetsEnabled bool
}

type publication struct {
	catalog     *domain.Catalog
	report      domain.IngestionReport
	seq         uint64
	publishedAt time.Time
}

// CatalogService ingests workbooks and serves the published catalog.
// Readers load the current catalog without locking and never see a partial build.
type CatalogService struct {
	current atomic.Pointer[publication]
	seq     atomic.Uint64

	// publishMu serializes persist and publish
	publishMu sync.Mutex

	store    store.Store
	reader   *dataprocessing.WorkbookReader
	pipeline *dataprocessing.Pipeline
	sheets   WorkbookSource
	notifier Notifier
	tracer   trace.Tracer
	metrics  *infrastructure.CatalogMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// CatalogOption configures a CatalogService
type CatalogOption func(*CatalogService)

// WithSheetsSource enables IngestSheets
func WithSheetsSource(src WorkbookSource) CatalogOption {
	return func(s *CatalogService) { s.sheets = src }
}

// WithNotifier announces publications, typically to the WebSocket hub
func WithNotifier(n Notifier) CatalogOption {
	return func(s *CatalogService) { s.notifier = n }
}

// WithTelemetry sets the tracer and ingestion metrics
func WithTelemetry(tracer trace.Tracer, metrics *infrastructure.CatalogMetrics) CatalogOption {
	return func(s *CatalogService) {
		if tracer != nil {
			s.tracer = tracer
		}
		s.metrics = metrics
	}
}

// NewCatalogService creates a service persisting workbooks to st
func NewCatalogService(st store.Store, logger *slog.Logger, opts ...CatalogOption) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CatalogService{
		store:    st,
		reader:   dataprocessing.NewWorkbookReader(logger),
		pipeline: dataprocessing.NewPipeline(logger),
		tracer:   otel.Tracer(infrastructure.InstrumentationName),
		logger:   logger.With(slog.String("component", "catalog_service")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestWorkbook decodes workbook bytes, builds a catalog and publishes it.
// A malformed workbook leaves the published catalog untouched.
func (s *CatalogService) IngestWorkbook(ctx context.Context, source string, data []byte) (domain.IngestionReport, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ingest",
		trace.WithAttributes(
			attribute.String("ingest.kind", SourceUpload),
			attribute.String("ingest.source", source),
			attribute.Int("ingest.bytes", len(data)),
		))
	defer span.End()

	seq := s.seq.Add(1)
	start := s.now()

	_, readSpan := s.tracer.Start(ctx, "workbook.read")
	wb, err := s.reader.ReadBytes(data, source)
	readSpan.End()
	if err != nil {
		appErr := apierrors.NewParsingError("cannot read workbook", err).WithContext("source", source)
		s.fail(ctx, SourceUpload, source, start, appErr)
		return domain.IngestionReport{}, appErr
	}

	return s.ingest(ctx, SourceUpload, seq, start, wb, true)
}

// IngestSheets pulls a spreadsheet through the configured Google Sheets source
func (s *CatalogService) IngestSheets(ctx context.Context, spreadsheetID string) (domain.IngestionReport, error) {
	if s.sheets == nil {
		return domain.IngestionReport{}, apierrors.NewUnavailableError("google sheets ingestion is disabled", ErrSheetsDisabled)
	}

	ctx, span := s.tracer.Start(ctx, "catalog.ingest",
		trace.WithAttributes(
			attribute.String("ingest.kind", SourceSheets),
			attribute.String("ingest.spreadsheet_id", spreadsheetID),
		))
	defer span.End()

	seq := s.seq.Add(1)
	start := s.now()

	wb, err := s.sheets.Fetch(ctx, spreadsheetID)
	if err != nil {
		var appErr *apierrors.AppError
		if errors.Is(err, gsheets.ErrSpreadsheetNotFound) {
			appErr = apierrors.NewNotFoundError(fmt.Sprintf("spreadsheet %q", spreadsheetID), err)
		} else {
			appErr = apierrors.NewNetworkError("google sheets fetch failed", err)
		}
		s.fail(ctx, SourceSheets, "sheets:"+spreadsheetID, start, appErr)
		return domain.IngestionReport{}, appErr
	}

	return s.ingest(ctx, SourceSheets, seq, start, wb, true)
}

// Restore rebuilds the catalog from the persisted workbook.
// It reports false when the store holds no workbook.
func (s *CatalogService) Restore(ctx context.Context) (domain.IngestionReport, bool, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.restore")
	defer span.End()

	seq := s.seq.Add(1)
	start := s.now()

	data, err := s.store.Get(ctx, store.WorkbookKey)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.IngestionReport{}, false, apierrors.NewStorageError("cannot read snapshot", err)
	}
	if data == nil {
		s.logger.InfoContext(ctx, "no snapshot to restore")
		return domain.IngestionReport{}, false, nil
	}

	wb, savedAt, err := store.DecodeWorkbook(data)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordIngestion(ctx, SourceRestore, "failure", s.now().Sub(start), 0)
		return domain.IngestionReport{}, false, apierrors.NewStorageError("cannot decode snapshot", err)
	}

	report, err := s.ingest(ctx, SourceRestore, seq, start, wb, false)
	if err != nil {
		return report, false, err
	}

	s.logger.InfoContext(ctx, "catalog restored",
		slog.Time("saved_at", savedAt),
		slog.Int("entities", report.Entities))
	return report, true, nil
}

// ingest builds wb and publishes the result unless a newer ingestion already won
func (s *CatalogService) ingest(ctx context.Context, kind string, seq uint64, start time.Time, wb domain.Workbook, persist bool) (domain.IngestionReport, error) {
	_, buildSpan := s.tracer.Start(ctx, "catalog.build")
	catalog, report := s.pipeline.Build(wb)
	buildSpan.SetAttributes(
		attribute.Int("catalog.entities", report.Entities),
		attribute.Int("catalog.periods", report.Periods),
	)
	buildSpan.End()

	report.ID = uuid.New().String()

	s.publishMu.Lock()
	if cur := s.current.Load(); cur != nil && cur.seq > seq {
		s.publishMu.Unlock()
		s.logger.WarnContext(ctx, "discarding stale ingestion",
			slog.Uint64("sequence", seq),
			slog.Uint64("published_sequence", cur.seq))
		s.metrics.RecordIngestion(ctx, kind, "stale", s.now().Sub(start), report.Entities)
		return report, apierrors.NewConflictError("a newer workbook was published first", ErrStaleIngestion)
	}

	if persist {
		report.Persisted = s.persist(ctx, wb)
	} else {
		report.Persisted = true
	}

	pub := &publication{catalog: catalog, report: report, seq: seq, publishedAt: s.now().UTC()}
	s.current.Store(pub)
	s.publishMu.Unlock()

	s.metrics.RecordIngestion(ctx, kind, "success", s.now().Sub(start), report.Entities)
	s.logger.InfoContext(ctx, "catalog published",
		slog.String("ingestion_id", report.ID),
		slog.String("kind", kind),
		slog.String("source", report.Source),
		slog.Uint64("sequence", seq),
		slog.Int("entities", report.Entities),
		slog.Bool("persisted", report.Persisted))

	s.notify(ctx, events.MessageTypeCatalogUpdated, events.CatalogUpdated{Sequence: seq, Report: report})
	return report, nil
}

// persist stores the raw workbook; failure is logged and reported, never fatal
func (s *CatalogService) persist(ctx context.Context, wb domain.Workbook) bool {
	ctx, span := s.tracer.Start(ctx, "store.set")
	defer span.End()

	data, err := store.EncodeWorkbook(wb, s.now())
	if err == nil {
		err = s.store.Set(ctx, store.WorkbookKey, data)
	}
	s.metrics.RecordSnapshotWrite(ctx, err == nil)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.ErrorContext(ctx, "failed to persist workbook",
			slog.String("key", store.WorkbookKey),
			slog.String("error", err.Error()))
		return false
	}
	span.SetAttributes(attribute.Int("store.bytes", len(data)))
	return true
}

func (s *CatalogService) fail(ctx context.Context, kind, source string, start time.Time, err error) {
	infrastructure.RecordError(ctx, err)
	s.metrics.RecordIngestion(ctx, kind, "failure", s.now().Sub(start), 0)
	s.logger.WarnContext(ctx, "ingestion failed",
		slog.String("kind", kind),
		slog.String("source", source),
		slog.String("error", err.Error()))
	s.notify(ctx, events.MessageTypeIngestionFailed, events.IngestionFailed{Source: source, Error: err.Error()})
}

func (s *CatalogService) notify(ctx context.Context, msgType events.MessageType, data interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, msgType, data); err != nil {
		s.logger.WarnContext(ctx, "failed to notify clients",
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()))
	}
}

// Catalog returns the published catalog
func (s *CatalogService) Catalog() (*domain.Catalog, error) {
	pub := s.current.Load()
	if pub == nil {
		return nil, ErrNoCatalog
	}
	return pub.catalog, nil
}

// ListEntities returns every entity identifier in ascending order
func (s *CatalogService) ListEntities() ([]string, error) {
	c, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return c.Entities(), nil
}

// SeriesFor returns an entity's series ordered by period
func (s *CatalogService) SeriesFor(entity string) (domain.TimeSeries, error) {
	c, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	ts, ok := c.Series(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, entity)
	}
	return ts, nil
}

// MeanFor averages metric over the entity's periods; absent values count as 0
func (s *CatalogService) MeanFor(entity string, metric domain.MetricID) (float64, error) {
	if _, ok := domain.MetricByID(metric); !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	c, err := s.Catalog()
	if err != nil {
		return 0, err
	}
	if _, ok := c.Series(entity); !ok {
		return 0, fmt.Errorf("%w: %q", ErrEntityNotFound, entity)
	}
	return dataprocessing.MeanFor(c, entity, metric), nil
}

// RankingFor orders every entity by its mean for metric
func (s *CatalogService) RankingFor(metric domain.MetricID) ([]domain.RankingEntry, error) {
	if _, ok := domain.MetricByID(metric); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	c, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return dataprocessing.RankingFor(c, metric), nil
}

// TierFor classifies value against the metric's thresholds. It needs no catalog.
func (s *CatalogService) TierFor(metric domain.MetricID, value float64) (domain.Tier, error) {
	return dataprocessing.TierFor(metric, value)
}

// TotalsFor sums every metric over an entity's periods
func (s *CatalogService) TotalsFor(entity string) (domain.EntityTotals, error) {
	c, err := s.Catalog()
	if err != nil {
		return domain.EntityTotals{}, err
	}
	totals, ok := dataprocessing.TotalsFor(c, entity)
	if !ok {
		return domain.EntityTotals{}, fmt.Errorf("%w: %q", ErrEntityNotFound, entity)
	}
	return totals, nil
}

// SnapshotFor returns every metric of an entity for one period
func (s *CatalogService) SnapshotFor(entity string, period int) (domain.PeriodSnapshot, error) {
	c, err := s.Catalog()
	if err != nil {
		return domain.PeriodSnapshot{}, err
	}
	if _, ok := c.Series(entity); !ok {
		return domain.PeriodSnapshot{}, fmt.Errorf("%w: %q", ErrEntityNotFound, entity)
	}
	snap, ok := dataprocessing.SnapshotFor(c, entity, period)
	if !ok {
		return domain.PeriodSnapshot{}, fmt.Errorf("%w: %d", ErrPeriodNotFound, period)
	}
	return snap, nil
}

// Status describes the published catalog
func (s *CatalogService) Status() CatalogStatus {
	status := CatalogStatus{SheetsEnabled: s.sheets != nil}
	pub := s.current.Load()
	if pub == nil {
		return status
	}
	status.Ready = true
	status.Sequence = pub.seq
	status.Entities = pub.catalog.Len()
	status.Source = pub.catalog.Source()
	status.PublishedAt = pub.publishedAt
	status.LastReport = pub.report
	return status
}
