package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"schoolpulse/internal/store"
	"schoolpulse/pkg/contracts"
)

// StatusProvider reports the published catalog
type StatusProvider interface {
	Status() CatalogStatus
}

// ClientCounter reports connected WebSocket clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	catalog   StatusProvider
	store     store.Store
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
	StatusEmpty    = "empty"
)

// NewHealthService creates a health service. clients may be nil.
func NewHealthService(catalog StatusProvider, st store.Store, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		catalog:   catalog,
		store:     st,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   contracts.Version,
	}
}

// ReadinessCheck probes the snapshot store. An empty catalog is reported but
// does not make the service unready, since uploads are how it gets filled.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Services: map[string]ServiceHealth{
			"store":   hs.checkStoreHealth(ctx),
			"catalog": hs.checkCatalogHealth(),
		},
	}

	if status.Services["store"].Status != StatusReady {
		status.Status = StatusNotReady
		hs.logger.WarnContext(ctx, "readiness check failed",
			slog.String("store", status.Services["store"].Message))
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	rt := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.clients != nil {
		rt["websocket_clients"] = hs.clients.ClientCount()
	}
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Runtime:   rt,
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	info := contracts.GetVersionInfo()
	return map[string]interface{}{
		"version":      info.Version,
		"api_version":  info.APIVersion,
		"build_time":   info.BuildTime,
		"git_commit":   info.GitCommit,
		"go_version":   info.GoVersion,
		"snapshot":     info.SnapshotFormat,
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// checkStoreHealth issues a read of the snapshot key
func (hs *HealthService) checkStoreHealth(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "store not configured"}
	}
	if _, err := hs.store.Get(ctx, store.WorkbookKey); err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("store read failed: %v", err)}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkCatalogHealth() ServiceHealth {
	if hs.catalog == nil {
		return ServiceHealth{Status: StatusEmpty}
	}
	st := hs.catalog.Status()
	if !st.Ready {
		return ServiceHealth{Status: StatusEmpty, Message: "no workbook ingested"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d entities from %s", st.Entities, st.Source),
	}
}
