package http

import (
	"net/http"
)

// MetricsHandler exposes the Prometheus scrape endpoint
type MetricsHandler struct {
	exporter http.Handler
}

// NewMetricsHandler wraps the exporter handler; nil serves 404 so a disabled
// exporter looks like an absent route.
func NewMetricsHandler(exporter http.Handler) *MetricsHandler {
	if exporter == nil {
		exporter = http.NotFoundHandler()
	}
	return &MetricsHandler{exporter: exporter}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	h.exporter.ServeHTTP(w, r)
}
