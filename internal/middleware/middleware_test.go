package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolpulse/internal/config"
	"schoolpulse/internal/infrastructure"
	"schoolpulse/internal/shared/testutil"
)

func TestRequestID(t *testing.T) {
	existing := uuid.New().String()

	tests := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{"generated when missing", "", false},
		{"kept when valid", existing, true},
		{"replaced when malformed", "not-a-uuid<script>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenReqID, seenTraceID string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenReqID = GetRequestID(r.Context())
				seenTraceID = infrastructure.GetTraceID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header.Set(RequestIDHeader, tt.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			_, err := uuid.Parse(got)
			require.NoError(t, err)
			assert.Equal(t, got, seenReqID)
			assert.Equal(t, got, seenTraceID)
			if tt.wantSame {
				assert.Equal(t, tt.inbound, got)
			} else {
				assert.NotEqual(t, tt.inbound, got)
			}
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/catalog/status", nil))

	records := logs.GetRecordsByLevel(slog.LevelError)
	require.Len(t, records, 1)
	assert.Equal(t, "request completed", records[0].Message)
	assert.Equal(t, int64(500), records[0].Attrs["status"])
	assert.Equal(t, "/api/catalog/status", records[0].Attrs["path"])
	assert.Equal(t, int64(4), records[0].Attrs["bytes"])
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.001, 2, logger)

	calls := 0
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/catalog/workbooks", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 2, calls)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://localhost:8080"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:8080")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestOTelMiddleware_RecordsRoutePattern(t *testing.T) {
	tel, err := infrastructure.InitializeTelemetry(config.TelemetryConfig{
		ServiceName:    "schoolpulse-test",
		MetricsEnabled: true,
	}, "test", testutil.DiscardLogger())
	require.NoError(t, err)

	mw, err := NewOTelMiddleware(tel)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(mw.Handler)
	r.Get("/api/catalog/entities/{entity}/series", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/entities/Escola%20Norte/series", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	scrape := httptest.NewRecorder()
	tel.MetricsHandler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := scrape.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `route="/api/catalog/entities/{entity}/series"`)
	assert.NotContains(t, body, "Escola")
}
