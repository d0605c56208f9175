package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "schoolpulse/internal/errors"
)

type sheetsRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,spreadsheet_id"`
}

func TestValidator_DecodeJSON(t *testing.T) {
	validID := "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{"valid", "application/json", `{"spreadsheet_id":"` + validID + `"}`, 0, ""},
		{"charset suffix", "application/json; charset=utf-8", `{"spreadsheet_id":"` + validID + `"}`, 0, ""},
		{"wrong content type", "text/plain", `{}`, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
		{"empty body", "application/json", ``, http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid json", "application/json", `{"spreadsheet_id":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown field", "application/json", `{"spreadsheet_id":"` + validID + `","x":1}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing id", "application/json", `{}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"bad id", "application/json", `{"spreadsheet_id":"../../etc"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/catalog/sheets", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			var dst sheetsRequest
			err := v.DecodeJSON(req, &dst)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, validID, dst.SpreadsheetID)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestValidator_FieldNamesUseJSONTags(t *testing.T) {
	err := NewValidator().Struct(&sheetsRequest{})

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	require.Len(t, details.Errors, 1)
	assert.Equal(t, "spreadsheet_id", details.Errors[0].Field)
	assert.Equal(t, "spreadsheet_id is required", details.Errors[0].Message)
}

func TestValidator_Var(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Var("metric", "accuracy_index", "required,metric_name"))

	err := v.Var("metric", "", "required,metric_name")
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.ValidationError{Field: "metric", Message: "metric is required"}, apiErr.Details)

	assert.Error(t, v.Var("metric", "drop table;", "required,metric_name"))
}

func TestQueryFloat(t *testing.T) {
	tests := []struct {
		query   string
		want    float64
		wantErr bool
	}{
		{"value=72", 72, false},
		{"value=0.55", 0.55, false},
		{"value=%20-3%20", -3, false},
		{"value=", 0, true},
		{"", 0, true},
		{"value=high", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/catalog/tiers?"+tt.query, nil)
			got, err := QueryFloat(req, "value")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
