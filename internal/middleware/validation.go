package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "schoolpulse/internal/errors"
)

// spreadsheetIDPattern matches the id segment of a Google Sheets URL
var spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,128}$`)

// Validator decodes JSON request bodies and checks their struct tags
type Validator struct {
	validate    *validator.Validate
	maxBodySize int64
}

// NewValidator creates a validator with the application's custom tags registered
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("spreadsheet_id", isSpreadsheetID)
	_ = v.RegisterValidation("metric_name", isMetricName)

	// Report JSON names in messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v, maxBodySize: 1 << 20}
}

// DecodeJSON reads a JSON body into dst and validates it.
// The returned error is always an *apierrors.APIError.
func (v *Validator) DecodeJSON(r *http.Request, dst any) error {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		return apierrors.NewWithDetails(
			http.StatusUnsupportedMediaType,
			"UNSUPPORTED_MEDIA_TYPE",
			"Content-Type must be application/json",
			map[string]string{"content_type": r.Header.Get("Content-Type")},
		)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, v.maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "Request body is empty")
		}
		return apierrors.InvalidRequestWithError(err)
	}

	return v.Struct(dst)
}

// Struct validates s and converts failures into an API validation error
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe.Field(), fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// Var validates a single value against a tag expression such as "required,metric_name"
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apierrors.ErrValidation(field, formatValidationError(field, fieldErrs[0]))
		}
		return apierrors.ErrValidation(field, err.Error())
	}
	return nil
}

// QueryFloat parses a required float query parameter
func QueryFloat(r *http.Request, param string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s is required", param))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierrors.ErrValidation(param, fmt.Sprintf("%s must be a number", param))
	}
	return f, nil
}

func formatValidationError(field string, err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", "))
	case "spreadsheet_id":
		return fmt.Sprintf("%s must be a Google Sheets spreadsheet id", field)
	case "metric_name":
		return fmt.Sprintf("%s must be a metric identifier", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

func isSpreadsheetID(fl validator.FieldLevel) bool {
	return spreadsheetIDPattern.MatchString(fl.Field().String())
}

// isMetricName checks the shape of a metric path segment, not registry membership
func isMetricName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > 64 {
		return false
	}
	for _, ch := range name {
		if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' || ch == '_' || ch == '-') {
			return false
		}
	}
	return true
}
