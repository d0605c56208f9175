package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"schoolpulse/pkg/contracts/domain"
)

// CoerceValue converts a raw cell value into a defined number for metric.
// Blank and non-numeric values become 0. For percentage-like metrics a value in
// [0, 1] is read as a fraction and scaled by 100; larger values are kept as-is.
// Text with a percent sign is already a percentage and is never scaled.
func CoerceValue(raw any, metric domain.MetricID) float64 {
	v, _ := coerce(raw, metric)
	return v
}

// coerce is CoerceValue plus whether the raw value was numeric
func coerce(raw any, metric domain.MetricID) (float64, bool) {
	v, percent, ok := parseNumeric(raw)
	if !ok {
		return 0, false
	}
	if percent {
		return v, true
	}
	if m, known := domain.MetricByID(metric); known && m.Percentage && v >= 0 && v <= 1 {
		v *= 100
	}
	return v, true
}

// parseNumeric reads numbers and numeric text, reporting whether the text
// carried a trailing percent sign. A lone comma is a decimal comma ("0,8",
// and also "1,000"); commas next to a dot or repeated commas are thousands
// separators ("1,250.5", "1,000,000").
func parseNumeric(raw any) (v float64, percent bool, ok bool) {
	switch val := raw.(type) {
	case nil:
		return 0, false, false
	case float64:
		v = val
	case float32:
		v = float64(val)
	case int:
		v = float64(val)
	case int64:
		v = float64(val)
	case int32:
		v = float64(val)
	case string:
		parsed, pct, parsedOK := parseNumericText(val)
		if !parsedOK {
			return 0, false, false
		}
		v, percent = parsed, pct
	default:
		return 0, false, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v, percent, true
}

func parseNumericText(s string) (float64, bool, bool) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false, false
	}
	switch commas := strings.Count(s, ","); {
	case commas == 1 && !strings.Contains(s, "."):
		s = strings.Replace(s, ",", ".", 1)
	case commas > 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	return v, percent, true
}
