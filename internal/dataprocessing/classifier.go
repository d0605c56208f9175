package dataprocessing

import (
	"errors"
	"fmt"

	"schoolpulse/pkg/contracts/domain"
)

// ErrUnknownMetric is returned for metric identifiers missing from the registry
var ErrUnknownMetric = errors.New("unknown metric")

// TierFor classifies value against the fixed thresholds of metric.
func TierFor(metric domain.MetricID, value float64) (domain.Tier, error) {
	m, ok := domain.MetricByID(metric)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	return classify(m.Thresholds, value), nil
}

func classify(t domain.ThresholdSpec, value float64) domain.Tier {
	switch {
	case value >= t.Target:
		return domain.TierOnTarget
	case value >= t.Warning:
		return domain.TierWarning
	default:
		return domain.TierBelowTarget
	}
}
