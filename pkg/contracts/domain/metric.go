package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MetricID identifies one tracked metric. Each workbook sheet maps to exactly one MetricID.
type MetricID string

const (
	MetricExerciseIndex MetricID = "exercise_index"
	MetricAccessCount   MetricID = "access_count"
	MetricAccuracyIndex MetricID = "accuracy_index"
)

// ThresholdSpec holds the classification thresholds of a metric
type ThresholdSpec struct {
	Target  float64 `json:"target"`
	Warning float64 `json:"warning"`
}

// Metric describes a recognized metric
type Metric struct {
	ID         MetricID      `json:"id"`
	Label      string        `json:"label"`
	Percentage bool          `json:"percentage"`
	Thresholds ThresholdSpec `json:"thresholds"`
	Aliases    []string      `json:"aliases,omitempty"`
}

// Tier is the classification bucket of a metric value
type Tier string

const (
	TierOnTarget    Tier = "on_target"
	TierWarning     Tier = "warning"
	TierBelowTarget Tier = "below_target"
)

var registry = []Metric{
	{
		ID:         MetricExerciseIndex,
		Label:      "Exercise index",
		Thresholds: ThresholdSpec{Target: 2, Warning: 1},
		Aliases:    []string{"exercise index", "Índice de exercícios", "Exercicios"},
	},
	{
		ID:         MetricAccessCount,
		Label:      "Access count (period)",
		Percentage: true,
		Thresholds: ThresholdSpec{Target: 75, Warning: 50},
		Aliases:    []string{"access count", "access count (period)", "Acessos no período", "Acessos"},
	},
	{
		ID:         MetricAccuracyIndex,
		Label:      "Accuracy index",
		Percentage: true,
		Thresholds: ThresholdSpec{Target: 70, Warning: 50},
		Aliases:    []string{"accuracy index", "Índice de acerto", "Acerto"},
	},
}

var metricIndex = buildMetricIndex()

func buildMetricIndex() map[string]Metric {
	idx := make(map[string]Metric)
	for _, m := range registry {
		idx[foldMetricName(string(m.ID))] = m
		idx[foldMetricName(m.Label)] = m
		for _, alias := range m.Aliases {
			idx[foldMetricName(alias)] = m
		}
	}
	return idx
}

// foldMetricName lower-cases, strips accents and collapses separators so that
// "Índice de acerto", "indice_de_acerto" and " INDICE DE ACERTO " compare equal.
func foldMetricName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// Metrics returns the registry in display order
func Metrics() []Metric {
	out := make([]Metric, len(registry))
	copy(out, registry)
	return out
}

// MetricIDs returns the identifiers of every registered metric
func MetricIDs() []MetricID {
	ids := make([]MetricID, len(registry))
	for i, m := range registry {
		ids[i] = m.ID
	}
	return ids
}

// LookupMetric resolves a sheet name, label or identifier to a registered metric.
func LookupMetric(name string) (Metric, bool) {
	m, ok := metricIndex[foldMetricName(name)]
	return m, ok
}

// MetricByID returns the registered metric for id
func MetricByID(id MetricID) (Metric, bool) {
	for _, m := range registry {
		if m.ID == id {
			return m, true
		}
	}
	return Metric{}, false
}
