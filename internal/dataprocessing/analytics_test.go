package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolpulse/pkg/contracts/domain"
)

func rankingCatalog() *domain.Catalog {
	rec := func(entity string, period int, values map[domain.MetricID]float64) domain.PeriodRecord {
		return domain.PeriodRecord{Entity: entity, Period: period, Values: values}
	}
	return domain.NewCatalog(map[string]domain.TimeSeries{
		"Escola Norte": {
			rec("Escola Norte", 1, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 80, domain.MetricExerciseIndex: 2}),
			rec("Escola Norte", 2, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 60}),
		},
		"Escola Sul": {
			rec("Escola Sul", 1, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 70}),
		},
		"Escola Leste": {
			rec("Escola Leste", 1, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 40}),
			rec("Escola Leste", 3, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 100}),
		},
		"Escola Oeste": {
			rec("Escola Oeste", 1, map[domain.MetricID]float64{domain.MetricAccuracyIndex: 30}),
		},
		"Escola Vazia": {},
	}, "test", time.Time{})
}

func TestMeanFor(t *testing.T) {
	c := rankingCatalog()

	assert.InDelta(t, 70, MeanFor(c, "Escola Norte", domain.MetricAccuracyIndex), 1e-9)
	assert.InDelta(t, 1, MeanFor(c, "Escola Norte", domain.MetricExerciseIndex), 1e-9, "missing periods count as 0")
	assert.Zero(t, MeanFor(c, "Escola Vazia", domain.MetricAccuracyIndex))
	assert.Zero(t, MeanFor(c, "missing", domain.MetricAccuracyIndex))
	assert.Zero(t, MeanFor(nil, "Escola Norte", domain.MetricAccuracyIndex))
}

func TestRankingFor(t *testing.T) {
	c := rankingCatalog()

	ranking := RankingFor(c, domain.MetricAccuracyIndex)
	require.Len(t, ranking, len(c.Entities()))

	// Leste, Norte and Sul all average 70; ties go by entity ascending.
	want := []domain.RankingEntry{
		{Rank: 1, Entity: "Escola Leste", Mean: 70, Tier: domain.TierOnTarget},
		{Rank: 2, Entity: "Escola Norte", Mean: 70, Tier: domain.TierOnTarget},
		{Rank: 3, Entity: "Escola Sul", Mean: 70, Tier: domain.TierOnTarget},
		{Rank: 4, Entity: "Escola Oeste", Mean: 30, Tier: domain.TierBelowTarget},
		{Rank: 5, Entity: "Escola Vazia", Mean: 0, Tier: domain.TierBelowTarget},
	}
	assert.Equal(t, want, ranking)

	for i := 1; i < len(ranking); i++ {
		assert.GreaterOrEqual(t, ranking[i-1].Mean, ranking[i].Mean)
	}
}

func TestRankingFor_EmptyCatalog(t *testing.T) {
	assert.Empty(t, RankingFor(nil, domain.MetricAccuracyIndex))
	assert.Empty(t, RankingFor(domain.NewCatalog(nil, "", time.Time{}), domain.MetricExerciseIndex))
}

func TestTotalsFor(t *testing.T) {
	c := rankingCatalog()

	totals, ok := TotalsFor(c, "Escola Norte")
	require.True(t, ok)
	assert.Equal(t, 2, totals.Periods)
	assert.InDelta(t, 140, totals.Values[domain.MetricAccuracyIndex], 1e-9)
	assert.InDelta(t, 2, totals.Values[domain.MetricExerciseIndex], 1e-9)
	assert.Contains(t, totals.Values, domain.MetricAccessCount)

	_, ok = TotalsFor(c, "missing")
	assert.False(t, ok)
}

func TestSnapshotFor(t *testing.T) {
	c := rankingCatalog()

	snap, ok := SnapshotFor(c, "Escola Norte", 2)
	require.True(t, ok)
	assert.Equal(t, map[domain.MetricID]float64{
		domain.MetricExerciseIndex: 0,
		domain.MetricAccessCount:   0,
		domain.MetricAccuracyIndex: 60,
	}, snap.Values)

	_, ok = SnapshotFor(c, "Escola Norte", 7)
	assert.False(t, ok)
	_, ok = SnapshotFor(c, "missing", 1)
	assert.False(t, ok)
}

func TestLatestPeriod(t *testing.T) {
	c := rankingCatalog()

	ts, _ := c.Series("Escola Leste")
	p, ok := LatestPeriod(ts)
	assert.True(t, ok)
	assert.Equal(t, 3, p)

	_, ok = LatestPeriod(nil)
	assert.False(t, ok)
}
