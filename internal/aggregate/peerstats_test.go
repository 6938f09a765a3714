package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
)

func seattleProvider(id string, reviews *int) models.Provider {
	return models.Provider{
		ID:      id,
		City:    models.StrPtr("Seattle"),
		County:  models.StrPtr("King"),
		State:   models.StrPtr("WA"),
		Signals: models.Signals{ReviewCount: reviews},
	}
}

func TestApplyPeerStatsRanksAndOutliers(t *testing.T) {
	providers := []models.Provider{
		seattleProvider("p-zero-a", models.IntPtr(0)),
		seattleProvider("p-zero-b", nil), // missing count participates as zero
		seattleProvider("p-mid", models.IntPtr(6)),
		seattleProvider("p-upper", models.IntPtr(10)),
		seattleProvider("p-top", models.IntPtr(50)),
	}
	led := evidence.NewLedger()

	ApplyPeerStats(providers, DefaultPeerConfig(), led)

	// Cohort counts are [0, 0, 6, 10, 50]; the median is 6.
	byID := make(map[string]*models.Provider)
	for i := range providers {
		byID[providers[i].ID] = &providers[i]
	}

	zero := byID["p-zero-a"]
	require.NotNil(t, zero.Signals.CityReviewRank)
	assert.Equal(t, 2, *zero.Signals.CityReviewRank)
	assert.InDelta(t, 0.25, *zero.Signals.CityReviewPercentile, 1e-9)
	assert.True(t, zero.Signals.CityLowActivityOutlier)
	assert.False(t, zero.Signals.CityHighActivityOutlier)
	assert.True(t, byID["p-zero-b"].Signals.CityLowActivityOutlier)

	mid := byID["p-mid"]
	assert.Equal(t, 3, *mid.Signals.CityReviewRank)
	assert.InDelta(t, 0.5, *mid.Signals.CityReviewPercentile, 1e-9)
	assert.False(t, mid.Signals.CityLowActivityOutlier)
	assert.False(t, mid.Signals.CityHighActivityOutlier)

	upper := byID["p-upper"]
	assert.Equal(t, 4, *upper.Signals.CityReviewRank)
	assert.InDelta(t, 0.75, *upper.Signals.CityReviewPercentile, 1e-9)
	assert.False(t, upper.Signals.CityHighActivityOutlier)

	top := byID["p-top"]
	assert.Equal(t, 5, *top.Signals.CityReviewRank)
	assert.InDelta(t, 1.0, *top.Signals.CityReviewPercentile, 1e-9)
	assert.True(t, top.Signals.CityHighActivityOutlier)
	assert.False(t, top.Signals.CityLowActivityOutlier)

	// Two low outliers plus one high outlier filed evidence.
	assert.Equal(t, 3, led.Len())

	lowItems := led.ItemsFor("p-zero-a")
	require.Len(t, lowItems, 1)
	assert.Equal(t, "low_activity_outlier", lowItems[0].Label)
	assert.Equal(t, models.SeverityNegative, lowItems[0].Severity)
	assert.Equal(t, models.SourceMaps, lowItems[0].Source)
	assert.Contains(t, zero.Investigation.EvidenceIDs, lowItems[0].ID)

	highItems := led.ItemsFor("p-top")
	require.Len(t, highItems, 1)
	assert.Equal(t, "high_activity_outlier", highItems[0].Label)
	assert.Equal(t, models.SeverityInfo, highItems[0].Severity)
}

func TestApplyPeerStatsSeparatesCohortsByCity(t *testing.T) {
	tacoma := models.Provider{
		ID:      "p-tacoma",
		City:    models.StrPtr("Tacoma"),
		County:  models.StrPtr("Pierce"),
		State:   models.StrPtr("WA"),
		Signals: models.Signals{ReviewCount: models.IntPtr(0)},
	}
	providers := []models.Provider{
		seattleProvider("p-1", models.IntPtr(20)),
		seattleProvider("p-2", models.IntPtr(30)),
		seattleProvider("p-3", models.IntPtr(40)),
		tacoma,
	}
	led := evidence.NewLedger()

	ApplyPeerStats(providers, DefaultPeerConfig(), led)

	// Tacoma is a cohort of one: rank 1, percentile 1.0, and a zero-review
	// solo cohort has median zero, so neither outlier flag fires.
	solo := providers[3]
	assert.Equal(t, 1, *solo.Signals.CityReviewRank)
	assert.InDelta(t, 1.0, *solo.Signals.CityReviewPercentile, 1e-9)
	assert.False(t, solo.Signals.CityLowActivityOutlier)
	assert.False(t, solo.Signals.CityHighActivityOutlier)
}

func TestApplyPeerStatsPoolsMissingGeographyAsUnknown(t *testing.T) {
	providers := []models.Provider{
		{ID: "p-a", Signals: models.Signals{ReviewCount: models.IntPtr(10)}},
		{ID: "p-b", City: models.StrPtr(""), Signals: models.Signals{ReviewCount: models.IntPtr(20)}},
	}
	led := evidence.NewLedger()

	ApplyPeerStats(providers, DefaultPeerConfig(), led)

	// Both land in the (UNKNOWN, Unknown, Unknown) cohort and rank against
	// each other.
	assert.Equal(t, 1, *providers[0].Signals.CityReviewRank)
	assert.Equal(t, 2, *providers[1].Signals.CityReviewRank)
}

func TestMedianOf(t *testing.T) {
	assert.InDelta(t, 6.0, medianOf([]int{0, 0, 6, 10, 50}), 1e-9)
	assert.InDelta(t, 3.0, medianOf([]int{2, 4}), 1e-9)
	assert.InDelta(t, 7.0, medianOf([]int{7}), 1e-9)
	assert.Zero(t, medianOf(nil))
}
