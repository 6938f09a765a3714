package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/models"
)

func TestMergeCollapsesByNormalizedName(t *testing.T) {
	records := []models.Provider{
		{
			NormalizedName: "sunny days",
			RawNames:       []string{"Sunny Days LLC"},
			Signals: models.Signals{
				DiscoveredVia: []models.SourceChannel{models.SourceMaps},
				HasMapListing: true,
				ReviewCount:   models.IntPtr(10),
			},
		},
		{
			NormalizedName: "little sprouts",
			RawNames:       []string{"Little Sprouts"},
			Signals: models.Signals{
				DiscoveredVia:       []models.SourceChannel{models.SourceDirectory},
				HasDirectoryListing: true,
			},
		},
		{
			NormalizedName: "sunny days",
			RawNames:       []string{"Sunny Days Daycare"},
			Signals: models.Signals{
				DiscoveredVia: []models.SourceChannel{models.SourceAdPlatform},
				HasAdPresence: true,
				ReviewCount:   models.IntPtr(25),
			},
		},
	}

	merged := Merge(records)
	require.Len(t, merged, 2)

	// First-seen key order.
	assert.Equal(t, "sunny days", merged[0].NormalizedName)
	assert.Equal(t, "little sprouts", merged[1].NormalizedName)

	sunny := merged[0]
	assert.Equal(t, []string{"Sunny Days LLC", "Sunny Days Daycare"}, sunny.RawNames)
	assert.ElementsMatch(t,
		[]models.SourceChannel{models.SourceMaps, models.SourceAdPlatform},
		sunny.Signals.DiscoveredVia)
	assert.True(t, sunny.Signals.HasMapListing)
	assert.True(t, sunny.Signals.HasAdPresence)
	assert.False(t, sunny.Signals.HasDirectoryListing)
	require.NotNil(t, sunny.Signals.ReviewCount)
	assert.Equal(t, 25, *sunny.Signals.ReviewCount, "merge keeps the maximum review count")
}

func TestMergeKeepsFirstContactValues(t *testing.T) {
	records := []models.Provider{
		{
			NormalizedName: "wee care",
			Address:        models.StrPtr("1 First St"),
			Phone:          models.StrPtr(""),
		},
		{
			NormalizedName: "wee care",
			Address:        models.StrPtr("2 Second St"),
			City:           models.StrPtr("Tacoma"),
			Phone:          models.StrPtr("555-0100"),
			Latitude:       models.FloatPtr(47.2),
			Longitude:      models.FloatPtr(-122.4),
		},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)

	p := merged[0]
	assert.Equal(t, "1 First St", *p.Address, "first non-empty value wins")
	assert.Equal(t, "Tacoma", *p.City)
	assert.Equal(t, "555-0100", *p.Phone, "empty string loses to a later value")
	require.NotNil(t, p.Latitude)
	assert.InDelta(t, 47.2, *p.Latitude, 1e-9)
}

func TestMergeNormalizesMissingKeyFromRawName(t *testing.T) {
	records := []models.Provider{
		{RawNames: []string{"Bright Beginnings Inc"}},
		{NormalizedName: "bright beginnings", RawNames: []string{"Bright Beginnings"}},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)
	assert.Equal(t, "bright beginnings", merged[0].NormalizedName)
	assert.Equal(t, []string{"Bright Beginnings Inc", "Bright Beginnings"}, merged[0].RawNames)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	records := []models.Provider{
		{NormalizedName: "tiny tots", RawNames: []string{"Tiny Tots"}},
		{NormalizedName: "tiny tots", RawNames: []string{"Tiny Tots Daycare"}},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)
	merged[0].RawNames[0] = "changed"

	assert.Equal(t, "Tiny Tots", records[0].RawNames[0])
	assert.Len(t, records[0].RawNames, 1)
}

func TestMergeEmptyInput(t *testing.T) {
	assert.Empty(t, Merge(nil))
	assert.Empty(t, Merge([]models.Provider{}))
}

func TestMergeConcatenatesInvestigationTrails(t *testing.T) {
	records := []models.Provider{
		{
			NormalizedName: "maple grove",
			Investigation:  models.InvestigationTrail{Steps: []string{"a"}, EvidenceIDs: []string{"ev-1"}},
		},
		{
			NormalizedName: "maple grove",
			Investigation:  models.InvestigationTrail{Steps: []string{"b"}, Errors: []string{"oops"}},
		},
	}

	merged := Merge(records)
	require.Len(t, merged, 1)
	assert.Equal(t, []string{"a", "b"}, merged[0].Investigation.Steps)
	assert.Equal(t, []string{"oops"}, merged[0].Investigation.Errors)
	assert.Equal(t, []string{"ev-1"}, merged[0].Investigation.EvidenceIDs)
}
