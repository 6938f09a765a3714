package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/models"
)

func TestStaticSourceReplaysListings(t *testing.T) {
	src := NewStaticSource(models.SourceAdPlatform, []StaticListing{
		{Name: "Happy Valley Daycare LLC", City: "Spokane", State: "WA", Phone: "555-0150"},
		{Name: ""}, // nameless records are dropped
		{Name: "Tiny Tots", Website: "https://tinytots.example.com"},
	})

	assert.Equal(t, models.SourceAdPlatform, src.Name())

	providers, err := src.Discover(context.Background(), "ignored", nil)
	require.NoError(t, err)
	require.Len(t, providers, 2)

	happy := providers[0]
	assert.Equal(t, "happy valley daycare", happy.NormalizedName)
	assert.Equal(t, []string{"Happy Valley Daycare LLC"}, happy.RawNames)
	assert.Equal(t, "Spokane", *happy.City)
	assert.Equal(t, "555-0150", *happy.Phone)
	assert.True(t, happy.Signals.HasAdPresence)
	assert.False(t, happy.Signals.HasMapListing)
	assert.Equal(t, []models.SourceChannel{models.SourceAdPlatform}, happy.Signals.DiscoveredVia)
	assert.NotEmpty(t, happy.ID)

	tots := providers[1]
	assert.Equal(t, "https://tinytots.example.com", *tots.Website)
	assert.Nil(t, tots.City)
}

func TestStaticSourceChannelFlags(t *testing.T) {
	listing := []StaticListing{{Name: "Some Place"}}

	cases := []struct {
		channel models.SourceChannel
		check   func(s *models.Signals) bool
	}{
		{models.SourceMaps, func(s *models.Signals) bool { return s.HasMapListing }},
		{models.SourceAdPlatform, func(s *models.Signals) bool { return s.HasAdPresence }},
		{models.SourceDirectory, func(s *models.Signals) bool { return s.HasDirectoryListing }},
	}
	for _, tc := range cases {
		t.Run(string(tc.channel), func(t *testing.T) {
			providers, err := NewStaticSource(tc.channel, listing).Discover(context.Background(), "", nil)
			require.NoError(t, err)
			require.Len(t, providers, 1)
			assert.True(t, tc.check(&providers[0].Signals))
		})
	}
}

func TestLoadListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	payload := `[
		{"name": "Sunny Days", "city": "Seattle", "state": "WA"},
		{"name": "Little Sprouts", "phone": "555-0100"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	listings, err := LoadListings(path)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "Sunny Days", listings[0].Name)
	assert.Equal(t, "Seattle", listings[0].City)
	assert.Equal(t, "555-0100", listings[1].Phone)
}

func TestLoadListingsErrors(t *testing.T) {
	_, err := LoadListings(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadListings(path)
	assert.Error(t, err)
}
