package discovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newFakePlacesServer serves a two-page text search and a details endpoint
// for place id "pl-1". lastReview controls the newest review timestamp the
// details payload reports.
func newFakePlacesServer(t *testing.T, lastReview time.Time) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/textsearch/json":
			if r.URL.Query().Get("pagetoken") == "" {
				writeJSON(t, w, map[string]any{
					"status":          "OK",
					"next_page_token": "page-2",
					"results": []map[string]any{{
						"place_id":           "pl-1",
						"name":               "Sunny Days LLC",
						"formatted_address":  "123 Main St, Seattle, WA 98101, USA",
						"rating":             4.5,
						"user_ratings_total": 12,
						"business_status":    "OPERATIONAL",
						"geometry":           map[string]any{"location": map[string]any{"lat": 47.6, "lng": -122.33}},
					}},
				})
				return
			}
			writeJSON(t, w, map[string]any{
				"status": "OK",
				"results": []map[string]any{{
					"place_id":           "pl-2",
					"name":               "Little Sprouts",
					"formatted_address":  "9 Elm Ave, Tacoma, WA 98402, USA",
					"user_ratings_total": 2,
				}},
			})
		case "/details/json":
			if r.URL.Query().Get("place_id") != "pl-1" {
				writeJSON(t, w, map[string]any{"status": "NOT_FOUND"})
				return
			}
			writeJSON(t, w, map[string]any{
				"status": "OK",
				"result": map[string]any{
					"formatted_phone_number": "555-0100",
					"website":                "https://sunnydays.example.com",
					"business_status":        "OPERATIONAL",
					"user_ratings_total":     15,
					"opening_hours":          map[string]any{"open_now": true},
					"address_components": []map[string]any{
						{"long_name": "Seattle", "types": []string{"locality"}},
						{"long_name": "King County", "types": []string{"administrative_area_level_2"}},
						{"long_name": "Washington", "short_name": "WA", "types": []string{"administrative_area_level_1"}},
						{"long_name": "98101", "types": []string{"postal_code"}},
					},
					"reviews": []map[string]any{
						{"time": lastReview.Add(-30 * 24 * time.Hour).Unix()},
						{"time": lastReview.Unix()},
					},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newTestPlacesClient(srv *httptest.Server, maxResults int) *PlacesClient {
	return NewPlacesClient(PlacesOptions{
		APIKey:                    "test-key",
		BaseURL:                   srv.URL,
		MaxResultsPerKeyword:      maxResults,
		RequestDelay:              0,
		Timeout:                   5 * time.Second,
		MinReviewsBasic:           5,
		ReviewRecentDays:          180,
		VisitorActivityMinReviews: 10,
	}, testLogger())
}

func TestPlacesDiscoverFollowsPagination(t *testing.T) {
	srv := newFakePlacesServer(t, time.Now())
	defer srv.Close()

	pc := newTestPlacesClient(srv, 60)
	providers, err := pc.Discover(context.Background(), "Washington State", []string{"daycare"})
	require.NoError(t, err)
	require.Len(t, providers, 2)

	sunny := providers[0]
	assert.Equal(t, "sunny days", sunny.NormalizedName)
	assert.Equal(t, []string{"Sunny Days LLC"}, sunny.RawNames)
	assert.Equal(t, "123 Main St, Seattle, WA 98101, USA", *sunny.Address)
	assert.Equal(t, "Seattle", *sunny.City)
	assert.Equal(t, "WA", *sunny.State)
	assert.Equal(t, "98101", *sunny.PostalCode)
	assert.Equal(t, "pl-1", *sunny.Signals.MapPlaceID)
	assert.InDelta(t, 4.5, *sunny.Signals.MapRating, 1e-9)
	assert.Equal(t, 12, *sunny.Signals.ReviewCount)
	assert.True(t, sunny.Signals.HasMapListing)
	assert.True(t, sunny.Signals.HasGeocodedLocation)
	assert.InDelta(t, 47.6, *sunny.Latitude, 1e-9)
	assert.Equal(t, []models.SourceChannel{models.SourceMaps}, sunny.Signals.DiscoveredVia)
	// 12 reviews clears the basic-activity floor before details are known.
	assert.True(t, sunny.Signals.ReviewsRecent)

	sprouts := providers[1]
	assert.Equal(t, "little sprouts", sprouts.NormalizedName)
	assert.False(t, sprouts.Signals.HasGeocodedLocation)
	assert.False(t, sprouts.Signals.ReviewsRecent, "two reviews is below the floor")
	assert.Nil(t, sprouts.Signals.MapRating)
}

func TestPlacesDiscoverHonorsResultCap(t *testing.T) {
	srv := newFakePlacesServer(t, time.Now())
	defer srv.Close()

	pc := newTestPlacesClient(srv, 1)
	providers, err := pc.Discover(context.Background(), "Washington State", []string{"daycare"})
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "sunny days", providers[0].NormalizedName)
}

func TestPlacesDiscoverSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "REQUEST_DENIED", "error_message": "key invalid"})
	}))
	defer srv.Close()

	pc := newTestPlacesClient(srv, 60)
	_, err := pc.Discover(context.Background(), "Washington State", []string{"daycare"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestPlacesDetailsFillsListingFields(t *testing.T) {
	lastReview := time.Now().Add(-10 * 24 * time.Hour)
	srv := newFakePlacesServer(t, lastReview)
	defer srv.Close()

	pc := newTestPlacesClient(srv, 60)
	p := models.Provider{
		ID:             "prov-1",
		NormalizedName: "sunny days",
		Signals: models.Signals{
			MapPlaceID:  models.StrPtr("pl-1"),
			ReviewCount: models.IntPtr(12),
		},
	}

	require.NoError(t, pc.Details(context.Background(), &p))

	assert.Equal(t, "555-0100", *p.Phone)
	assert.Equal(t, "https://sunnydays.example.com", *p.Website)
	assert.Equal(t, "Seattle", *p.City)
	assert.Equal(t, "King", *p.County, "the County suffix is stripped")
	assert.Equal(t, "WA", *p.State)
	assert.Equal(t, "98101", *p.PostalCode)
	assert.Equal(t, 15, *p.Signals.ReviewCount, "details keep the higher count")
	require.NotNil(t, p.Signals.MapOpenNow)
	assert.True(t, *p.Signals.MapOpenNow)

	// The newest of the two review timestamps drives recency.
	require.NotNil(t, p.Signals.LastReviewAgeDays)
	assert.InDelta(t, 10, *p.Signals.LastReviewAgeDays, 0.1)
	assert.True(t, p.Signals.ReviewsRecent)
	assert.True(t, p.Signals.VisitorActivityLikely)
}

func TestPlacesDetailsStaleReviews(t *testing.T) {
	srv := newFakePlacesServer(t, time.Now().Add(-400*24*time.Hour))
	defer srv.Close()

	pc := newTestPlacesClient(srv, 60)
	p := models.Provider{
		Signals: models.Signals{
			MapPlaceID:    models.StrPtr("pl-1"),
			ReviewsRecent: true, // the basic-count guess gets corrected
		},
	}

	require.NoError(t, pc.Details(context.Background(), &p))

	assert.False(t, p.Signals.ReviewsRecent)
	assert.False(t, p.Signals.VisitorActivityLikely)
	assert.InDelta(t, 400, *p.Signals.LastReviewAgeDays, 0.1)
}

func TestPlacesDetailsSkipsWithoutPlaceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a provider without a place id")
	}))
	defer srv.Close()

	pc := newTestPlacesClient(srv, 60)
	p := models.Provider{NormalizedName: "word of mouth daycare"}
	require.NoError(t, pc.Details(context.Background(), &p))
	assert.Nil(t, p.Phone)
}

func TestListingURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/place/?q=place_id:pl-1",
		ListingURL("pl-1"))
}
