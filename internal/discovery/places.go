package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// PlacesOptions configures the map places connector.
type PlacesOptions struct {
	APIKey                    string
	BaseURL                   string
	MaxResultsPerKeyword      int
	RequestDelay              time.Duration
	Timeout                   time.Duration
	MinReviewsBasic           int
	ReviewRecentDays          int
	VisitorActivityMinReviews int
}

// PlacesClient discovers providers through a places-style REST API (text
// search + details) and fills listing detail per provider. Implements both
// Source and DetailsFetcher.
type PlacesClient struct {
	client *resty.Client
	opts   PlacesOptions
	logger *slog.Logger
}

// NewPlacesClient returns a connector for the given API options.
func NewPlacesClient(opts PlacesOptions, logger *slog.Logger) *PlacesClient {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(2)
	return &PlacesClient{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Name implements Source.
func (pc *PlacesClient) Name() models.SourceChannel { return models.SourceMaps }

type textSearchResponse struct {
	Results       []placeResult `json:"results"`
	NextPageToken string        `json:"next_page_token"`
	Status        string        `json:"status"`
	ErrorMessage  string        `json:"error_message"`
}

type placeResult struct {
	PlaceID          string    `json:"place_id"`
	Name             string    `json:"name"`
	FormattedAddress string    `json:"formatted_address"`
	Rating           *float64  `json:"rating"`
	UserRatingsTotal *int      `json:"user_ratings_total"`
	BusinessStatus   string    `json:"business_status"`
	Geometry         *geometry `json:"geometry"`
}

type geometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

// Discover runs one text search per keyword ("<keyword> <region>") and
// follows pagination up to the per-keyword result cap. A failed keyword
// fails the whole call; the orchestrator decides whether to continue with
// other channels.
func (pc *PlacesClient) Discover(ctx context.Context, region string, keywords []string) ([]models.Provider, error) {
	var out []models.Provider
	for _, keyword := range keywords {
		query := strings.TrimSpace(keyword + " " + region)
		records, err := pc.searchAll(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("places search %q: %w", query, err)
		}
		pc.logger.Info("places keyword searched", "query", query, "results", len(records))
		out = append(out, records...)
	}
	return out, nil
}

func (pc *PlacesClient) searchAll(ctx context.Context, query string) ([]models.Provider, error) {
	var (
		records   []models.Provider
		pageToken string
	)
	for {
		params := map[string]string{
			"query": query,
			"key":   pc.opts.APIKey,
		}
		if pageToken != "" {
			params["pagetoken"] = pageToken
		}

		var page textSearchResponse
		resp, err := pc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&page).
			Get("/textsearch/json")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("text search returned HTTP %d", resp.StatusCode())
		}
		if page.Status != "OK" && page.Status != "ZERO_RESULTS" {
			return nil, fmt.Errorf("text search status %s: %s", page.Status, page.ErrorMessage)
		}

		for i := range page.Results {
			records = append(records, pc.toProvider(&page.Results[i]))
			if len(records) >= pc.opts.MaxResultsPerKeyword {
				return records, nil
			}
		}
		if page.NextPageToken == "" {
			return records, nil
		}
		pageToken = page.NextPageToken
		// Page tokens need a moment before they become valid upstream.
		if err := sleepCtx(ctx, pc.opts.RequestDelay); err != nil {
			return records, err
		}
	}
}

func (pc *PlacesClient) toProvider(r *placeResult) models.Provider {
	_, city, state, postal := normalize.Address(r.FormattedAddress)

	p := models.Provider{
		ID:             uuid.New().String(),
		NormalizedName: normalize.Name(r.Name),
		RawNames:       []string{r.Name},
	}
	if r.FormattedAddress != "" {
		p.Address = models.StrPtr(r.FormattedAddress)
	}
	if city != "" {
		p.City = models.StrPtr(city)
	}
	if state != "" {
		p.State = models.StrPtr(state)
	}
	if postal != "" {
		p.PostalCode = models.StrPtr(postal)
	}

	p.Signals.DiscoveredVia = []models.SourceChannel{models.SourceMaps}
	p.Signals.HasMapListing = true
	if r.PlaceID != "" {
		p.Signals.MapPlaceID = models.StrPtr(r.PlaceID)
	}
	p.Signals.MapRating = r.Rating
	p.Signals.ReviewCount = r.UserRatingsTotal
	if r.BusinessStatus != "" {
		p.Signals.MapBusinessStatus = models.StrPtr(r.BusinessStatus)
	}
	if r.Geometry != nil {
		p.Latitude = models.FloatPtr(r.Geometry.Location.Lat)
		p.Longitude = models.FloatPtr(r.Geometry.Location.Lng)
		p.Signals.HasGeocodedLocation = true
	}
	// Until details are fetched, a healthy review count is the best
	// recent-activity guess available.
	if r.UserRatingsTotal != nil && *r.UserRatingsTotal >= pc.opts.MinReviewsBasic {
		p.Signals.ReviewsRecent = true
	}
	return p
}

type detailsResponse struct {
	Result       placeDetails `json:"result"`
	Status       string       `json:"status"`
	ErrorMessage string       `json:"error_message"`
}

type placeDetails struct {
	FormattedPhoneNumber string             `json:"formatted_phone_number"`
	Website              string             `json:"website"`
	FormattedAddress     string             `json:"formatted_address"`
	BusinessStatus       string             `json:"business_status"`
	UserRatingsTotal     *int               `json:"user_ratings_total"`
	OpeningHours         *openingHours      `json:"opening_hours"`
	AddressComponents    []addressComponent `json:"address_components"`
	Reviews              []review           `json:"reviews"`
}

type openingHours struct {
	OpenNow *bool `json:"open_now"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type review struct {
	Time int64 `json:"time"`
}

// Details implements DetailsFetcher: phone, website, address components,
// business status, and review recency for one provider. Providers without
// a place id are left untouched.
func (pc *PlacesClient) Details(ctx context.Context, p *models.Provider) error {
	if p.Signals.MapPlaceID == nil {
		return nil
	}

	var detail detailsResponse
	resp, err := pc.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"place_id": *p.Signals.MapPlaceID,
			"fields": "formatted_phone_number,website,formatted_address," +
				"address_components,business_status,opening_hours,reviews,user_ratings_total",
			"key": pc.opts.APIKey,
		}).
		SetResult(&detail).
		Get("/details/json")
	if err != nil {
		return fmt.Errorf("place details: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("place details returned HTTP %d", resp.StatusCode())
	}
	if detail.Status != "OK" {
		return fmt.Errorf("place details status %s: %s", detail.Status, detail.ErrorMessage)
	}

	pc.applyDetails(p, &detail.Result)
	return nil
}

func (pc *PlacesClient) applyDetails(p *models.Provider, d *placeDetails) {
	if d.FormattedPhoneNumber != "" && p.Phone == nil {
		p.Phone = models.StrPtr(d.FormattedPhoneNumber)
	}
	if d.Website != "" && p.Website == nil {
		p.Website = models.StrPtr(d.Website)
	}
	if d.FormattedAddress != "" && p.Address == nil {
		p.Address = models.StrPtr(d.FormattedAddress)
	}
	if d.BusinessStatus != "" {
		p.Signals.MapBusinessStatus = models.StrPtr(d.BusinessStatus)
	}
	if d.UserRatingsTotal != nil {
		if p.Signals.ReviewCount == nil || *d.UserRatingsTotal > *p.Signals.ReviewCount {
			p.Signals.ReviewCount = d.UserRatingsTotal
		}
	}
	if d.OpeningHours != nil {
		p.Signals.MapOpenNow = d.OpeningHours.OpenNow
	}

	for _, comp := range d.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "locality":
				if p.City == nil {
					p.City = models.StrPtr(comp.LongName)
				}
			case "administrative_area_level_2":
				if p.County == nil {
					county := strings.TrimSuffix(comp.LongName, " County")
					p.County = models.StrPtr(county)
				}
			case "administrative_area_level_1":
				if p.State == nil {
					p.State = models.StrPtr(comp.ShortName)
				}
			case "postal_code":
				if p.PostalCode == nil {
					p.PostalCode = models.StrPtr(comp.LongName)
				}
			}
		}
	}

	if len(d.Reviews) > 0 {
		newest := d.Reviews[0].Time
		for _, r := range d.Reviews[1:] {
			if r.Time > newest {
				newest = r.Time
			}
		}
		last := time.Unix(newest, 0).UTC()
		ageDays := time.Since(last).Hours() / 24
		p.Signals.LastReviewTime = &last
		p.Signals.LastReviewAgeDays = models.FloatPtr(ageDays)
		p.Signals.ReviewsRecent = ageDays <= float64(pc.opts.ReviewRecentDays)
		p.Signals.VisitorActivityLikely = p.Signals.ReviewsRecent
	} else if p.Signals.ReviewCount != nil {
		p.Signals.VisitorActivityLikely = *p.Signals.ReviewCount >= pc.opts.VisitorActivityMinReviews
	}
}

// ListingURL returns the public link for a place id.
func ListingURL(placeID string) string {
	return "https://www.google.com/maps/place/?q=place_id:" + placeID
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
