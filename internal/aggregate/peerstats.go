package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// PeerConfig carries the cohort-outlier thresholds. A provider counts as a
// low-activity outlier when its cohort's median review count exceeds
// LowActivityMedian while the provider itself has zero reviews; it counts
// as high-activity when its percentile exceeds HighActivityPercentile and
// it sits at or above a nonzero median.
type PeerConfig struct {
	LowActivityMedian      float64
	HighActivityPercentile float64
}

// DefaultPeerConfig returns the stock thresholds.
func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		LowActivityMedian:      5.0,
		HighActivityPercentile: 0.9,
	}
}

type cohortKey struct {
	state  string
	county string
	city   string
}

func keyFor(p *models.Provider) cohortKey {
	state, county, city := "unknown", "unknown", "unknown"
	if p.State != nil && strings.TrimSpace(*p.State) != "" {
		state = *p.State
	}
	if p.County != nil && strings.TrimSpace(*p.County) != "" {
		county = *p.County
	}
	if p.City != nil && strings.TrimSpace(*p.City) != "" {
		city = *p.City
	}
	return cohortKey{
		state:  strings.ToUpper(strings.TrimSpace(state)),
		county: normalize.TitleCase(county),
		city:   normalize.TitleCase(city),
	}
}

// ApplyPeerStats groups the batch into (state, county, city) cohorts and
// ranks each provider's review count against its peers: rank, percentile,
// and the two outlier flags. Outliers file evidence through the ledger and
// link it into the provider's trail. Runs over the whole batch at once;
// callers must not invoke it before enrichment has finished filling review
// counts. Missing review counts participate as zero.
func ApplyPeerStats(providers []models.Provider, cfg PeerConfig, led *evidence.Ledger) {
	cohorts := make(map[cohortKey][]int)
	members := make(map[cohortKey][]*models.Provider)
	for i := range providers {
		p := &providers[i]
		k := keyFor(p)
		cohorts[k] = append(cohorts[k], reviewCount(p))
		members[k] = append(members[k], p)
	}

	for k, counts := range cohorts {
		n := len(counts)
		if n == 0 {
			continue
		}
		sorted := append([]int(nil), counts...)
		sort.Ints(sorted)
		median := medianOf(sorted)

		for _, p := range members[k] {
			own := reviewCount(p)
			rank := 0
			for _, c := range counts {
				if c <= own {
					rank++
				}
			}
			pct := 1.0
			if n > 1 {
				pct = float64(rank-1) / float64(n-1)
			}
			p.Signals.CityReviewRank = models.IntPtr(rank)
			p.Signals.CityReviewPercentile = models.FloatPtr(pct)

			if median > cfg.LowActivityMedian && own == 0 {
				p.Signals.CityLowActivityOutlier = true
				id := led.Append(models.EvidenceItem{
					ProviderID: p.ID,
					Source:     models.SourceMaps,
					Label:      "low_activity_outlier",
					Severity:   models.SeverityNegative,
					Description: fmt.Sprintf(
						"No reviews at all while the median across %s is %.1f.", k.city, median),
					Metadata: map[string]any{
						"city_median_reviews": median,
						"provider_reviews":    own,
					},
				})
				p.Investigation.AddEvidence(id)
			}

			if pct > cfg.HighActivityPercentile && float64(own) >= median && median > 0 {
				p.Signals.CityHighActivityOutlier = true
				id := led.Append(models.EvidenceItem{
					ProviderID: p.ID,
					Source:     models.SourceMaps,
					Label:      "high_activity_outlier",
					Severity:   models.SeverityInfo,
					Description: fmt.Sprintf(
						"Review count %d sits in the top of %s (median %.1f).", own, k.city, median),
					Metadata: map[string]any{
						"city_median_reviews": median,
						"provider_reviews":    own,
					},
				})
				p.Investigation.AddEvidence(id)
			}
		}
	}
}

func reviewCount(p *models.Provider) int {
	if p.Signals.ReviewCount == nil {
		return 0
	}
	return *p.Signals.ReviewCount
}

// medianOf expects sorted input.
func medianOf(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2.0
}
