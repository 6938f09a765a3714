// Package scoring turns a provider's signal set into two scores: suspicion
// (penalties for contradictory or evasive posture) and legitimacy (credits
// for independent corroboration). Both are pure additive tables over the
// signals; the suspicion index is their difference and may be negative.
package scoring

import (
	"strings"

	"github.com/provwatch/provwatch/internal/aggregate"
	"github.com/provwatch/provwatch/internal/models"
)

// Suspicion sums penalty points. The two heavyweight penalties are the
// license/visibility contradictions: a licensed facility nowhere to be
// found, or a visible one with no license behind it.
func Suspicion(s *models.Signals) float64 {
	licensed := s.Licensed()
	visible := s.Visible()
	score := 0.0

	if licensed && !visible {
		score += 3.0
	}
	if !licensed && visible {
		score += 3.0
	}
	if !s.HasBusinessRegistration {
		score += 0.5
	}
	if !s.HasLaborLicense {
		score += 0.5
	}
	if s.MapBusinessStatus != nil && strings.Contains(strings.ToUpper(*s.MapBusinessStatus), "CLOSED") {
		score += 1.0
	}
	if visible && !s.ReviewsRecent && s.ReviewCount != nil && *s.ReviewCount > 0 {
		score += 0.5
	}
	if visible && !s.ReviewsRecent && !s.SocialRecentActivity && !s.VisitorActivityLikely {
		score += 0.5
	}
	if s.WebsiteReachable && licensed && !s.WebsiteHasLicenseLanguage && !s.WebsiteHasRegulatorMention {
		score += 0.5
	}
	if s.CityLowActivityOutlier && visible {
		score += 0.5
	}
	if s.SharedAddressCount != nil && *s.SharedAddressCount > aggregate.SharedAddressAlert {
		score += 0.5
	}
	if s.EmailDomainType == models.EmailDomainFree && visible && !licensed {
		score += 0.25
	}
	if s.NameGenericScore >= 1.0 && !licensed {
		score += 0.25
	}
	return score
}

// Legitimacy sums corroboration credits. An active childcare license is
// worth more than everything a website can say about itself combined; the
// rest rewards signals a fly-by-night listing rarely bothers to fake.
// The table maxes out at 11.5.
func Legitimacy(s *models.Signals) float64 {
	score := 0.0

	if s.Licensed() {
		score += 4.0
	}
	if s.HasBusinessRegistration && s.BusinessRegistryActive {
		score += 1.0
	}
	if s.HasLaborLicense && s.LaborLicenseActive {
		score += 1.0
	}
	if s.HasMapListing {
		score += 0.5
	}
	if s.ReviewsRecent {
		score += 1.0
	}
	if s.VisitorActivityLikely {
		score += 0.5
	}
	if s.SocialRecentActivity {
		score += 0.5
	}
	if s.WebsiteReachable {
		score += 0.5
	}
	if s.WebsiteHasLicenseLanguage {
		score += 1.0
	}
	if s.WebsiteHasRegulatorMention {
		score += 0.5
	}
	if s.WebsiteHasContactPage {
		score += 0.25
	}
	if s.WebsiteHasPhotos || s.WebsiteHasStaffBios {
		score += 0.25
	}
	if s.CityReviewPercentile != nil && *s.CityReviewPercentile > 0.5 {
		score += 0.25
	}
	if s.EmailDomainType == models.EmailDomainCustom && s.WebsiteReachable {
		score += 0.25
	}
	return score
}

// Apply fills both scores on the provider's signals.
func Apply(p *models.Provider) {
	p.Signals.SuspicionScore = Suspicion(&p.Signals)
	p.Signals.LegitimacyScore = Legitimacy(&p.Signals)
}
