// Package classify assigns each provider a status and a risk tier from its
// scored signal set. Pure rule ladders: re-running classification after a
// signal change is always safe and always produces the same answer for the
// same signals.
package classify

import (
	"fmt"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/scoring"
)

// Status resolves the license/visibility/activity combination. First match
// wins. A licensed, visible provider with no sign of real traffic falls
// through to unknown rather than being called active.
func Status(s *models.Signals) (models.ProviderStatus, string) {
	licensed := s.Licensed()
	visible := s.Visible()
	activeTraffic := s.ReviewsRecent || s.SocialRecentActivity || s.VisitorActivityLikely

	switch {
	case licensed && !visible:
		return models.StatusLicensedUnlisted,
			"Active childcare license but no visible web/map/social listing."
	case licensed && visible && activeTraffic:
		return models.StatusLicensedActive,
			"Active childcare license, listings, and signs of visitor/engagement activity."
	case !licensed && visible:
		return models.StatusUnlicensedListed,
			"Listed online as a childcare provider but no active license found."
	default:
		return models.StatusUnknown,
			"Signals inconclusive under current rules."
	}
}

// Tier maps a status and suspicion index to a risk tier. The two
// contradiction statuses escalate at a lower index than the general
// thresholds; a licensed-and-active provider with a strongly negative
// index is pinned low regardless of the fallbacks.
func Tier(status models.ProviderStatus, index float64) models.RiskTier {
	switch {
	case status == models.StatusUnlicensedListed && index >= 2.0:
		return models.TierCritical
	case status == models.StatusLicensedUnlisted && index >= 1.5:
		return models.TierHigh
	case status == models.StatusLicensedActive && index <= -2.0:
		return models.TierLow
	case index >= 2.5:
		return models.TierCritical
	case index >= 1.5:
		return models.TierHigh
	case index <= -1.0:
		return models.TierLow
	default:
		return models.TierMedium
	}
}

// Apply resolves the provider's status, fills both scores, assigns the
// risk tier, and rewrites the decision reasons. Idempotent over unchanged
// signals.
func Apply(p *models.Provider) {
	status, reason := Status(&p.Signals)
	p.Status = status

	scoring.Apply(p)

	p.DecisionReasons = []string{
		reason,
		fmt.Sprintf("Suspicion score: %.2f", p.Signals.SuspicionScore),
		fmt.Sprintf("Legitimacy score: %.2f", p.Signals.LegitimacyScore),
	}

	index := p.Signals.SuspicionIndex()
	p.RiskTier = Tier(status, index)
	p.DecisionReasons = append(p.DecisionReasons,
		fmt.Sprintf("Risk tier: %s (suspicion_index=%.2f)", p.RiskTier, index))
}
