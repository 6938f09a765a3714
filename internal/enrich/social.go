package enrich

import (
	"context"
	"strings"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
)

// SocialPresence is a per-provider social platform lookup result.
type SocialPresence struct {
	Facebook       bool
	X              bool
	LinkedIn       bool
	RecentActivity bool
}

// SocialLookup checks a provider's presence on social platforms. Real
// implementations are deployment specific (platform APIs, scraping
// agreements); the shipped ones are Noop and Static.
type SocialLookup interface {
	Lookup(ctx context.Context, p *models.Provider) (SocialPresence, error)
}

// NoopSocial reports no presence anywhere.
type NoopSocial struct{}

// Lookup implements SocialLookup.
func (NoopSocial) Lookup(ctx context.Context, p *models.Provider) (SocialPresence, error) {
	return SocialPresence{}, nil
}

// StaticSocial serves lookups from a fixed map keyed by normalized name.
type StaticSocial struct {
	ByName map[string]SocialPresence
}

// Lookup implements SocialLookup.
func (s *StaticSocial) Lookup(ctx context.Context, p *models.Provider) (SocialPresence, error) {
	return s.ByName[p.NormalizedName], nil
}

// ApplySocial copies a lookup result onto the provider's signals and files
// evidence when any presence was found.
func ApplySocial(ctx context.Context, p *models.Provider, lookup SocialLookup, led *evidence.Ledger) error {
	presence, err := lookup.Lookup(ctx, p)
	if err != nil {
		return err
	}

	p.Signals.HasFacebookPage = presence.Facebook
	p.Signals.HasXProfile = presence.X
	p.Signals.HasLinkedInPage = presence.LinkedIn
	p.Signals.SocialRecentActivity = presence.RecentActivity

	var platforms []string
	if presence.Facebook {
		platforms = append(platforms, "facebook")
	}
	if presence.X {
		platforms = append(platforms, "x")
	}
	if presence.LinkedIn {
		platforms = append(platforms, "linkedin")
	}
	if len(platforms) == 0 {
		return nil
	}

	severity := models.SeverityInfo
	if presence.RecentActivity {
		severity = models.SeverityPositive
	}
	id := led.Append(models.EvidenceItem{
		ProviderID:  p.ID,
		Source:      models.SourceSocial,
		Label:       "social_presence",
		Severity:    severity,
		Description: "Present on " + strings.Join(platforms, ", ") + ".",
		Metadata:    map[string]any{"recent_activity": presence.RecentActivity},
	})
	p.Investigation.AddEvidence(id)
	return nil
}
