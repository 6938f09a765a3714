// Package aggregate derives second-order signals from the resolved batch:
// naming heuristics per provider, review statistics against city peers,
// and contact-point frequency across the whole batch.
package aggregate

import (
	"strings"

	"github.com/provwatch/provwatch/internal/models"
)

// Vocab holds the keyword vocabularies for the naming heuristics. Generic
// terms and personal hints are stable across deployments; location terms
// track the region being scanned.
type Vocab struct {
	GenericTerms  []string
	LocationTerms []string
	PersonalHints []string
}

// DefaultVocab returns the stock vocabularies.
func DefaultVocab() Vocab {
	return Vocab{
		GenericTerms: []string{
			"kids", "kid", "child", "children", "childcare", "child care",
			"daycare", "day care", "tots", "toddler", "toddler care",
			"preschool", "pre-school", "academy", "learning", "learning center",
			"early learning", "early education", "montessori", "school",
			"center", "care", "family", "in-home", "home daycare",
		},
		LocationTerms: []string{
			"washington", "wa", "seattle", "tacoma", "spokane", "everett",
			"bellevue", "olympia", "kent", "yakima", "vancouver",
			"north", "south", "east", "west",
		},
		PersonalHints: []string{
			"ms.", "mrs.", "mr.", "miss", "teacher", "aunt", "uncle",
		},
	}
}

// ApplyNaming scores how generic a provider's normalized name is and flags
// location and personal-name markers. The generic score is vocabulary hits
// over name tokens, so "sunshine academy" scores 0.5 while a name built
// entirely from stock vocabulary reaches 1.0 and up: a template name, which
// matters only when no license backs it up. Matching is substring matching
// over the normalized name, so "daycare" also hits "care".
func ApplyNaming(p *models.Provider, v Vocab) {
	name := p.NormalizedName
	if name == "" {
		return
	}
	tokenCount := len(strings.Fields(name))
	if tokenCount == 0 {
		tokenCount = 1
	}

	hits := 0
	for _, term := range v.GenericTerms {
		if strings.Contains(name, term) {
			hits++
		}
	}
	p.Signals.NameGenericScore = float64(hits) / float64(tokenCount)

	for _, term := range v.LocationTerms {
		if strings.Contains(name, term) {
			p.Signals.NameContainsLocationTerm = true
			break
		}
	}
	for _, hint := range v.PersonalHints {
		if strings.Contains(name, hint) {
			p.Signals.NameContainsPersonalName = true
			break
		}
	}
}
