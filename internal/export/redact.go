package export

import "github.com/provwatch/provwatch/internal/models"

// Projection returns the provider document as it should leave the system.
// With redact off this is a plain deep copy; with redact on, identity-
// revealing fields are nulled out on the copy: address, phone, website,
// email, coordinates, map place id, manual notes, and the raw error
// strings in the investigation trail. Scores, status, tier, and evidence
// ids are untouched either way, and the underlying provider is never
// mutated.
func Projection(p *models.Provider, redact bool) models.Provider {
	out := p.Clone()
	if !redact {
		return out
	}

	// City/county/state survive redaction; they drive the cohort reports.
	out.Address = nil
	out.Phone = nil
	out.Website = nil
	out.PrimaryEmail = nil
	out.Latitude = nil
	out.Longitude = nil
	out.Signals.MapPlaceID = nil
	out.ManualNotes = nil
	out.Investigation.Errors = nil
	return out
}

// EvidenceProjection returns the evidence item as it should leave the
// system. Redaction drops the raw excerpt; description and metadata stay
// so the investigative value remains. The ledger item is never mutated.
func EvidenceProjection(e *models.EvidenceItem, redact bool) models.EvidenceItem {
	out := e.Clone()
	if redact {
		out.RawExcerpt = nil
	}
	return out
}
