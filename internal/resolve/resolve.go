// Package resolve collapses raw discovered records into canonical provider
// entities. The merge key is the normalized name; merging is a union, never
// a drop, so two genuinely distinct facilities sharing a normalized name
// come out as one entity with both raw names attached.
package resolve

import (
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// Merge deduplicates records by normalized name. The first record seen for
// a key becomes the canonical entity; later records fold in. Output order
// is first-seen key order, so repeated runs over the same input produce
// the same sequence. Records are never dropped and Merge never fails; a
// record discovered through zero channels passes through unchanged.
func Merge(records []models.Provider) []models.Provider {
	byName := make(map[string]*models.Provider, len(records))
	order := make([]string, 0, len(records))

	for i := range records {
		rec := records[i].Clone()
		if rec.NormalizedName == "" && len(rec.RawNames) > 0 {
			rec.NormalizedName = normalize.Name(rec.RawNames[0])
		}
		existing, ok := byName[rec.NormalizedName]
		if !ok {
			byName[rec.NormalizedName] = &rec
			order = append(order, rec.NormalizedName)
			continue
		}
		foldInto(existing, &rec)
	}

	out := make([]models.Provider, 0, len(order))
	for _, key := range order {
		out = append(out, *byName[key])
	}
	return out
}

// foldInto unions src into dst. Contact fields keep the first non-empty
// value; coordinates keep the first non-nil; channel flags OR together;
// the review count takes the maximum observed.
func foldInto(dst, src *models.Provider) {
	seen := make(map[string]struct{}, len(dst.RawNames))
	for _, n := range dst.RawNames {
		seen[n] = struct{}{}
	}
	for _, n := range src.RawNames {
		if _, ok := seen[n]; !ok {
			dst.RawNames = append(dst.RawNames, n)
			seen[n] = struct{}{}
		}
	}

	dst.Address = firstStr(dst.Address, src.Address)
	dst.City = firstStr(dst.City, src.City)
	dst.County = firstStr(dst.County, src.County)
	dst.State = firstStr(dst.State, src.State)
	dst.PostalCode = firstStr(dst.PostalCode, src.PostalCode)
	dst.Phone = firstStr(dst.Phone, src.Phone)
	dst.Website = firstStr(dst.Website, src.Website)
	dst.PrimaryEmail = firstStr(dst.PrimaryEmail, src.PrimaryEmail)
	if dst.Latitude == nil {
		dst.Latitude = src.Latitude
	}
	if dst.Longitude == nil {
		dst.Longitude = src.Longitude
	}

	via := make(map[models.SourceChannel]struct{}, len(dst.Signals.DiscoveredVia))
	for _, ch := range dst.Signals.DiscoveredVia {
		via[ch] = struct{}{}
	}
	for _, ch := range src.Signals.DiscoveredVia {
		if _, ok := via[ch]; !ok {
			dst.Signals.DiscoveredVia = append(dst.Signals.DiscoveredVia, ch)
			via[ch] = struct{}{}
		}
	}

	dst.Signals.HasMapListing = dst.Signals.HasMapListing || src.Signals.HasMapListing
	dst.Signals.HasAdPresence = dst.Signals.HasAdPresence || src.Signals.HasAdPresence
	dst.Signals.HasDirectoryListing = dst.Signals.HasDirectoryListing || src.Signals.HasDirectoryListing

	if dst.Signals.MapPlaceID == nil {
		dst.Signals.MapPlaceID = src.Signals.MapPlaceID
	}
	if dst.Signals.MapRating == nil {
		dst.Signals.MapRating = src.Signals.MapRating
	}
	if src.Signals.ReviewCount != nil {
		if dst.Signals.ReviewCount == nil || *src.Signals.ReviewCount > *dst.Signals.ReviewCount {
			dst.Signals.ReviewCount = src.Signals.ReviewCount
		}
	}
	dst.Signals.ReviewsRecent = dst.Signals.ReviewsRecent || src.Signals.ReviewsRecent
	dst.Signals.HasGeocodedLocation = dst.Signals.HasGeocodedLocation || src.Signals.HasGeocodedLocation

	dst.Investigation.Steps = append(dst.Investigation.Steps, src.Investigation.Steps...)
	dst.Investigation.Errors = append(dst.Investigation.Errors, src.Investigation.Errors...)
	dst.Investigation.EvidenceIDs = append(dst.Investigation.EvidenceIDs, src.Investigation.EvidenceIDs...)
}

func firstStr(a, b *string) *string {
	if a != nil && *a != "" {
		return a
	}
	if b != nil && *b != "" {
		return b
	}
	return a
}
