package aggregate

import (
	"fmt"
	"strings"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
)

// SharedAddressAlert is the shared-address count above which an address
// stops looking like a co-located pair and starts looking like a mailbox
// hosting a cluster of listings.
const SharedAddressAlert = 3

// ApplySharedContacts counts how many providers in the batch share each
// address and phone number, then writes each provider's own counts back
// onto its signals. A provider with no address (or phone) on record keeps
// a nil count rather than zero. Addresses shared beyond SharedAddressAlert
// file negative evidence. Whole-batch pass; run it after enrichment.
func ApplySharedContacts(providers []models.Provider, led *evidence.Ledger) {
	addrCounts := make(map[string]int)
	phoneCounts := make(map[string]int)
	for i := range providers {
		if key, ok := addressKey(&providers[i]); ok {
			addrCounts[key]++
		}
		if key, ok := phoneKey(&providers[i]); ok {
			phoneCounts[key]++
		}
	}

	for i := range providers {
		p := &providers[i]
		if key, ok := addressKey(p); ok {
			count := addrCounts[key]
			p.Signals.SharedAddressCount = models.IntPtr(count)
			if count > SharedAddressAlert {
				id := led.Append(models.EvidenceItem{
					ProviderID: p.ID,
					Source:     models.SourceMaps,
					Label:      "shared_address_multi_provider",
					Severity:   models.SeverityNegative,
					Description: fmt.Sprintf(
						"Address is shared by %d providers in this scan.", count),
					Metadata: map[string]any{"shared_count": count},
				})
				p.Investigation.AddEvidence(id)
			}
		}
		if key, ok := phoneKey(p); ok {
			p.Signals.SharedPhoneCount = models.IntPtr(phoneCounts[key])
		}
	}
}

func addressKey(p *models.Provider) (string, bool) {
	if p.Address == nil {
		return "", false
	}
	key := strings.ToLower(strings.TrimSpace(*p.Address))
	return key, key != ""
}

func phoneKey(p *models.Provider) (string, bool) {
	if p.Phone == nil {
		return "", false
	}
	key := strings.TrimSpace(*p.Phone)
	return key, key != ""
}
