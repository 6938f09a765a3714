package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
)

func TestApplySharedContactsCounts(t *testing.T) {
	providers := []models.Provider{
		{ID: "p-1", Address: models.StrPtr("123 Main St"), Phone: models.StrPtr("555-0100")},
		{ID: "p-2", Address: models.StrPtr("123 main st"), Phone: models.StrPtr("555-0100")},
		{ID: "p-3", Address: models.StrPtr("  123 Main St  "), Phone: models.StrPtr("555-0199")},
		{ID: "p-4", Address: models.StrPtr("9 Elm Ave")},
		{ID: "p-5"},
	}
	led := evidence.NewLedger()

	ApplySharedContacts(providers, led)

	// Address matching is case-insensitive and trimmed.
	assert.Equal(t, 3, *providers[0].Signals.SharedAddressCount)
	assert.Equal(t, 3, *providers[1].Signals.SharedAddressCount)
	assert.Equal(t, 3, *providers[2].Signals.SharedAddressCount)
	assert.Equal(t, 1, *providers[3].Signals.SharedAddressCount)

	assert.Equal(t, 2, *providers[0].Signals.SharedPhoneCount)
	assert.Equal(t, 1, *providers[2].Signals.SharedPhoneCount)

	// No contact point on record means no count, not zero.
	assert.Nil(t, providers[4].Signals.SharedAddressCount)
	assert.Nil(t, providers[4].Signals.SharedPhoneCount)
	assert.Nil(t, providers[3].Signals.SharedPhoneCount)

	// Three shares does not cross the alert threshold.
	assert.Zero(t, led.Len())
}

func TestApplySharedContactsFilesEvidenceAboveAlert(t *testing.T) {
	var providers []models.Provider
	for i := 0; i < 5; i++ {
		providers = append(providers, models.Provider{
			ID:      fmt.Sprintf("p-%d", i),
			Address: models.StrPtr("500 Cluster Rd"),
		})
	}
	led := evidence.NewLedger()

	ApplySharedContacts(providers, led)

	require.Equal(t, 5, led.Len())
	for i := range providers {
		assert.Equal(t, 5, *providers[i].Signals.SharedAddressCount)

		items := led.ItemsFor(providers[i].ID)
		require.Len(t, items, 1)
		assert.Equal(t, "shared_address_multi_provider", items[0].Label)
		assert.Equal(t, models.SeverityNegative, items[0].Severity)
		assert.Equal(t, 5, items[0].Metadata["shared_count"])
		assert.Contains(t, providers[i].Investigation.EvidenceIDs, items[0].ID)
	}
}

func TestApplySharedContactsIgnoresBlankValues(t *testing.T) {
	providers := []models.Provider{
		{ID: "p-1", Address: models.StrPtr("   "), Phone: models.StrPtr("")},
		{ID: "p-2", Address: models.StrPtr("   "), Phone: models.StrPtr("")},
	}
	led := evidence.NewLedger()

	ApplySharedContacts(providers, led)

	assert.Nil(t, providers[0].Signals.SharedAddressCount)
	assert.Nil(t, providers[0].Signals.SharedPhoneCount)
	assert.Zero(t, led.Len())
}
