package evidence

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/models"
)

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	led := NewLedger()

	id := led.Append(models.EvidenceItem{
		ProviderID:  "prov-1",
		Source:      models.SourceMaps,
		Label:       "map_listing",
		Severity:    models.SeverityInfo,
		Description: "Provider has a map listing.",
	})
	require.NotEmpty(t, id)

	items := led.Items()
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.False(t, items[0].Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), items[0].Timestamp, 5*time.Second)
}

func TestAppendKeepsExplicitIDAndTimestamp(t *testing.T) {
	led := NewLedger()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id := led.Append(models.EvidenceItem{
		ID:        "ev-fixed",
		Timestamp: ts,
		Label:     "childcare_license",
		Severity:  models.SeverityPositive,
	})
	assert.Equal(t, "ev-fixed", id)

	items := led.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ts, items[0].Timestamp)
}

func TestAppendTruncatesExcerpt(t *testing.T) {
	led := NewLedger()
	long := strings.Repeat("x", MaxExcerptRunes+500)

	led.Append(models.EvidenceItem{
		Label:      "website_fetch",
		Severity:   models.SeverityInfo,
		RawExcerpt: models.StrPtr(long),
	})

	items := led.Items()
	require.Len(t, items, 1)
	require.NotNil(t, items[0].RawExcerpt)
	assert.Len(t, []rune(*items[0].RawExcerpt), MaxExcerptRunes)
}

func TestLedgerStoresCopies(t *testing.T) {
	led := NewLedger()
	item := models.EvidenceItem{
		Label:      "email_found",
		Severity:   models.SeverityInfo,
		URL:        models.StrPtr("https://example.com"),
		RawExcerpt: models.StrPtr("hello@example.com"),
	}
	led.Append(item)

	// Mutating the caller's item after the fact must not reach the ledger.
	*item.URL = "changed"
	*item.RawExcerpt = "changed"

	got := led.Items()
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com", *got[0].URL)
	assert.Equal(t, "hello@example.com", *got[0].RawExcerpt)

	// And mutating what Items returned must not reach the ledger either.
	*got[0].URL = "also changed"
	again := led.Items()
	assert.Equal(t, "https://example.com", *again[0].URL)
}

func TestItemsForFiltersByProvider(t *testing.T) {
	led := NewLedger()
	led.Append(models.EvidenceItem{ProviderID: "prov-1", Label: "map_listing", Severity: models.SeverityInfo})
	led.Append(models.EvidenceItem{ProviderID: "prov-2", Label: "map_listing", Severity: models.SeverityInfo})
	led.Append(models.EvidenceItem{ProviderID: "prov-1", Label: "recent_review", Severity: models.SeverityPositive})

	items := led.ItemsFor("prov-1")
	require.Len(t, items, 2)
	assert.Equal(t, "map_listing", items[0].Label)
	assert.Equal(t, "recent_review", items[1].Label)

	assert.Empty(t, led.ItemsFor("prov-9"))
	assert.Equal(t, 3, led.Len())
}

func TestConcurrentAppends(t *testing.T) {
	led := NewLedger()

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				led.Append(models.EvidenceItem{
					ProviderID: fmt.Sprintf("prov-%d", w),
					Label:      "website_fetch",
					Severity:   models.SeverityInfo,
				})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, led.Len())
	for w := 0; w < workers; w++ {
		assert.Len(t, led.ItemsFor(fmt.Sprintf("prov-%d", w)), perWorker)
	}
}
