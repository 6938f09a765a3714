// Package evidence implements the append-only ledger backing every
// pipeline conclusion. Items are immutable once filed: the ledger stores
// copies, hands out copies, and exposes no update or delete operations.
package evidence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provwatch/provwatch/internal/models"
)

// MaxExcerptRunes bounds stored raw excerpts.
const MaxExcerptRunes = 2000

// Ledger collects evidence items for a scan run. Safe for concurrent
// appends; enrichment workers share one instance.
type Ledger struct {
	mu    sync.RWMutex
	items []models.EvidenceItem
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append files an evidence item and returns its id. A missing id gets a
// fresh UUID, a zero timestamp gets the current UTC time, and the raw
// excerpt is truncated to MaxExcerptRunes. The ledger keeps its own copy,
// so later mutation of the caller's item changes nothing here.
func (l *Ledger) Append(item models.EvidenceItem) string {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	if item.RawExcerpt != nil {
		truncated := truncateRunes(*item.RawExcerpt, MaxExcerptRunes)
		item.RawExcerpt = &truncated
	}
	stored := item.Clone()

	l.mu.Lock()
	l.items = append(l.items, stored)
	l.mu.Unlock()
	return stored.ID
}

// Items returns a copy of every item in append order.
func (l *Ledger) Items() []models.EvidenceItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.EvidenceItem, 0, len(l.items))
	for i := range l.items {
		out = append(out, l.items[i].Clone())
	}
	return out
}

// ItemsFor returns copies of the items filed for one provider, in append
// order.
func (l *Ledger) ItemsFor(providerID string) []models.EvidenceItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.EvidenceItem
	for i := range l.items {
		if l.items[i].ProviderID == providerID {
			out = append(out, l.items[i].Clone())
		}
	}
	return out
}

// Len returns the number of items filed.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
