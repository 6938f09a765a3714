package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/provwatch/provwatch/internal/models"
)

// MemoryStore is an in-memory implementation of Store, used in tests and
// when running without PostgreSQL.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*storedRun
	providers map[string]*storedProvider
	evidence  map[string]*storedEvidence
}

type storedRun struct {
	meta    models.RunMeta
	deleted bool
}

type storedProvider struct {
	provider models.Provider
	runID    string
	tag      string
	deleted  bool
}

type storedEvidence struct {
	item    models.EvidenceItem
	runID   string
	tag     string
	deleted bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*storedRun),
		providers: make(map[string]*storedProvider),
		evidence:  make(map[string]*storedEvidence),
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (m *MemoryStore) EnsureSchema(_ context.Context) error {
	return nil
}

// SaveRun stores the run, upserts its providers by id, and appends evidence,
// skipping evidence ids already present.
func (m *MemoryStore) SaveRun(_ context.Context, meta models.RunMeta, providers []models.Provider, evidence []models.EvidenceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[meta.ID] = &storedRun{meta: meta}

	for i := range providers {
		m.providers[providers[i].ID] = &storedProvider{
			provider: providers[i].Clone(),
			runID:    meta.ID,
			tag:      meta.Tag,
		}
	}
	for i := range evidence {
		if _, ok := m.evidence[evidence[i].ID]; ok {
			continue
		}
		m.evidence[evidence[i].ID] = &storedEvidence{
			item:  evidence[i].Clone(),
			runID: meta.ID,
			tag:   meta.Tag,
		}
	}
	return nil
}

// Runs returns stored runs, newest first.
func (m *MemoryStore) Runs(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for _, sr := range m.runs {
		out = append(out, RunRecord{Meta: sr.meta, Deleted: sr.deleted})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Meta.StartedAt.After(out[j].Meta.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProvidersByRisk returns matching providers, most suspicious first.
func (m *MemoryStore) ProvidersByRisk(_ context.Context, filter RiskFilter) ([]models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Provider
	for _, sp := range m.providers {
		if sp.deleted || !matchesRiskFilter(sp, filter) {
			continue
		}
		out = append(out, sp.provider.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Signals.SuspicionScore > out[j].Signals.SuspicionScore
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProviderLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Provider retrieves one provider by id.
func (m *MemoryStore) Provider(_ context.Context, id string) (*models.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sp, ok := m.providers[id]
	if !ok || sp.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p := sp.provider.Clone()
	return &p, nil
}

// EvidenceFor returns the evidence filed for a provider, oldest first.
func (m *MemoryStore) EvidenceFor(_ context.Context, providerID string) ([]models.EvidenceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.EvidenceItem
	for _, se := range m.evidence {
		if se.deleted || se.item.ProviderID != providerID {
			continue
		}
		out = append(out, se.item.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// UpdateManualLabel sets (non-nil) or clears (nil) the analyst label and
// notes on a stored provider.
func (m *MemoryStore) UpdateManualLabel(_ context.Context, id string, label, notes *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.providers[id]
	if !ok || sp.deleted {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if label != nil {
		v := *label
		sp.provider.ManualLabel = &v
	} else {
		sp.provider.ManualLabel = nil
	}
	if notes != nil {
		v := *notes
		sp.provider.ManualNotes = &v
	} else {
		sp.provider.ManualNotes = nil
	}
	return nil
}

// DeleteRun removes a run's data. Soft delete (hard=false) flags entries;
// hard delete drops them.
func (m *MemoryStore) DeleteRun(_ context.Context, runID string, hard bool) (DeleteCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts DeleteCounts
	for id, sp := range m.providers {
		if sp.runID != runID {
			continue
		}
		if hard {
			delete(m.providers, id)
			counts.Providers++
		} else if !sp.deleted {
			sp.deleted = true
			counts.Providers++
		}
	}
	for id, se := range m.evidence {
		if se.runID != runID {
			continue
		}
		if hard {
			delete(m.evidence, id)
			counts.Evidence++
		} else if !se.deleted {
			se.deleted = true
			counts.Evidence++
		}
	}
	if sr, ok := m.runs[runID]; ok {
		if hard {
			delete(m.runs, runID)
			counts.Runs++
		} else if !sr.deleted {
			sr.deleted = true
			counts.Runs++
		}
	}
	return counts, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func matchesRiskFilter(sp *storedProvider, f RiskFilter) bool {
	if len(f.Tiers) > 0 {
		found := false
		for _, t := range f.Tiers {
			if sp.provider.RiskTier == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if sp.provider.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinSuspicion != nil && sp.provider.Signals.SuspicionScore < *f.MinSuspicion {
		return false
	}
	if f.Tag != nil && sp.tag != *f.Tag {
		return false
	}
	if f.RunID != nil && sp.runID != *f.RunID {
		return false
	}
	return true
}
