package store

import (
	"context"
	"errors"

	"github.com/provwatch/provwatch/internal/models"
)

// ErrNotFound is returned when the requested provider or run does not exist.
var ErrNotFound = errors.New("provider not found")

// RiskFilter narrows provider queries. Nil/empty fields match everything.
type RiskFilter struct {
	Tiers        []models.RiskTier
	Statuses     []models.ProviderStatus
	MinSuspicion *float64
	Tag          *string
	RunID        *string
	Limit        int
}

// RunRecord pairs persisted run metadata with its deletion state.
type RunRecord struct {
	Meta    models.RunMeta
	Deleted bool
}

// DeleteCounts reports how many rows a purge touched per collection.
type DeleteCounts struct {
	Runs      int64
	Providers int64
	Evidence  int64
}

// Store defines the interface for scan-result persistence.
type Store interface {
	// EnsureSchema creates tables and indexes if they don't exist.
	EnsureSchema(ctx context.Context) error

	// SaveRun persists one scan run with its providers and evidence,
	// transactionally.
	SaveRun(ctx context.Context, meta models.RunMeta, providers []models.Provider, evidence []models.EvidenceItem) error

	// Runs returns recent runs, newest first.
	Runs(ctx context.Context, limit int) ([]RunRecord, error)

	// ProvidersByRisk returns providers matching the filter, ordered by
	// suspicion score descending.
	ProvidersByRisk(ctx context.Context, filter RiskFilter) ([]models.Provider, error)

	// Provider retrieves a single provider by ID.
	Provider(ctx context.Context, id string) (*models.Provider, error)

	// EvidenceFor returns the evidence filed for one provider.
	EvidenceFor(ctx context.Context, providerID string) ([]models.EvidenceItem, error)

	// UpdateManualLabel sets or clears the analyst label and notes on a
	// provider.
	UpdateManualLabel(ctx context.Context, id string, label, notes *string) error

	// DeleteRun removes a run's data. Soft delete marks rows; hard delete
	// drops them.
	DeleteRun(ctx context.Context, runID string, hard bool) (DeleteCounts, error)

	// Close cleans up resources.
	Close() error
}
