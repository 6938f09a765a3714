// Package discovery finds candidate childcare providers on public
// channels. Each connector implements Source; the orchestrator runs every
// configured source and feeds the raw records to the resolver. Connectors
// mint provider ids and fill discovery signals but never touch the ledger;
// discovery evidence is filed against canonical entities after the merge.
package discovery

import (
	"context"

	"github.com/provwatch/provwatch/internal/models"
)

// Source is one discovery channel.
type Source interface {
	// Name identifies the channel for logs and discovered_via tags.
	Name() models.SourceChannel
	// Discover returns raw provider records for the region. How keywords
	// are used is up to the channel; fixture-backed channels ignore them.
	Discover(ctx context.Context, region string, keywords []string) ([]models.Provider, error)
}

// DetailsFetcher fills per-provider listing detail after the merge.
type DetailsFetcher interface {
	Details(ctx context.Context, p *models.Provider) error
}

// NoopDetails is a DetailsFetcher that does nothing. Used when no map API
// key is configured.
type NoopDetails struct{}

// Details implements DetailsFetcher.
func (NoopDetails) Details(ctx context.Context, p *models.Provider) error { return nil }
