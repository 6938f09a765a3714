// Package scan orchestrates a full oversight run: discovery across every
// configured source, entity resolution, per-entity enrichment, cohort
// aggregation, and classification. The runner owns stage sequencing and
// concurrency; the work itself lives in the stage packages.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/provwatch/provwatch/internal/aggregate"
	"github.com/provwatch/provwatch/internal/classify"
	"github.com/provwatch/provwatch/internal/discovery"
	"github.com/provwatch/provwatch/internal/enrich"
	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/metrics"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/resolve"
)

// defaultWorkers bounds enrichment concurrency when Options.Workers is unset.
const defaultWorkers = 4

// Options controls a single run.
type Options struct {
	Region   string
	Keywords []string
	Scenario string
	Notes    string
	Tag      string

	// DryRun stops after discovery, resolution, and naming signals.
	DryRun bool

	// Workers bounds concurrent per-entity enrichment. Zero means
	// defaultWorkers.
	Workers int

	Peer  aggregate.PeerConfig
	Vocab aggregate.Vocab
}

// Result is everything a run produced.
type Result struct {
	Meta      models.RunMeta
	Providers []models.Provider
	Evidence  []models.EvidenceItem
}

// SiteFetcher pulls a provider's website and extracts content signals.
// *enrich.WebsiteFetcher satisfies it; nil disables the stage.
type SiteFetcher interface {
	Fetch(ctx context.Context, p *models.Provider, led *evidence.Ledger) error
}

// Runner wires the stage collaborators together. Any enrichment
// collaborator may be nil, which skips that stage for every entity.
type Runner struct {
	sources    []discovery.Source
	details    discovery.DetailsFetcher
	website    SiteFetcher
	social     enrich.SocialLookup
	registries *enrich.RegistrySet
	logger     *slog.Logger
}

// NewRunner creates a runner over the given collaborators.
func NewRunner(
	sources []discovery.Source,
	details discovery.DetailsFetcher,
	website SiteFetcher,
	social enrich.SocialLookup,
	registries *enrich.RegistrySet,
	logger *slog.Logger,
) *Runner {
	if details == nil {
		details = discovery.NoopDetails{}
	}
	return &Runner{
		sources:    sources,
		details:    details,
		website:    website,
		social:     social,
		registries: registries,
		logger:     logger,
	}
}

// Run executes the full pipeline. Individual source and enrichment
// failures are logged and recorded on the entity's investigation trail
// without aborting the batch; only context cancellation stops a run.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	meta := models.RunMeta{
		ID:            uuid.New().String(),
		StartedAt:     time.Now().UTC(),
		Region:        opts.Region,
		Keywords:      append([]string(nil), opts.Keywords...),
		Scenario:      opts.Scenario,
		Notes:         opts.Notes,
		Tag:           opts.Tag,
		SchemaVersion: models.SchemaVersion,
	}
	metrics.Inc(metrics.ScansTotal)
	r.logger.Info("scan started",
		"run_id", meta.ID,
		"region", opts.Region,
		"keywords", len(opts.Keywords),
		"sources", len(r.sources),
		"dry_run", opts.DryRun)

	records, err := r.discover(ctx, opts)
	if err != nil {
		return nil, err
	}

	providers := resolve.Merge(records)
	metrics.MergedTotal.Add(int64(len(providers)))
	r.logger.Info("entities resolved", "raw", len(records), "unique", len(providers))

	for i := range providers {
		providers[i].Status = models.StatusUnknown
		providers[i].RiskTier = models.TierUnknown
		aggregate.ApplyNaming(&providers[i], opts.Vocab)
	}

	if opts.DryRun {
		r.logger.Info("dry run: skipping enrichment and classification",
			"run_id", meta.ID, "providers", len(providers))
		meta.FinishedAt = time.Now().UTC()
		meta.ProviderCount = len(providers)
		return &Result{Meta: meta, Providers: providers}, nil
	}

	led := evidence.NewLedger()
	if err := r.enrichAll(ctx, providers, led, opts.Workers); err != nil {
		return nil, err
	}

	// Cohort stages need every entity enriched, so they run after the
	// enrichment barrier, single-threaded.
	aggregate.ApplyPeerStats(providers, opts.Peer, led)
	aggregate.ApplySharedContacts(providers, led)

	for i := range providers {
		classify.Apply(&providers[i])
		metrics.Inc(metrics.ClassifiedTotal)
	}

	meta.FinishedAt = time.Now().UTC()
	meta.ProviderCount = len(providers)
	meta.EvidenceCount = led.Len()
	meta.StatusCounts = models.CountByStatus(providers)
	meta.TierCounts = models.CountByTier(providers)
	metrics.EvidenceTotal.Add(int64(led.Len()))

	r.logger.Info("scan finished",
		"run_id", meta.ID,
		"providers", len(providers),
		"evidence", led.Len(),
		"elapsed", meta.FinishedAt.Sub(meta.StartedAt).Round(time.Millisecond))

	return &Result{Meta: meta, Providers: providers, Evidence: led.Items()}, nil
}

// discover runs every source in order and concatenates the raw records.
// A failing source is logged and skipped; discovery only fails as a whole
// when the context is done.
func (r *Runner) discover(ctx context.Context, opts Options) ([]models.Provider, error) {
	var records []models.Provider
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discovery interrupted: %w", err)
		}
		found, err := src.Discover(ctx, opts.Region, opts.Keywords)
		if err != nil {
			r.logger.Warn("source discovery failed", "source", src.Name(), "error", err)
			continue
		}
		r.logger.Info("source discovered", "source", src.Name(), "records", len(found))
		records = append(records, found...)
	}
	metrics.DiscoveredTotal.Add(int64(len(records)))
	return records, nil
}

// enrichAll runs per-entity enrichment under a bounded worker pool. Each
// worker owns exactly one entity; the ledger is the only shared structure
// and synchronizes internally.
func (r *Runner) enrichAll(ctx context.Context, providers []models.Provider, led *evidence.Ledger, workers int) error {
	if workers <= 0 {
		workers = defaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range providers {
		p := &providers[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.enrichOne(gctx, p, led)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("enrichment interrupted: %w", err)
	}
	return nil
}

// enrichOne walks one entity through the per-entity stages. Stage failures
// land on the investigation trail and the error counter; the entity keeps
// whatever signals the remaining stages can still produce.
func (r *Runner) enrichOne(ctx context.Context, p *models.Provider, led *evidence.Ledger) {
	p.Investigation.AddStep("map_details")
	if err := r.details.Details(ctx, p); err != nil {
		p.Investigation.AddError(fmt.Sprintf("map_details: %v", err))
		metrics.Inc(metrics.EnrichErrors)
		r.logger.Warn("map details failed", "provider", p.ID, "error", err)
	} else {
		r.fileListingEvidence(p, led)
	}

	if r.website != nil {
		p.Investigation.AddStep("website_fetch")
		if err := r.website.Fetch(ctx, p, led); err != nil {
			p.Investigation.AddError(fmt.Sprintf("website_fetch: %v", err))
			metrics.Inc(metrics.EnrichErrors)
			r.logger.Warn("website fetch failed", "provider", p.ID, "error", err)
		}
	}

	if r.social != nil {
		p.Investigation.AddStep("social_lookup")
		if err := enrich.ApplySocial(ctx, p, r.social, led); err != nil {
			p.Investigation.AddError(fmt.Sprintf("social_lookup: %v", err))
			metrics.Inc(metrics.EnrichErrors)
			r.logger.Warn("social lookup failed", "provider", p.ID, "error", err)
		}
	}

	if r.registries != nil {
		p.Investigation.AddStep("registry_lookup")
		if err := enrich.ApplyRegistries(ctx, p, *r.registries, led); err != nil {
			p.Investigation.AddError(fmt.Sprintf("registry_lookup: %v", err))
			metrics.Inc(metrics.EnrichErrors)
			r.logger.Warn("registry lookup failed", "provider", p.ID, "error", err)
		}
	}
}

// fileListingEvidence records a successful map-details fetch: the listing
// itself, and recent review activity when the details carried it.
func (r *Runner) fileListingEvidence(p *models.Provider, led *evidence.Ledger) {
	if p.Signals.MapPlaceID == nil {
		return
	}
	listingURL := discovery.ListingURL(*p.Signals.MapPlaceID)
	id := led.Append(models.EvidenceItem{
		ProviderID:  p.ID,
		Source:      models.SourceMaps,
		Label:       "map_listing",
		Severity:    models.SeverityInfo,
		Description: fmt.Sprintf("Provider has a map listing: %s", p.NormalizedName),
		URL:         models.StrPtr(listingURL),
	})
	p.Investigation.AddEvidence(id)

	if p.Signals.ReviewsRecent && p.Signals.LastReviewAgeDays != nil {
		id := led.Append(models.EvidenceItem{
			ProviderID:  p.ID,
			Source:      models.SourceMaps,
			Label:       "recent_review",
			Severity:    models.SeverityPositive,
			Description: fmt.Sprintf("Most recent review is %.0f days old.", *p.Signals.LastReviewAgeDays),
			URL:         models.StrPtr(listingURL),
		})
		p.Investigation.AddEvidence(id)
	}
}
