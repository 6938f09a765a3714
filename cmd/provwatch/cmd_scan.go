package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/provwatch/provwatch/internal/aggregate"
	"github.com/provwatch/provwatch/internal/discovery"
	"github.com/provwatch/provwatch/internal/enrich"
	"github.com/provwatch/provwatch/internal/export"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/scan"
)

func scanCmd() *cobra.Command {
	var (
		region        string
		keywords      []string
		keywordsFile  string
		outputDir     string
		dryRun        bool
		summaryOnly   bool
		topN          int
		minSuspicion  float64
		tiersRaw      string
		statusesRaw   string
		redact        bool
		noWebsite     bool
		noSocial      bool
		noRegistries  bool
		noAds         bool
		noDirectories bool
		maxResults    int
		scenario      string
		notes         string
		tag           string
		persist       bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a full discovery, enrichment, and classification scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if region == "" {
				region = cfg.Search.Region
			}
			kws, err := resolveKeywords(keywords, keywordsFile, cfg.Search.Keywords)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			tiers, err := parseTiers(tiersRaw)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			statuses, err := parseStatuses(statusesRaw)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}

			if outputDir == "" {
				outputDir = cfg.Export.OutputDir
			}
			if maxResults <= 0 {
				maxResults = cfg.Places.MaxResults
			}
			if topN < 0 {
				topN = cfg.Export.Top
			}
			if minSuspicion < 0 {
				minSuspicion = cfg.Export.MinSuspicion
			}
			doRedact := redact || cfg.Export.Redact
			if tag == "" {
				tag = cfg.Storage.Tag
			}
			if scenario != "" {
				logger.Info("scenario", "name", scenario)
			}
			if notes != "" {
				logger.Info("run notes", "notes", notes)
			}

			// Discovery channels.
			var (
				sources []discovery.Source
				details discovery.DetailsFetcher
			)
			if cfg.Places.APIKey != "" {
				pc := discovery.NewPlacesClient(discovery.PlacesOptions{
					APIKey:                    cfg.Places.APIKey,
					BaseURL:                   cfg.Places.BaseURL,
					MaxResultsPerKeyword:      maxResults,
					RequestDelay:              cfg.Places.RequestDelay,
					Timeout:                   cfg.Places.HTTPTimeout,
					MinReviewsBasic:           cfg.Thresholds.MinReviewsBasic,
					ReviewRecentDays:          cfg.Thresholds.ReviewRecentDays,
					VisitorActivityMinReviews: cfg.Thresholds.VisitorActivityMinReviews,
				}, logger)
				sources = append(sources, pc)
				details = pc
			} else {
				logger.Warn("places.api_key not set; map discovery disabled")
			}
			if !noAds {
				src, err := fixtureSource(models.SourceAdPlatform, cfg.Search.AdsFixture)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				if src != nil {
					sources = append(sources, src)
				}
			}
			if !noDirectories {
				src, err := fixtureSource(models.SourceDirectory, cfg.Search.DirectoriesFixture)
				if err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				if src != nil {
					sources = append(sources, src)
				}
			}

			// Enrichment collaborators. Nil means the stage is skipped.
			var website scan.SiteFetcher
			if cfg.Enrich.Website && !noWebsite {
				website = enrich.NewWebsiteFetcher(
					cfg.Enrich.HTTPTimeout,
					cfg.Enrich.UserAgent,
					cfg.Vocab.RegulatorTerms,
					logger,
				)
			}
			var social enrich.SocialLookup
			if cfg.Enrich.Social && !noSocial {
				social = enrich.NoopSocial{}
			}
			var registries *enrich.RegistrySet
			if cfg.Enrich.Registries && !noRegistries {
				set := enrich.NoopRegistrySet()
				if cfg.Redis.Enabled {
					kv := enrich.NewRedisKV(redis.NewClient(&redis.Options{
						Addr:     cfg.Redis.Addr,
						Password: cfg.Redis.Password,
						DB:       cfg.Redis.DB,
					}))
					set = enrich.RegistrySet{
						Business:  enrich.NewCachedRegistry("business", set.Business, kv, cfg.Redis.TTL, logger),
						Labor:     enrich.NewCachedRegistry("labor", set.Labor, kv, cfg.Redis.TTL, logger),
						Childcare: enrich.NewCachedRegistry("childcare", set.Childcare, kv, cfg.Redis.TTL, logger),
					}
				}
				registries = &set
			}

			vocab := aggregate.DefaultVocab()
			if len(cfg.Vocab.LocationTerms) > 0 {
				vocab.LocationTerms = cfg.Vocab.LocationTerms
			}

			runner := scan.NewRunner(sources, details, website, social, registries, logger)
			res, err := runner.Run(ctx, scan.Options{
				Region:   region,
				Keywords: kws,
				Scenario: scenario,
				Notes:    notes,
				Tag:      tag,
				DryRun:   dryRun,
				Workers:  cfg.Enrich.Workers,
				Peer: aggregate.PeerConfig{
					LowActivityMedian:      cfg.Thresholds.LowActivityMedian,
					HighActivityPercentile: cfg.Thresholds.HighActivityPercentile,
				},
				Vocab: vocab,
			})
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}

			w := export.NewWriter(export.Options{
				OutputDir:     outputDir,
				EvidenceDir:   cfg.Export.EvidenceDir,
				Redact:        doRedact,
				Statuses:      statuses,
				HighRiskTiers: tiers,
				MinSuspicion:  minSuspicion,
				CSV:           cfg.Export.CSV,
				XLSX:          cfg.Export.XLSX,
			}, logger)

			if dryRun {
				if err := w.WriteNDJSON("providers_discovered.ndjson", res.Meta, res.Providers); err != nil {
					return fmt.Errorf("scan: %w", err)
				}
			} else {
				if err := w.WriteAll(res.Meta, res.Providers, res.Evidence); err != nil {
					return fmt.Errorf("scan: %w", err)
				}
				if summaryOnly {
					export.WriteSummary(os.Stdout, res.Providers)
				}
				if topN > 0 {
					export.WriteTopN(os.Stdout, res.Providers, topN)
				}
			}

			if persist || cfg.Storage.Enabled {
				if err := persistRun(ctx, logger, res, doRedact); err != nil {
					return fmt.Errorf("scan: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&region, "region", "r", "", "search region appended to each keyword query")
	cmd.Flags().StringArrayVarP(&keywords, "keyword", "k", nil, "search keyword; may be given multiple times")
	cmd.Flags().StringVar(&keywordsFile, "keywords-file", "", "file with one keyword per line, combined with --keyword")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for JSON/NDJSON/CSV output files")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "discover and deduplicate only; writes providers_discovered.ndjson")
	cmd.Flags().BoolVar(&summaryOnly, "summary-only", false, "print a classification summary to stdout (files are still written)")
	cmd.Flags().IntVar(&topN, "top", -1, "print the top-N most suspicious providers (0 disables)")
	cmd.Flags().Float64Var(&minSuspicion, "min-suspicion", -1, "suspicion threshold for providers_high_risk.ndjson")
	cmd.Flags().StringVar(&tiersRaw, "tiers", "", "comma-separated risk tiers for providers_high_risk.ndjson")
	cmd.Flags().StringVar(&statusesRaw, "statuses", "", "comma-separated statuses to include in NDJSON/CSV summaries")
	cmd.Flags().BoolVar(&redact, "redact", false, "redact identity-revealing fields in outputs")
	cmd.Flags().BoolVar(&noWebsite, "no-website", false, "disable website fetch and analysis")
	cmd.Flags().BoolVar(&noSocial, "no-social", false, "disable social presence lookup")
	cmd.Flags().BoolVar(&noRegistries, "no-registries", false, "disable government registry lookups")
	cmd.Flags().BoolVar(&noAds, "no-ads", false, "disable ad-platform discovery")
	cmd.Flags().BoolVar(&noDirectories, "no-directories", false, "disable directory-site discovery")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "cap on map results processed per keyword")
	cmd.Flags().StringVar(&scenario, "scenario", "", "free-form label for this run")
	cmd.Flags().StringVar(&notes, "notes", "", "short note attached to run metadata")
	cmd.Flags().StringVar(&tag, "tag", "", "tag attached to all persisted documents for this run")
	cmd.Flags().BoolVar(&persist, "persist", false, "write the run to the configured store")
	return cmd
}

// resolveKeywords combines repeatable --keyword values with the lines of
// --keywords-file, deduplicating while preserving order. When both are
// empty the configured defaults are used.
func resolveKeywords(flagKeywords []string, file string, defaults []string) ([]string, error) {
	if len(flagKeywords) == 0 && file == "" {
		return defaults, nil
	}
	kws := append([]string(nil), flagKeywords...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("reading keywords file: %w", err)
		}
		defer func() { _ = f.Close() }()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line != "" {
				kws = append(kws, line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading keywords file: %w", err)
		}
	}
	seen := make(map[string]bool, len(kws))
	var out []string
	for _, kw := range kws {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	if len(out) == 0 {
		return defaults, nil
	}
	return out, nil
}

// fixtureSource loads a static listing file for a scaffold channel. An
// unconfigured path means the channel contributes nothing and no source is
// returned.
func fixtureSource(channel models.SourceChannel, path string) (discovery.Source, error) {
	if path == "" {
		return nil, nil
	}
	listings, err := discovery.LoadListings(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s fixture: %w", channel, err)
	}
	return discovery.NewStaticSource(channel, listings), nil
}

// persistRun writes the run to the configured store, applying the output
// projection first so redacted exports and redacted persistence agree.
func persistRun(ctx context.Context, logger *slog.Logger, res *scan.Result, doRedact bool) error {
	st, err := newStore(logger)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring store schema: %w", err)
	}

	providers := make([]models.Provider, 0, len(res.Providers))
	for i := range res.Providers {
		providers = append(providers, export.Projection(&res.Providers[i], doRedact))
	}
	items := make([]models.EvidenceItem, 0, len(res.Evidence))
	for i := range res.Evidence {
		items = append(items, export.EvidenceProjection(&res.Evidence[i], doRedact))
	}

	if err := st.SaveRun(ctx, res.Meta, providers, items); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	logger.Info("run persisted", "run_id", res.Meta.ID, "providers", len(providers), "evidence", len(items))
	return nil
}
