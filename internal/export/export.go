// Package export writes the post-classification reports: grouped JSON per
// status, NDJSON dumps, the evidence ledger, CSV/XLSX triage summaries,
// and the JSON Schemas for the persisted documents. Writers operate on a
// read-only snapshot; redaction happens on the output projection and never
// touches the underlying entities or ledger.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// Options controls what the writer emits and where.
type Options struct {
	OutputDir   string
	EvidenceDir string // empty = OutputDir
	Redact      bool

	// Statuses restricts the NDJSON/CSV exports when non-empty.
	Statuses []models.ProviderStatus

	// High-risk NDJSON filter.
	HighRiskTiers []models.RiskTier
	MinSuspicion  float64

	CSV  bool
	XLSX bool
}

// Writer emits the run's report files.
type Writer struct {
	opts   Options
	logger *slog.Logger
}

// NewWriter returns a report writer.
func NewWriter(opts Options, logger *slog.Logger) *Writer {
	if opts.EvidenceDir == "" {
		opts.EvidenceDir = opts.OutputDir
	}
	return &Writer{opts: opts, logger: logger}
}

// WriteAll emits every configured artifact for a finished run: the four
// grouped JSON files, the full and high-risk NDJSON dumps, the evidence
// ledger, and the CSV/XLSX summaries.
func (w *Writer) WriteAll(meta models.RunMeta, providers []models.Provider, items []models.EvidenceItem) error {
	if err := os.MkdirAll(w.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	for _, status := range models.ValidProviderStatuses {
		var subset []models.Provider
		for i := range providers {
			if providers[i].Status == status {
				subset = append(subset, providers[i])
			}
		}
		if err := w.WriteGroupedJSON(string(status)+".json", meta, subset); err != nil {
			return err
		}
	}

	if err := w.WriteNDJSON("providers_all.ndjson", meta, w.filterByStatus(providers)); err != nil {
		return err
	}

	if highRisk := w.filterHighRisk(providers); len(highRisk) > 0 {
		if err := w.WriteNDJSON("providers_high_risk.ndjson", meta, highRisk); err != nil {
			return err
		}
	} else {
		w.logger.Info("no providers matched the high-risk filters; skipping providers_high_risk.ndjson")
	}

	if err := w.WriteEvidenceNDJSON(items); err != nil {
		return err
	}

	if w.opts.CSV {
		if err := w.WriteCSV("providers_summary.csv", w.filterByStatus(providers)); err != nil {
			return err
		}
	}
	if w.opts.XLSX {
		if err := w.WriteXLSX("providers_summary.xlsx", w.filterByStatus(providers)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) filterByStatus(providers []models.Provider) []models.Provider {
	if len(w.opts.Statuses) == 0 {
		return providers
	}
	allowed := make(map[models.ProviderStatus]struct{}, len(w.opts.Statuses))
	for _, s := range w.opts.Statuses {
		allowed[s] = struct{}{}
	}
	var out []models.Provider
	for i := range providers {
		if _, ok := allowed[providers[i].Status]; ok {
			out = append(out, providers[i])
		}
	}
	return out
}

func (w *Writer) filterHighRisk(providers []models.Provider) []models.Provider {
	tiers := make(map[models.RiskTier]struct{}, len(w.opts.HighRiskTiers))
	for _, t := range w.opts.HighRiskTiers {
		tiers[t] = struct{}{}
	}
	var out []models.Provider
	for i := range providers {
		p := &providers[i]
		if p.Signals.SuspicionScore < w.opts.MinSuspicion {
			continue
		}
		if len(tiers) > 0 {
			if _, ok := tiers[p.RiskTier]; !ok {
				continue
			}
		}
		out = append(out, *p)
	}
	return out
}

// GroupByRegion nests providers as state -> county -> city, each city list
// sorted by suspicion score descending. Missing location components map to
// UNKNOWN/Unknown the same way the peer-cohort keys do.
func GroupByRegion(providers []models.Provider, redact bool) map[string]map[string]map[string][]models.Provider {
	sorted := append([]models.Provider(nil), providers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Signals.SuspicionScore > sorted[j].Signals.SuspicionScore
	})

	grouped := make(map[string]map[string]map[string][]models.Provider)
	for i := range sorted {
		p := &sorted[i]
		state := strings.ToUpper(strOr(p.State, "unknown"))
		county := normalize.TitleCase(strOr(p.County, "unknown"))
		city := normalize.TitleCase(strOr(p.City, "unknown"))

		if grouped[state] == nil {
			grouped[state] = make(map[string]map[string][]models.Provider)
		}
		if grouped[state][county] == nil {
			grouped[state][county] = make(map[string][]models.Provider)
		}
		grouped[state][county][city] = append(grouped[state][county][city], Projection(p, redact))
	}
	return grouped
}

func strOr(v *string, fallback string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return fallback
	}
	return *v
}

type groupedDocument struct {
	Meta              models.RunMeta                                     `json:"meta"`
	ProvidersByRegion map[string]map[string]map[string][]models.Provider `json:"providers_by_region"`
}

// WriteGroupedJSON writes one status's providers grouped by region, with
// the run metadata at the top.
func (w *Writer) WriteGroupedJSON(filename string, meta models.RunMeta, providers []models.Provider) error {
	doc := groupedDocument{
		Meta:              meta,
		ProvidersByRegion: GroupByRegion(providers, w.opts.Redact),
	}

	path := filepath.Join(w.opts.OutputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	w.logger.Info("wrote grouped report", "path", path, "providers", len(providers))
	return nil
}

type ndjsonRecord struct {
	models.Provider
	Meta models.RunMeta `json:"_meta"`
}

// WriteNDJSON writes one provider per line with an embedded _meta object.
func (w *Writer) WriteNDJSON(filename string, meta models.RunMeta, providers []models.Provider) error {
	if err := os.MkdirAll(w.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(w.opts.OutputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for i := range providers {
		rec := ndjsonRecord{
			Provider: Projection(&providers[i], w.opts.Redact),
			Meta:     meta,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
	}
	w.logger.Info("wrote NDJSON report", "path", path, "providers", len(providers))
	return nil
}

// WriteEvidenceNDJSON dumps the full ledger, one item per line.
func (w *Writer) WriteEvidenceNDJSON(items []models.EvidenceItem) error {
	if err := os.MkdirAll(w.opts.EvidenceDir, 0o755); err != nil {
		return fmt.Errorf("creating evidence dir: %w", err)
	}
	path := filepath.Join(w.opts.EvidenceDir, "evidence.ndjson")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for i := range items {
		item := EvidenceProjection(&items[i], w.opts.Redact)
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
	}
	w.logger.Info("wrote evidence ledger", "path", path, "items", len(items))
	return nil
}

// summaryColumns is the fixed CSV/XLSX column list, close to what an
// analyst triages on: identity, location, verdicts, scores, and the key
// boolean signals.
var summaryColumns = []string{
	"id",
	"normalized_name",
	"city",
	"county",
	"state",
	"status",
	"risk_tier",
	"suspicion_score",
	"legitimacy_score",
	"map_rating",
	"review_count",
	"has_childcare_license",
	"childcare_license_active",
	"has_business_registration",
	"business_registry_active",
	"has_labor_license",
	"labor_license_active",
	"city_low_activity_outlier",
	"city_high_activity_outlier",
	"shared_address_count",
	"evidence_count",
}

func summaryRow(p *models.Provider) []string {
	s := &p.Signals
	return []string{
		p.ID,
		p.NormalizedName,
		strOr(p.City, ""),
		strOr(p.County, ""),
		strOr(p.State, ""),
		string(p.Status),
		string(p.RiskTier),
		fmt.Sprintf("%.2f", s.SuspicionScore),
		fmt.Sprintf("%.2f", s.LegitimacyScore),
		floatCell(s.MapRating),
		intCell(s.ReviewCount),
		strconv.FormatBool(s.HasChildcareLicense),
		strconv.FormatBool(s.ChildcareLicenseActive),
		strconv.FormatBool(s.HasBusinessRegistration),
		strconv.FormatBool(s.BusinessRegistryActive),
		strconv.FormatBool(s.HasLaborLicense),
		strconv.FormatBool(s.LaborLicenseActive),
		strconv.FormatBool(s.CityLowActivityOutlier),
		strconv.FormatBool(s.CityHighActivityOutlier),
		intCell(s.SharedAddressCount),
		strconv.Itoa(len(p.Investigation.EvidenceIDs)),
	}
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// WriteCSV writes the triage summary spreadsheet.
func (w *Writer) WriteCSV(filename string, providers []models.Provider) error {
	path := filepath.Join(w.opts.OutputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	cw := csv.NewWriter(f)
	if err := cw.Write(summaryColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i := range providers {
		if err := cw.Write(summaryRow(&providers[i])); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	w.logger.Info("wrote CSV summary", "path", path, "providers", len(providers))
	return nil
}
