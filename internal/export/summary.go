package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/provwatch/provwatch/internal/models"
)

// WriteSummary prints a human-readable classification summary: total
// providers, per-status counts, and per-tier counts.
func WriteSummary(w io.Writer, providers []models.Provider) {
	statusCounts := models.CountByStatus(providers)
	tierCounts := models.CountByTier(providers)

	fmt.Fprintln(w, "\n=== Classification Summary ===")
	fmt.Fprintf(w, "Total providers: %d\n", len(providers))
	for _, status := range models.ValidProviderStatuses {
		if n, ok := statusCounts[string(status)]; ok {
			fmt.Fprintf(w, "  %-22s %d\n", string(status)+":", n)
		}
	}
	fmt.Fprintln(w, "\nRisk tiers:")
	for _, tier := range models.ValidRiskTiers {
		if n, ok := tierCounts[string(tier)]; ok {
			fmt.Fprintf(w, "  %-9s: %d\n", tier, n)
		}
	}
	fmt.Fprintln(w, "=============================")
}

// WriteTopN prints a brief table of the n most suspicious providers,
// sorted by suspicion score descending. A non-positive n prints nothing.
func WriteTopN(w io.Writer, providers []models.Provider, n int) {
	if n <= 0 || len(providers) == 0 {
		return
	}
	sorted := make([]models.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Signals.SuspicionScore > sorted[j].Signals.SuspicionScore
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	fmt.Fprintln(w, "\n=== Top Suspicious Providers (by suspicion_score) ===")
	fmt.Fprintf(w, "%6s %6s %9s  %22s  Name / City\n", "Susp", "Legit", "Tier", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i := 0; i < n; i++ {
		p := &sorted[i]
		fmt.Fprintf(w, "%6.2f %6.2f %9s  %22s  %s [%s, %s]\n",
			p.Signals.SuspicionScore,
			p.Signals.LegitimacyScore,
			p.RiskTier,
			p.Status,
			p.NormalizedName,
			strOr(p.City, "N/A"),
			strOr(p.State, "N/A"),
		)
	}
	fmt.Fprintln(w, "=====================================================")
}
