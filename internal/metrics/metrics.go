// Package metrics provides application-level counters using stdlib expvar.
// The HTTP API server exposes them on its /debug/vars endpoint.
package metrics

import "expvar"

// Operation counters.
var (
	ScansTotal       = expvar.NewInt("provwatch_scans_total")
	DiscoveredTotal  = expvar.NewInt("provwatch_discovered_total")
	MergedTotal      = expvar.NewInt("provwatch_entities_merged_total")
	EnrichErrors     = expvar.NewInt("provwatch_enrich_errors_total")
	EvidenceTotal    = expvar.NewInt("provwatch_evidence_items_total")
	ClassifiedTotal  = expvar.NewInt("provwatch_classified_total")
	RegistryCacheHit = expvar.NewInt("provwatch_registry_cache_hits_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
