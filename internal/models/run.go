package models

import "time"

// SchemaVersion is stamped on every persisted run document.
const SchemaVersion = "1.0.0"

// RunMeta describes one scan run: what was searched, when, and what came out.
type RunMeta struct {
	ID            string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Region        string         `json:"region"`
	Keywords      []string       `json:"keywords,omitempty"`
	Scenario      string         `json:"scenario,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Tag           string         `json:"tag,omitempty"`
	SchemaVersion string         `json:"schema_version"`
	ProviderCount int            `json:"provider_count"`
	EvidenceCount int            `json:"evidence_count"`
	StatusCounts  map[string]int `json:"status_counts,omitempty"`
	TierCounts    map[string]int `json:"tier_counts,omitempty"`
}

// CountByStatus tallies providers per status.
func CountByStatus(providers []Provider) map[string]int {
	counts := make(map[string]int)
	for i := range providers {
		counts[string(providers[i].Status)]++
	}
	return counts
}

// CountByTier tallies providers per risk tier.
func CountByTier(providers []Provider) map[string]int {
	counts := make(map[string]int)
	for i := range providers {
		counts[string(providers[i].RiskTier)]++
	}
	return counts
}
