package models

import "time"

// Severity grades what an evidence item says about a provider.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityPositive Severity = "positive"
	SeverityNegative Severity = "negative"
)

// ValidSeverities is the set of all valid evidence severities.
var ValidSeverities = []Severity{
	SeverityInfo,
	SeverityPositive,
	SeverityNegative,
}

// IsValid returns true if the severity is recognized.
func (s Severity) IsValid() bool {
	for _, v := range ValidSeverities {
		if s == v {
			return true
		}
	}
	return false
}

// EvidenceItem is one immutable entry in the evidence ledger. Every
// conclusion the pipeline reaches about a provider is backed by one or
// more of these.
type EvidenceItem struct {
	ID          string         `json:"id"`
	ProviderID  string         `json:"provider_id"`
	Source      SourceChannel  `json:"source"`
	Label       string         `json:"label"`
	Severity    Severity       `json:"severity"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description"`
	URL         *string        `json:"url,omitempty"`
	RawExcerpt  *string        `json:"raw_excerpt,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the evidence item.
func (e *EvidenceItem) Clone() EvidenceItem {
	c := *e
	c.URL = cloneStr(e.URL)
	c.RawExcerpt = cloneStr(e.RawExcerpt)
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
