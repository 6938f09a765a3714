package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/metrics"
	"github.com/provwatch/provwatch/internal/models"
)

// RegistryRecord is a government registry lookup result.
type RegistryRecord struct {
	Found  bool   `json:"found"`
	Active bool   `json:"active"`
	Name   string `json:"name,omitempty"`
	Number string `json:"number,omitempty"`
}

// RegistryClient looks a provider up in one government registry by its
// normalized name.
type RegistryClient interface {
	Lookup(ctx context.Context, name string) (RegistryRecord, error)
}

// NoopRegistry never finds anything. Used when a registry channel is
// switched off or has no deployment-specific client.
type NoopRegistry struct{}

// Lookup implements RegistryClient.
func (NoopRegistry) Lookup(ctx context.Context, name string) (RegistryRecord, error) {
	return RegistryRecord{}, nil
}

// StaticRegistry serves lookups from a fixed map keyed by normalized name.
// Backs offline scenario runs and tests.
type StaticRegistry struct {
	records map[string]RegistryRecord
}

// NewStaticRegistry returns a registry backed by the given records.
func NewStaticRegistry(records map[string]RegistryRecord) *StaticRegistry {
	return &StaticRegistry{records: records}
}

// Lookup implements RegistryClient.
func (s *StaticRegistry) Lookup(ctx context.Context, name string) (RegistryRecord, error) {
	return s.records[name], nil
}

// CachedRegistry wraps a RegistryClient with a KVStore so repeated scans
// don't re-hit the registry for the same provider name.
type CachedRegistry struct {
	role   string
	inner  RegistryClient
	kv     KVStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRegistry wraps inner with a cache. The role distinguishes the
// three registries in cache keys.
func NewCachedRegistry(role string, inner RegistryClient, kv KVStore, ttl time.Duration, logger *slog.Logger) *CachedRegistry {
	return &CachedRegistry{role: role, inner: inner, kv: kv, ttl: ttl, logger: logger}
}

// Lookup implements RegistryClient. Cache failures degrade to a direct
// lookup; they never fail the enrichment.
func (c *CachedRegistry) Lookup(ctx context.Context, name string) (RegistryRecord, error) {
	key := "registry:" + c.role + ":" + name

	cached, err := c.kv.Get(ctx, key)
	if err == nil {
		var rec RegistryRecord
		if jsonErr := json.Unmarshal([]byte(cached), &rec); jsonErr == nil {
			metrics.Inc(metrics.RegistryCacheHit)
			return rec, nil
		}
		c.logger.Warn("discarding unparsable cache entry", "key", key)
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("registry cache read failed", "key", key, "error", err)
	}

	rec, err := c.inner.Lookup(ctx, name)
	if err != nil {
		return RegistryRecord{}, err
	}

	if payload, jsonErr := json.Marshal(rec); jsonErr == nil {
		if setErr := c.kv.Set(ctx, key, string(payload), c.ttl); setErr != nil {
			c.logger.Warn("registry cache write failed", "key", key, "error", setErr)
		}
	}
	return rec, nil
}

// RegistrySet bundles the three registries a scan consults.
type RegistrySet struct {
	Business  RegistryClient
	Labor     RegistryClient
	Childcare RegistryClient
}

// NoopRegistrySet returns a set where every lookup comes back empty.
func NoopRegistrySet() RegistrySet {
	return RegistrySet{
		Business:  NoopRegistry{},
		Labor:     NoopRegistry{},
		Childcare: NoopRegistry{},
	}
}

// ApplyRegistries runs the three lookups for one provider, writes the
// registry signals, and files evidence. Lookup failures are joined into
// the returned error; signals already written stay written.
func ApplyRegistries(ctx context.Context, p *models.Provider, reg RegistrySet, led *evidence.Ledger) error {
	var errs []error

	if reg.Business != nil {
		rec, err := reg.Business.Lookup(ctx, p.NormalizedName)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("business registry: %w", err))
		case rec.Found:
			p.Signals.HasBusinessRegistration = true
			p.Signals.BusinessRegistryActive = rec.Active
			if rec.Name != "" {
				p.Signals.BusinessRegistryName = models.StrPtr(rec.Name)
			}
			severity := models.SeverityInfo
			desc := "Business registration on file but not active."
			if rec.Active {
				severity = models.SeverityPositive
				desc = "Active business registration on file."
			}
			id := led.Append(models.EvidenceItem{
				ProviderID:  p.ID,
				Source:      models.SourceBusinessRegistry,
				Label:       "business_registry_record",
				Severity:    severity,
				Description: desc,
			})
			p.Investigation.AddEvidence(id)
		}
	}

	if reg.Labor != nil {
		rec, err := reg.Labor.Lookup(ctx, p.NormalizedName)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("labor registry: %w", err))
		case rec.Found:
			p.Signals.HasLaborLicense = true
			p.Signals.LaborLicenseActive = rec.Active
			if rec.Number != "" {
				p.Signals.LaborLicenseNumber = models.StrPtr(rec.Number)
			}
			severity := models.SeverityInfo
			desc := "Labor-department license on file but not active."
			if rec.Active {
				severity = models.SeverityPositive
				desc = "Active labor-department license on file."
			}
			id := led.Append(models.EvidenceItem{
				ProviderID:  p.ID,
				Source:      models.SourceLaborRegistry,
				Label:       "labor_license",
				Severity:    severity,
				Description: desc,
			})
			p.Investigation.AddEvidence(id)
		}
	}

	if reg.Childcare != nil {
		rec, err := reg.Childcare.Lookup(ctx, p.NormalizedName)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("childcare registry: %w", err))
		case rec.Found:
			p.Signals.HasChildcareLicense = true
			p.Signals.ChildcareLicenseActive = rec.Active
			if rec.Number != "" {
				p.Signals.ChildcareLicenseNumber = models.StrPtr(rec.Number)
			}
			severity := models.SeverityNegative
			desc := "Childcare license on file but not active."
			if rec.Active {
				severity = models.SeverityPositive
				desc = "Active childcare license on file."
			}
			id := led.Append(models.EvidenceItem{
				ProviderID:  p.ID,
				Source:      models.SourceChildcareRegistry,
				Label:       "childcare_license",
				Severity:    severity,
				Description: desc,
			})
			p.Investigation.AddEvidence(id)
		}
	}

	return errors.Join(errs...)
}
