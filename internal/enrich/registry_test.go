package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/evidence"
	"github.com/provwatch/provwatch/internal/models"
)

// countingRegistry wraps an inner client and counts lookups.
type countingRegistry struct {
	inner RegistryClient
	calls int
}

func (c *countingRegistry) Lookup(ctx context.Context, name string) (RegistryRecord, error) {
	c.calls++
	return c.inner.Lookup(ctx, name)
}

type failingRegistry struct{}

func (failingRegistry) Lookup(ctx context.Context, name string) (RegistryRecord, error) {
	return RegistryRecord{}, errors.New("registry unavailable")
}

type failingKV struct{}

func (failingKV) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("kv down")
}

func (failingKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return errors.New("kv down")
}

func TestStaticRegistryLookup(t *testing.T) {
	reg := NewStaticRegistry(map[string]RegistryRecord{
		"sunny days": {Found: true, Active: true, Number: "CC-1001"},
	})

	rec, err := reg.Lookup(context.Background(), "sunny days")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "CC-1001", rec.Number)

	rec, err = reg.Lookup(context.Background(), "unknown name")
	require.NoError(t, err)
	assert.False(t, rec.Found)
}

func TestApplyRegistriesFillsSignalsAndEvidence(t *testing.T) {
	set := RegistrySet{
		Business: NewStaticRegistry(map[string]RegistryRecord{
			"sunny days": {Found: true, Active: true, Name: "SUNNY DAYS LLC"},
		}),
		Labor: NewStaticRegistry(map[string]RegistryRecord{
			"sunny days": {Found: true, Active: false, Number: "L-500"},
		}),
		Childcare: NewStaticRegistry(map[string]RegistryRecord{
			"sunny days": {Found: true, Active: false, Number: "CC-1001"},
		}),
	}

	led := evidence.NewLedger()
	p := models.Provider{ID: "prov-1", NormalizedName: "sunny days"}

	require.NoError(t, ApplyRegistries(context.Background(), &p, set, led))

	assert.True(t, p.Signals.HasBusinessRegistration)
	assert.True(t, p.Signals.BusinessRegistryActive)
	assert.Equal(t, "SUNNY DAYS LLC", *p.Signals.BusinessRegistryName)

	assert.True(t, p.Signals.HasLaborLicense)
	assert.False(t, p.Signals.LaborLicenseActive)
	assert.Equal(t, "L-500", *p.Signals.LaborLicenseNumber)

	assert.True(t, p.Signals.HasChildcareLicense)
	assert.False(t, p.Signals.ChildcareLicenseActive)
	assert.Equal(t, "CC-1001", *p.Signals.ChildcareLicenseNumber)
	assert.False(t, p.Signals.Licensed(), "an inactive childcare license does not license the provider")

	items := led.ItemsFor("prov-1")
	require.Len(t, items, 3)
	assert.Equal(t, "business_registry_record", items[0].Label)
	assert.Equal(t, models.SeverityPositive, items[0].Severity)
	assert.Equal(t, "labor_license", items[1].Label)
	assert.Equal(t, models.SeverityInfo, items[1].Severity)
	// A lapsed childcare license is the one inactive record that cuts
	// against the provider.
	assert.Equal(t, "childcare_license", items[2].Label)
	assert.Equal(t, models.SeverityNegative, items[2].Severity)

	assert.Len(t, p.Investigation.EvidenceIDs, 3)
}

func TestApplyRegistriesNoopSetIsSilent(t *testing.T) {
	led := evidence.NewLedger()
	p := models.Provider{ID: "prov-1", NormalizedName: "sunny days"}

	require.NoError(t, ApplyRegistries(context.Background(), &p, NoopRegistrySet(), led))

	assert.False(t, p.Signals.HasBusinessRegistration)
	assert.False(t, p.Signals.HasLaborLicense)
	assert.False(t, p.Signals.HasChildcareLicense)
	assert.Zero(t, led.Len())
}

func TestApplyRegistriesJoinsLookupErrors(t *testing.T) {
	set := RegistrySet{
		Business: failingRegistry{},
		Labor:    NoopRegistry{},
		Childcare: NewStaticRegistry(map[string]RegistryRecord{
			"sunny days": {Found: true, Active: true},
		}),
	}

	led := evidence.NewLedger()
	p := models.Provider{ID: "prov-1", NormalizedName: "sunny days"}

	err := ApplyRegistries(context.Background(), &p, set, led)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business registry")

	// The failure of one registry does not block the others.
	assert.True(t, p.Signals.Licensed())
	assert.Equal(t, 1, led.Len())
}

func TestCachedRegistryServesSecondLookupFromCache(t *testing.T) {
	inner := &countingRegistry{inner: NewStaticRegistry(map[string]RegistryRecord{
		"sunny days": {Found: true, Active: true, Number: "CC-1001"},
	})}
	cached := NewCachedRegistry("childcare", inner, NewMemoryKV(), time.Minute, testLogger())

	rec, err := cached.Lookup(context.Background(), "sunny days")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, 1, inner.calls)

	rec, err = cached.Lookup(context.Background(), "sunny days")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, "CC-1001", rec.Number)
	assert.Equal(t, 1, inner.calls, "second lookup must not reach the registry")

	// A different name misses the cache.
	_, err = cached.Lookup(context.Background(), "other name")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedRegistryDegradesWhenCacheFails(t *testing.T) {
	inner := &countingRegistry{inner: NewStaticRegistry(map[string]RegistryRecord{
		"sunny days": {Found: true},
	})}
	cached := NewCachedRegistry("business", inner, failingKV{}, time.Minute, testLogger())

	rec, err := cached.Lookup(context.Background(), "sunny days")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedRegistryDiscardsUnparsableEntries(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "registry:labor:sunny days", "{corrupt", 0))

	inner := &countingRegistry{inner: NewStaticRegistry(map[string]RegistryRecord{
		"sunny days": {Found: true, Active: true},
	})}
	cached := NewCachedRegistry("labor", inner, kv, time.Minute, testLogger())

	rec, err := cached.Lookup(context.Background(), "sunny days")
	require.NoError(t, err)
	assert.True(t, rec.Found)
	assert.Equal(t, 1, inner.calls, "corrupt cache entries fall through to the registry")
}

func TestCachedRegistryPropagatesInnerErrors(t *testing.T) {
	cached := NewCachedRegistry("business", failingRegistry{}, NewMemoryKV(), time.Minute, testLogger())

	_, err := cached.Lookup(context.Background(), "sunny days")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry unavailable")
}
