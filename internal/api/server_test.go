package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provwatch/provwatch/internal/metrics"
	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/store"
)

// newTestServer creates a test HTTP server backed by a fresh in-memory store.
func newTestServer(t *testing.T, authToken string) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ms := store.NewMemoryStore()
	srv := NewServer(ms, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, ms
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(context.Background(), method, url, body)
	} else {
		req, err = http.NewRequestWithContext(context.Background(), method, url, http.NoBody)
	}
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func seedProvider(id, name string, status models.ProviderStatus, tier models.RiskTier, suspicion float64) models.Provider {
	return models.Provider{
		ID:             id,
		NormalizedName: name,
		City:           models.StrPtr("Seattle"),
		State:          models.StrPtr("WA"),
		Status:         status,
		RiskTier:       tier,
		Signals:        models.Signals{SuspicionScore: suspicion},
	}
}

// seedRun loads one finished run into the store: three providers across
// the tier spectrum and two evidence items against the worst one.
func seedRun(t *testing.T, ms *store.MemoryStore) {
	t.Helper()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	meta := models.RunMeta{
		ID:            "run-1",
		StartedAt:     started,
		FinishedAt:    started.Add(time.Minute),
		Region:        "Washington State",
		Tag:           "wa-march",
		SchemaVersion: models.SchemaVersion,
		ProviderCount: 3,
		EvidenceCount: 2,
	}
	providers := []models.Provider{
		seedProvider("p-1", "sunny days", models.StatusUnlicensedListed, models.TierCritical, 4.5),
		seedProvider("p-2", "bright beginnings", models.StatusLicensedActive, models.TierLow, 0),
		seedProvider("p-3", "tiny tots", models.StatusLicensedUnlisted, models.TierHigh, 3.0),
	}
	evidence := []models.EvidenceItem{
		{
			ID:          "ev-1",
			ProviderID:  "p-1",
			Source:      models.SourceMaps,
			Label:       "map_listing",
			Severity:    models.SeverityInfo,
			Timestamp:   started,
			Description: "Provider has a map listing: sunny days",
		},
		{
			ID:          "ev-2",
			ProviderID:  "p-1",
			Source:      models.SourceMaps,
			Label:       "low_activity_outlier",
			Severity:    models.SeverityNegative,
			Timestamp:   started.Add(time.Second),
			Description: "No reviews at all while the median across Seattle is 12.0.",
		},
	}
	require.NoError(t, ms.SaveRun(context.Background(), meta, providers, evidence))
}

func TestAPIHealthz(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result["status"])
}

func TestAPIProviders_Defaults(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result providersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 3, result.Count)
	require.Len(t, result.Providers, 3)
	// Suspicion score descending.
	assert.Equal(t, "p-1", result.Providers[0].ID)
	assert.Equal(t, "p-3", result.Providers[1].ID)
	assert.Equal(t, "p-2", result.Providers[2].ID)
	assert.Equal(t, models.TierCritical, result.Providers[0].RiskTier)
}

func TestAPIProviders_Filters(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	url := ts.URL + "/v1/providers?tiers=critical,high&min_suspicion=3.5"
	resp := doRequest(t, http.MethodGet, url, nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result providersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Providers, 1)
	assert.Equal(t, "p-1", result.Providers[0].ID)
}

func TestAPIProviders_RunFilterAndLimit(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	url := ts.URL + "/v1/providers?run_id=run-1&limit=2"
	resp := doRequest(t, http.MethodGet, url, nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result providersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 2, result.Count)
	require.Len(t, result.Providers, 2)
	assert.Equal(t, "p-1", result.Providers[0].ID)
	assert.Equal(t, "p-3", result.Providers[1].ID)
}

func TestAPIProviders_InvalidTier(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers?tiers=catastrophic", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp["error"], `invalid tier "catastrophic"`)
}

func TestAPIProviders_InvalidLimit(t *testing.T) {
	ts, _ := newTestServer(t, "")

	for _, raw := range []string{"abc", "0", "-5"} {
		resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers?limit="+raw, nil, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", raw)
	}
}

func TestAPIGetProvider(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers/p-1", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Provider
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, models.StatusUnlicensedListed, got.Status)
	assert.Equal(t, models.TierCritical, got.RiskTier)
	assert.Equal(t, 4.5, got.Signals.SuspicionScore)
}

func TestAPIGetProvider_NotFound(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers/does-not-exist", nil, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIProviderEvidence(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/providers/p-1/evidence", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result evidenceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "p-1", result.ProviderID)
	assert.Equal(t, 2, result.Count)
	require.Len(t, result.Evidence, 2)
	// Oldest first.
	assert.Equal(t, "map_listing", result.Evidence[0].Label)
	assert.Equal(t, "low_activity_outlier", result.Evidence[1].Label)
}

func TestAPIRuns(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodGet, ts.URL+"/v1/runs", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result runsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "run-1", result.Runs[0].Meta.ID)
	assert.Equal(t, "wa-march", result.Runs[0].Meta.Tag)
	assert.False(t, result.Runs[0].Deleted)
}

func TestAPISetLabel(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)
	ctx := context.Background()

	body := jsonBody(t, map[string]any{
		"label": "confirmed_fraud",
		"notes": "no children observed during visit window",
	})
	resp := doRequest(t, http.MethodPut, ts.URL+"/v1/providers/p-1/label", body, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, true, result["updated"])

	p, err := ms.Provider(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, p.ManualLabel)
	assert.Equal(t, "confirmed_fraud", *p.ManualLabel)
	require.NotNil(t, p.ManualNotes)
	assert.Equal(t, "no children observed during visit window", *p.ManualNotes)

	clearResp := doRequest(t, http.MethodPut, ts.URL+"/v1/providers/p-1/label",
		jsonBody(t, map[string]any{"clear": true}), "")
	defer clearResp.Body.Close()
	require.Equal(t, http.StatusOK, clearResp.StatusCode)

	p, err = ms.Provider(ctx, "p-1")
	require.NoError(t, err)
	assert.Nil(t, p.ManualLabel)
	assert.Nil(t, p.ManualNotes)
}

func TestAPISetLabel_RequiresInput(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodPut, ts.URL+"/v1/providers/p-1/label",
		jsonBody(t, map[string]any{}), "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp["error"], "provide label and/or notes, or set clear=true")
}

func TestAPISetLabel_NotFound(t *testing.T) {
	ts, ms := newTestServer(t, "")
	seedRun(t, ms)

	resp := doRequest(t, http.MethodPut, ts.URL+"/v1/providers/missing/label",
		jsonBody(t, map[string]any{"label": "benign"}), "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIDebugVars(t *testing.T) {
	ts, _ := newTestServer(t, "")

	metrics.Inc(metrics.ScansTotal)

	resp := doRequest(t, http.MethodGet, ts.URL+"/debug/vars", nil, "")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Contains(t, vars, "provwatch_scans_total")
}

// Protected endpoints reject missing and wrong tokens; healthz stays open.
func TestAPIAuth(t *testing.T) {
	ts, ms := newTestServer(t, "secret-token")
	seedRun(t, ms)

	endpoints := []struct {
		method string
		path   string
		body   func() *bytes.Buffer
	}{
		{http.MethodGet, "/v1/providers", nil},
		{http.MethodGet, "/v1/providers/p-1", nil},
		{http.MethodGet, "/v1/providers/p-1/evidence", nil},
		{http.MethodPut, "/v1/providers/p-1/label", func() *bytes.Buffer { return jsonBody(t, map[string]any{"label": "x"}) }},
		{http.MethodGet, "/v1/runs", nil},
		{http.MethodGet, "/debug/vars", nil},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			var body *bytes.Buffer
			if ep.body != nil {
				body = ep.body()
			}
			resp := doRequest(t, ep.method, ts.URL+ep.path, body, "")
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "no token")

			if ep.body != nil {
				body = ep.body()
			}
			resp = doRequest(t, ep.method, ts.URL+ep.path, body, "wrong-token")
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "wrong token")

			if ep.body != nil {
				body = ep.body()
			}
			resp = doRequest(t, ep.method, ts.URL+ep.path, body, "secret-token")
			resp.Body.Close()
			assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode, "valid token")
		})
	}

	healthResp := doRequest(t, http.MethodGet, ts.URL+"/healthz", nil, "")
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)
}
