// Package api implements the HTTP/JSON query surface over the provider store.
// It exposes the same investigation operations as the MCP tools: providers by
// risk, single-provider lookup, the evidence ledger, run listings, and analyst
// labels.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/store"
)

const (
	// defaultProvidersLimit is the default result count for GET /v1/providers.
	defaultProvidersLimit = 25

	// defaultRunsLimit is the default result count for GET /v1/runs.
	defaultRunsLimit = 10
)

// Server is an HTTP API server that exposes store queries.
type Server struct {
	st        store.Store
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server over the given store.
func NewServer(st store.Store, logger *slog.Logger, authToken string) *Server {
	return &Server{
		st:        st,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, exempt from auth.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Query endpoints wrapped with auth middleware.
	mux.HandleFunc("GET /v1/providers", s.auth(s.handleProviders))
	mux.HandleFunc("GET /v1/providers/{id}", s.auth(s.handleGetProvider))
	mux.HandleFunc("GET /v1/providers/{id}/evidence", s.auth(s.handleProviderEvidence))
	mux.HandleFunc("PUT /v1/providers/{id}/label", s.auth(s.handleSetLabel))
	mux.HandleFunc("GET /v1/runs", s.auth(s.handleRuns))

	// Operation counters from internal/metrics.
	mux.HandleFunc("GET /debug/vars", s.auth(expvar.Handler().ServeHTTP))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// providersResponse is returned by GET /v1/providers.
type providersResponse struct {
	Count     int               `json:"count"`
	Providers []models.Provider `json:"providers"`
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.RiskFilter{Limit: defaultProvidersLimit}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	for _, raw := range splitList(q.Get("tiers")) {
		tier := models.RiskTier(raw)
		if !tier.IsValid() {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid tier %q: must be one of critical, high, medium, low, unknown", raw))
			return
		}
		filter.Tiers = append(filter.Tiers, tier)
	}
	for _, raw := range splitList(q.Get("statuses")) {
		status := models.ProviderStatus(raw)
		if !status.IsValid() {
			s.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("invalid status %q: must be one of licensed_active, licensed_unlisted, unlicensed_listed, unknown", raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if raw := q.Get("min_suspicion"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "min_suspicion must be a number")
			return
		}
		filter.MinSuspicion = &v
	}
	if tag := q.Get("tag"); tag != "" {
		filter.Tag = &tag
	}
	if runID := q.Get("run_id"); runID != "" {
		filter.RunID = &runID
	}

	providers, err := s.st.ProvidersByRisk(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to query providers", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query providers")
		return
	}

	s.writeJSON(w, http.StatusOK, providersResponse{Count: len(providers), Providers: providers})
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	p, err := s.st.Provider(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		s.logger.Error("failed to get provider", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get provider")
		return
	}

	s.writeJSON(w, http.StatusOK, p)
}

// evidenceResponse is returned by GET /v1/providers/{id}/evidence.
type evidenceResponse struct {
	ProviderID string                `json:"provider_id"`
	Count      int                   `json:"count"`
	Evidence   []models.EvidenceItem `json:"evidence"`
}

func (s *Server) handleProviderEvidence(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	items, err := s.st.EvidenceFor(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get evidence", "provider_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get evidence")
		return
	}

	s.writeJSON(w, http.StatusOK, evidenceResponse{ProviderID: id, Count: len(items), Evidence: items})
}

// labelRequest is the body accepted by PUT /v1/providers/{id}/label.
type labelRequest struct {
	Label string `json:"label"`
	Notes string `json:"notes"`
	Clear bool   `json:"clear"`
}

func (s *Server) handleSetLabel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Clear && req.Label == "" && req.Notes == "" {
		s.writeError(w, http.StatusBadRequest, "provide label and/or notes, or set clear=true")
		return
	}

	var labelPtr, notesPtr *string
	if !req.Clear {
		if req.Label != "" {
			labelPtr = &req.Label
		}
		if req.Notes != "" {
			notesPtr = &req.Notes
		}
	}

	if err := s.st.UpdateManualLabel(r.Context(), id, labelPtr, notesPtr); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "provider not found")
			return
		}
		s.logger.Error("failed to update label", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to update label")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"provider_id": id, "updated": true})
}

// runsResponse is returned by GET /v1/runs.
type runsResponse struct {
	Count int               `json:"count"`
	Runs  []store.RunRecord `json:"runs"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.st.Runs(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	s.writeJSON(w, http.StatusOK, runsResponse{Count: len(runs), Runs: runs})
}

// --- helpers ---

// splitList parses a comma-separated query parameter into trimmed non-empty items.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
