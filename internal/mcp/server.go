// Package mcp implements the Model Context Protocol server for provwatch.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/store"
)

const (
	// defaultProvidersLimit is the default result count for providers_by_risk.
	defaultProvidersLimit = 25

	// defaultRunsLimit is the default result count for run_stats.
	defaultRunsLimit = 10
)

// Server wraps an MCPServer with provwatch dependencies.
type Server struct {
	mcp    *mcpserver.MCPServer
	st     store.Store
	logger *slog.Logger
}

// NewServer creates a new MCP server over the given store. If st is nil,
// tool calls return an error response instead of panicking.
func NewServer(st store.Store, serverName string, logger *slog.Logger) *Server {
	s := &Server{
		st:     st,
		logger: logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		serverName,
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildProvidersByRiskTool(), s.handleProvidersByRisk)
	mcpSrv.AddTool(buildProviderGetTool(), s.handleProviderGet)
	mcpSrv.AddTool(buildProviderEvidenceTool(), s.handleProviderEvidence)
	mcpSrv.AddTool(buildRunStatsTool(), s.handleRunStats)
	mcpSrv.AddTool(buildSetLabelTool(), s.handleSetLabel)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleProvidersByRisk is the exported handler for the "providers_by_risk"
// tool. It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleProvidersByRisk(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleProvidersByRisk(ctx, req)
}

// HandleProviderGet is the exported handler for the "provider_get" tool.
func (s *Server) HandleProviderGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleProviderGet(ctx, req)
}

// HandleProviderEvidence is the exported handler for the "provider_evidence" tool.
func (s *Server) HandleProviderEvidence(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleProviderEvidence(ctx, req)
}

// HandleRunStats is the exported handler for the "run_stats" tool.
func (s *Server) HandleRunStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRunStats(ctx, req)
}

// HandleSetLabel is the exported handler for the "set_label" tool.
func (s *Server) HandleSetLabel(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSetLabel(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// splitList parses a comma-separated parameter into trimmed non-empty items.
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

// --- tool definitions ---

func buildProvidersByRiskTool() mcpgo.Tool {
	return mcpgo.NewTool("providers_by_risk",
		mcpgo.WithDescription("Query scanned childcare providers ordered by suspicion score, filtered by risk tier, status, score threshold, or run tag."),
		mcpgo.WithString("tiers",
			mcpgo.Description("Comma-separated risk tiers: critical, high, medium, low, unknown"),
		),
		mcpgo.WithString("statuses",
			mcpgo.Description("Comma-separated statuses: licensed_active, licensed_unlisted, unlicensed_listed, unknown"),
		),
		mcpgo.WithNumber("min_suspicion",
			mcpgo.Description("Only providers with at least this suspicion score"),
		),
		mcpgo.WithString("tag",
			mcpgo.Description("Filter to providers written with this storage tag"),
		),
		mcpgo.WithString("run_id",
			mcpgo.Description("Filter to providers last written by this run"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of results (default: 25)"),
		),
	)
}

func buildProviderGetTool() mcpgo.Tool {
	return mcpgo.NewTool("provider_get",
		mcpgo.WithDescription("Fetch one provider document by id, including signals, scores, and decision reasons."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The provider id"),
		),
	)
}

func buildProviderEvidenceTool() mcpgo.Tool {
	return mcpgo.NewTool("provider_evidence",
		mcpgo.WithDescription("List the evidence ledger entries filed for one provider, oldest first."),
		mcpgo.WithString("provider_id",
			mcpgo.Required(),
			mcpgo.Description("The provider id"),
		),
	)
}

func buildRunStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("run_stats",
		mcpgo.WithDescription("List recent scan runs with provider/evidence counts and status/tier breakdowns."),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of runs (default: 10)"),
		),
	)
}

func buildSetLabelTool() mcpgo.Tool {
	return mcpgo.NewTool("set_label",
		mcpgo.WithDescription("Set or clear the analyst review label and notes on a provider."),
		mcpgo.WithString("provider_id",
			mcpgo.Required(),
			mcpgo.Description("The provider id"),
		),
		mcpgo.WithString("label",
			mcpgo.Description("Review label, e.g. confirmed_fraud, false_positive, needs_site_visit"),
		),
		mcpgo.WithString("notes",
			mcpgo.Description("Free-form analyst notes"),
		),
		mcpgo.WithBoolean("clear",
			mcpgo.Description("Clear the existing label and notes instead of setting them"),
		),
	)
}

// --- tool handlers ---

// handleProvidersByRisk queries the store with the parsed filter.
func (s *Server) handleProvidersByRisk(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	filter := store.RiskFilter{
		Limit: req.GetInt("limit", defaultProvidersLimit),
	}

	for _, raw := range splitList(req.GetString("tiers", "")) {
		tier := models.RiskTier(raw)
		if !tier.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid tier %q: must be one of critical, high, medium, low, unknown", raw), nil
		}
		filter.Tiers = append(filter.Tiers, tier)
	}
	for _, raw := range splitList(req.GetString("statuses", "")) {
		status := models.ProviderStatus(raw)
		if !status.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid status %q: must be one of licensed_active, licensed_unlisted, unlicensed_listed, unknown", raw), nil
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if minSuspicion := req.GetFloat("min_suspicion", -1); minSuspicion >= 0 {
		filter.MinSuspicion = &minSuspicion
	}
	if tag := req.GetString("tag", ""); tag != "" {
		filter.Tag = &tag
	}
	if runID := req.GetString("run_id", ""); runID != "" {
		filter.RunID = &runID
	}

	providers, err := s.st.ProvidersByRisk(ctx, filter)
	if err != nil {
		return mcpgo.NewToolResultErrorf("query failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: providers_by_risk", "count", len(providers))

	result := map[string]any{
		"count":     len(providers),
		"providers": providers,
	}
	return toolResultJSON(result)
}

// handleProviderGet fetches one provider document.
func (s *Server) handleProviderGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	id := req.GetString("id", "")
	if strings.TrimSpace(id) == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	p, err := s.st.Provider(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcpgo.NewToolResultErrorf("provider not found: %s", id), nil
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("query failed: %s", err.Error()), nil
	}
	return toolResultJSON(p)
}

// handleProviderEvidence lists a provider's evidence ledger entries.
func (s *Server) handleProviderEvidence(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	providerID := req.GetString("provider_id", "")
	if strings.TrimSpace(providerID) == "" {
		return mcpgo.NewToolResultError("provider_id is required and must not be empty"), nil
	}

	items, err := s.st.EvidenceFor(ctx, providerID)
	if err != nil {
		return mcpgo.NewToolResultErrorf("query failed: %s", err.Error()), nil
	}

	result := map[string]any{
		"provider_id": providerID,
		"count":       len(items),
		"evidence":    items,
	}
	return toolResultJSON(result)
}

// handleRunStats lists recent runs with their counts.
func (s *Server) handleRunStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	limit := req.GetInt("limit", defaultRunsLimit)
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	runs, err := s.st.Runs(ctx, limit)
	if err != nil {
		return mcpgo.NewToolResultErrorf("query failed: %s", err.Error()), nil
	}

	result := map[string]any{
		"count": len(runs),
		"runs":  runs,
	}
	return toolResultJSON(result)
}

// handleSetLabel sets or clears the analyst annotation on a provider.
func (s *Server) handleSetLabel(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	providerID := req.GetString("provider_id", "")
	if strings.TrimSpace(providerID) == "" {
		return mcpgo.NewToolResultError("provider_id is required and must not be empty"), nil
	}

	clearLabels := req.GetBool("clear", false)
	label := req.GetString("label", "")
	notes := req.GetString("notes", "")
	if !clearLabels && label == "" && notes == "" {
		return mcpgo.NewToolResultError("provide label and/or notes, or set clear=true"), nil
	}

	var labelPtr, notesPtr *string
	if !clearLabels {
		if label != "" {
			labelPtr = &label
		}
		if notes != "" {
			notesPtr = &notes
		}
	}

	err := s.st.UpdateManualLabel(ctx, providerID, labelPtr, notesPtr)
	if errors.Is(err, store.ErrNotFound) {
		return mcpgo.NewToolResultErrorf("provider not found: %s", providerID), nil
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("label update failed: %s", err.Error()), nil
	}

	s.logger.Info("mcp: set_label", "provider_id", providerID, "cleared", clearLabels)

	result := map[string]any{
		"provider_id": providerID,
		"updated":     true,
	}
	return toolResultJSON(result)
}
