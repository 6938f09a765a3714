package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/provwatch/provwatch/internal/models"
)

// ProviderSchema returns the draft-07 JSON Schema for provider documents.
// Deliberately permissive (additionalProperties allowed) so new signal
// fields don't break validation downstream.
func ProviderSchema() map[string]any {
	statuses := make([]string, len(models.ValidProviderStatuses))
	for i, s := range models.ValidProviderStatuses {
		statuses[i] = string(s)
	}
	tiers := make([]string, len(models.ValidRiskTiers))
	for i, t := range models.ValidRiskTiers {
		tiers[i] = string(t)
	}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "ChildcareProvider",
		"type":     "object",
		"required": []string{"id", "normalized_name", "status", "signals"},
		"properties": map[string]any{
			"id":              map[string]any{"type": "string"},
			"normalized_name": map[string]any{"type": "string"},
			"raw_names": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"address":       map[string]any{"type": []string{"string", "null"}},
			"city":          map[string]any{"type": []string{"string", "null"}},
			"county":        map[string]any{"type": []string{"string", "null"}},
			"state":         map[string]any{"type": []string{"string", "null"}},
			"postal_code":   map[string]any{"type": []string{"string", "null"}},
			"phone":         map[string]any{"type": []string{"string", "null"}},
			"website":       map[string]any{"type": []string{"string", "null"}},
			"primary_email": map[string]any{"type": []string{"string", "null"}},
			"latitude":      map[string]any{"type": []string{"number", "null"}},
			"longitude":     map[string]any{"type": []string{"number", "null"}},
			"status":        map[string]any{"type": "string", "enum": statuses},
			"risk_tier":     map[string]any{"type": "string", "enum": tiers},
			"decision_reasons": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"signals": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"discovered_via":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"has_map_listing":               map[string]any{"type": "boolean"},
					"has_ad_presence":               map[string]any{"type": "boolean"},
					"has_directory_listing":         map[string]any{"type": "boolean"},
					"map_place_id":                  map[string]any{"type": []string{"string", "null"}},
					"map_rating":                    map[string]any{"type": []string{"number", "null"}},
					"review_count":                  map[string]any{"type": []string{"integer", "null"}},
					"reviews_recent":                map[string]any{"type": "boolean"},
					"last_review_time":              map[string]any{"type": []string{"string", "null"}, "format": "date-time"},
					"last_review_age_days":          map[string]any{"type": []string{"number", "null"}},
					"map_business_status":           map[string]any{"type": []string{"string", "null"}},
					"map_open_now":                  map[string]any{"type": []string{"boolean", "null"}},
					"has_geocoded_location":         map[string]any{"type": "boolean"},
					"visitor_activity_likely":       map[string]any{"type": "boolean"},
					"has_facebook_page":             map[string]any{"type": "boolean"},
					"has_x_profile":                 map[string]any{"type": "boolean"},
					"has_linkedin_page":             map[string]any{"type": "boolean"},
					"social_recent_activity":        map[string]any{"type": "boolean"},
					"has_business_registration":     map[string]any{"type": "boolean"},
					"business_registry_name":        map[string]any{"type": []string{"string", "null"}},
					"business_registry_active":      map[string]any{"type": "boolean"},
					"has_labor_license":             map[string]any{"type": "boolean"},
					"labor_license_number":          map[string]any{"type": []string{"string", "null"}},
					"labor_license_active":          map[string]any{"type": "boolean"},
					"has_childcare_license":         map[string]any{"type": "boolean"},
					"childcare_license_number":      map[string]any{"type": []string{"string", "null"}},
					"childcare_license_active":      map[string]any{"type": "boolean"},
					"name_mismatch_with_license":    map[string]any{"type": "boolean"},
					"website_reachable":             map[string]any{"type": "boolean"},
					"website_http_status":           map[string]any{"type": []string{"integer", "null"}},
					"website_title":                 map[string]any{"type": []string{"string", "null"}},
					"website_meta_description":      map[string]any{"type": []string{"string", "null"}},
					"website_has_license_language":  map[string]any{"type": "boolean"},
					"website_has_regulator_mention": map[string]any{"type": "boolean"},
					"website_has_contact_page":      map[string]any{"type": "boolean"},
					"website_has_photos":            map[string]any{"type": "boolean"},
					"website_has_staff_bios":        map[string]any{"type": "boolean"},
					"website_last_crawled":          map[string]any{"type": []string{"string", "null"}, "format": "date-time"},
					"email_domain_type":             map[string]any{"type": []string{"string", "null"}},
					"city_review_rank":              map[string]any{"type": []string{"integer", "null"}},
					"city_review_percentile":        map[string]any{"type": []string{"number", "null"}},
					"city_low_activity_outlier":     map[string]any{"type": "boolean"},
					"city_high_activity_outlier":    map[string]any{"type": "boolean"},
					"name_generic_score":            map[string]any{"type": "number"},
					"name_contains_location_term":   map[string]any{"type": "boolean"},
					"name_contains_personal_name":   map[string]any{"type": "boolean"},
					"shared_address_count":          map[string]any{"type": []string{"integer", "null"}},
					"shared_phone_count":            map[string]any{"type": []string{"integer", "null"}},
					"suspicion_score":               map[string]any{"type": "number"},
					"legitimacy_score":              map[string]any{"type": "number"},
				},
				"additionalProperties": true,
			},
			"investigation": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"steps":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"errors":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"evidence_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"additionalProperties": true,
			},
			"manual_label": map[string]any{"type": []string{"string", "null"}},
			"manual_notes": map[string]any{"type": []string{"string", "null"}},
		},
		"additionalProperties": true,
	}
}

// EvidenceSchema returns the draft-07 JSON Schema for evidence documents.
func EvidenceSchema() map[string]any {
	severities := make([]string, len(models.ValidSeverities))
	for i, s := range models.ValidSeverities {
		severities[i] = string(s)
	}
	channels := make([]string, len(models.ValidSourceChannels))
	for i, c := range models.ValidSourceChannels {
		channels[i] = string(c)
	}

	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "ChildcareEvidenceItem",
		"type":     "object",
		"required": []string{"id", "provider_id", "source", "label", "severity", "timestamp"},
		"properties": map[string]any{
			"id":          map[string]any{"type": "string"},
			"provider_id": map[string]any{"type": "string"},
			"source":      map[string]any{"type": "string", "enum": channels},
			"label":       map[string]any{"type": "string"},
			"severity":    map[string]any{"type": "string", "enum": severities},
			"timestamp":   map[string]any{"type": "string", "format": "date-time"},
			"description": map[string]any{"type": "string"},
			"url":         map[string]any{"type": []string{"string", "null"}},
			"raw_excerpt": map[string]any{"type": []string{"string", "null"}},
			"metadata":    map[string]any{"type": "object"},
		},
		"additionalProperties": true,
	}
}

// RunSchema returns the draft-07 JSON Schema for run metadata documents.
func RunSchema() map[string]any {
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "ChildcareScanRun",
		"type":     "object",
		"required": []string{"run_id", "started_at", "region"},
		"properties": map[string]any{
			"run_id":      map[string]any{"type": "string"},
			"started_at":  map[string]any{"type": "string", "format": "date-time"},
			"finished_at": map[string]any{"type": "string", "format": "date-time"},
			"region":      map[string]any{"type": "string"},
			"keywords": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"scenario":       map[string]any{"type": []string{"string", "null"}},
			"notes":          map[string]any{"type": []string{"string", "null"}},
			"tag":            map[string]any{"type": []string{"string", "null"}},
			"schema_version": map[string]any{"type": "string"},
			"provider_count": map[string]any{"type": "integer"},
			"evidence_count": map[string]any{"type": "integer"},
			"status_counts": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "integer"},
			},
			"tier_counts": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "integer"},
			},
		},
		"additionalProperties": true,
	}
}

// WriteSchemas writes the three document schemas under dir.
func WriteSchemas(dir string, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating schema dir: %w", err)
	}
	files := map[string]map[string]any{
		"providers.schema.json": ProviderSchema(),
		"evidence.schema.json":  EvidenceSchema(),
		"runs.schema.json":      RunSchema(),
	}
	for filename, schema := range files {
		path := filepath.Join(dir, filename)
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", filename, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Info("wrote JSON Schema", "path", path)
	}
	return nil
}
