package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/provwatch/provwatch/internal/models"
)

const (
	pgPingTimeout     = 5 * time.Second
	pgMaxOpenConns    = 10
	pgMaxIdleConns    = 5
	pgConnMaxLifetime = 30 * time.Minute

	defaultProviderLimit = 100
)

// PostgresStore implements Store on PostgreSQL. Documents are kept whole as
// JSONB with the filterable fields promoted into columns.
type PostgresStore struct {
	db         *sql.DB
	softDelete bool
	logger     *slog.Logger
}

// NewPostgresStore opens a PostgreSQL connection pool and verifies it.
func NewPostgresStore(dsn string, softDelete bool, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	db.SetConnMaxLifetime(pgConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), pgPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	logger.Info("connected to PostgreSQL", "soft_delete", softDelete)

	return &PostgresStore{
		db:         db,
		softDelete: softDelete,
		logger:     logger,
	}, nil
}

// EnsureSchema creates the runs/providers/evidence tables and their indexes.
// Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id         TEXT PRIMARY KEY,
			tag            TEXT,
			schema_version TEXT NOT NULL,
			started_at     TIMESTAMPTZ NOT NULL,
			deleted        BOOLEAN NOT NULL DEFAULT FALSE,
			doc            JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS providers (
			id              TEXT PRIMARY KEY,
			run_id          TEXT NOT NULL,
			tag             TEXT,
			schema_version  TEXT NOT NULL,
			normalized_name TEXT NOT NULL,
			city            TEXT,
			county          TEXT,
			state           TEXT,
			status          TEXT NOT NULL,
			risk_tier       TEXT NOT NULL,
			suspicion_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			deleted         BOOLEAN NOT NULL DEFAULT FALSE,
			doc             JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evidence (
			id             TEXT PRIMARY KEY,
			provider_id    TEXT NOT NULL,
			run_id         TEXT NOT NULL,
			tag            TEXT,
			schema_version TEXT NOT NULL,
			severity       TEXT NOT NULL,
			ts             TIMESTAMPTZ NOT NULL,
			deleted        BOOLEAN NOT NULL DEFAULT FALSE,
			doc            JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS providers_risk_status ON providers (risk_tier, status)`,
		`CREATE INDEX IF NOT EXISTS providers_run_risk ON providers (run_id, risk_tier)`,
		`CREATE INDEX IF NOT EXISTS providers_tag_risk_status ON providers (tag, risk_tier, status)`,
		`CREATE INDEX IF NOT EXISTS providers_normalized_name ON providers (normalized_name)`,
		`CREATE INDEX IF NOT EXISTS providers_region ON providers (city, county, state)`,
		`CREATE INDEX IF NOT EXISTS evidence_provider_severity ON evidence (provider_id, severity)`,
		`CREATE INDEX IF NOT EXISTS evidence_run_severity ON evidence (run_id, severity)`,
		`CREATE INDEX IF NOT EXISTS runs_tag_started ON runs (tag, started_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}

	s.logger.Info("PostgreSQL schema ensured")
	return nil
}

// SaveRun persists a run with its providers and evidence in one transaction.
// Providers are upserted by id so re-running a scan refreshes existing rows;
// evidence items are append-only and duplicates are skipped.
func (s *PostgresStore) SaveRun(ctx context.Context, meta models.RunMeta, providers []models.Provider, evidence []models.EvidenceItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runDoc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", meta.ID, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, tag, schema_version, started_at, doc)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE
		SET tag = EXCLUDED.tag, schema_version = EXCLUDED.schema_version,
		    started_at = EXCLUDED.started_at, deleted = FALSE, doc = EXCLUDED.doc`,
		meta.ID, nullStr(meta.Tag), meta.SchemaVersion, meta.StartedAt, runDoc)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", meta.ID, err)
	}

	for i := range providers {
		p := &providers[i]
		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding provider %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO providers (id, run_id, tag, schema_version, normalized_name,
			                       city, county, state, status, risk_tier, suspicion_score, doc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE
			SET run_id = EXCLUDED.run_id, tag = EXCLUDED.tag,
			    schema_version = EXCLUDED.schema_version,
			    normalized_name = EXCLUDED.normalized_name,
			    city = EXCLUDED.city, county = EXCLUDED.county, state = EXCLUDED.state,
			    status = EXCLUDED.status, risk_tier = EXCLUDED.risk_tier,
			    suspicion_score = EXCLUDED.suspicion_score,
			    deleted = FALSE, doc = EXCLUDED.doc`,
			p.ID, meta.ID, nullStr(meta.Tag), meta.SchemaVersion, p.NormalizedName,
			p.City, p.County, p.State, string(p.Status), string(p.RiskTier),
			p.Signals.SuspicionScore, doc)
		if err != nil {
			return fmt.Errorf("saving provider %s: %w", p.ID, err)
		}
	}

	for i := range evidence {
		e := &evidence[i]
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding evidence %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO evidence (id, provider_id, run_id, tag, schema_version, severity, ts, doc)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			e.ID, e.ProviderID, meta.ID, nullStr(meta.Tag), meta.SchemaVersion,
			string(e.Severity), e.Timestamp, doc)
		if err != nil {
			return fmt.Errorf("saving evidence %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", meta.ID, err)
	}

	s.logger.Info("run persisted",
		"run_id", meta.ID,
		"providers", len(providers),
		"evidence", len(evidence))
	return nil
}

// Runs returns recent runs, newest first, including soft-deleted ones with
// their deletion state.
func (s *PostgresStore) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc, deleted FROM runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			doc     []byte
			deleted bool
		)
		if err := rows.Scan(&doc, &deleted); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		var meta models.RunMeta
		if err := json.Unmarshal(doc, &meta); err != nil {
			return nil, fmt.Errorf("decoding run document: %w", err)
		}
		out = append(out, RunRecord{Meta: meta, Deleted: deleted})
	}
	return out, rows.Err()
}

// ProvidersByRisk returns providers matching the filter, most suspicious
// first. Soft-deleted rows are excluded.
func (s *PostgresStore) ProvidersByRisk(ctx context.Context, filter RiskFilter) ([]models.Provider, error) {
	where := []string{"deleted = FALSE"}
	args := []any{}
	argN := 1

	if len(filter.Tiers) > 0 {
		tiers := make([]string, len(filter.Tiers))
		for i, t := range filter.Tiers {
			tiers[i] = string(t)
		}
		where = append(where, fmt.Sprintf("risk_tier = ANY($%d)", argN))
		args = append(args, pq.Array(tiers))
		argN++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", argN))
		args = append(args, pq.Array(statuses))
		argN++
	}
	if filter.MinSuspicion != nil {
		where = append(where, fmt.Sprintf("suspicion_score >= $%d", argN))
		args = append(args, *filter.MinSuspicion)
		argN++
	}
	if filter.Tag != nil {
		where = append(where, fmt.Sprintf("tag = $%d", argN))
		args = append(args, *filter.Tag)
		argN++
	}
	if filter.RunID != nil {
		where = append(where, fmt.Sprintf("run_id = $%d", argN))
		args = append(args, *filter.RunID)
		argN++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultProviderLimit
	}
	args = append(args, limit)

	q := `SELECT doc FROM providers WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY suspicion_score DESC LIMIT $%d`, argN)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	defer rows.Close()

	var out []models.Provider
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning provider row: %w", err)
		}
		var p models.Provider
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decoding provider document: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Provider retrieves one provider by id.
func (s *PostgresStore) Provider(ctx context.Context, id string) (*models.Provider, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM providers
		WHERE id = $1 AND deleted = FALSE`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying provider %s: %w", id, err)
	}
	var p models.Provider
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decoding provider document: %w", err)
	}
	return &p, nil
}

// EvidenceFor returns the evidence filed for a provider, oldest first.
func (s *PostgresStore) EvidenceFor(ctx context.Context, providerID string) ([]models.EvidenceItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM evidence
		WHERE provider_id = $1 AND deleted = FALSE
		ORDER BY ts ASC`, providerID)
	if err != nil {
		return nil, fmt.Errorf("querying evidence for %s: %w", providerID, err)
	}
	defer rows.Close()

	var out []models.EvidenceItem
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning evidence row: %w", err)
		}
		var e models.EvidenceItem
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("decoding evidence document: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateManualLabel sets (non-nil) or clears (nil) the analyst label and
// notes on a provider, updating the stored document in place.
func (s *PostgresStore) UpdateManualLabel(ctx context.Context, id string, label, notes *string) error {
	labelJSON, err := json.Marshal(label)
	if err != nil {
		return fmt.Errorf("encoding label: %w", err)
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("encoding notes: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE providers
		SET doc = jsonb_set(jsonb_set(doc, '{manual_label}', $2::jsonb, true), '{manual_notes}', $3::jsonb, true)
		WHERE id = $1 AND deleted = FALSE`,
		id, string(labelJSON), string(notesJSON))
	if err != nil {
		return fmt.Errorf("updating manual label for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking label update for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("manual label updated", "provider_id", id)
	return nil
}

// DeleteRun removes a run's rows across all three tables. With soft delete
// enabled (and hard=false) rows are flagged instead of dropped; counts
// report the rows touched per table either way.
func (s *PostgresStore) DeleteRun(ctx context.Context, runID string, hard bool) (DeleteCounts, error) {
	var counts DeleteCounts

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	type stmt struct {
		query string
		dest  *int64
	}
	var stmts []stmt
	if hard || !s.softDelete {
		stmts = []stmt{
			{`DELETE FROM providers WHERE run_id = $1`, &counts.Providers},
			{`DELETE FROM evidence WHERE run_id = $1`, &counts.Evidence},
			{`DELETE FROM runs WHERE run_id = $1`, &counts.Runs},
		}
	} else {
		stmts = []stmt{
			{`UPDATE providers SET deleted = TRUE WHERE run_id = $1 AND NOT deleted`, &counts.Providers},
			{`UPDATE evidence SET deleted = TRUE WHERE run_id = $1 AND NOT deleted`, &counts.Evidence},
			{`UPDATE runs SET deleted = TRUE WHERE run_id = $1 AND NOT deleted`, &counts.Runs},
		}
	}

	for _, st := range stmts {
		res, err := tx.ExecContext(ctx, st.query, runID)
		if err != nil {
			return DeleteCounts{}, fmt.Errorf("deleting run %s: %w", runID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return DeleteCounts{}, fmt.Errorf("counting deleted rows for run %s: %w", runID, err)
		}
		*st.dest = n
	}

	if err := tx.Commit(); err != nil {
		return DeleteCounts{}, fmt.Errorf("committing run deletion %s: %w", runID, err)
	}

	s.logger.Info("run data deleted",
		"run_id", runID,
		"hard", hard || !s.softDelete,
		"runs", counts.Runs,
		"providers", counts.Providers,
		"evidence", counts.Evidence)
	return counts, nil
}

// Close shuts the connection pool down.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// nullStr maps the empty string to SQL NULL.
func nullStr(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
