// Package store backs the engine's document-store boundary with PostgreSQL.
//
// Events are stored as one row each with their loosely-typed stats in a JSONB
// attributes document, which is merged (not replaced) on update so that
// blank source cells preserve existing values. Per-scope sync bookkeeping
// lives in sync_scopes, including the advisory "sync in progress" flag.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oskarlind/sheetsync/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// Store implements core.PullStore and core.PushStore over a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	scope string
}

// New creates a Store bound to one sync scope.
func New(pool *pgxpool.Pool, scope string) *Store {
	return &Store{pool: pool, scope: scope}
}

// EnsureSchema creates the tables and indexes when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetByTokens returns token -> record id for every token with a stored event.
func (s *Store) GetByTokens(ctx context.Context, tokens []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sync_token, id FROM events WHERE scope = $1 AND sync_token = ANY($2)`,
		s.scope, tokens)
	if err != nil {
		return nil, fmt.Errorf("get by tokens: %w", err)
	}
	defer rows.Close()

	resolved := make(map[string]string)
	for rows.Next() {
		var token string
		var id pgtype.UUID
		if err := rows.Scan(&token, &id); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		resolved[token] = uuidString(id)
	}
	return resolved, rows.Err()
}

// CreateMany inserts all records in one batched round trip and returns their
// new ids in input order.
func (s *Store) CreateMany(ctx context.Context, records []*core.Record) ([]string, error) {
	batch := &pgx.Batch{}
	for _, rec := range records {
		attrs, err := json.Marshal(attributesOrEmpty(rec))
		if err != nil {
			return nil, fmt.Errorf("marshal attributes: %w", err)
		}
		batch.Queue(`
			INSERT INTO events
				(scope, sync_token, kind, name, event_date,
				 home_team, away_team, title, attributes,
				 source_modified_at, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			RETURNING id`,
			s.scope, rec.Token, rec.Kind, rec.Name, rec.Date,
			rec.HomeTeam, rec.AwayTeam, rec.Title, attrs,
			nullableTime(rec.SourceModifiedAt))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	ids := make([]string, 0, len(records))
	for range records {
		var id pgtype.UUID
		if err := results.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("create event: %w", err)
		}
		ids = append(ids, uuidString(id))
	}
	return ids, nil
}

// UpdateMany merges decoded row state into existing events, batched into one
// round trip. Attributes are JSONB-merged and blank top-level fields are
// preserved, never cleared.
func (s *Store) UpdateMany(ctx context.Context, updates []core.Update) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, u := range updates {
		attrs, err := json.Marshal(attributesOrEmpty(u.Record))
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
		batch.Queue(`
			UPDATE events SET
				kind               = $2,
				name               = $3,
				event_date         = $4,
				home_team          = COALESCE(NULLIF($5, ''), home_team),
				away_team          = COALESCE(NULLIF($6, ''), away_team),
				title              = COALESCE(NULLIF($7, ''), title),
				attributes         = attributes || $8::jsonb,
				source_modified_at = COALESCE($9, source_modified_at),
				synced_at          = now(),
				updated_at         = now()
			WHERE id = $1`,
			u.StoreID, u.Record.Kind, u.Record.Name, u.Record.Date,
			u.Record.HomeTeam, u.Record.AwayTeam, u.Record.Title, attrs,
			nullableTime(u.Record.SourceModifiedAt))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
	}
	return nil
}

// ListRecords returns every event in the scope, oldest first so pushed rows
// land in a stable order.
func (s *Store) ListRecords(ctx context.Context, scope string) ([]*core.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(sync_token, ''), kind, name, event_date,
		       home_team, away_team, title, attributes,
		       source_modified_at, synced_at
		FROM events
		WHERE scope = $1
		ORDER BY created_at, id`, scope)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*core.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TagWithToken assigns a sync token to a freshly pushed record.
func (s *Store) TagWithToken(ctx context.Context, recordID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET sync_token = $2, updated_at = now() WHERE id = $1`,
		recordID, token)
	if err != nil {
		return fmt.Errorf("tag record %s: %w", recordID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tag record %s: not found", recordID)
	}
	return nil
}

// RecordSyncStats persists the aggregate result of one sync run.
func (s *Store) RecordSyncStats(ctx context.Context, scope string, stats core.SyncStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_scopes (scope, last_sync_at, last_sync_status, last_error, created_total, updated_total)
		VALUES ($1, $2, $3, '', $4, $5)
		ON CONFLICT (scope) DO UPDATE SET
			last_sync_at     = EXCLUDED.last_sync_at,
			last_sync_status = EXCLUDED.last_sync_status,
			last_error       = CASE WHEN EXCLUDED.last_sync_status = 'ok' THEN '' ELSE sync_scopes.last_error END,
			created_total    = sync_scopes.created_total + EXCLUDED.created_total,
			updated_total    = sync_scopes.updated_total + EXCLUDED.updated_total`,
		scope, stats.LastSyncAt, stats.Status, stats.Created, stats.Updated)
	if err != nil {
		return fmt.Errorf("record sync stats: %w", err)
	}
	return nil
}

// RecordSyncError stores the scope's last top-level error.
func (s *Store) RecordSyncError(ctx context.Context, scope, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_scopes (scope, last_sync_status, last_error)
		VALUES ($1, 'error', $2)
		ON CONFLICT (scope) DO UPDATE SET
			last_sync_status = 'error',
			last_error       = EXCLUDED.last_error`,
		scope, message)
	if err != nil {
		return fmt.Errorf("record sync error: %w", err)
	}
	return nil
}

// AcquireLock sets the advisory per-scope flag with a compare-and-set update.
// Returns false when another sync already holds it.
func (s *Store) AcquireLock(ctx context.Context, scope string) (bool, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO sync_scopes (scope) VALUES ($1) ON CONFLICT (scope) DO NOTHING`,
		scope); err != nil {
		return false, fmt.Errorf("ensure scope row: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_scopes SET sync_in_progress = TRUE
		WHERE scope = $1 AND NOT sync_in_progress`, scope)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLock clears the advisory flag.
func (s *Store) ReleaseLock(ctx context.Context, scope string) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE sync_scopes SET sync_in_progress = FALSE WHERE scope = $1`,
		scope); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Status returns the stored bookkeeping for a scope.
func (s *Store) Status(ctx context.Context, scope string) (*core.ScopeStatus, error) {
	var (
		st     core.ScopeStatus
		lastAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT scope, last_sync_at, last_sync_status, last_error,
		       created_total, updated_total, sync_in_progress
		FROM sync_scopes WHERE scope = $1`, scope).
		Scan(&st.Scope, &lastAt, &st.LastSyncStatus, &st.LastError,
			&st.CreatedTotal, &st.UpdatedTotal, &st.InProgress)
	if err == pgx.ErrNoRows {
		return &core.ScopeStatus{Scope: scope}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scope status: %w", err)
	}
	if lastAt.Valid {
		t := lastAt.Time
		st.LastSyncAt = &t
	}
	return &st, nil
}

// rowScanner is satisfied by pgx.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.Record, error) {
	var (
		rec      core.Record
		id       pgtype.UUID
		date     pgtype.Date
		modified pgtype.Timestamptz
		synced   pgtype.Timestamptz
		attrs    map[string]any
	)
	err := row.Scan(&id, &rec.Token, &rec.Kind, &rec.Name, &date,
		&rec.HomeTeam, &rec.AwayTeam, &rec.Title, &attrs,
		&modified, &synced)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	rec.StoreID = uuidString(id)
	if date.Valid {
		rec.Date = date.Time.Format("2006-01-02")
	}
	if modified.Valid {
		rec.SourceModifiedAt = modified.Time
	}
	if synced.Valid {
		rec.SyncedAt = synced.Time
	}
	rec.Attributes = attrs
	rec.Origin = core.OriginStore
	return &rec, nil
}

// uuidString converts a pgtype.UUID to its string form, empty when invalid.
func uuidString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// attributesOrEmpty guards against nil attribute maps from callers.
func attributesOrEmpty(rec *core.Record) map[string]any {
	if rec.Attributes == nil {
		return map[string]any{}
	}
	return rec.Attributes
}
