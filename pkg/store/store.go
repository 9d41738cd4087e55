// Package store implements the namespace store: one modernc.org/sqlite file
// per namespace, schema-versioned via embedded golang-migrate migrations,
// holding meta, tiles, actors, journal, audit, chat, tile_history, and
// actor_history. It is the sole point of serialization for a namespace
// (Registry in this package wraps it with a writer mutex).
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/usize/monument/pkg/monumenterr"
)

//go:embed migrations
var migrationsFS embed.FS

// CurrentSchemaVersion is the app-level schema version Monument expects.
// Bump it alongside a new migration file; a namespace file recorded with a
// different version fails to open (schema_version_check, spec §4.1).
const CurrentSchemaVersion = 1

// NamespacePattern is the syntax every namespace id must match.
const NamespacePattern = `^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`

// Store is a single namespace's persistent state.
type Store struct {
	Name string
	db   *sql.DB
}

// Open opens an existing namespace file at path, applying any pending
// migrations and verifying schema_version. It does not create a namespace —
// use Create for that.
func Open(ctx context.Context, name, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite file: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer per namespace; sqlite serializes internally

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s := &Store{Name: name, db: db}
	if err := s.checkSchemaVersion(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Create initializes a brand-new namespace file. Fails if meta already has a
// supertick_id row (i.e. the file was already created).
func Create(ctx context.Context, name, path string, width, height int, goal string, epoch int64) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite file: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s := &Store{Name: name, db: db}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meta WHERE key = 'supertick_id'`).Scan(&exists); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check existing meta: %w", err)
	}
	if exists > 0 {
		_ = db.Close()
		return nil, monumenterr.ErrNamespaceExists
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	metaRows := map[string]string{
		"supertick_id":   "0",
		"phase":          string(PhaseSetup),
		"goal":           goal,
		"width":          strconv.Itoa(width),
		"height":         strconv.Itoa(height),
		"epoch":          strconv.FormatInt(epoch, 10),
		"schema_version": strconv.Itoa(CurrentSchemaVersion),
	}
	for k, v := range metaRows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed meta %q: %w", k, err)
		}
	}

	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			if _, err := tx.ExecContext(ctx, `INSERT INTO tiles (x, y, color) VALUES (?, ?, ?)`, x, y, "#FFFFFF"); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("seed tile (%d,%d): %w", x, y, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("commit create: %w", err)
	}

	slog.Info("namespace created", "namespace", name, "width", width, "height", height, "epoch", epoch)
	return s, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

func migrateUp(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return sourceDriver.Close()
}

func (s *Store) checkSchemaVersion(ctx context.Context) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		// Not yet created — nothing to check.
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	got, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse schema_version %q: %w", raw, err)
	}
	if got != CurrentSchemaVersion {
		return fmt.Errorf("%w: namespace %s has version %d, binary expects %d",
			monumenterr.ErrSchemaVersionMismatch, s.Name, got, CurrentSchemaVersion)
	}
	return nil
}

// GenerateSecret returns a cryptographically random, hex-encoded bearer
// token with at least 128 bits of entropy.
func GenerateSecret() (string, error) {
	buf := make([]byte, 16) // 128 bits
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GetMeta reads the namespace's current meta row set.
func (s *Store) GetMeta(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, err
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}

	m := Meta{}
	m.SuperTick, _ = strconv.ParseInt(raw["supertick_id"], 10, 64)
	m.Phase = Phase(raw["phase"])
	m.Goal = raw["goal"]
	m.Width, _ = strconv.Atoi(raw["width"])
	m.Height, _ = strconv.Atoi(raw["height"])
	m.Epoch, _ = strconv.ParseInt(raw["epoch"], 10, 64)
	m.SchemaVersion, _ = strconv.Atoi(raw["schema_version"])
	return m, nil
}

func (s *Store) setMetaTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = ?`, value, key)
	return err
}

// SetPhase updates the phase meta key outside of a merge (e.g. operator
// raising epoch to unpause).
func (s *Store) SetPhase(ctx context.Context, phase Phase) error {
	_, err := s.db.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'phase'`, string(phase))
	return err
}

// RaiseEpoch sets a new epoch value. If the namespace is currently PAUSED
// and the new epoch is greater than the current supertick, phase transitions
// back to COLLECT (spec §4.4 phase state machine).
func (s *Store) RaiseEpoch(ctx context.Context, newEpoch int64) error {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.setMetaTx(ctx, tx, "epoch", strconv.FormatInt(newEpoch, 10)); err != nil {
		return err
	}
	if meta.Phase == PhasePaused && newEpoch > meta.SuperTick {
		if err := s.setMetaTx(ctx, tx, "phase", string(PhaseCollect)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTile returns the color at (x,y).
func (s *Store) GetTile(ctx context.Context, x, y int) (Tile, error) {
	var color string
	err := s.db.QueryRowContext(ctx, `SELECT color FROM tiles WHERE x = ? AND y = ?`, x, y).Scan(&color)
	if err != nil {
		return Tile{}, err
	}
	return Tile{X: x, Y: y, Color: color}, nil
}

// ListTiles returns every tile in the grid.
func (s *Store) ListTiles(ctx context.Context) ([]Tile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y, color FROM tiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiles []Tile
	for rows.Next() {
		var t Tile
		if err := rows.Scan(&t.X, &t.Y, &t.Color); err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	return tiles, rows.Err()
}

// RegisterActor inserts a new actor, generating a secret if none is given,
// and writes the spawn row to actor_history at the namespace's current tick.
func (s *Store) RegisterActor(ctx context.Context, id string, x, y int, facing string, scopes []string, instructions, llmModel, secret string) (*Actor, error) {
	if secret == "" {
		var err error
		secret, err = GenerateSecret()
		if err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM actors WHERE id = ?`, id).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, monumenterr.ErrNamespaceExists
	}

	scopesJSON, err := encodeScopes(scopes)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actors (id, secret, x, y, facing, scopes, custom_instructions, llm_model, eliminated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		id, secret, x, y, facing, scopesJSON, instructions, llmModel)
	if err != nil {
		return nil, fmt.Errorf("insert actor: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'supertick_id'`).Scan(&raw); err != nil {
		return nil, err
	}
	superTick, _ := strconv.ParseInt(raw, 10, 64)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO actor_history (supertick_id, actor_id, x, y, facing) VALUES (?, ?, ?, ?, ?)`,
		superTick, id, x, y, facing); err != nil {
		return nil, fmt.Errorf("insert spawn history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &Actor{ID: id, Secret: secret, X: x, Y: y, Facing: facing, Scopes: scopes, CustomInstructions: instructions, LLMModel: llmModel}, nil
}

// GetActor fetches one actor by id.
func (s *Store) GetActor(ctx context.Context, id string) (*Actor, error) {
	return s.getActorWith(ctx, s.db, id)
}

// GetActorTx fetches one actor by id inside an in-flight transaction, so
// MERGE can read pre-move positions consistently with its own writes.
func (s *Store) GetActorTx(ctx context.Context, tx *sql.Tx, id string) (*Actor, error) {
	return s.getActorWith(ctx, tx, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) getActorWith(ctx context.Context, q querier, id string) (*Actor, error) {
	var a Actor
	var scopesJSON string
	var eliminatedAt sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, secret, x, y, facing, scopes, custom_instructions, llm_model, eliminated_at
		FROM actors WHERE id = ?`, id).
		Scan(&a.ID, &a.Secret, &a.X, &a.Y, &a.Facing, &scopesJSON, &a.CustomInstructions, &a.LLMModel, &eliminatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, monumenterr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Scopes, err = decodeScopes(scopesJSON)
	if err != nil {
		return nil, err
	}
	if eliminatedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, eliminatedAt.String)
		if err == nil {
			a.EliminatedAt = &t
		}
	}
	return &a, nil
}

// ListLiveActors returns every non-eliminated actor, ordered by id.
func (s *Store) ListLiveActors(ctx context.Context) ([]Actor, error) {
	return s.listActorsWith(ctx, s.db, true)
}

// ListAllActors returns every actor regardless of elimination, ordered by id.
func (s *Store) ListAllActors(ctx context.Context) ([]Actor, error) {
	return s.listActorsWith(ctx, s.db, false)
}

func (s *Store) listActorsWith(ctx context.Context, q querier, liveOnly bool) ([]Actor, error) {
	query := `SELECT id, secret, x, y, facing, scopes, custom_instructions, llm_model, eliminated_at FROM actors`
	if liveOnly {
		query += ` WHERE eliminated_at IS NULL`
	}
	query += ` ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []Actor
	for rows.Next() {
		var a Actor
		var scopesJSON string
		var eliminatedAt sql.NullString
		if err := rows.Scan(&a.ID, &a.Secret, &a.X, &a.Y, &a.Facing, &scopesJSON, &a.CustomInstructions, &a.LLMModel, &eliminatedAt); err != nil {
			return nil, err
		}
		a.Scopes, err = decodeScopes(scopesJSON)
		if err != nil {
			return nil, err
		}
		if eliminatedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, eliminatedAt.String)
			if err == nil {
				a.EliminatedAt = &t
			}
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

// EliminateActor soft-deletes an actor by setting eliminated_at.
func (s *Store) EliminateActor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE actors SET eliminated_at = ? WHERE id = ? AND eliminated_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return monumenterr.ErrNotFound
	}
	return nil
}

// GetJournal fetches the journal row for (supertick, actorID), if any.
func (s *Store) GetJournal(ctx context.Context, superTick int64, actorID string) (*JournalEntry, error) {
	var j JournalEntry
	var submittedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM journal WHERE supertick_id = ? AND actor_id = ?`, superTick, actorID).
		Scan(&j.SuperTick, &j.ActorID, &j.Intent, &j.ParamsJSON, &j.Status, &j.ResultJSON, &j.LLMInput, &j.LLMOutput, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
	return &j, nil
}

// InsertJournal appends a new pending journal row. Fails with a unique
// constraint error if (supertick, actorID) already exists.
func (s *Store) InsertJournal(ctx context.Context, j JournalEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?, ?)`,
		j.SuperTick, j.ActorID, j.Intent, j.ParamsJSON, j.Status, j.LLMInput, j.LLMOutput,
		j.SubmittedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// CountPendingForTick returns how many distinct actors have a pending
// journal row for the given tick.
func (s *Store) CountPendingForTick(ctx context.Context, superTick int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM journal WHERE supertick_id = ? AND status = ?`, superTick, JournalPending).Scan(&n)
	return n, err
}

// ListPendingForTick returns every pending journal row for the given tick.
func (s *Store) ListPendingForTick(ctx context.Context, tx *sql.Tx, superTick int64) ([]JournalEntry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM journal WHERE supertick_id = ? AND status = ? ORDER BY actor_id ASC`, superTick, JournalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var j JournalEntry
		var submittedAt string
		if err := rows.Scan(&j.SuperTick, &j.ActorID, &j.Intent, &j.ParamsJSON, &j.Status, &j.ResultJSON, &j.LLMInput, &j.LLMOutput, &submittedAt); err != nil {
			return nil, err
		}
		j.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
		entries = append(entries, j)
	}
	return entries, rows.Err()
}

// ListPendingForTickInsertOrder returns pending journal rows for superTick in
// rowid (insertion) order. Used only for SPEAK, the one intent whose
// determinism contract is insertion order rather than actor_id (spec §4.4
// "no insertion order beyond what is required for SPEAK's chat log").
func (s *Store) ListPendingForTickInsertOrder(ctx context.Context, tx *sql.Tx, superTick int64) ([]JournalEntry, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM journal WHERE supertick_id = ? AND status = ? ORDER BY rowid ASC`, superTick, JournalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var j JournalEntry
		var submittedAt string
		if err := rows.Scan(&j.SuperTick, &j.ActorID, &j.Intent, &j.ParamsJSON, &j.Status, &j.ResultJSON, &j.LLMInput, &j.LLMOutput, &submittedAt); err != nil {
			return nil, err
		}
		j.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
		entries = append(entries, j)
	}
	return entries, rows.Err()
}

// ResolveJournalTx transitions a pending journal row to committed/rejected
// with its result, inside caller's transaction.
func (s *Store) ResolveJournalTx(ctx context.Context, tx *sql.Tx, superTick int64, actorID string, status JournalStatus, resultJSON string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE journal SET status = ?, result_json = ? WHERE supertick_id = ? AND actor_id = ?`,
		status, resultJSON, superTick, actorID)
	return err
}

// CopyResolvedToAuditTx copies every now-resolved journal row for superTick
// into the audit table.
func (s *Store) CopyResolvedToAuditTx(ctx context.Context, tx *sql.Tx, superTick int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit (supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at)
		SELECT supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM journal WHERE supertick_id = ? AND status != ?`, superTick, JournalPending)
	return err
}

// ListAuditForActor returns an actor's most recent `limit` audit rows,
// newest first.
func (s *Store) ListAuditForActor(ctx context.Context, actorID string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM audit WHERE actor_id = ? ORDER BY supertick_id DESC, id DESC LIMIT ?`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

// ListAuditForTick returns every audit row for a specific tick.
func (s *Store) ListAuditForTick(ctx context.Context, superTick int64) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supertick_id, actor_id, intent, params_json, status, result_json, llm_input, llm_output, submitted_at
		FROM audit WHERE supertick_id = ? ORDER BY actor_id ASC`, superTick)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]AuditEntry, error) {
	var entries []AuditEntry
	for rows.Next() {
		var a AuditEntry
		var submittedAt string
		if err := rows.Scan(&a.ID, &a.SuperTick, &a.ActorID, &a.Intent, &a.ParamsJSON, &a.Status, &a.ResultJSON, &a.LLMInput, &a.LLMOutput, &submittedAt); err != nil {
			return nil, err
		}
		a.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// InsertChatTx appends a chat row inside caller's transaction.
func (s *Store) InsertChatTx(ctx context.Context, tx *sql.Tx, superTick int64, fromID, message string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chat (supertick_id, from_id, message, created_at) VALUES (?, ?, ?, ?)`,
		superTick, fromID, message, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// ListRecentChat returns the last `limit` chat messages, oldest first.
func (s *Store) ListRecentChat(ctx context.Context, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supertick_id, from_id, message, created_at
		FROM chat ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SuperTick, &m.FromID, &m.Message, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// UpdateTileTx sets a tile's color and appends a tile_history row, inside
// caller's transaction.
func (s *Store) UpdateTileTx(ctx context.Context, tx *sql.Tx, superTick int64, x, y int, actorID, oldColor, newColor string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE tiles SET color = ? WHERE x = ? AND y = ?`, newColor, x, y); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tile_history (supertick_id, x, y, actor_id, old_color, new_color) VALUES (?, ?, ?, ?, ?, ?)`,
		superTick, x, y, actorID, oldColor, newColor)
	return err
}

// UpdateActorPositionTx moves an actor and appends an actor_history row,
// inside caller's transaction. Facing is always updated even if position
// does not change (spec §9 open question #1).
func (s *Store) UpdateActorPositionTx(ctx context.Context, tx *sql.Tx, superTick int64, actorID string, x, y int, facing string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE actors SET x = ?, y = ?, facing = ? WHERE id = ?`, x, y, facing, actorID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO actor_history (supertick_id, actor_id, x, y, facing) VALUES (?, ?, ?, ?, ?)`,
		superTick, actorID, x, y, facing)
	return err
}

// AdvanceTickTx bumps supertick_id to newTick and sets the new phase, inside
// caller's transaction (the final step of MERGE).
func (s *Store) AdvanceTickTx(ctx context.Context, tx *sql.Tx, newTick int64, newPhase Phase) error {
	if err := s.setMetaTx(ctx, tx, "supertick_id", strconv.FormatInt(newTick, 10)); err != nil {
		return err
	}
	return s.setMetaTx(ctx, tx, "phase", string(newPhase))
}

// BeginTx starts a new transaction with serializable isolation intent. sqlite
// serializes all writers through a single connection regardless, but the
// explicit level documents the contract MERGE relies on.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// PruneHistory deletes tile_history, actor_history, and audit rows older
// than retainTicks behind the current supertick, and chat rows beyond
// keepChat most recent. Returns the total row count removed. Safe to run
// concurrently with Admission/MERGE since it never touches live state
// (meta, tiles, actors, journal).
func (s *Store) PruneHistory(ctx context.Context, retainTicks int64, keepChat int) (int64, error) {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := meta.SuperTick - retainTicks
	if cutoff < 0 {
		cutoff = 0
	}

	var total int64
	for _, table := range []string{"tile_history", "actor_history", "audit"} {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE supertick_id < ?`, table), cutoff) //nolint:gosec // table is one of a fixed internal set, never user input
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM chat WHERE id NOT IN (SELECT id FROM chat ORDER BY id DESC LIMIT ?)`, keepChat)
	if err != nil {
		return total, fmt.Errorf("prune chat: %w", err)
	}
	n, _ := res.RowsAffected()
	total += n

	return total, nil
}

// ScoringRounds returns the raw, opaque rows of the reserved scoring_rounds
// table. The core never writes to this table (spec §6, §9 open question #4);
// this accessor exists only so an external adjudication tool can read
// without the core interpreting the payload shape.
func (s *Store) ScoringRounds(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, supertick_id, payload_json FROM scoring_rounds ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var id, tick int64
		var payload string
		if err := rows.Scan(&id, &tick, &payload); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"id": id, "supertick_id": tick, "payload_json": payload})
	}
	return out, rows.Err()
}
