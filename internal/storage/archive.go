// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Snapshot is the archived state of one session.
type Snapshot struct {
	Session   model.Session    `json:"session" yaml:"session"`
	AgentID   string           `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Messages  []model.Message  `json:"messages" yaml:"messages"`
	Artifacts []model.Artifact `json:"artifacts" yaml:"artifacts"`
	SavedAt   time.Time        `json:"saved_at" yaml:"saved_at"`
}

// SessionMeta contains metadata for listing archived sessions.
type SessionMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AgentID      string    `json:"agent_id,omitempty"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
	UpdatedAt    time.Time `json:"updated_at"`
}

// previewWidth bounds SessionMeta.Preview in terminal cells.
const previewWidth = 60

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a SQLite-backed session snapshot store. Safe for concurrent use.
type Archive struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// Open opens (creating if needed) the archive database at path.
func Open(path string, logger zerolog.Logger) (*Archive, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create archive directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set %q", pragma)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &Archive{
		db:  db,
		log: logger.With().Str("component", "archive").Logger(),
		now: time.Now,
	}, nil
}

// Close releases the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save replaces the archived state of snap.Session.ID.
func (a *Archive) Save(ctx context.Context, snap Snapshot) error {
	if snap.Session.ID == "" {
		return errors.New("archive: snapshot has no session id")
	}

	var meta sql.NullString
	if snap.Session.Metadata != nil {
		data, err := json.Marshal(snap.Session.Metadata)
		if err != nil {
			return errors.Wrap(err, "encode session metadata")
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin archive save")
	}
	defer tx.Rollback()

	sid := snap.Session.ID
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, title, agent_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			agent_id = excluded.agent_id,
			metadata = excluded.metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		sid, snap.Session.Title, snap.AgentID, meta,
		unixNano(snap.Session.CreatedAt), a.now().UnixNano(),
	); err != nil {
		return errors.Wrap(err, "upsert session")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sid); err != nil {
		return errors.Wrap(err, "clear messages")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM artifacts WHERE session_id = ?", sid); err != nil {
		return errors.Wrap(err, "clear artifacts")
	}

	for i, m := range snap.Messages {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, seq, id, role, content, agent_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sid, i, m.ID, string(m.Role), m.Content, m.AgentID, unixNano(m.Timestamp),
		); err != nil {
			return errors.Wrapf(err, "insert message %s", m.ID)
		}
	}

	for i, art := range snap.Artifacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (session_id, seq, id, type, title, content, language, agent_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sid, i, art.ID, string(art.Type), art.Title, art.Content, art.Language, art.AgentID, unixNano(art.CreatedAt),
		); err != nil {
			return errors.Wrapf(err, "insert artifact %s", art.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit archive save")
	}

	a.log.Debug().
		Str("session_id", sid).
		Int("messages", len(snap.Messages)).
		Int("artifacts", len(snap.Artifacts)).
		Msg("session archived")
	return nil
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load returns the archived snapshot of a session, or ErrNotFound.
func (a *Archive) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	var (
		snap              Snapshot
		meta              sql.NullString
		created, modified int64
	)
	err := a.db.QueryRowContext(ctx,
		"SELECT id, title, agent_id, metadata, created_at, updated_at FROM sessions WHERE id = ?",
		sessionID,
	).Scan(&snap.Session.ID, &snap.Session.Title, &snap.AgentID, &meta, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load session")
	}
	snap.Session.CreatedAt = fromUnixNano(created)
	snap.SavedAt = fromUnixNano(modified)
	if meta.Valid {
		snap.Session.Metadata = &model.Metadata{}
		if err := json.Unmarshal([]byte(meta.String), snap.Session.Metadata); err != nil {
			return Snapshot{}, errors.Wrap(err, "decode session metadata")
		}
	}

	if snap.Messages, err = a.loadMessages(ctx, sessionID); err != nil {
		return Snapshot{}, err
	}
	if snap.Artifacts, err = a.loadArtifacts(ctx, sessionID); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (a *Archive) loadMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, role, content, agent_id, timestamp FROM messages WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			m    model.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.AgentID, &ts); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		m.Role = model.Role(role)
		m.Timestamp = fromUnixNano(ts)
		msgs = append(msgs, m)
	}
	return msgs, errors.Wrap(rows.Err(), "iterate messages")
}

func (a *Archive) loadArtifacts(ctx context.Context, sessionID string) ([]model.Artifact, error) {
	rows, err := a.db.QueryContext(ctx,
		"SELECT id, type, title, content, language, agent_id, created_at FROM artifacts WHERE session_id = ? ORDER BY seq",
		sessionID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query artifacts")
	}
	defer rows.Close()

	arts := []model.Artifact{}
	for rows.Next() {
		var (
			art   model.Artifact
			typ   string
			stamp int64
		)
		if err := rows.Scan(&art.ID, &typ, &art.Title, &art.Content, &art.Language, &art.AgentID, &stamp); err != nil {
			return nil, errors.Wrap(err, "scan artifact")
		}
		art.Type = model.ParseArtifactType(typ)
		art.SessionID = sessionID
		art.CreatedAt = fromUnixNano(stamp)
		arts = append(arts, art)
	}
	return arts, errors.Wrap(rows.Err(), "iterate artifacts")
}

// Sessions lists archived sessions, most recently saved first.
func (a *Archive) Sessions(ctx context.Context) ([]SessionMeta, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.agent_id, s.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id),
			COALESCE((SELECT content FROM messages m
				WHERE m.session_id = s.id AND m.role = 'user'
				ORDER BY m.seq LIMIT 1), '')
		FROM sessions s
		ORDER BY s.updated_at DESC, s.id`)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer rows.Close()

	metas := []SessionMeta{}
	for rows.Next() {
		var (
			meta    SessionMeta
			updated int64
			first   string
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.AgentID, &updated, &meta.MessageCount, &first); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		meta.UpdatedAt = fromUnixNano(updated)
		meta.Preview = util.TruncateWidth(first, previewWidth)
		metas = append(metas, meta)
	}
	return metas, errors.Wrap(rows.Err(), "iterate sessions")
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes an archived session. Missing sessions return ErrNotFound.
func (a *Archive) Delete(ctx context.Context, sessionID string) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a session was never archived.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &ArchiveError{Message: "session not found in archive"}

// ArchiveError represents an archive lookup error.
type ArchiveError struct {
	Message string
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing archive errors.
func (e *ArchiveError) Is(target error) bool {
	t, ok := target.(*ArchiveError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
