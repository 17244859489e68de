// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/sphere-client/internal/agent"
	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/notify"
	"github.com/jeranaias/sphere-client/internal/storage"
	"github.com/jeranaias/sphere-client/internal/stream"
)

// archiveTimeout bounds a background archive save.
const archiveTimeout = 5 * time.Second

// =============================================================================
// SESSION LIST
// =============================================================================

// FetchSessions replaces the session list with the backend's. Failures are
// logged and returned but not recorded; the previous list stays.
func (s *Store) FetchSessions(ctx context.Context) error {
	list, err := s.tr.FetchSessions(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("fetching sessions failed")
		return err
	}
	s.sessions.SetSessions(list)
	s.publish(notify.KindSessions, "", "")
	return nil
}

// Sessions returns the known sessions, newest first.
func (s *Store) Sessions() []model.Session {
	return s.sessions.Sessions()
}

// CurrentSession returns the current session id, or "".
func (s *Store) CurrentSession() string {
	return s.sessions.Current()
}

// CurrentMessages returns the messages of the current session.
func (s *Store) CurrentMessages() []model.Message {
	id := s.sessions.Current()
	if id == "" {
		return nil
	}
	return s.sessions.Messages(id)
}

// Messages returns the messages of one session.
func (s *Store) Messages(sessionID string) []model.Message {
	return s.sessions.Messages(sessionID)
}

// IsStreaming reports whether a session has an exchange or a history load
// in flight.
func (s *Store) IsStreaming(sessionID string) bool {
	return s.sessions.IsStreaming(sessionID)
}

// =============================================================================
// CREATE
// =============================================================================

// CreateSession opens a new thread with agentID (the board when empty). The
// session is seeded with the agent's greeting, made current and recorded as
// the agent's thread. Failures are recorded under create_session and
// returned; nothing is registered.
func (s *Store) CreateSession(ctx context.Context, agentID string) (string, error) {
	s.errors.Begin(errs.CategoryCreateSession)
	if agentID == "" {
		agentID = agent.GroupID
	}

	var name string
	if a, ok := s.agents.Find(agentID); ok {
		name = a.Name
	}
	s.mu.RLock()
	title := s.cfg.SessionTitle(name)
	s.mu.RUnlock()

	sess, err := s.tr.CreateSession(ctx, title)
	if err != nil {
		e := errs.Session(errs.CategoryCreateSession, msgCreateSessionFailed, err)
		s.errors.Set(e)
		s.publish(notify.KindErrors, "", "")
		return "", e
	}

	s.sessions.Register(sess, agentID, s.agents.Greeting(agentID))
	s.publish(notify.KindSessions, sess.ID, "")
	s.log.Debug().Str("session_id", sess.ID).Str("agent_id", agentID).Str("title", title).Msg("session created")
	return sess.ID, nil
}

// =============================================================================
// LOAD
// =============================================================================

// LoadSession makes a session current. Cached sessions are reused without
// contacting the backend. Otherwise the history is fetched and hydrated:
// artifacts found in it are registered and the normalized messages merged
// with whatever the session already holds. The agent the session belongs
// to becomes the selected one.
//
// Overlapping loads of one session share a single fetch; callers that join
// an in-flight load get its result, including its cancellation.
//
// A failed fetch is recorded under load_history and the session still
// becomes current, backed by its archived copy when there is one. The
// returned error only reports what happened; the recorded slot is what
// consumers should surface, and the store stays usable.
func (s *Store) LoadSession(ctx context.Context, sessionID string) error {
	s.errors.Begin(errs.CategoryLoadHistory)

	if s.reuseCached(sessionID) {
		return nil
	}

	_, err, shared := s.loads.Do(sessionID, func() (interface{}, error) {
		// a load that finished just before this one started already filled
		// the cache
		if s.reuseCached(sessionID) {
			return nil, nil
		}
		return nil, s.hydrateSession(ctx, sessionID)
	})
	if shared {
		s.log.Debug().Str("session_id", sessionID).Msg("joined in-flight history load")
	}
	return err
}

func (s *Store) reuseCached(sessionID string) bool {
	if !s.sessions.Cached(sessionID) {
		return false
	}
	agentID := s.sessions.DominantAgent(sessionID)
	s.sessions.Activate(sessionID, agentID)
	s.publish(notify.KindSessions, sessionID, "")
	s.log.Debug().Str("session_id", sessionID).Str("agent_id", agentID).Msg("session reused from cache")
	return true
}

// hydrateSession fetches and installs one session's history. Only one runs
// per session at a time.
func (s *Store) hydrateSession(ctx context.Context, sessionID string) error {
	s.sessions.SetStreaming(sessionID, true)
	s.publish(notify.KindStreaming, sessionID, "")

	history, err := s.tr.FetchHistory(ctx, sessionID)
	if err != nil {
		s.sessions.SetStreaming(sessionID, false)
		// CANCELLATION: a cancelled load is not a failed one
		if ctx.Err() != nil {
			s.publish(notify.KindStreaming, sessionID, "")
			return ctx.Err()
		}

		e := errs.Network(errs.CategoryLoadHistory, msgHistoryFailed, err)
		s.errors.Set(e)
		s.sessions.SetCurrent(sessionID)
		s.restoreArchived(ctx, sessionID)
		s.publish(notify.KindStreaming, sessionID, "")
		s.publish(notify.KindErrors, sessionID, "")
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("loading history failed")
		return e
	}

	res := s.hydrator.Hydrate(sessionID, history.Messages)
	s.installArtifacts(res.Artifacts)
	added := s.sessions.MergeHistory(sessionID, res.Messages)

	agentID := s.sessions.DominantAgent(sessionID)
	s.sessions.Activate(sessionID, agentID)
	s.sessions.SetStreaming(sessionID, false)

	if res.Malformed > 0 {
		s.errors.Set(errs.Parser(errs.CategoryArtifactParser, msgMalformedArtifact, nil))
		s.publish(notify.KindErrors, sessionID, "")
	}
	s.publish(notify.KindMessages, sessionID, "")
	s.publish(notify.KindStreaming, sessionID, "")

	s.log.Debug().
		Str("session_id", sessionID).
		Str("agent_id", agentID).
		Int("messages", added).
		Int("artifacts", len(res.Artifacts)).
		Int("malformed", res.Malformed).
		Msg("session hydrated")

	s.save(ctx, sessionID)
	return nil
}

// installArtifacts registers complete artifacts and closes them right away.
func (s *Store) installArtifacts(arts []model.Artifact) {
	for _, a := range arts {
		s.artifacts.Add(a)
		s.artifacts.Close(a.ID)
		s.publish(notify.KindArtifacts, a.SessionID, a.ID)
	}
}

// SelectAgent changes the agent new messages are addressed to.
func (s *Store) SelectAgent(agentID string) {
	s.sessions.Select(agentID)
	s.publish(notify.KindAgents, "", "")
	s.log.Debug().Str("agent_id", agentID).Msg("agent selected")
}

// SelectedAgent returns the selected agent id.
func (s *Store) SelectedAgent() string {
	return s.sessions.Selected()
}

// OpenAgentThread switches to agentID's own thread, loading it when it
// already exists and creating it otherwise.
func (s *Store) OpenAgentThread(ctx context.Context, agentID string) (string, error) {
	if agentID == "" {
		agentID = agent.GroupID
	}
	if sid, ok := s.sessions.AgentSession(agentID); ok {
		return sid, s.LoadSession(ctx, sid)
	}
	s.sessions.Select(agentID)
	return s.CreateSession(ctx, agentID)
}

// =============================================================================
// OFFLINE ARCHIVE
// =============================================================================

// restoreArchived merges the archived copy of a session, if any.
func (s *Store) restoreArchived(ctx context.Context, sessionID string) bool {
	if s.archive == nil {
		return false
	}
	snap, err := s.archive.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("reading archived session failed")
		}
		return false
	}

	s.installArtifacts(snap.Artifacts)
	s.sessions.MergeHistory(sessionID, snap.Messages)
	agentID := snap.AgentID
	if agentID == "" {
		agentID = s.sessions.DominantAgent(sessionID)
	}
	s.sessions.Select(agentID)
	s.publish(notify.KindMessages, sessionID, "")
	s.log.Info().
		Str("session_id", sessionID).
		Int("messages", len(snap.Messages)).
		Time("saved_at", snap.SavedAt).
		Msg("restored session from archive")
	return true
}

// save archives a session. Best-effort.
func (s *Store) save(ctx context.Context, sessionID string) {
	if s.archive == nil {
		return
	}
	sess, ok := s.sessions.Session(sessionID)
	if !ok {
		sess = model.Session{ID: sessionID}
	}
	snap := storage.Snapshot{
		Session:   sess,
		AgentID:   s.sessions.DominantAgent(sessionID),
		Messages:  s.sessions.Messages(sessionID),
		Artifacts: s.artifacts.ForSession(sessionID),
	}
	if err := s.archive.Save(ctx, snap); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("archiving session failed")
	}
}

// settled archives the session of a completed exchange.
func (s *Store) settled(ex stream.Exchange) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	s.save(ctx, ex.SessionID)
}

// ArchivedSessions lists the sessions held in the offline archive, most
// recently saved first. It returns nil when no archive is configured.
func (s *Store) ArchivedSessions(ctx context.Context) ([]storage.SessionMeta, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.Sessions(ctx)
}
