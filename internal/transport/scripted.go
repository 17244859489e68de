// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/sphere-client/internal/model"
)

// Op names a Transport operation for failure injection and call counting.
type Op string

const (
	OpFetchSessions     Op = "fetch_sessions"
	OpCreateSession     Op = "create_session"
	OpFetchCustomAgents Op = "fetch_custom_agents"
	OpCreateCustomAgent Op = "create_custom_agent"
	OpDeleteCustomAgent Op = "delete_custom_agent"
	OpFetchHistory      Op = "fetch_history"
	OpOpenStream        Op = "open_stream"
)

// Script describes the stream returned for one OpenStream call. Stream, when
// set, is returned as is; otherwise Events and Err are replayed through a
// SliceStream.
type Script struct {
	Events []Event
	Err    error
	Stream EventStream
}

// Scripted is an in-memory Transport with canned data. Session ids are
// assigned sequentially ("session-1", "session-2", ...) so callers can queue
// streams before the session exists. Safe for concurrent use.
type Scripted struct {
	mu        sync.Mutex
	sessions  []model.Session
	agents    []AgentRecord
	histories map[string]History
	streams   map[string][]Script
	failures  map[Op]error
	calls     map[Op]int
	requests  []StreamRequest
	nextSess  int
	nextAgent int
	now       func() time.Time
}

// NewScripted creates an empty scripted transport.
func NewScripted() *Scripted {
	return &Scripted{
		histories: make(map[string]History),
		streams:   make(map[string][]Script),
		failures:  make(map[Op]error),
		calls:     make(map[Op]int),
		now:       time.Now,
	}
}

// AddSession registers an existing session.
func (s *Scripted) AddSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
}

// AddAgent registers an existing custom agent.
func (s *Scripted) AddAgent(rec AgentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append(s.agents, rec)
}

// SetHistory sets the persisted log returned for a session.
func (s *Scripted) SetHistory(sessionID string, h History) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = h
}

// QueueStream appends a script for the next OpenStream call on sessionID.
// An empty sessionID queues a script used by any session without its own.
func (s *Scripted) QueueStream(sessionID string, sc Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[sessionID] = append(s.streams[sessionID], sc)
}

// FailOn makes op return err until cleared with a nil err.
func (s *Scripted) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times op was invoked.
func (s *Scripted) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Requests returns every stream request seen so far.
func (s *Scripted) Requests() []StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StreamRequest(nil), s.requests...)
}

// begin counts the call and returns any injected failure. Caller holds mu.
func (s *Scripted) begin(ctx context.Context, op Op) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failures[op]
}

// FetchSessions implements SessionService.
func (s *Scripted) FetchSessions(ctx context.Context) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpFetchSessions); err != nil {
		return nil, err
	}
	return append([]model.Session(nil), s.sessions...), nil
}

// CreateSession implements SessionService.
func (s *Scripted) CreateSession(ctx context.Context, title string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpCreateSession); err != nil {
		return model.Session{}, err
	}
	s.nextSess++
	sess := model.Session{
		ID:        fmt.Sprintf("session-%d", s.nextSess),
		Title:     title,
		CreatedAt: s.now(),
	}
	s.sessions = append([]model.Session{sess}, s.sessions...)
	return sess, nil
}

// FetchCustomAgents implements AgentService.
func (s *Scripted) FetchCustomAgents(ctx context.Context) ([]AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpFetchCustomAgents); err != nil {
		return nil, err
	}
	return append([]AgentRecord(nil), s.agents...), nil
}

// CreateCustomAgent implements AgentService.
func (s *Scripted) CreateCustomAgent(ctx context.Context, draft AgentDraft) (AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpCreateCustomAgent); err != nil {
		return AgentRecord{}, err
	}
	s.nextAgent++
	rec := AgentRecord{
		AgentID:      fmt.Sprintf("custom-%d", s.nextAgent),
		Name:         draft.Name,
		Role:         draft.Role,
		Description:  draft.Description,
		Color:        draft.Color,
		SystemPrompt: draft.SystemPrompt,
	}
	s.agents = append(s.agents, rec)
	return rec, nil
}

// DeleteCustomAgent implements AgentService.
func (s *Scripted) DeleteCustomAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpDeleteCustomAgent); err != nil {
		return err
	}
	kept := s.agents[:0]
	for _, a := range s.agents {
		if a.AgentID != agentID {
			kept = append(kept, a)
		}
	}
	s.agents = kept
	return nil
}

// FetchHistory implements HistoryService. Unknown sessions have an empty log.
func (s *Scripted) FetchHistory(ctx context.Context, sessionID string) (History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpFetchHistory); err != nil {
		return History{}, err
	}
	h := s.histories[sessionID]
	return History{Messages: append([]RawMessage(nil), h.Messages...)}, nil
}

// OpenStream implements Streamer. Without a queued script the stream ends
// immediately.
func (s *Scripted) OpenStream(ctx context.Context, req StreamRequest) (EventStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.begin(ctx, OpOpenStream); err != nil {
		return nil, err
	}

	key := req.SessionID
	if len(s.streams[key]) == 0 {
		key = ""
	}
	queue := s.streams[key]
	if len(queue) == 0 {
		return NewSliceStream(nil, nil), nil
	}
	sc := queue[0]
	s.streams[key] = queue[1:]

	if sc.Stream != nil {
		return sc.Stream, nil
	}
	return NewSliceStream(sc.Events, sc.Err), nil
}

var _ Transport = (*Scripted)(nil)
