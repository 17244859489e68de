// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sort"
	"sync"

	"github.com/jeranaias/sphere-client/internal/model"
)

// entry is the per-session state.
type entry struct {
	messages     []model.Message
	streaming    bool
	openArtifact string
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps session identifiers to their messages and streaming state.
type Registry struct {
	mu sync.RWMutex

	sessions []model.Session
	entries  map[string]*entry

	current      string
	selected     string
	defaultAgent string
	byAgent      map[string]string
}

// NewRegistry creates an empty registry. defaultAgent is selected initially
// and inferred for sessions without any agent reference.
func NewRegistry(defaultAgent string) *Registry {
	return &Registry{
		entries:      make(map[string]*entry),
		selected:     defaultAgent,
		defaultAgent: defaultAgent,
		byAgent:      make(map[string]string),
	}
}

// entryFor returns the entry for id, creating it. Caller holds mu.
func (r *Registry) entryFor(id string) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}
	return e
}

// =============================================================================
// SESSION LIST
// =============================================================================

// SetSessions replaces the known session list.
func (r *Registry) SetSessions(list []model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append([]model.Session(nil), list...)
}

// Sessions returns the known sessions, newest first as supplied.
func (r *Registry) Sessions() []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Session(nil), r.sessions...)
}

// Session looks up one session's metadata.
func (r *Registry) Session(id string) (model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return model.Session{}, false
}

// Register records a newly created session: it is prepended to the list,
// seeded with greeting, made current with agentID selected, and becomes
// agentID's thread.
func (r *Registry) Register(sess model.Session, agentID string, greeting model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := make([]model.Session, 0, len(r.sessions)+1)
	list = append(list, sess)
	for _, s := range r.sessions {
		if s.ID != sess.ID {
			list = append(list, s)
		}
	}
	r.sessions = list
	r.entries[sess.ID] = &entry{messages: []model.Message{greeting}}
	r.current = sess.ID
	r.selected = agentID
	r.byAgent[agentID] = sess.ID
}

// =============================================================================
// MESSAGES
// =============================================================================

// Cached reports whether the session already has messages in memory.
func (r *Registry) Cached(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && len(e.messages) > 0
}

// Messages returns a copy of a session's messages.
func (r *Registry) Messages(id string) []model.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	return append([]model.Message(nil), e.messages...)
}

// Message returns one message by identifier.
func (r *Registry) Message(sessionID, msgID string) (model.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return model.Message{}, false
	}
	for _, m := range e.messages {
		if m.ID == msgID {
			return m, true
		}
	}
	return model.Message{}, false
}

// Append adds messages to the end of a session.
func (r *Registry) Append(id string, msgs ...model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryFor(id)
	e.messages = append(e.messages, msgs...)
}

// Mutate applies fn to the message with msgID, located by identifier since
// hydration may have reshaped the list. Returns false if it is gone.
func (r *Registry) Mutate(sessionID, msgID string, fn func(*model.Message)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return false
	}
	for i := range e.messages {
		if e.messages[i].ID == msgID {
			m := e.messages[i]
			fn(&m)
			m.ID = msgID
			e.messages[i] = m
			return true
		}
	}
	return false
}

// MergeHistory installs hydrated history for a session. Messages already in
// memory that the history does not contain (for example an exchange started
// while the fetch was in flight) are kept after it. Returns how many
// history messages were new.
func (r *Registry) MergeHistory(id string, history []model.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entryFor(id)

	seen := make(map[string]bool, len(history))
	merged := make([]model.Message, 0, len(history)+len(e.messages))
	for _, m := range history {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		merged = append(merged, m)
	}

	added := len(merged)
	for _, m := range e.messages {
		if seen[m.ID] {
			added--
			continue
		}
		merged = append(merged, m)
	}
	e.messages = merged
	return added
}

// DominantAgent returns the first agent referenced by the session's
// messages, ignoring the "system" owner, or the default agent.
func (r *Registry) DominantAgent(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		if a := DominantAgent(e.messages); a != "" {
			return a
		}
	}
	return r.defaultAgent
}

// DominantAgent returns the first non-system agent reference in msgs, or "".
func DominantAgent(msgs []model.Message) string {
	for _, m := range msgs {
		if m.AgentID != "" && m.AgentID != string(model.RoleSystem) {
			return m.AgentID
		}
	}
	return ""
}

// =============================================================================
// STREAMING STATE
// =============================================================================

// SetStreaming sets a session's streaming flag.
func (r *Registry) SetStreaming(id string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryFor(id).streaming = on
}

// IsStreaming reports a session's streaming flag.
func (r *Registry) IsStreaming(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.streaming
}

// Streaming returns the sorted ids of every streaming session.
func (r *Registry) Streaming() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, e := range r.entries {
		if e.streaming {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetOpenArtifact records the artifact currently streaming in a session.
func (r *Registry) SetOpenArtifact(id, artifactID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryFor(id).openArtifact = artifactID
}

// OpenArtifact returns the artifact currently streaming in a session, or "".
func (r *Registry) OpenArtifact(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.openArtifact
	}
	return ""
}

// ClearOpenArtifact clears a session's marker and returns what it held.
func (r *Registry) ClearOpenArtifact(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ""
	}
	prev := e.openArtifact
	e.openArtifact = ""
	return prev
}

// =============================================================================
// SELECTION
// =============================================================================

// Current returns the current session id, or "".
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetCurrent changes the current session.
func (r *Registry) SetCurrent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = id
}

// Activate makes id current and selects agentID in one step.
func (r *Registry) Activate(id, agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = id
	r.selected = agentID
}

// Selected returns the selected agent id.
func (r *Registry) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Select changes the selected agent.
func (r *Registry) Select(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = agentID
}

// AgentSession returns the thread recorded for an agent.
func (r *Registry) AgentSession(agentID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAgent[agentID]
	return id, ok
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	Sessions        []model.Session            `json:"sessions" yaml:"sessions"`
	Messages        map[string][]model.Message `json:"messages" yaml:"messages"`
	Streaming       []string                   `json:"streaming" yaml:"streaming"`
	OpenArtifacts   map[string]string          `json:"open_artifacts,omitempty" yaml:"open_artifacts,omitempty"`
	Current         string                     `json:"current_session_id" yaml:"current_session_id"`
	SelectedAgent   string                     `json:"selected_agent_id" yaml:"selected_agent_id"`
	SessionsByAgent map[string]string          `json:"sessions_by_agent" yaml:"sessions_by_agent"`
}

// Snapshot copies the registry.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Sessions:        append([]model.Session(nil), r.sessions...),
		Messages:        make(map[string][]model.Message, len(r.entries)),
		OpenArtifacts:   make(map[string]string),
		Current:         r.current,
		SelectedAgent:   r.selected,
		SessionsByAgent: make(map[string]string, len(r.byAgent)),
	}
	for id, e := range r.entries {
		snap.Messages[id] = append([]model.Message(nil), e.messages...)
		if e.streaming {
			snap.Streaming = append(snap.Streaming, id)
		}
		if e.openArtifact != "" {
			snap.OpenArtifacts[id] = e.openArtifact
		}
	}
	sort.Strings(snap.Streaming)
	for k, v := range r.byAgent {
		snap.SessionsByAgent[k] = v
	}
	return snap
}

// Reset clears conversation state: messages, streaming flags, markers and
// the current session. The session list, the selected agent and the
// agent-to-thread map survive.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
	r.current = ""
}
