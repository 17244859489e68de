// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"time"

	"github.com/jeranaias/sphere-client/internal/model"
)

// =============================================================================
// SERVICE INTERFACES
// =============================================================================

// SessionService creates and lists sessions.
type SessionService interface {
	FetchSessions(ctx context.Context) ([]model.Session, error)
	CreateSession(ctx context.Context, title string) (model.Session, error)
}

// AgentService manages custom agents.
type AgentService interface {
	FetchCustomAgents(ctx context.Context) ([]AgentRecord, error)
	CreateCustomAgent(ctx context.Context, draft AgentDraft) (AgentRecord, error)
	DeleteCustomAgent(ctx context.Context, agentID string) error
}

// HistoryService returns the persisted message log of a session.
type HistoryService interface {
	FetchHistory(ctx context.Context, sessionID string) (History, error)
}

// Streamer opens the live event stream of one exchange. Cancelling ctx must
// release the underlying connection.
type Streamer interface {
	OpenStream(ctx context.Context, req StreamRequest) (EventStream, error)
}

// Transport is the full backend contract.
type Transport interface {
	SessionService
	AgentService
	HistoryService
	Streamer
}

// EventStream yields the events of one exchange in arrival order. Next
// returns io.EOF once the end-of-stream sentinel has been seen.
type EventStream interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// =============================================================================
// RECORDS
// =============================================================================

// StreamRequest scopes a live exchange. TargetRole is empty when the backend
// should route the message itself.
type StreamRequest struct {
	Query      string `json:"query" yaml:"query"`
	SessionID  string `json:"session_id" yaml:"session_id"`
	TargetRole string `json:"target_role,omitempty" yaml:"target_role,omitempty"`
}

// AgentRecord is a custom agent as stored by the backend.
type AgentRecord struct {
	AgentID      string   `json:"agent_id" yaml:"agent_id"`
	Name         string   `json:"name" yaml:"name"`
	Role         string   `json:"role,omitempty" yaml:"role,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Color        string   `json:"color,omitempty" yaml:"color,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// AgentDraft is the payload for creating a custom agent.
type AgentDraft struct {
	Name         string `json:"name" yaml:"name"`
	Role         string `json:"role,omitempty" yaml:"role,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Color        string `json:"color,omitempty" yaml:"color,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// RawMessageType discriminates persisted message authors.
type RawMessageType string

const (
	RawHuman RawMessageType = "human"
	RawAI    RawMessageType = "ai"
)

// RawMessage is one entry of a persisted message log.
type RawMessage struct {
	Type             RawMessageType    `json:"type" yaml:"type"`
	Content          string            `json:"content" yaml:"content"`
	AdditionalKwargs *AdditionalKwargs `json:"additional_kwargs,omitempty" yaml:"additional_kwargs,omitempty"`
}

// AdditionalKwargs carries optional side metadata of a raw message.
type AdditionalKwargs struct {
	AgentID   string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// AgentID returns the referenced agent, or "".
func (m RawMessage) AgentID() string {
	if m.AdditionalKwargs == nil {
		return ""
	}
	return m.AdditionalKwargs.AgentID
}

// Time parses the message timestamp. ok is false when the timestamp is
// missing or not RFC 3339.
func (m RawMessage) Time() (t time.Time, ok bool) {
	if m.AdditionalKwargs == nil || m.AdditionalKwargs.Timestamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, m.AdditionalKwargs.Timestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// History is the response of a history fetch.
type History struct {
	Messages []RawMessage `json:"messages" yaml:"messages"`
}
