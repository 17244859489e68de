// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// State is the lifecycle position of an exchange.
type State string

const (
	StateIdle            State = "idle"
	StateAwaitingSession State = "awaiting-session"
	StateStreaming       State = "streaming"
	StateClosing         State = "closing"
	StateErrored         State = "errored"
	StateAborted         State = "aborted"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateClosing || s == StateErrored || s == StateAborted
}

// Exchange describes one send and its outcome.
type Exchange struct {
	ID                 string `json:"id" yaml:"id"`
	SessionID          string `json:"session_id" yaml:"session_id"`
	UserMessageID      string `json:"user_message_id" yaml:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id" yaml:"assistant_message_id"`
	AgentID            string `json:"agent_id" yaml:"agent_id"`
	TargetRole         string `json:"target_role,omitempty" yaml:"target_role,omitempty"`
	State              State  `json:"state" yaml:"state"`

	// Artifacts lists the artifacts this exchange registered, in order.
	Artifacts []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// Events counts the events applied.
	Events int `json:"events" yaml:"events"`

	Err error `json:"-" yaml:"-"`
}
