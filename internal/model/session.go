// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Session is one persisted conversation thread. Sessions are created on the
// backend and never deleted by the client.
type Session struct {
	ID        string    `json:"session_id" yaml:"session_id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Metadata  *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Metadata holds optional display overrides for a session.
type Metadata struct {
	DisplayName string `json:"name,omitempty" yaml:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	RoleLabel   string `json:"role,omitempty" yaml:"role,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
}

// DisplayTitle returns the metadata display name when set, else the title.
func (s Session) DisplayTitle() string {
	if s.Metadata != nil && s.Metadata.DisplayName != "" {
		return s.Metadata.DisplayName
	}
	return s.Title
}
