// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Agent describes a built-in or custom agent.
type Agent struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Role         Role     `json:"role" yaml:"role"`
	Avatar       string   `json:"avatar" yaml:"avatar"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Color        string   `json:"color,omitempty" yaml:"color,omitempty"` // style class
	HexColor     string   `json:"hex_color" yaml:"hex_color"`
	Online       bool     `json:"is_online" yaml:"is_online"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Custom       bool     `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	if a.Capabilities != nil {
		a.Capabilities = append([]string(nil), a.Capabilities...)
	}
	return a
}
