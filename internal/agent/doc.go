// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent provides the agent directory: the built-in board of agents
// plus custom agents fetched from the backend.
//
// Built-in agents are constant data except for display name and accent
// color, which Rename and Recolor change in place for built-in and custom
// agents alike. Agents always lists built-in agents first, then custom ones.
//
// # Key Types
//
//   - Directory: agent lookup, greetings, target-role resolution
//   - Options: presentation defaults for custom agents and greetings
//
// # Usage
//
//	dir := agent.NewDirectory(backend, record, agent.Options{})
//	dir.Fetch(ctx)
//	greeting := dir.Greeting("cto-1")
//	role := dir.TargetRole("cto-1") // "CTO"
package agent
