// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every layer of the
// sphere client: sessions, messages, artifacts and agents.
//
// Values in this package are plain data. Stores hand out copies, so callers
// may keep or modify what they receive without affecting shared state.
//
// # Key Types
//
//   - Session: one persisted conversation thread with optional display overrides
//   - Message: single message with role, content, timestamp and owning agent
//   - Artifact: typed side-document referenced from message text by placeholder
//   - Agent: built-in or custom agent with display and routing attributes
//   - Role: message role enumeration (user, system, assistant, agent roles)
//
// # Placeholders
//
// Message text never embeds artifact bodies. Artifacts are referenced inline
// as "[ARTIFACT:<id>:<title>]" surrounded by blank lines:
//
//	msg.Content += model.Placeholder(art.ID, art.Title)
//
//	for _, seg := range model.SplitContent(msg.Content) {
//	    if seg.Ref != nil {
//	        // render an artifact card for seg.Ref.ID
//	    }
//	}
package model
