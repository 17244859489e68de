// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session keeps track of every conversation the client knows about.
//
// A Registry owns the session list, each session's messages, its streaming
// flag and its open-artifact marker, along with which session is current,
// which agent is selected and which session belongs to which agent. Marker
// and flag are stored per session, so concurrent replies in different
// sessions cannot see each other's state.
//
//	reg := session.NewRegistry(agent.GroupID)
//	reg.Register(sess, "cto-1", greeting)
//	reg.Append(sess.ID, userMsg)
//	reg.Mutate(sess.ID, replyID, func(m *model.Message) { m.Content += token })
//
// Snapshot returns a copy that is safe to hand to other goroutines.
package session
