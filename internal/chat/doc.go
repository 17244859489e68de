// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the single state container of the SPHERE client.
//
// A Store owns the session registry, the agent directory, the artifact store
// and the per-category error record, and exposes every user action on them:
// session creation and loading, agent selection, sending messages, custom
// agent management and artifact selection. All state changes are announced
// on a change bus that consumers subscribe to.
//
// # Failures
//
// Session creation and send failures are recorded in the error record AND
// returned. Agent fetch and history load failures are recorded and leave the
// store usable. Malformed persisted artifact markup never fails a load; it
// stays verbatim in the message and a parser error is recorded under
// artifact_parser.
//
// # Offline archive
//
// With an archive configured, sessions are saved after a successful
// history load and after each completed exchange. When a history fetch
// fails, the archived copy of the session is merged instead.
//
// # Usage
//
//	store, err := chat.Open(transport, cfg, logger)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if _, err := store.Send(ctx, "Genera código"); err != nil {
//		log.Error().Err(err).Msg("send failed")
//	}
package chat
