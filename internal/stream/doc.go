// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives one live exchange from user message to settled reply.
//
// An exchange moves through these states:
//
//	idle -> awaiting-session -> streaming -> closing | errored | aborted
//
// awaiting-session is only entered when no session is current. Events are
// applied strictly in arrival order, one at a time, to the session registry
// (assistant message text and role) and the artifact store (artifact
// open/chunk/close). The open-artifact marker lives on the session's own
// registry entry, so exchanges in different sessions never see each other's
// artifacts.
//
// # Outcomes
//
//   - closing: done event or end of stream; streaming flag cleared
//   - errored: error event or transport failure; error notice appended,
//     send_message error recorded and returned
//   - aborted: ctx cancelled (no mutation, ctx error returned) or the
//     placeholder reply vanished (core_engine error recorded)
//
// # Usage
//
//	orch := stream.New(stream.Deps{...}, stream.Options{ErrorNotice: notice})
//	ex, err := orch.Send(ctx, "Genera código")
package stream
