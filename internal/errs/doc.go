// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package errs defines the domain error taxonomy of the sphere client and
// the per-category error record the store exposes to consumers.
//
// # Key Types
//
//   - Error: a NetworkError, ParserError or SessionError tagged with the
//     operation category that produced it
//   - Kind: the taxonomy (Network, Parser, Session)
//   - Category: operation category (fetch_agents, create_session, ...)
//   - Record: at most one active message per category
//
// # Usage
//
//	rec.Begin(errs.CategorySendMessage)
//	if err := doSend(); err != nil {
//	    e := errs.Network(errs.CategorySendMessage, "stream failed", err)
//	    rec.Set(e)
//	    return e
//	}
//
//	if errs.IsKind(err, errs.KindSession) { ... }
package errs
