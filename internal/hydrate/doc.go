// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hydrate rebuilds normalized session state from a persisted message
// log. Artifact blocks stored inline as
//
//	<sphere_artifact title="..." artifact_type="..." language="...">body</sphere_artifact>
//
// are extracted into artifacts and replaced by placeholders, so a hydrated
// session looks exactly like one that was streamed live.
//
// # Grammar
//
//	block     = start-tag body end-tag
//	start-tag = "<sphere_artifact" [ws attribute *(ws attribute)] [ws] ">"
//	attribute = name "=" value
//	value     = '"' chars '"' | '\"' chars '\"' | "'" chars "'" | bare
//	end-tag   = "</sphere_artifact>"
//
// A start tag with no end tag before the next start tag (or end of text) is
// unterminated. A block whose body is only whitespace has no body. Both are
// malformed and stay in the text byte for byte; no artifact is produced.
//
// # Usage
//
//	h := hydrate.New(directory, logger)
//	res := h.Hydrate(sessionID, history.Messages)
//	for _, art := range res.Artifacts { ... }
package hydrate
