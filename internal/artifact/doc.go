// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifact provides the artifact store: the single owner of artifact
// content, open/closed streaming state, and the artifact viewer selection.
//
// An artifact is open from Add until Close. Only open artifacts accept
// Append; chunks addressed to closed or unknown artifacts are dropped
// silently, since late or reordered chunks must not corrupt closed content.
//
// # Usage
//
//	store := artifact.NewStore()
//	store.Add(model.Artifact{ID: id, Type: model.ArtifactCode, SessionID: sid})
//	store.Append(id, "const a = 1;")
//	store.Close(id)
//
//	visible := store.ForSession(sid)
package artifact
