// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the offline session archive.
//
// The archive keeps the last known state of each session (messages and
// artifacts) in a local SQLite database so a session can still be read when
// the backend history endpoint is unreachable. It is a cache, not a source
// of truth: the backend always wins when it answers.
//
// # Key Types
//
//   - Archive: SQLite-backed snapshot store
//   - Snapshot: One session with its messages and artifacts
//   - SessionMeta: Lightweight row for listing
//
// # Usage
//
//	arc, err := storage.Open(path, logger)
//	if err != nil {
//	    return err
//	}
//	defer arc.Close()
//
//	err = arc.Save(ctx, snap)
//	snap, err = arc.Load(ctx, sessionID)
//	if errors.Is(err, storage.ErrNotFound) {
//	    // never archived
//	}
//
// # Storage Location
//
// Default: ~/.sphere/archive.db (config key archive.path).
package storage
