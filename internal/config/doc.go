// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config reads the sphere client's TOML settings: the Spanish copy
// shown for new sessions and failures, per-agent overrides, logging and the
// offline archive.
//
// Values are layered. Built-in defaults come first, then the file at
// ~/.sphere/config.toml (or an explicit path), then SPHERE_* environment
// variables. Unknown keys in the file are rejected so typos surface at
// startup instead of being silently ignored.
//
// A running store can follow edits to the file:
//
//	go config.Watch(ctx, path, logger, store.ApplyConfig)
package config
