// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the handful of helpers that more than one sphere
// package needs: rune and display-width truncation for session titles,
// slugs for export file names, client-side identifiers and a crash-safe
// file writer.
//
//	title := util.TruncateWidth(s.Title, 40)
//	name := util.Slug("Análisis de Ventas") + ".md" // analisis-de-ventas.md
//	if err := util.AtomicWriteFile(name, body, 0o644); err != nil {
//		return err
//	}
package util
