// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect finds artifact candidates in plain assistant replies.
//
// Agents are expected to stream artifacts explicitly, but some replies carry
// code, diagrams or tables inline as ordinary Markdown. Detect parses the
// reply with goldmark (GFM tables enabled) and reports each fenced code
// block and table as a Candidate the store can promote to an artifact.
//
// # Mapping
//
//   - ```mermaid fence: mermaid, titled "Mermaid Diagram"
//   - any other fence: code, titled "Code <LANG>" (or "Code")
//   - GFM table: data_table, titled "Data Table", content as CSV
//
// Indented code blocks are not promoted.
package detect
