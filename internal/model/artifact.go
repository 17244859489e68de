// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/jeranaias/sphere-client/internal/util"
)

// =============================================================================
// ARTIFACT TYPE
// =============================================================================

// ArtifactType is the internal artifact vocabulary.
type ArtifactType string

const (
	ArtifactCode      ArtifactType = "code"
	ArtifactMarkdown  ArtifactType = "markdown"
	ArtifactMermaid   ArtifactType = "mermaid"
	ArtifactDataTable ArtifactType = "data_table"
	ArtifactSVG       ArtifactType = "svg"
)

// ParseArtifactType maps the persisted and streamed type vocabulary onto
// ArtifactType. "csv" is tabular data; unknown or empty values fall back to
// code.
func ParseArtifactType(s string) ArtifactType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "code":
		return ArtifactCode
	case "markdown":
		return ArtifactMarkdown
	case "mermaid":
		return ArtifactMermaid
	case "csv", "data_table":
		return ArtifactDataTable
	case "svg":
		return ArtifactSVG
	default:
		return ArtifactCode
	}
}

// PersistedName returns the vocabulary used inside persisted artifact tags.
func (t ArtifactType) PersistedName() string {
	if t == ArtifactDataTable {
		return "csv"
	}
	return string(t)
}

// =============================================================================
// ARTIFACT
// =============================================================================

// Artifact is a typed side-document referenced from message text.
// Content grows only while the artifact is open in the artifact store.
type Artifact struct {
	ID        string       `json:"id" yaml:"id"`
	Type      ArtifactType `json:"type" yaml:"type"`
	Title     string       `json:"title" yaml:"title"`
	Content   string       `json:"content" yaml:"content"`
	Language  string       `json:"language,omitempty" yaml:"language,omitempty"`
	AgentID   string       `json:"agent_id" yaml:"agent_id"`
	SessionID string       `json:"session_id" yaml:"session_id"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}

// Placeholder returns the inline reference for this artifact.
func (a Artifact) Placeholder() string {
	return Placeholder(a.ID, a.Title)
}

var languageExtensions = map[string]string{
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"jsx":        ".jsx",
	"tsx":        ".tsx",
	"html":       ".html",
	"css":        ".css",
	"json":       ".json",
	"yaml":       ".yaml",
	"sql":        ".sql",
	"bash":       ".sh",
	"shell":      ".sh",
	"markdown":   ".md",
	"mermaid":    ".mmd",
}

// Extension returns the download file extension, including the dot.
func (a Artifact) Extension() string {
	switch a.Type {
	case ArtifactDataTable:
		return ".csv"
	case ArtifactMarkdown:
		return ".md"
	case ArtifactMermaid:
		return ".mmd"
	case ArtifactSVG:
		return ".svg"
	}

	lang := strings.ToLower(strings.TrimSpace(a.Language))
	if lang == "" {
		return ".txt"
	}
	if ext, ok := languageExtensions[lang]; ok {
		return ext
	}
	if lexer := lexers.Get(lang); lexer != nil {
		for _, pattern := range lexer.Config().Filenames {
			if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[") {
				return "." + ext
			}
		}
	}
	return ".txt"
}

// FileName returns a download file name built from the title.
func (a Artifact) FileName() string {
	return util.Slug(a.Title) + a.Extension()
}

// FenceLanguage returns the info string used when the artifact is rendered as
// a fenced block.
func (a Artifact) FenceLanguage() string {
	switch a.Type {
	case ArtifactMermaid:
		return "mermaid"
	case ArtifactDataTable:
		return "csv"
	case ArtifactSVG:
		return "svg"
	case ArtifactMarkdown:
		return "markdown"
	}
	return a.Language
}
