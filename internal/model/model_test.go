// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PLACEHOLDER TESTS
// =============================================================================

func TestPlaceholder_Format(t *testing.T) {
	assert.Equal(t, "\n\n[ARTIFACT:abc-123:Dynamic Art]\n\n", Placeholder("abc-123", "Dynamic Art"))

	refs := ArtifactRefs(Placeholder("x", "Matrix [2x2]\nv2"))
	require.Len(t, refs, 1)
	assert.Equal(t, "Matrix [2x2) v2", refs[0].Title)
}

func TestSplitContent(t *testing.T) {
	content := "Intro" + Placeholder("id-1", "Chart: Q3") + "middle" + Placeholder("id-2", "Table")

	segs := SplitContent(content)
	require.Len(t, segs, 4)

	assert.Equal(t, "Intro\n\n", segs[0].Text)
	require.NotNil(t, segs[1].Ref)
	assert.Equal(t, ArtifactRef{ID: "id-1", Title: "Chart: Q3"}, *segs[1].Ref)
	assert.Equal(t, "\n\nmiddle\n\n", segs[2].Text)
	assert.Equal(t, ArtifactRef{ID: "id-2", Title: "Table"}, *segs[3].Ref)
}

func TestSplitContent_NoRefs(t *testing.T) {
	segs := SplitContent("plain [ARTIFACT:missing-title] text")
	require.Len(t, segs, 1)
	assert.Nil(t, segs[0].Ref)
	assert.Empty(t, ArtifactRefs("plain"))
}

// =============================================================================
// ARTIFACT TESTS
// =============================================================================

func TestParseArtifactType(t *testing.T) {
	tests := map[string]ArtifactType{
		"code":        ArtifactCode,
		"markdown":    ArtifactMarkdown,
		"mermaid":     ArtifactMermaid,
		"csv":         ArtifactDataTable,
		"CSV":         ArtifactDataTable,
		"svg":         ArtifactSVG,
		"":            ArtifactCode,
		"spreadsheet": ArtifactCode,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseArtifactType(in))
		})
	}
	assert.Equal(t, "csv", ArtifactDataTable.PersistedName())
	assert.Equal(t, "mermaid", ArtifactMermaid.PersistedName())
}

func TestArtifact_Extension(t *testing.T) {
	tests := []struct {
		name string
		art  Artifact
		want string
	}{
		{"table", Artifact{Type: ArtifactDataTable}, ".csv"},
		{"markdown", Artifact{Type: ArtifactMarkdown}, ".md"},
		{"mermaid", Artifact{Type: ArtifactMermaid}, ".mmd"},
		{"svg", Artifact{Type: ArtifactSVG}, ".svg"},
		{"python", Artifact{Type: ArtifactCode, Language: "python"}, ".py"},
		{"shell", Artifact{Type: ArtifactCode, Language: "Shell"}, ".sh"},
		{"go via lexer", Artifact{Type: ArtifactCode, Language: "go"}, ".go"},
		{"rust via lexer", Artifact{Type: ArtifactCode, Language: "rust"}, ".rs"},
		{"no language", Artifact{Type: ArtifactCode}, ".txt"},
		{"unknown language", Artifact{Type: ArtifactCode, Language: "nosuchlang-xyz"}, ".txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.art.Extension())
		})
	}
}

func TestArtifact_FileName(t *testing.T) {
	art := Artifact{Type: ArtifactDataTable, Title: "Análisis de Ventas"}
	assert.Equal(t, "analisis-de-ventas.csv", art.FileName())
}

func TestAgent_CloneIsDeep(t *testing.T) {
	a := Agent{ID: "cto-1", Capabilities: []string{"arch"}}
	b := a.Clone()
	b.Capabilities[0] = "changed"
	assert.Equal(t, "arch", a.Capabilities[0])
}

func TestRole_IsAgent(t *testing.T) {
	assert.True(t, RoleCTO.IsAgent())
	assert.True(t, RoleAssistant.IsAgent())
	assert.False(t, RoleUser.IsAgent())
	assert.False(t, RoleSystem.IsAgent())
}
