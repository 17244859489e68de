// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package artifact

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sphere-client/internal/model"
)

func TestStore_AddSelectsAndOpensViewer(t *testing.T) {
	s := NewStore()
	require.False(t, s.PanelOpen())

	assert.True(t, s.Add(model.Artifact{ID: "a1", Title: "Dynamic Art", SessionID: "s1"}))
	assert.Equal(t, "a1", s.Active())
	assert.True(t, s.PanelOpen())
	assert.True(t, s.IsOpen("a1"))

	assert.False(t, s.Add(model.Artifact{ID: "a1", Title: "dup"}), "duplicate ids are not inserted")
	assert.Equal(t, 1, s.Len())
	got, _ := s.Get("a1")
	assert.Equal(t, "Dynamic Art", got.Title)
}

func TestStore_AppendOnlyWhileOpen(t *testing.T) {
	s := NewStore()
	s.Add(model.Artifact{ID: "a1"})

	assert.True(t, s.Append("a1", "const a = 1;"))
	assert.True(t, s.Append("a1", " console.log(a);"))
	s.Close("a1")

	assert.False(t, s.Append("a1", " late"), "closed artifacts drop chunks")
	assert.False(t, s.Append("missing", "x"), "unknown artifacts drop chunks")
	assert.False(t, s.IsOpen("a1"))

	got, ok := s.Get("a1")
	require.True(t, ok)
	assert.Equal(t, "const a = 1; console.log(a);", got.Content)
}

func TestStore_HydratedContentKept(t *testing.T) {
	s := NewStore()
	s.Add(model.Artifact{ID: "h1", Content: "SELECT 1;"})
	s.Close("h1")
	got, _ := s.Get("h1")
	assert.Equal(t, "SELECT 1;", got.Content)
}

func TestStore_ForSession(t *testing.T) {
	s := NewStore()
	s.Add(model.Artifact{ID: "a", SessionID: "s1"})
	s.Add(model.Artifact{ID: "b", SessionID: "s2"})
	s.Add(model.Artifact{ID: "c", SessionID: "s1"})

	var got []string
	for _, a := range s.ForSession("s1") {
		got = append(got, a.ID)
	}
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Len(t, s.List(), 3)
	assert.Empty(t, s.ForSession("nope"))
}

func TestStore_SetActiveAndToggle(t *testing.T) {
	s := NewStore()
	s.Add(model.Artifact{ID: "a"})

	assert.False(t, s.TogglePanel())
	s.SetActive("")
	assert.Equal(t, "", s.Active())
	assert.False(t, s.PanelOpen(), "clearing the selection leaves the viewer alone")

	s.SetActive("a")
	assert.True(t, s.PanelOpen())
	assert.Equal(t, "a", s.Active())

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Active())
}

func TestStore_ConcurrentAppendsStayOrderedPerArtifact(t *testing.T) {
	s := NewStore()
	s.Add(model.Artifact{ID: "x", SessionID: "s1"})
	s.Add(model.Artifact{ID: "y", SessionID: "s2"})

	var wg sync.WaitGroup
	for _, id := range []string{"x", "y"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(id, fmt.Sprintf("%s%d;", id, i))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"x", "y"} {
		want := ""
		for i := 0; i < 100; i++ {
			want += fmt.Sprintf("%s%d;", id, i)
		}
		got, _ := s.Get(id)
		assert.Equal(t, want, got.Content)
	}
}
