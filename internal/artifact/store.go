// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package artifact

import (
	"strings"
	"sync"

	"github.com/jeranaias/sphere-client/internal/model"
)

type entry struct {
	art  model.Artifact
	body strings.Builder // PERFORMANCE: avoids quadratic copies while chunks stream in
	open bool
}

// Store holds every artifact in insertion order.
type Store struct {
	mu        sync.RWMutex
	order     []string
	entries   map[string]*entry
	active    string
	panelOpen bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Add inserts an artifact, makes it the active one and opens the viewer.
// It is the only insertion path, for streamed artifacts (empty, then fed by
// Append) and hydrated ones (complete, closed right after) alike. Adding an
// id that already exists only re-selects it and returns false.
func (s *Store) Add(a model.Artifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := s.insert(a)
	s.active = a.ID
	s.panelOpen = true
	return inserted
}

// insert adds a new entry. Caller holds mu.
func (s *Store) insert(a model.Artifact) bool {
	if _, exists := s.entries[a.ID]; exists {
		return false
	}
	e := &entry{art: a, open: true}
	e.body.WriteString(a.Content)
	e.art.Content = ""
	s.entries[a.ID] = e
	s.order = append(s.order, a.ID)
	return true
}

// Append concatenates chunk onto an open artifact. Returns false, without
// error, when the artifact is closed or unknown.
func (s *Store) Append(id, chunk string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.open {
		return false
	}
	e.body.WriteString(chunk)
	return true
}

// Close freezes an artifact's content.
func (s *Store) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.open = false
	}
}

// IsOpen reports whether an artifact still accepts chunks.
func (s *Store) IsOpen(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return ok && e.open
}

// Get returns a copy of an artifact.
func (s *Store) Get(id string) (model.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return model.Artifact{}, false
	}
	return e.snapshot(), true
}

func (e *entry) snapshot() model.Artifact {
	a := e.art
	a.Content = e.body.String()
	return a
}

// List returns every artifact in insertion order.
func (s *Store) List() []model.Artifact {
	return s.filter(func(model.Artifact) bool { return true })
}

// ForSession returns the artifacts minted in one session.
func (s *Store) ForSession(sessionID string) []model.Artifact {
	return s.filter(func(a model.Artifact) bool { return a.SessionID == sessionID })
}

func (s *Store) filter(keep func(model.Artifact) bool) []model.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Artifact, 0, len(s.order))
	for _, id := range s.order {
		a := s.entries[id].snapshot()
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// =============================================================================
// SELECTION
// =============================================================================

// SetActive selects the displayed artifact. A non-empty id also opens the
// viewer; an empty id clears the selection and leaves the viewer as is.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	if id != "" {
		s.panelOpen = true
	}
}

// Active returns the selected artifact id, or "".
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// TogglePanel flips viewer visibility and returns the new state.
func (s *Store) TogglePanel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = !s.panelOpen
	return s.panelOpen
}

// PanelOpen reports whether the viewer is visible.
func (s *Store) PanelOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panelOpen
}

// Reset drops every artifact and clears the selection. Viewer visibility is
// kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = make(map[string]*entry)
	s.active = ""
}
