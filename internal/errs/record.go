// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package errs

import "sync"

// Record holds at most one active error message per category.
type Record struct {
	mu    sync.Mutex
	slots map[Category]string
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{slots: make(map[Category]string)}
}

// Begin clears the category at the start of a new attempt.
func (r *Record) Begin(cat Category) {
	r.Clear(cat)
}

// Set records e.Message under e.Category, replacing any earlier message.
// A nil error is ignored.
func (r *Record) Set(e *Error) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[e.Category] = e.Message
}

// Clear empties a single category.
func (r *Record) Clear(cat Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, cat)
}

// Get returns the active message for a category.
func (r *Record) Get(cat Category) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.slots[cat]
	return msg, ok
}

// Snapshot returns a copy of every active slot.
func (r *Record) Snapshot() map[Category]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Category]string, len(r.slots))
	for k, v := range r.slots {
		out[k] = v
	}
	return out
}

// Reset clears every category.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[Category]string)
}
