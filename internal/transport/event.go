// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EventType discriminates stream events.
type EventType string

const (
	EventToken         EventType = "token"
	EventMeta          EventType = "meta"
	EventArtifactOpen  EventType = "artifact_open"
	EventArtifactChunk EventType = "artifact_chunk"
	EventArtifactClose EventType = "artifact_close"
	EventError         EventType = "error"
	EventDone          EventType = "done"
)

// ErrMalformedEvent is returned by DecodeEvent for payloads that are not
// JSON or do not have a recognised shape.
var ErrMalformedEvent = errors.New("malformed stream event")

// Event is one typed stream event. Only the fields of its Type are set.
type Event struct {
	Type         EventType `json:"type" yaml:"type"`
	Content      string    `json:"content,omitempty" yaml:"content,omitempty"`
	Role         string    `json:"role,omitempty" yaml:"role,omitempty"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	ArtifactType string    `json:"artifact_type,omitempty" yaml:"artifact_type,omitempty"`
	Language     string    `json:"language,omitempty" yaml:"language,omitempty"`
	Message      string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Convenience constructors, mostly for tests and fixtures.

func Token(content string) Event { return Event{Type: EventToken, Content: content} }
func Meta(role string) Event { return Event{Type: EventMeta, Role: role} }
func Chunk(content string) Event { return Event{Type: EventArtifactChunk, Content: content} }
func CloseArtifact() Event { return Event{Type: EventArtifactClose} }
func Failure(msg string) Event { return Event{Type: EventError, Message: msg} }
func Done() Event { return Event{Type: EventDone} }

// OpenArtifact builds an artifact_open event.
func OpenArtifact(title, artifactType, language string) Event {
	return Event{Type: EventArtifactOpen, Title: title, ArtifactType: artifactType, Language: language}
}

// Validate checks that the event has a known type and the fields that type
// requires.
func (e Event) Validate() error {
	switch e.Type {
	case EventToken, EventArtifactChunk, EventArtifactOpen,
		EventArtifactClose, EventError, EventDone:
		return nil
	case EventMeta:
		if e.Role == "" {
			return errors.Wrap(ErrMalformedEvent, "meta event without role")
		}
		return nil
	case "":
		return errors.Wrap(ErrMalformedEvent, "missing type")
	default:
		return errors.Wrapf(ErrMalformedEvent, "unknown type %q", e.Type)
	}
}

// DecodeEvent decodes one JSON event payload.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
