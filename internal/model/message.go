// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/sphere-client/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser       Role = "user"
	RoleSystem     Role = "system"
	RoleAssistant  Role = "assistant"
	RoleCEO        Role = "CEO"
	RoleCTO        Role = "CTO"
	RoleCMO        Role = "CMO"
	RoleCFO        Role = "CFO"
	RoleSpecialist Role = "specialist"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsAgent reports whether the role belongs to an AI author (anything but
// user and system).
func (r Role) IsAgent() bool {
	return r != "" && r != RoleUser && r != RoleSystem
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	AgentID   string    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
}

// NewMessage creates a message with a fresh identifier stamped now.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        util.NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Preview returns a single-line preview of the content for logs and lists.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// =============================================================================
// ARTIFACT PLACEHOLDERS
// =============================================================================

var placeholderPattern = regexp.MustCompile(`\[ARTIFACT:([^:\]]+):([^\]]+)\]`)

// Titles are embedded verbatim except for characters that would end the
// reference early.
var placeholderTitle = strings.NewReplacer("]", ")", "\n", " ", "\r", " ")

// Placeholder returns the inline reference inserted into message text in
// place of an artifact body.
func Placeholder(id, title string) string {
	return fmt.Sprintf("\n\n[ARTIFACT:%s:%s]\n\n", id, placeholderTitle.Replace(title))
}

// ArtifactRef is a parsed placeholder.
type ArtifactRef struct {
	ID    string
	Title string
}

// Segment is either a run of plain text or an artifact reference.
type Segment struct {
	Text string
	Ref  *ArtifactRef
}

// SplitContent splits message text into plain-text and artifact-reference
// segments in document order. Empty text runs are omitted.
func SplitContent(content string) []Segment {
	var out []Segment
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > last {
			out = append(out, Segment{Text: content[last:m[0]]})
		}
		out = append(out, Segment{Ref: &ArtifactRef{
			ID:    content[m[2]:m[3]],
			Title: content[m[4]:m[5]],
		}})
		last = m[1]
	}
	if last < len(content) {
		out = append(out, Segment{Text: content[last:]})
	}
	return out
}

// ArtifactRefs returns every artifact referenced by the content, in order.
func ArtifactRefs(content string) []ArtifactRef {
	var refs []ArtifactRef
	for _, seg := range SplitContent(content) {
		if seg.Ref != nil {
			refs = append(refs, *seg.Ref)
		}
	}
	return refs
}
