// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hydrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/transport"
	"github.com/jeranaias/sphere-client/internal/util"
)

// AgentResolver looks agents up by identifier.
type AgentResolver interface {
	Find(id string) (model.Agent, bool)
}

// Result is the normalized form of one persisted log.
type Result struct {
	Messages  []model.Message
	Artifacts []model.Artifact

	// DominantAgent is the first non-system agent referenced, or "".
	DominantAgent string

	// Malformed counts artifact spans left verbatim.
	Malformed int
}

// Hydrator converts persisted logs. It has no side effects; callers register
// the artifacts and merge the messages.
type Hydrator struct {
	agents AgentResolver
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a hydrator. agents may be nil, in which case every AI message
// gets the generic assistant role.
func New(agents AgentResolver, logger zerolog.Logger) *Hydrator {
	return &Hydrator{agents: agents, log: logger, now: time.Now, newID: util.NewID}
}

// Hydrate normalizes raw into messages with placeholder references and the
// artifacts they reference.
func (h *Hydrator) Hydrate(sessionID string, raw []transport.RawMessage) Result {
	var res Result
	res.Messages = make([]model.Message, 0, len(raw))

	for idx, rm := range raw {
		ts, ok := rm.Time()
		if !ok {
			ts = h.now()
		}
		agentID := rm.AgentID()

		content, arts, malformed := h.extract(sessionID, rm.Content, agentID, ts)
		res.Artifacts = append(res.Artifacts, arts...)
		res.Malformed += malformed

		res.Messages = append(res.Messages, model.Message{
			ID:        fmt.Sprintf("history-%s-%d", sessionID, idx),
			Role:      h.role(rm),
			Content:   content,
			Timestamp: ts,
			AgentID:   agentID,
		})
	}

	for _, m := range res.Messages {
		if m.AgentID != "" && m.AgentID != string(model.RoleSystem) {
			res.DominantAgent = m.AgentID
			break
		}
	}

	if res.Malformed > 0 {
		h.log.Debug().Str("session_id", sessionID).Int("malformed", res.Malformed).Msg("left malformed artifact markup verbatim")
	}
	return res
}

// role maps the persisted author onto a message role. AI replies take the
// referenced agent's role and are never classified as system.
func (h *Hydrator) role(rm transport.RawMessage) model.Role {
	switch rm.Type {
	case transport.RawHuman:
		return model.RoleUser
	case transport.RawAI:
		if h.agents != nil {
			if a, ok := h.agents.Find(rm.AgentID()); ok && a.Role.IsAgent() {
				return a.Role
			}
		}
		return model.RoleAssistant
	default:
		return model.RoleSystem
	}
}

// extract replaces every well-formed block in content with a placeholder.
func (h *Hydrator) extract(sessionID, content, agentID string, ts time.Time) (string, []model.Artifact, int) {
	parsed := Parse(content)
	if len(parsed.Blocks) == 0 {
		return content, nil, len(parsed.Malformed)
	}

	owner := agentID
	if owner == "" {
		owner = string(model.RoleSystem)
	}

	var sb strings.Builder
	arts := make([]model.Artifact, 0, len(parsed.Blocks))
	last := 0
	for _, b := range parsed.Blocks {
		art := model.Artifact{
			ID:        h.newID(),
			Type:      model.ParseArtifactType(b.Type),
			Title:     b.Title,
			Content:   strings.TrimSpace(b.Body),
			Language:  b.Language,
			AgentID:   owner,
			SessionID: sessionID,
			CreatedAt: ts,
		}
		arts = append(arts, art)

		sb.WriteString(content[last:b.Start])
		sb.WriteString(art.Placeholder())
		last = b.End
	}
	sb.WriteString(content[last:])
	return sb.String(), arts, len(parsed.Malformed)
}
