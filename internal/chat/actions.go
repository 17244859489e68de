// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/jeranaias/sphere-client/internal/export"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/notify"
	"github.com/jeranaias/sphere-client/internal/stream"
	"github.com/jeranaias/sphere-client/internal/transport"
	"github.com/jeranaias/sphere-client/internal/util"
)

// =============================================================================
// MESSAGES
// =============================================================================

// Send sends text to the selected agent in the current session, creating a
// session first when none is current. Failures are recorded under
// send_message and returned; a cancelled ctx returns ctx's error and
// records nothing.
func (s *Store) Send(ctx context.Context, text string) (stream.Exchange, error) {
	return s.orch.Send(ctx, text)
}

// SendTo sends text in an existing session without changing the current
// session or the selection.
func (s *Store) SendTo(ctx context.Context, sessionID, text string) (stream.Exchange, error) {
	return s.orch.SendTo(ctx, sessionID, text)
}

// =============================================================================
// AGENTS
// =============================================================================

// Agents returns built-in agents followed by custom agents.
func (s *Store) Agents() []model.Agent {
	return s.agents.Agents()
}

// Members returns every agent except the board.
func (s *Store) Members() []model.Agent {
	return s.agents.Members()
}

// Agent looks an agent up by id.
func (s *Store) Agent(id string) (model.Agent, bool) {
	return s.agents.Find(id)
}

// FetchCustomAgents reloads the custom agent list. Failures are recorded
// under fetch_agents and the previous list is kept; the returned error is
// informational and callers need not treat it as fatal.
func (s *Store) FetchCustomAgents(ctx context.Context) error {
	err := s.agents.Fetch(ctx)
	s.publish(notify.KindAgents, "", "")
	if err != nil {
		s.publish(notify.KindErrors, "", "")
	}
	return err
}

// CreateCustomAgent registers a custom agent; it is listed first among the
// custom agents once the backend confirms.
func (s *Store) CreateCustomAgent(ctx context.Context, draft transport.AgentDraft) (model.Agent, error) {
	a, err := s.agents.Create(ctx, draft)
	if err != nil {
		s.publish(notify.KindErrors, "", "")
		return model.Agent{}, err
	}
	s.publish(notify.KindAgents, "", "")
	return a, nil
}

// DeleteCustomAgent removes a custom agent. Best-effort.
func (s *Store) DeleteCustomAgent(ctx context.Context, id string) {
	s.agents.Delete(ctx, id)
	s.publish(notify.KindAgents, "", "")
}

// RenameAgent sets an agent's display name.
func (s *Store) RenameAgent(id, name string) bool {
	ok := s.agents.Rename(id, name)
	if ok {
		s.publish(notify.KindAgents, "", "")
	}
	return ok
}

// RecolorAgent sets an agent's accent color.
func (s *Store) RecolorAgent(id, hex string) bool {
	ok := s.agents.Recolor(id, hex)
	if ok {
		s.publish(notify.KindAgents, "", "")
	}
	return ok
}

// =============================================================================
// ARTIFACTS
// =============================================================================

// AddArtifact registers an artifact and shows it. An empty id is replaced
// by a fresh one; the id used is returned.
func (s *Store) AddArtifact(a model.Artifact) string {
	if a.ID == "" {
		a.ID = util.NewID()
	}
	s.artifacts.Add(a)
	s.publish(notify.KindArtifacts, a.SessionID, a.ID)
	return a.ID
}

// AppendToArtifact adds chunk to an open artifact. Closed or unknown
// artifacts are left alone and false is returned.
func (s *Store) AppendToArtifact(id, chunk string) bool {
	if !s.artifacts.Append(id, chunk) {
		return false
	}
	s.publish(notify.KindContent, "", id)
	return true
}

// CloseArtifact freezes an artifact's content.
func (s *Store) CloseArtifact(id string) {
	s.artifacts.Close(id)
	s.publish(notify.KindArtifacts, "", id)
}

// Artifact returns one artifact.
func (s *Store) Artifact(id string) (model.Artifact, bool) {
	return s.artifacts.Get(id)
}

// Artifacts returns every artifact in insertion order.
func (s *Store) Artifacts() []model.Artifact {
	return s.artifacts.List()
}

// SessionArtifacts returns the artifacts that belong to one session.
func (s *Store) SessionArtifacts(sessionID string) []model.Artifact {
	return s.artifacts.ForSession(sessionID)
}

// SetActiveArtifact selects the displayed artifact; "" clears the
// selection.
func (s *Store) SetActiveArtifact(id string) {
	s.artifacts.SetActive(id)
	s.publish(notify.KindArtifacts, "", id)
}

// ActiveArtifact returns the displayed artifact id, or "".
func (s *Store) ActiveArtifact() string {
	return s.artifacts.Active()
}

// ToggleArtifactPanel flips the artifact viewer and returns its new state.
func (s *Store) ToggleArtifactPanel() bool {
	open := s.artifacts.TogglePanel()
	s.publish(notify.KindArtifacts, "", "")
	return open
}

// ArtifactPanelOpen reports whether the artifact viewer is visible.
func (s *Store) ArtifactPanelOpen() bool {
	return s.artifacts.PanelOpen()
}

// =============================================================================
// EXPORT
// =============================================================================

// Transcript collects a session for export.
func (s *Store) Transcript(sessionID string) export.Transcript {
	sess, ok := s.sessions.Session(sessionID)
	if !ok {
		sess = model.Session{ID: sessionID}
	}
	agents := s.agents.Agents()
	names := make(map[string]string, len(agents))
	for _, a := range agents {
		names[a.ID] = a.Name
	}
	return export.Transcript{
		Session:    sess,
		Messages:   s.sessions.Messages(sessionID),
		Artifacts:  s.artifacts.ForSession(sessionID),
		AgentNames: names,
	}
}

// Export renders a session in format (md, json or yaml).
func (s *Store) Export(sessionID, format string, opts *export.Options) ([]byte, error) {
	exp, err := export.New(format, opts)
	if err != nil {
		return nil, err
	}
	return exp.Export(s.Transcript(sessionID))
}
