// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/transport"
)

// User-facing error copy.
const (
	msgFetchFailed  = "Error al obtener agentes personalizados"
	msgCreateFailed = "Error al crear agente personalizado"
)

// Options configures presentation defaults.
type Options struct {
	// FallbackGreeting formats the greeting for agents without one.
	// Default: "Conectado con %s."
	FallbackGreeting string

	// DefaultColor is the accent color of custom agents without one.
	// Default: "#00f2ff"
	DefaultColor string

	// ColorClass is the style class given to custom agents.
	// Default: "bg-surface border-white/5"
	ColorClass string

	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.FallbackGreeting == "" {
		o.FallbackGreeting = "Conectado con %s."
	}
	if o.DefaultColor == "" {
		o.DefaultColor = "#00f2ff"
	}
	if o.ColorClass == "" {
		o.ColorClass = "bg-surface border-white/5"
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory resolves agent identifiers to display and routing attributes.
type Directory struct {
	mu        sync.RWMutex
	builtin   []model.Agent
	custom    []model.Agent
	greetings map[string]string

	svc    transport.AgentService
	errors *errs.Record
	opts   Options
	log    zerolog.Logger
}

// NewDirectory creates a directory seeded with the built-in agents. svc may
// be nil when custom agents are not used.
func NewDirectory(svc transport.AgentService, rec *errs.Record, opts Options) *Directory {
	opts.setDefaults()
	if rec == nil {
		rec = errs.NewRecord()
	}
	g := make(map[string]string, len(greetings))
	for k, v := range greetings {
		g[k] = v
	}
	return &Directory{
		builtin:   Builtins(),
		greetings: g,
		svc:       svc,
		errors:    rec,
		opts:      opts,
		log:       opts.Logger,
	}
}

// Agents returns built-in agents followed by custom agents.
func (d *Directory) Agents() []model.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Agent, 0, len(d.builtin)+len(d.custom))
	for _, a := range d.builtin {
		out = append(out, a.Clone())
	}
	for _, a := range d.custom {
		out = append(out, a.Clone())
	}
	return out
}

// Custom returns only the custom agents.
func (d *Directory) Custom() []model.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Agent, len(d.custom))
	for i, a := range d.custom {
		out[i] = a.Clone()
	}
	return out
}

// Members returns every agent except the board pseudo-agent.
func (d *Directory) Members() []model.Agent {
	all := d.Agents()
	out := all[:0]
	for _, a := range all {
		if a.ID != GroupID {
			out = append(out, a)
		}
	}
	return out
}

// Find looks up an agent by identifier.
func (d *Directory) Find(id string) (model.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a := d.find(id); a != nil {
		return a.Clone(), true
	}
	return model.Agent{}, false
}

// find returns a pointer into the live slices. Caller holds mu.
func (d *Directory) find(id string) *model.Agent {
	for i := range d.builtin {
		if d.builtin[i].ID == id {
			return &d.builtin[i]
		}
	}
	for i := range d.custom {
		if d.custom[i].ID == id {
			return &d.custom[i]
		}
	}
	return nil
}

// Rename sets an agent's display name. Returns false for unknown ids.
func (d *Directory) Rename(id, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.find(id)
	if a == nil {
		return false
	}
	a.Name = name
	return true
}

// Recolor sets an agent's accent color. Returns false for unknown ids.
func (d *Directory) Recolor(id, hex string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a := d.find(id)
	if a == nil {
		return false
	}
	a.HexColor = hex
	return true
}

// SetGreeting overrides the greeting synthesized for an agent.
func (d *Directory) SetGreeting(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.greetings[id] = text
}

// =============================================================================
// GREETINGS AND ROUTING
// =============================================================================

// Greeting synthesizes the opening message of a new thread with agentID.
func (d *Directory) Greeting(agentID string) model.Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a := d.find(agentID)
	role := model.RoleSystem
	if agentID != GroupID && a != nil && a.Role != "" {
		role = a.Role
	}

	text, ok := d.greetings[agentID]
	if !ok {
		name := "agente"
		if a != nil {
			name = a.Name
		}
		text = fmt.Sprintf(d.opts.FallbackGreeting, name)
	}

	msg := model.NewMessage(role, text)
	if agentID != GroupID {
		msg.AgentID = agentID
	}
	return msg
}

// TargetRole resolves the routing hint sent with a message. It is empty for
// the board and unknown agents (the backend routes), the agent id for
// specialist agents, and the agent's role otherwise.
func (d *Directory) TargetRole(agentID string) string {
	if agentID == "" || agentID == GroupID {
		return ""
	}
	a, ok := d.Find(agentID)
	if !ok {
		return ""
	}
	if a.Role == model.RoleSpecialist {
		return agentID
	}
	return string(a.Role)
}

// AuthorRole is the role given to an assistant reply addressed to agentID
// before the backend reports one. AI replies are never system messages.
func (d *Directory) AuthorRole(agentID string) model.Role {
	if agentID == GroupID {
		return model.RoleAssistant
	}
	if a, ok := d.Find(agentID); ok && a.Role.IsAgent() {
		return a.Role
	}
	return model.RoleAssistant
}

// =============================================================================
// CUSTOM AGENTS
// =============================================================================

// FromRecord maps a backend record onto an agent.
func (d *Directory) FromRecord(rec transport.AgentRecord) model.Agent {
	hex := rec.Color
	if hex == "" {
		hex = d.opts.DefaultColor
	}
	role := model.Role(rec.Role)
	if role == "" {
		role = model.RoleSpecialist
	}
	return model.Agent{
		ID:           rec.AgentID,
		Name:         rec.Name,
		Role:         role,
		Avatar:       initial(rec.Name),
		Description:  rec.Description,
		Color:        d.opts.ColorClass,
		HexColor:     hex,
		Online:       true,
		Capabilities: append([]string(nil), rec.Capabilities...),
		Custom:       true,
	}
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// Fetch replaces the custom agent list with the backend's. Failures are
// recorded under fetch_agents and leave the current list untouched.
func (d *Directory) Fetch(ctx context.Context) error {
	d.errors.Begin(errs.CategoryFetchAgents)
	if d.svc == nil {
		return nil
	}

	records, err := d.svc.FetchCustomAgents(ctx)
	if err != nil {
		e := errs.Network(errs.CategoryFetchAgents, msgFetchFailed, err)
		d.errors.Set(e)
		d.log.Warn().Err(err).Msg("fetching custom agents failed")
		return e
	}

	mapped := make([]model.Agent, len(records))
	for i, rec := range records {
		mapped[i] = d.FromRecord(rec)
	}

	d.mu.Lock()
	d.custom = mapped
	d.mu.Unlock()

	d.log.Debug().Int("count", len(mapped)).Msg("custom agents loaded")
	return nil
}

// Create registers a custom agent on the backend and prepends it once the
// backend confirms.
func (d *Directory) Create(ctx context.Context, draft transport.AgentDraft) (model.Agent, error) {
	d.errors.Begin(errs.CategoryFetchAgents)
	if d.svc == nil {
		e := errs.Network(errs.CategoryFetchAgents, msgCreateFailed, fmt.Errorf("no agent service configured"))
		d.errors.Set(e)
		return model.Agent{}, e
	}

	rec, err := d.svc.CreateCustomAgent(ctx, draft)
	if err != nil {
		e := errs.Network(errs.CategoryFetchAgents, msgCreateFailed, err)
		d.errors.Set(e)
		return model.Agent{}, e
	}

	a := d.FromRecord(rec)
	d.mu.Lock()
	d.custom = append([]model.Agent{a}, d.custom...)
	d.mu.Unlock()
	return a.Clone(), nil
}

// Delete removes a custom agent. Best-effort: failures are logged and the
// agent stays listed.
func (d *Directory) Delete(ctx context.Context, id string) {
	if d.svc == nil {
		return
	}
	if err := d.svc.DeleteCustomAgent(ctx, id); err != nil {
		d.log.Warn().Err(err).Str("agent_id", id).Msg("deleting custom agent failed")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	kept := make([]model.Agent, 0, len(d.custom))
	for _, a := range d.custom {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	d.custom = kept
}
