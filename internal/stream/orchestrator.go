// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/sphere-client/internal/agent"
	"github.com/jeranaias/sphere-client/internal/artifact"
	"github.com/jeranaias/sphere-client/internal/detect"
	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/notify"
	"github.com/jeranaias/sphere-client/internal/session"
	"github.com/jeranaias/sphere-client/internal/transport"
	"github.com/jeranaias/sphere-client/internal/util"
)

// MsgStreamFailed is the user-facing send_message error.
const MsgStreamFailed = "Error en el flujo de transmisión"

// msgPlaceholderLost is recorded under core_engine when the reply being
// filled disappears mid-exchange.
const msgPlaceholderLost = "El mensaje en curso desapareció durante la transmisión"

// =============================================================================
// CONFIGURATION
// =============================================================================

// Deps are the stores and collaborators an orchestrator works on.
type Deps struct {
	Registry  *session.Registry
	Artifacts *artifact.Store
	Agents    *agent.Directory
	Errors    *errs.Record
	Streamer  transport.Streamer

	// EnsureSession creates a session for agentID when none is current.
	EnsureSession func(ctx context.Context, agentID string) (string, error)

	// Notify receives change notifications. Optional.
	Notify notify.Publisher

	// OnSettled is called after an exchange reaches closing. Optional.
	OnSettled func(Exchange)
}

// Options tunes orchestrator behavior.
type Options struct {
	// ErrorNotice is appended to the reply when the stream fails.
	ErrorNotice string

	// PromoteFencedBlocks turns fenced code and tables in a reply without
	// streamed artifacts into artifacts.
	PromoteFencedBlocks bool

	Logger zerolog.Logger
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs exchanges. Send may be called concurrently for
// different sessions.
type Orchestrator struct {
	deps Deps
	log  zerolog.Logger

	mu   sync.RWMutex
	opts Options

	newID func() string
	now   func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "stream").Logger(),
		newID: util.NewID,
		now:   time.Now,
	}
}

// SetOptions swaps the tunables used by exchanges started afterwards.
func (o *Orchestrator) SetOptions(notice string, promote bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts.ErrorNotice = notice
	o.opts.PromoteFencedBlocks = promote
}

func (o *Orchestrator) options() Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.opts
}

func (o *Orchestrator) publish(kind notify.Kind, sessionID, artifactID string) {
	if o.deps.Notify == nil {
		return
	}
	o.deps.Notify.Publish(notify.Change{Kind: kind, SessionID: sessionID, ArtifactID: artifactID})
}

// run is the state of one exchange while it streams.
type run struct {
	ex   Exchange
	opts Options
	log  zerolog.Logger
}

// Send runs one exchange in the current session with the selected agent,
// creating a session first when none is current. The user message and the
// empty reply are applied before the transport is contacted. Stream
// failures are recorded and returned; cancellation returns ctx's error and
// leaves the session as it was at that point.
func (o *Orchestrator) Send(ctx context.Context, text string) (Exchange, error) {
	r := o.newRun(o.deps.Registry.Selected())

	sid := o.deps.Registry.Current()
	if sid == "" {
		r.ex.State = StateAwaitingSession
		var err error
		sid, err = o.deps.EnsureSession(ctx, r.ex.AgentID)
		if err != nil {
			r.ex.State = StateErrored
			r.ex.Err = err
			return r.ex, err
		}
		// EnsureSession may have selected the agent the thread belongs to.
		r.ex.AgentID = o.deps.Registry.Selected()
	}
	return o.exchange(ctx, r, sid, text)
}

// SendTo runs one exchange in an existing session, addressed to the agent
// that session belongs to. The current session and selection are left
// alone, so exchanges in several sessions can run side by side.
func (o *Orchestrator) SendTo(ctx context.Context, sessionID, text string) (Exchange, error) {
	return o.exchange(ctx, o.newRun(o.deps.Registry.DominantAgent(sessionID)), sessionID, text)
}

func (o *Orchestrator) newRun(agentID string) *run {
	return &run{
		ex: Exchange{
			ID:      o.newID(),
			State:   StateIdle,
			AgentID: agentID,
		},
		opts: o.options(),
	}
}

// exchange applies the optimistic messages, opens the stream and consumes
// it until an outcome is reached.
func (o *Orchestrator) exchange(ctx context.Context, r *run, sid, text string) (Exchange, error) {
	r.ex.SessionID = sid
	r.ex.TargetRole = o.deps.Agents.TargetRole(r.ex.AgentID)
	r.log = o.log.With().Str("session_id", sid).Str("exchange_id", r.ex.ID).Logger()

	o.deps.Errors.Begin(errs.CategorySendMessage)

	// A marker left by an exchange that never closed its artifact.
	if stale := o.deps.Registry.ClearOpenArtifact(sid); stale != "" {
		o.deps.Artifacts.Close(stale)
	}

	user := model.NewMessage(model.RoleUser, text)
	user.Timestamp = o.now()
	reply := model.NewMessage(o.deps.Agents.AuthorRole(r.ex.AgentID), "")
	reply.Timestamp = o.now()
	reply.AgentID = r.ex.AgentID
	r.ex.UserMessageID = user.ID
	r.ex.AssistantMessageID = reply.ID

	o.deps.Registry.Append(sid, user, reply)
	o.deps.Registry.SetStreaming(sid, true)
	o.publish(notify.KindMessages, sid, "")
	o.publish(notify.KindStreaming, sid, "")

	r.ex.State = StateStreaming
	r.log.Debug().Str("state", string(r.ex.State)).Str("target_role", r.ex.TargetRole).Msg("exchange opened")

	// CANCELLATION: ctx is handed to the transport so it can drop the connection
	es, err := o.deps.Streamer.OpenStream(ctx, transport.StreamRequest{
		Query:      text,
		SessionID:  sid,
		TargetRole: r.ex.TargetRole,
	})
	if err != nil {
		if ctx.Err() != nil {
			return o.abort(r, ctx.Err())
		}
		return o.fail(r, err)
	}
	defer es.Close()

	for {
		// CANCELLATION: checked before consuming each event
		if ctx.Err() != nil {
			return o.abort(r, ctx.Err())
		}

		ev, err := es.Next(ctx)
		if err == io.EOF {
			return o.settle(r)
		}
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(r, ctx.Err())
			}
			return o.fail(r, err)
		}

		r.ex.Events++
		switch ev.Type {
		case transport.EventToken:
			if !o.appendReply(r, ev.Content) {
				return o.lost(r)
			}
			o.publish(notify.KindContent, sid, "")

		case transport.EventMeta:
			role := model.Role(ev.Role)
			if !role.IsAgent() {
				role = model.RoleAssistant
			}
			if !o.deps.Registry.Mutate(sid, r.ex.AssistantMessageID, func(m *model.Message) { m.Role = role }) {
				return o.lost(r)
			}
			o.publish(notify.KindMessages, sid, "")

		case transport.EventArtifactOpen:
			if !o.openArtifact(r, ev) {
				return o.lost(r)
			}

		case transport.EventArtifactChunk:
			if id := o.deps.Registry.OpenArtifact(sid); id != "" {
				if o.deps.Artifacts.Append(id, ev.Content) {
					o.publish(notify.KindContent, sid, id)
				}
			}

		case transport.EventArtifactClose:
			if id := o.deps.Registry.ClearOpenArtifact(sid); id != "" {
				o.deps.Artifacts.Close(id)
				o.publish(notify.KindArtifacts, sid, id)
			}

		case transport.EventError:
			msg := ev.Message
			if msg == "" {
				msg = "stream reported an error"
			}
			return o.fail(r, errors.New(msg))

		case transport.EventDone:
			return o.settle(r)
		}
	}
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

func (o *Orchestrator) appendReply(r *run, text string) bool {
	return o.deps.Registry.Mutate(r.ex.SessionID, r.ex.AssistantMessageID, func(m *model.Message) {
		m.Content += text
	})
}

// openArtifact registers a new empty artifact, references it from the reply
// and marks it as the session's streaming artifact. An artifact left open
// by the same exchange is closed first.
func (o *Orchestrator) openArtifact(r *run, ev transport.Event) bool {
	sid := r.ex.SessionID
	if prev := o.deps.Registry.ClearOpenArtifact(sid); prev != "" {
		o.deps.Artifacts.Close(prev)
	}

	title := strings.TrimSpace(ev.Title)
	if title == "" {
		title = "untitled"
	}
	art := model.Artifact{
		ID:        o.newID(),
		Type:      model.ParseArtifactType(ev.ArtifactType),
		Title:     title,
		Language:  ev.Language,
		AgentID:   r.ex.AgentID,
		SessionID: sid,
		CreatedAt: o.now(),
	}
	o.deps.Artifacts.Add(art)
	o.deps.Registry.SetOpenArtifact(sid, art.ID)
	r.ex.Artifacts = append(r.ex.Artifacts, art.ID)
	o.publish(notify.KindArtifacts, sid, art.ID)

	if !o.appendReply(r, art.Placeholder()) {
		return false
	}
	o.publish(notify.KindContent, sid, "")
	return true
}

// =============================================================================
// OUTCOMES
// =============================================================================

// settle ends a completed exchange.
func (o *Orchestrator) settle(r *run) (Exchange, error) {
	sid := r.ex.SessionID
	if id := o.deps.Registry.ClearOpenArtifact(sid); id != "" {
		o.deps.Artifacts.Close(id)
	}
	if r.opts.PromoteFencedBlocks && len(r.ex.Artifacts) == 0 {
		o.promote(r)
	}

	o.deps.Registry.SetStreaming(sid, false)
	r.ex.State = StateClosing
	o.publish(notify.KindStreaming, sid, "")
	r.log.Debug().Str("state", string(r.ex.State)).Int("events", r.ex.Events).Int("artifacts", len(r.ex.Artifacts)).Msg("exchange settled")

	if o.deps.OnSettled != nil {
		o.deps.OnSettled(r.ex)
	}
	return r.ex, nil
}

// promote registers fenced blocks and tables of the final reply as closed
// artifacts and appends their references to the reply.
func (o *Orchestrator) promote(r *run) {
	msg, ok := o.deps.Registry.Message(r.ex.SessionID, r.ex.AssistantMessageID)
	if !ok {
		return
	}
	candidates := detect.Detect(msg.Content)
	if len(candidates) == 0 {
		return
	}

	var refs strings.Builder
	for _, c := range candidates {
		art := model.Artifact{
			ID:        o.newID(),
			Type:      c.Type,
			Title:     c.Title,
			Content:   c.Content,
			Language:  c.Language,
			AgentID:   r.ex.AgentID,
			SessionID: r.ex.SessionID,
			CreatedAt: o.now(),
		}
		o.deps.Artifacts.Add(art)
		o.deps.Artifacts.Close(art.ID)
		r.ex.Artifacts = append(r.ex.Artifacts, art.ID)
		refs.WriteString(art.Placeholder())
		o.publish(notify.KindArtifacts, r.ex.SessionID, art.ID)
	}
	o.appendReply(r, refs.String())
	r.log.Debug().Int("promoted", len(candidates)).Msg("promoted inline blocks to artifacts")
}

// fail appends the error notice, clears the session's streaming state and
// records the failure.
func (o *Orchestrator) fail(r *run, cause error) (Exchange, error) {
	sid := r.ex.SessionID
	o.appendReply(r, r.opts.ErrorNotice)
	o.deps.Registry.SetStreaming(sid, false)
	if id := o.deps.Registry.ClearOpenArtifact(sid); id != "" {
		o.deps.Artifacts.Close(id)
	}

	e := errs.Network(errs.CategorySendMessage, MsgStreamFailed, cause)
	o.deps.Errors.Set(e)
	r.ex.State = StateErrored
	r.ex.Err = e

	o.publish(notify.KindMessages, sid, "")
	o.publish(notify.KindStreaming, sid, "")
	o.publish(notify.KindErrors, sid, "")
	r.log.Debug().Err(cause).Str("state", string(r.ex.State)).Msg("exchange failed")
	return r.ex, e
}

// abort stops a cancelled exchange without touching the stores.
func (o *Orchestrator) abort(r *run, cause error) (Exchange, error) {
	r.ex.State = StateAborted
	r.ex.Err = cause
	r.log.Debug().Str("state", string(r.ex.State)).Int("events", r.ex.Events).Msg("exchange cancelled")
	return r.ex, cause
}

// lost ends an exchange whose reply message no longer exists, which happens
// when the conversation is reset while it streams.
func (o *Orchestrator) lost(r *run) (Exchange, error) {
	sid := r.ex.SessionID
	o.deps.Registry.SetStreaming(sid, false)
	if id := o.deps.Registry.ClearOpenArtifact(sid); id != "" {
		o.deps.Artifacts.Close(id)
	}

	e := errs.Session(errs.CategoryCoreEngine, msgPlaceholderLost, nil)
	o.deps.Errors.Set(e)
	r.ex.State = StateAborted
	r.ex.Err = e

	o.publish(notify.KindErrors, sid, "")
	r.log.Warn().Str("state", string(r.ex.State)).Msg("reply vanished mid-exchange")
	return r.ex, e
}
