// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sphere-client/internal/agent"
	"github.com/jeranaias/sphere-client/internal/artifact"
	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/notify"
	"github.com/jeranaias/sphere-client/internal/session"
	"github.com/jeranaias/sphere-client/internal/transport"
)

const notice = "\n\n⚠️ **Error de conexión.**"

type recorder struct {
	mu      sync.Mutex
	changes []notify.Change
}

func (r *recorder) Publish(ch notify.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recorder) kinds() map[notify.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[notify.Kind]int)
	for _, c := range r.changes {
		out[c.Kind]++
	}
	return out
}

type harness struct {
	orch      *Orchestrator
	tr        *transport.Scripted
	reg       *session.Registry
	arts      *artifact.Store
	dir       *agent.Directory
	rec       *errs.Record
	bus       *recorder
	ensureErr error

	mu      sync.Mutex
	settled []Exchange
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		tr:   transport.NewScripted(),
		reg:  session.NewRegistry(agent.GroupID),
		arts: artifact.NewStore(),
		rec:  errs.NewRecord(),
		bus:  &recorder{},
	}
	h.dir = agent.NewDirectory(h.tr, h.rec, agent.Options{})
	if opts.ErrorNotice == "" {
		opts.ErrorNotice = notice
	}
	opts.Logger = zerolog.Nop()
	h.orch = New(Deps{
		Registry:      h.reg,
		Artifacts:     h.arts,
		Agents:        h.dir,
		Errors:        h.rec,
		Streamer:      h.tr,
		EnsureSession: h.ensure,
		Notify:        h.bus,
		OnSettled:     h.onSettled,
	}, opts)
	return h
}

func (h *harness) onSettled(ex Exchange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settled = append(h.settled, ex)
}

func (h *harness) ensure(ctx context.Context, agentID string) (string, error) {
	if h.ensureErr != nil {
		return "", h.ensureErr
	}
	sess, err := h.tr.CreateSession(ctx, "Nueva Sesión")
	if err != nil {
		return "", err
	}
	h.reg.Register(sess, agentID, h.dir.Greeting(agentID))
	return sess.ID, nil
}

func (h *harness) reply(t *testing.T, ex Exchange) model.Message {
	t.Helper()
	msg, ok := h.reg.Message(ex.SessionID, ex.AssistantMessageID)
	require.True(t, ok, "reply message missing")
	return msg
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestSendCreatesSessionAndStreamsArtifact(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{
		transport.Token("Pensando..."),
		transport.OpenArtifact("Dynamic Art", "code", "javascript"),
		transport.Chunk("const a = 1;"),
		transport.Chunk(" console.log(a);"),
		transport.CloseArtifact(),
		transport.Done(),
	}})

	ex, err := h.orch.Send(context.Background(), "Genera código")
	require.NoError(t, err)

	assert.Equal(t, StateClosing, ex.State)
	assert.Equal(t, "session-1", ex.SessionID)
	assert.Equal(t, "session-1", h.reg.Current())
	assert.Equal(t, 6, ex.Events)

	msgs := h.reg.Messages(ex.SessionID)
	require.Len(t, msgs, 3) // greeting, user, reply
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "Genera código", msgs[1].Content)

	require.Len(t, ex.Artifacts, 1)
	art, ok := h.arts.Get(ex.Artifacts[0])
	require.True(t, ok)
	assert.Equal(t, "Dynamic Art", art.Title)
	assert.Equal(t, "const a = 1; console.log(a);", art.Content)
	assert.Equal(t, model.ArtifactCode, art.Type)
	assert.Equal(t, "javascript", art.Language)
	assert.Equal(t, ex.SessionID, art.SessionID)
	assert.False(t, h.arts.IsOpen(art.ID))

	assert.Equal(t, art.ID, h.arts.Active())
	assert.True(t, h.arts.PanelOpen())

	reply := h.reply(t, ex)
	assert.Equal(t, "Pensando..."+art.Placeholder(), reply.Content)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, agent.GroupID, reply.AgentID)

	assert.False(t, h.reg.IsStreaming(ex.SessionID))
	assert.Empty(t, h.reg.OpenArtifact(ex.SessionID))
	_, failed := h.rec.Get(errs.CategorySendMessage)
	assert.False(t, failed)

	require.Len(t, h.settled, 1)
	assert.Equal(t, ex.ID, h.settled[0].ID)

	// group chat is routed by the backend
	reqs := h.tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "", reqs[0].TargetRole)
	assert.Equal(t, "Genera código", reqs[0].Query)
}

func TestSendMidStreamTransportError(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{
		Events: []transport.Event{
			transport.Token("Respuesta parcial"),
			transport.OpenArtifact("Tabla", "csv", ""),
			transport.Chunk("a,b\n"),
		},
		Err: errors.New("connection reset"),
	})

	ex, err := h.orch.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNetwork))
	assert.Equal(t, StateErrored, ex.State)

	reply := h.reply(t, ex)
	assert.True(t, strings.HasPrefix(reply.Content, "Respuesta parcial"))
	assert.True(t, strings.HasSuffix(reply.Content, notice))

	assert.False(t, h.reg.IsStreaming(ex.SessionID))
	assert.Empty(t, h.reg.OpenArtifact(ex.SessionID))
	require.Len(t, ex.Artifacts, 1)
	assert.False(t, h.arts.IsOpen(ex.Artifacts[0]))

	msg, failed := h.rec.Get(errs.CategorySendMessage)
	require.True(t, failed)
	assert.Equal(t, MsgStreamFailed, msg)
	assert.Empty(t, h.settled)
	assert.Positive(t, h.bus.kinds()[notify.KindErrors])
}

func TestSendErrorEvent(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{
		transport.Failure("backend exploded"),
		transport.Token("never applied"),
	}})

	ex, err := h.orch.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Equal(t, notice, h.reply(t, ex).Content)
}

func TestSendOpenStreamFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.FailOn(transport.OpOpenStream, errors.New("dial tcp: refused"))

	ex, err := h.orch.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.Equal(t, StateErrored, ex.State)

	msgs := h.reg.Messages(ex.SessionID)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hola", msgs[1].Content)
	assert.Equal(t, notice, msgs[2].Content)
}

func TestSendClearsPreviousSendError(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{transport.Failure("x")}})
	_, err := h.orch.Send(context.Background(), "uno")
	require.Error(t, err)

	_, err = h.orch.Send(context.Background(), "dos")
	require.NoError(t, err)
	_, failed := h.rec.Get(errs.CategorySendMessage)
	assert.False(t, failed)
}

func TestSendEnsureSessionFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.ensureErr = errs.Session(errs.CategoryCreateSession, "Error al crear la sesión", errors.New("503"))

	ex, err := h.orch.Send(context.Background(), "hola")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindSession))
	assert.Equal(t, StateErrored, ex.State)
	assert.Empty(t, ex.SessionID)
	assert.Zero(t, h.tr.Calls(transport.OpOpenStream))
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

func TestMetaOverwritesReplyRole(t *testing.T) {
	tests := []struct {
		name string
		role string
		want model.Role
	}{
		{"agent role kept", "CFO", model.RoleCFO},
		{"system becomes assistant", "system", model.RoleAssistant},
		{"empty becomes assistant", "", model.RoleAssistant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.tr.QueueStream("", transport.Script{Events: []transport.Event{transport.Meta(tt.role), transport.Done()}})
			ex, err := h.orch.Send(context.Background(), "hola")
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.reply(t, ex).Role)
		})
	}
}

func TestChunksOutsideOpenArtifactAreDropped(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{
		transport.Chunk("orphan"),
		transport.OpenArtifact("Doc", "markdown", ""),
		transport.Chunk("# Título"),
		transport.CloseArtifact(),
		transport.Chunk(" late"),
		transport.CloseArtifact(),
	}})

	ex, err := h.orch.Send(context.Background(), "hola")
	require.NoError(t, err)
	require.Len(t, ex.Artifacts, 1)
	art, _ := h.arts.Get(ex.Artifacts[0])
	assert.Equal(t, "# Título", art.Content)
	assert.Equal(t, model.ArtifactMarkdown, art.Type)
}

func TestOpenWhileOpenClosesPrevious(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{
		transport.OpenArtifact("A", "code", "go"),
		transport.Chunk("a"),
		transport.OpenArtifact("B", "mermaid", ""),
		transport.Chunk("b"),
		transport.Done(),
	}})

	ex, err := h.orch.Send(context.Background(), "hola")
	require.NoError(t, err)
	require.Len(t, ex.Artifacts, 2)
	a, _ := h.arts.Get(ex.Artifacts[0])
	b, _ := h.arts.Get(ex.Artifacts[1])
	assert.Equal(t, "a", a.Content)
	assert.Equal(t, "b", b.Content)
	assert.False(t, h.arts.IsOpen(a.ID))
	assert.False(t, h.arts.IsOpen(b.ID), "done closes the artifact left open")
	assert.Equal(t, b.ID, h.arts.Active())
}

func TestEmptyTitleDefaults(t *testing.T) {
	h := newHarness(t, Options{})
	h.tr.QueueStream("", transport.Script{Events: []transport.Event{transport.OpenArtifact("", "svg", "")}})
	ex, err := h.orch.Send(context.Background(), "hola")
	require.NoError(t, err)
	art, _ := h.arts.Get(ex.Artifacts[0])
	assert.Equal(t, "untitled", art.Title)
	assert.Equal(t, model.ArtifactSVG, art.Type)
}

func TestTargetRoleFollowsSelectedAgent(t *testing.T) {
	h := newHarness(t, Options{})
	h.reg.Select("cto-1")

	ex, err := h.orch.Send(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "CTO", ex.TargetRole)
	assert.Equal(t, "cto-1", ex.AgentID)
	assert.Equal(t, model.RoleCTO, h.reply(t, ex).Role)
	assert.Equal(t, "CTO", h.tr.Requests()[0].TargetRole)
}

func TestSendClosesStaleMarker(t *testing.T) {
	h := newHarness(t, Options{})
	h.reg.SetCurrent("s1")
	h.arts.Add(model.Artifact{ID: "old", SessionID: "s1"})
	h.reg.SetOpenArtifact("s1", "old")

	h.tr.QueueStream("", transport.Script{Events: []transport.Event{transport.Chunk("x")}})
	_, err := h.orch.Send(context.Background(), "hola")
	require.NoError(t, err)

	old, _ := h.arts.Get("old")
	assert.Empty(t, old.Content)
	assert.False(t, h.arts.IsOpen("old"))
}

// =============================================================================
// PROMOTION
// =============================================================================

func TestPromoteFencedBlocks(t *testing.T) {
	events := []transport.Event{
		transport.Token("Aquí:\n\n```python\nprint(1)\n```\n"),
		transport.Done(),
	}

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.tr.QueueStream("", transport.Script{Events: events})
		ex, err := h.orch.Send(context.Background(), "hola")
		require.NoError(t, err)
		assert.Empty(t, ex.Artifacts)
		assert.Zero(t, h.arts.Len())
	})

	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t, Options{PromoteFencedBlocks: true})
		h.tr.QueueStream("", transport.Script{Events: events})
		ex, err := h.orch.Send(context.Background(), "hola")
		require.NoError(t, err)
		require.Len(t, ex.Artifacts, 1)

		art, _ := h.arts.Get(ex.Artifacts[0])
		assert.Equal(t, "Code PYTHON", art.Title)
		assert.Equal(t, "print(1)", art.Content)
		assert.False(t, h.arts.IsOpen(art.ID))
		assert.True(t, strings.HasSuffix(h.reply(t, ex).Content, art.Placeholder()))
	})

	t.Run("skipped when artifacts streamed", func(t *testing.T) {
		h := newHarness(t, Options{PromoteFencedBlocks: true})
		h.tr.QueueStream("", transport.Script{Events: append([]transport.Event{
			transport.OpenArtifact("S", "code", ""), transport.CloseArtifact(),
		}, events...)})
		ex, err := h.orch.Send(context.Background(), "hola")
		require.NoError(t, err)
		assert.Len(t, ex.Artifacts, 1)
	})
}

// =============================================================================
// CANCELLATION AND CONCURRENCY
// =============================================================================

type result struct {
	ex  Exchange
	err error
}

func TestCancelStopsWithoutMutation(t *testing.T) {
	h := newHarness(t, Options{})
	cs := transport.NewChanStream()
	h.tr.QueueStream("", transport.Script{Stream: cs})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan result, 1)
	go func() {
		ex, err := h.orch.Send(ctx, "hola")
		done <- result{ex, err}
	}()

	require.True(t, cs.Send(transport.Token("parcial")))
	require.True(t, cs.Send(transport.OpenArtifact("A", "code", "")))
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after cancel")
	}

	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, StateAborted, res.ex.State)

	reply := h.reply(t, res.ex)
	assert.True(t, strings.HasPrefix(reply.Content, "parcial"))
	assert.NotContains(t, reply.Content, "Error de conexión")
	_, failed := h.rec.Get(errs.CategorySendMessage)
	assert.False(t, failed)
	assert.True(t, h.reg.IsStreaming(res.ex.SessionID), "cancelled exchange keeps its partial state")
	assert.Empty(t, h.settled)

	select {
	case <-cs.Done():
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestConcurrentSessionsDoNotCrossContaminate(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		h.reg.Register(model.Session{ID: id, Title: "Chat"}, agent.GroupID, h.dir.Greeting(agent.GroupID))
	}
	cs1, cs2 := transport.NewChanStream(), transport.NewChanStream()
	h.tr.QueueStream("s1", transport.Script{Stream: cs1})
	h.tr.QueueStream("s2", transport.Script{Stream: cs2})

	out1, out2 := make(chan result, 1), make(chan result, 1)
	go func() { ex, err := h.orch.SendTo(ctx, "s1", "uno"); out1 <- result{ex, err} }()
	go func() { ex, err := h.orch.SendTo(ctx, "s2", "dos"); out2 <- result{ex, err} }()

	steps := []struct {
		cs *transport.ChanStream
		ev transport.Event
	}{
		{cs1, transport.OpenArtifact("Mismo", "code", "go")},
		{cs2, transport.OpenArtifact("Mismo", "code", "go")},
		{cs1, transport.Chunk("A1")},
		{cs2, transport.Chunk("B1")},
		{cs2, transport.Chunk("B2")},
		{cs1, transport.Chunk("A2")},
		{cs1, transport.CloseArtifact()},
		{cs2, transport.Chunk("B3")},
		{cs2, transport.CloseArtifact()},
	}
	for _, s := range steps {
		require.True(t, s.cs.Send(s.ev))
	}
	cs1.End()
	cs2.End()

	r1, r2 := <-out1, <-out2
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	require.Len(t, r1.ex.Artifacts, 1)
	require.Len(t, r2.ex.Artifacts, 1)
	assert.NotEqual(t, r1.ex.Artifacts[0], r2.ex.Artifacts[0])

	a1, _ := h.arts.Get(r1.ex.Artifacts[0])
	a2, _ := h.arts.Get(r2.ex.Artifacts[0])
	assert.Equal(t, "A1A2", a1.Content)
	assert.Equal(t, "B1B2B3", a2.Content)
	assert.Equal(t, "s1", a1.SessionID)
	assert.Equal(t, "s2", a2.SessionID)
	assert.Len(t, h.arts.ForSession("s1"), 1)
	assert.Len(t, h.arts.ForSession("s2"), 1)
	assert.Empty(t, h.reg.Streaming())
}

func TestResetMidStreamRecordsCoreEngine(t *testing.T) {
	h := newHarness(t, Options{})
	cs := transport.NewChanStream()
	h.tr.QueueStream("", transport.Script{Stream: cs})

	done := make(chan result, 1)
	go func() {
		ex, err := h.orch.Send(context.Background(), "hola")
		done <- result{ex, err}
	}()

	require.True(t, cs.Send(transport.Token("a")))
	// The next Send returns only once the first token was applied.
	require.True(t, cs.Send(transport.Token("b")))
	h.reg.Reset()
	cs.Send(transport.Token("c"))

	res := <-done
	require.Error(t, res.err)
	assert.Equal(t, StateAborted, res.ex.State)
	assert.Equal(t, errs.KindSession, errs.KindOf(res.err))
	_, recorded := h.rec.Get(errs.CategoryCoreEngine)
	assert.True(t, recorded)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateStreaming.Terminal())
	assert.True(t, StateClosing.Terminal())
	assert.True(t, StateErrored.Terminal())
	assert.True(t, StateAborted.Terminal())
}
