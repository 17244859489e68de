// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sphere-client/internal/model"
)

func msg(id string, role model.Role, agentID string) model.Message {
	return model.Message{ID: id, Role: role, Content: id, AgentID: agentID}
}

func msgIDs(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry("group-chat")
	assert.Equal(t, "group-chat", r.Selected())
	assert.Equal(t, "", r.Current())

	r.SetSessions([]model.Session{{ID: "old"}, {ID: "s1", Title: "stale"}})
	r.Register(model.Session{ID: "s1", Title: "Chat con Nexus (CTO)"}, "cto-1", msg("greet", model.RoleCTO, "cto-1"))

	assert.Equal(t, "s1", r.Current())
	assert.Equal(t, "cto-1", r.Selected())
	sid, ok := r.AgentSession("cto-1")
	require.True(t, ok)
	assert.Equal(t, "s1", sid)

	sessions := r.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "Chat con Nexus (CTO)", sessions[0].Title)
	assert.Equal(t, "old", sessions[1].ID)

	assert.True(t, r.Cached("s1"))
	assert.Equal(t, []string{"greet"}, msgIDs(r.Messages("s1")))
}

func TestRegistry_MutateByID(t *testing.T) {
	r := NewRegistry("group-chat")
	r.Append("s1", msg("u1", model.RoleUser, ""), msg("bot", model.RoleAssistant, "cto-1"))

	ok := r.Mutate("s1", "bot", func(m *model.Message) {
		m.Content += " more"
		m.ID = "tampered"
	})
	require.True(t, ok)

	got, ok := r.Message("s1", "bot")
	require.True(t, ok, "identifier cannot be changed by a mutation")
	assert.Equal(t, "bot more", got.Content)

	assert.False(t, r.Mutate("s1", "missing", func(*model.Message) {}))
	assert.False(t, r.Mutate("nope", "bot", func(*model.Message) {}))
}

func TestRegistry_MessagesAreCopies(t *testing.T) {
	r := NewRegistry("group-chat")
	r.Append("s1", msg("a", model.RoleUser, ""))
	msgs := r.Messages("s1")
	msgs[0].Content = "changed"
	assert.Equal(t, "a", r.Messages("s1")[0].Content)
}

func TestRegistry_MergeHistoryIsAdditive(t *testing.T) {
	r := NewRegistry("group-chat")
	// An exchange started while the history fetch was in flight.
	r.Append("s1", msg("live-user", model.RoleUser, ""), msg("live-bot", model.RoleCTO, "cto-1"))

	history := []model.Message{
		msg("history-s1-0", model.RoleUser, ""),
		msg("history-s1-1", model.RoleCTO, "cto-1"),
	}
	added := r.MergeHistory("s1", history)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"history-s1-0", "history-s1-1", "live-user", "live-bot"}, msgIDs(r.Messages("s1")))

	// Merging the same history again changes nothing.
	assert.Equal(t, 0, r.MergeHistory("s1", history))
	assert.Len(t, r.Messages("s1"), 4)
}

func TestRegistry_DominantAgent(t *testing.T) {
	tests := []struct {
		name string
		msgs []model.Message
		want string
	}{
		{"empty", nil, "group-chat"},
		{"only user", []model.Message{msg("1", model.RoleUser, "")}, "group-chat"},
		{"system owner skipped", []model.Message{
			msg("1", model.RoleAssistant, "system"),
			msg("2", model.RoleCMO, "cmo-1"),
			msg("3", model.RoleCFO, "cfo-1"),
		}, "cmo-1"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry("group-chat")
			sid := fmt.Sprintf("s%d", i)
			r.Append(sid, tt.msgs...)
			assert.Equal(t, tt.want, r.DominantAgent(sid))
		})
	}
}

func TestRegistry_StreamingStateIsPerSession(t *testing.T) {
	r := NewRegistry("group-chat")

	r.SetStreaming("a", true)
	r.SetStreaming("b", true)
	r.SetOpenArtifact("a", "art-a")
	r.SetOpenArtifact("b", "art-b")

	assert.Equal(t, []string{"a", "b"}, r.Streaming())
	assert.Equal(t, "art-a", r.OpenArtifact("a"))
	assert.Equal(t, "art-b", r.OpenArtifact("b"))

	assert.Equal(t, "art-a", r.ClearOpenArtifact("a"))
	r.SetStreaming("a", false)

	assert.Equal(t, "", r.OpenArtifact("a"))
	assert.Equal(t, "art-b", r.OpenArtifact("b"))
	assert.False(t, r.IsStreaming("a"))
	assert.True(t, r.IsStreaming("b"))
	assert.Equal(t, "", r.ClearOpenArtifact("unknown"))
}

func TestRegistry_SnapshotAndReset(t *testing.T) {
	r := NewRegistry("group-chat")
	r.Register(model.Session{ID: "s1"}, "ceo-1", msg("g", model.RoleCEO, "ceo-1"))
	r.SetStreaming("s1", true)
	r.SetOpenArtifact("s1", "art")

	snap := r.Snapshot()
	assert.Equal(t, "s1", snap.Current)
	assert.Equal(t, []string{"s1"}, snap.Streaming)
	assert.Equal(t, "art", snap.OpenArtifacts["s1"])
	assert.Equal(t, "s1", snap.SessionsByAgent["ceo-1"])
	assert.Len(t, snap.Messages["s1"], 1)

	r.Reset()
	assert.Equal(t, "", r.Current())
	assert.False(t, r.Cached("s1"))
	assert.Empty(t, r.Streaming())
	assert.Len(t, r.Sessions(), 1, "session list survives reset")
	assert.Equal(t, "ceo-1", r.Selected())
}

func TestRegistry_ConcurrentAppends(t *testing.T) {
	r := NewRegistry("group-chat")
	var wg sync.WaitGroup
	for _, sid := range []string{"a", "b"} {
		wg.Add(1)
		go func(sid string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Append(sid, msg(fmt.Sprintf("%s-%d", sid, i), model.RoleUser, ""))
			}
		}(sid)
	}
	wg.Wait()

	for _, sid := range []string{"a", "b"} {
		msgs := r.Messages(sid)
		require.Len(t, msgs, 50)
		for i, m := range msgs {
			assert.Equal(t, fmt.Sprintf("%s-%d", sid, i), m.ID)
		}
	}
}
