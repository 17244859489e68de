// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sphere-client/internal/model"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	arc, err := Open(filepath.Join(t.TempDir(), "sub", "archive.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() })
	return arc
}

func sampleSnapshot() Snapshot {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return Snapshot{
		Session: model.Session{
			ID:        "s1",
			Title:     "Chat con Nexus (CTO)",
			CreatedAt: at,
			Metadata:  &model.Metadata{DisplayName: "Nexus", Color: "#00C1B3"},
		},
		AgentID: "cto-1",
		Messages: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "Genera código", Timestamp: at},
			{ID: "m2", Role: model.RoleCTO, Content: "Aquí: [ARTIFACT:a1:Script]", Timestamp: at.Add(time.Second), AgentID: "cto-1"},
		},
		Artifacts: []model.Artifact{
			{ID: "a1", Type: model.ArtifactDataTable, Title: "Script", Content: "a,b\n1,2", AgentID: "cto-1", SessionID: "s1", CreatedAt: at},
		},
	}
}

func TestArchiveSaveLoad(t *testing.T) {
	arc := openTestArchive(t)
	ctx := context.Background()
	snap := sampleSnapshot()

	require.NoError(t, arc.Save(ctx, snap))

	got, err := arc.Load(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", got.Session.ID)
	assert.Equal(t, snap.Session.Title, got.Session.Title)
	assert.True(t, snap.Session.CreatedAt.Equal(got.Session.CreatedAt))
	require.NotNil(t, got.Session.Metadata)
	assert.Equal(t, "Nexus", got.Session.Metadata.DisplayName)
	assert.Equal(t, "cto-1", got.AgentID)
	assert.False(t, got.SavedAt.IsZero())

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m1", got.Messages[0].ID)
	assert.Equal(t, model.RoleCTO, got.Messages[1].Role)
	assert.Equal(t, "cto-1", got.Messages[1].AgentID)
	assert.True(t, snap.Messages[1].Timestamp.Equal(got.Messages[1].Timestamp))

	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, model.ArtifactDataTable, got.Artifacts[0].Type)
	assert.Equal(t, "a,b\n1,2", got.Artifacts[0].Content)
	assert.Equal(t, "s1", got.Artifacts[0].SessionID)
}

func TestArchiveSaveReplaces(t *testing.T) {
	arc := openTestArchive(t)
	ctx := context.Background()
	snap := sampleSnapshot()
	require.NoError(t, arc.Save(ctx, snap))

	snap.Messages = snap.Messages[:1]
	snap.Artifacts = nil
	snap.Session.Metadata = nil
	require.NoError(t, arc.Save(ctx, snap))

	got, err := arc.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)
	assert.Empty(t, got.Artifacts)
	assert.Nil(t, got.Session.Metadata)
}

func TestArchiveLoadMissing(t *testing.T) {
	arc := openTestArchive(t)
	_, err := arc.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiveRejectsEmptyID(t *testing.T) {
	arc := openTestArchive(t)
	assert.Error(t, arc.Save(context.Background(), Snapshot{}))
}

func TestArchiveSessions(t *testing.T) {
	arc := openTestArchive(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	arc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := sampleSnapshot()
	require.NoError(t, arc.Save(ctx, first))

	second := Snapshot{Session: model.Session{ID: "s2", Title: "Nueva Sesión"}}
	require.NoError(t, arc.Save(ctx, second))

	metas, err := arc.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	assert.Equal(t, "s2", metas[0].ID)
	assert.Equal(t, 0, metas[0].MessageCount)
	assert.Equal(t, "", metas[0].Preview)

	assert.Equal(t, "s1", metas[1].ID)
	assert.Equal(t, 2, metas[1].MessageCount)
	assert.Equal(t, "Genera código", metas[1].Preview)
	assert.Equal(t, "cto-1", metas[1].AgentID)
}

func TestArchiveDeleteCascades(t *testing.T) {
	arc := openTestArchive(t)
	ctx := context.Background()
	require.NoError(t, arc.Save(ctx, sampleSnapshot()))

	require.NoError(t, arc.Delete(ctx, "s1"))
	_, err := arc.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, arc.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, arc.Delete(ctx, "s1"), ErrNotFound)
}

func TestArchiveReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	arc, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, arc.Save(context.Background(), sampleSnapshot()))
	require.NoError(t, arc.Close())

	arc, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer arc.Close()
	got, err := arc.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}
