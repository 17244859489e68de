// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sphere-client/internal/chat"
	"github.com/jeranaias/sphere-client/internal/config"
	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/stream"
	"github.com/jeranaias/sphere-client/internal/transport"
)

func replayFixture(t *testing.T, path string) (*Report, *chat.Store) {
	t.Helper()
	f, err := LoadFixture(path)
	require.NoError(t, err)
	tr, err := f.Transport(zerolog.Nop())
	require.NoError(t, err)

	store := chat.New(tr, chat.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { store.Close() })

	report, err := Replay(context.Background(), store, f, zerolog.Nop())
	require.NoError(t, err)
	return report, store
}

func TestReplayBasicFixture(t *testing.T) {
	report, store := replayFixture(t, filepath.Join("testdata", "basic.yaml"))
	require.Len(t, report.Exchanges, 3)

	first := report.Exchanges[0]
	assert.Equal(t, stream.StateClosing, first.State)
	assert.Equal(t, "ceo-1", first.AgentID)
	require.Len(t, first.Artifacts, 1)
	art, ok := store.Artifact(first.Artifacts[0])
	require.True(t, ok)
	assert.Equal(t, "const a = 1; console.log(a);", art.Content)

	second := report.Exchanges[1]
	assert.Equal(t, "s1", second.SessionID)
	assert.Equal(t, "cto-1", second.AgentID)
	assert.Equal(t, stream.StateClosing, second.State)
	require.Len(t, second.Artifacts, 1)
	deploy, _ := store.Artifact(second.Artifacts[0])
	assert.Equal(t, "replicas: 3", deploy.Content)

	third := report.Exchanges[2]
	assert.Equal(t, stream.StateErrored, third.State)
	assert.Contains(t, third.Error, "connection reset")

	// the hydrated artifact and the one streamed into s1
	assert.Len(t, store.SessionArtifacts("s1"), 2)
	assert.Len(t, report.State.Sessions, 3)
	assert.Len(t, store.Agents(), 6)
	assert.Contains(t, report.State.Errors, errs.CategorySendMessage)
	assert.Empty(t, report.State.Streaming)
}

func TestLoadFixtureRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing text", "exchanges:\n  - session: s1\n", "text is required"},
		{"agent and session", "exchanges:\n  - {session: s1, agent: cto-1, text: hola}\n", "exclusive"},
		{"unknown event", "exchanges:\n  - text: hola\n    events: [{type: bogus}]\n", "unknown type"},
		{"unknown field", "exchangez: []\n", "exchangez"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadFixture(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFixtureMissingTranscript(t *testing.T) {
	f := &Fixture{dir: t.TempDir(), Exchanges: []Exchange{{Text: "hola", SSE: "nope.sse"}}}
	_, err := f.Transport(zerolog.Nop())
	require.Error(t, err)
}

func TestReadFeedAppendsAfterInlineEvents(t *testing.T) {
	body := "data: {\"type\":\"token\",\"content\":\"b\"}\n\ndata: [DONE]\n\n"
	feed := transport.NewFeed(strings.NewReader(body), zerolog.Nop())

	events, err := readFeed(feed, []transport.Event{transport.Token("a")})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Content)
	assert.Equal(t, "b", events[1].Content)
}

func TestParseTranscript(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := parseTranscript(context.Background(), filepath.Join("testdata", "streams", "s1.sse"), &stdout, &stderr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `"type":"meta"`)
	assert.Contains(t, lines[2], `"artifact_open"`)
	assert.Contains(t, stderr.String(), "5 events, 1 skipped")
}

func TestRunReplayWritesReportAndExports(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Log.Level = "error"
	require.NoError(t, cfg.Save(cfgPath))

	out := t.TempDir()
	opts := &runOptions{format: "yaml", exportFmt: "md", outDir: out, configPath: cfgPath}

	var stdout, stderr bytes.Buffer
	require.NoError(t, runReplay(context.Background(), filepath.Join("testdata", "basic.yaml"), opts, &stdout, &stderr))

	var report struct {
		Exchanges []Outcome `yaml:"exchanges"`
	}
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &report))
	assert.Len(t, report.Exchanges, 3)

	files, err := filepath.Glob(filepath.Join(out, "*.md"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestRunReplayRejectsUnknownFormat(t *testing.T) {
	opts := &runOptions{format: "xml"}
	err := runReplay(context.Background(), "unused.yaml", opts, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "parse", "init-config"}, names)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sphere", "config.toml")
	var out bytes.Buffer
	require.NoError(t, initConfig(path, false, &out))
	assert.Equal(t, path+"\n", out.String())

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "Nueva Sesión", cfg.Store.DefaultSessionTitle)

	err = initConfig(path, false, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	require.NoError(t, initConfig(path, true, &out))
}
