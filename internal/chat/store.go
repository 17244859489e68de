// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/sphere-client/internal/agent"
	"github.com/jeranaias/sphere-client/internal/artifact"
	"github.com/jeranaias/sphere-client/internal/config"
	"github.com/jeranaias/sphere-client/internal/errs"
	"github.com/jeranaias/sphere-client/internal/hydrate"
	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/notify"
	"github.com/jeranaias/sphere-client/internal/session"
	"github.com/jeranaias/sphere-client/internal/storage"
	"github.com/jeranaias/sphere-client/internal/stream"
	"github.com/jeranaias/sphere-client/internal/transport"
)

// User-facing error copy.
const (
	msgCreateSessionFailed = "Error al crear la sesión"
	msgHistoryFailed       = "Fallo al recuperar el historial de la sesión"
	msgMalformedArtifact   = "Artefacto mal formado en el historial"
)

// =============================================================================
// CONSTRUCTION
// =============================================================================

// Options configures a Store.
type Options struct {
	// Config supplies copy, presentation overrides and tunables.
	// Default: config.Default()
	Config *config.Config

	// Archive, when set, receives session snapshots and serves as the
	// fallback when a history fetch fails. The store does not close it.
	Archive *storage.Archive

	// Bus receives change notifications. When nil the store creates and
	// owns one.
	Bus *notify.Bus

	Logger zerolog.Logger
}

// Store is the chat state container. Safe for concurrent use; exchanges in
// different sessions may run side by side.
type Store struct {
	tr  transport.Transport
	log zerolog.Logger

	mu  sync.RWMutex
	cfg *config.Config

	errors    *errs.Record
	agents    *agent.Directory
	sessions  *session.Registry
	artifacts *artifact.Store
	hydrator  *hydrate.Hydrator
	orch      *stream.Orchestrator
	bus       *notify.Bus
	archive   *storage.Archive

	// in-flight history loads keyed by session id
	loads singleflight.Group

	ownsBus     bool
	ownsArchive bool
}

// New creates a store over tr.
func New(tr transport.Transport, opts Options) *Store {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	cfg = cfg.Clone()

	s := &Store{
		tr:        tr,
		log:       opts.Logger.With().Str("component", "chat").Logger(),
		cfg:       cfg,
		errors:    errs.NewRecord(),
		sessions:  session.NewRegistry(agent.GroupID),
		artifacts: artifact.NewStore(),
		bus:       opts.Bus,
		archive:   opts.Archive,
	}

	if s.bus == nil {
		s.bus = notify.NewBus(notify.Options{
			ContentInterval: time.Duration(cfg.Store.NotifyIntervalMs) * time.Millisecond,
			Logger:          opts.Logger.With().Str("component", "notify").Logger(),
		})
		s.ownsBus = true
	}

	s.agents = agent.NewDirectory(tr, s.errors, agent.Options{
		FallbackGreeting: cfg.Store.FallbackGreetingFormat,
		DefaultColor:     cfg.CustomAgents.DefaultColor,
		ColorClass:       cfg.CustomAgents.ColorClass,
		Logger:           opts.Logger.With().Str("component", "agents").Logger(),
	})
	s.hydrator = hydrate.New(s.agents, opts.Logger.With().Str("component", "hydrate").Logger())
	s.orch = stream.New(stream.Deps{
		Registry:      s.sessions,
		Artifacts:     s.artifacts,
		Agents:        s.agents,
		Errors:        s.errors,
		Streamer:      tr,
		EnsureSession: s.CreateSession,
		Notify:        s.bus,
		OnSettled:     s.settled,
	}, stream.Options{
		ErrorNotice:         cfg.Store.ErrorNotice,
		PromoteFencedBlocks: cfg.Store.PromoteFencedBlocks,
		Logger:              opts.Logger,
	})

	s.applyOverrides(cfg)
	return s
}

// Open creates a store from cfg, opening the offline archive when enabled.
// The returned store owns the archive and closes it in Close.
func Open(tr transport.Transport, cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	var archive *storage.Archive
	if cfg.Archive.Enabled {
		var err error
		archive, err = storage.Open(cfg.Archive.Path, logger)
		if err != nil {
			return nil, errors.Wrap(err, "open archive")
		}
	}

	s := New(tr, Options{Config: cfg, Archive: archive, Logger: logger})
	s.ownsArchive = archive != nil
	return s, nil
}

// Close releases the resources the store owns.
func (s *Store) Close() error {
	var firstErr error
	if s.ownsBus {
		if err := s.bus.Close(); err != nil {
			firstErr = err
		}
	}
	if s.ownsArchive {
		if err := s.archive.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "close archive")
		}
	}
	return firstErr
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config returns a copy of the active configuration.
func (s *Store) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// ApplyConfig switches to cfg: agent overrides are applied to the
// directory and exchanges started afterwards use the new notice and
// promotion setting. Archive and logging settings take effect on restart.
func (s *Store) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	cfg = cfg.Clone()

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.orch.SetOptions(cfg.Store.ErrorNotice, cfg.Store.PromoteFencedBlocks)
	s.applyOverrides(cfg)
	s.log.Info().Int("agent_overrides", len(cfg.Agents)).Msg("configuration applied")
}

// WatchConfig reloads the configuration file at path whenever it changes
// and applies it. Blocks until ctx is done.
func (s *Store) WatchConfig(ctx context.Context, path string) error {
	return config.Watch(ctx, path, s.log, s.ApplyConfig)
}

func (s *Store) applyOverrides(cfg *config.Config) {
	if len(cfg.Agents) == 0 {
		return
	}
	for id, o := range cfg.Agents {
		if o.Name != "" && !s.agents.Rename(id, o.Name) {
			s.log.Warn().Str("agent_id", id).Msg("override for unknown agent")
		}
		if o.Color != "" {
			s.agents.Recolor(id, o.Color)
		}
		if o.Greeting != "" {
			s.agents.SetGreeting(id, o.Greeting)
		}
	}
	s.publish(notify.KindAgents, "", "")
}

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// Subscribe returns a feed of state changes, closed when ctx ends or the
// store is closed.
func (s *Store) Subscribe(ctx context.Context) (<-chan notify.Change, error) {
	return s.bus.Subscribe(ctx)
}

func (s *Store) publish(kind notify.Kind, sessionID, artifactID string) {
	s.bus.Publish(notify.Change{Kind: kind, SessionID: sessionID, ArtifactID: artifactID})
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// State is a point-in-time copy of the whole store.
type State struct {
	session.Snapshot `yaml:",inline"`

	Agents         []model.Agent            `json:"agents" yaml:"agents"`
	Artifacts      []model.Artifact         `json:"artifacts" yaml:"artifacts"`
	ActiveArtifact string                   `json:"active_artifact_id,omitempty" yaml:"active_artifact_id,omitempty"`
	PanelOpen      bool                     `json:"artifact_panel_open" yaml:"artifact_panel_open"`
	Errors         map[errs.Category]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	return State{
		Snapshot:       s.sessions.Snapshot(),
		Agents:         s.agents.Agents(),
		Artifacts:      s.artifacts.List(),
		ActiveArtifact: s.artifacts.Active(),
		PanelOpen:      s.artifacts.PanelOpen(),
		Errors:         s.errors.Snapshot(),
	}
}

// Errors returns every active error message by category.
func (s *Store) Errors() map[errs.Category]string {
	return s.errors.Snapshot()
}

// Error returns the active message of one category.
func (s *Store) Error(cat errs.Category) (string, bool) {
	return s.errors.Get(cat)
}

// Reset clears conversation state: messages, artifacts, the current
// session, streaming flags and error slots. The session list, the
// agent-to-thread map, the selected agent and the agents survive.
func (s *Store) Reset() {
	s.sessions.Reset()
	s.artifacts.Reset()
	s.errors.Reset()
	s.publish(notify.KindMessages, "", "")
	s.publish(notify.KindArtifacts, "", "")
	s.publish(notify.KindErrors, "", "")
	s.log.Debug().Msg("store reset")
}
