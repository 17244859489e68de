// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sphere-client/internal/chat"
	"github.com/jeranaias/sphere-client/internal/stream"
	"github.com/jeranaias/sphere-client/internal/transport"
)

// Outcome is the result of one replayed exchange.
type Outcome struct {
	Index     int          `json:"index" yaml:"index"`
	SessionID string       `json:"session_id" yaml:"session_id"`
	AgentID   string       `json:"agent_id" yaml:"agent_id"`
	Text      string       `json:"text" yaml:"text"`
	State     stream.State `json:"state" yaml:"state"`
	Artifacts []string     `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Error     string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is everything a replay produced.
type Report struct {
	Exchanges []Outcome  `json:"exchanges" yaml:"exchanges"`
	State     chat.State `json:"state" yaml:"state"`
}

// Replay runs the fixture against store. Exchange failures are part of the
// report, not errors; only cancellation stops a replay early.
func Replay(ctx context.Context, store *chat.Store, f *Fixture, logger zerolog.Logger) (*Report, error) {
	if err := store.FetchSessions(ctx); err != nil {
		logger.Warn().Err(err).Msg("fixture sessions unavailable")
	}
	if len(f.Agents) > 0 {
		if err := store.FetchCustomAgents(ctx); err != nil {
			logger.Warn().Err(err).Msg("fixture agents unavailable")
		}
	}
	for _, id := range f.Load {
		if err := store.LoadSession(ctx, id); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Str("session_id", id).Msg("loading session failed")
		}
	}

	outcomes := make([]Outcome, len(f.Exchanges))
	record := func(i int, ex stream.Exchange, err error) {
		o := Outcome{
			Index:     i,
			SessionID: ex.SessionID,
			AgentID:   ex.AgentID,
			Text:      f.Exchanges[i].Text,
			State:     ex.State,
			Artifacts: ex.Artifacts,
		}
		if err != nil {
			o.Error = err.Error()
		}
		outcomes[i] = o
	}

	// Exchanges without a session go through the current one, in order.
	bySession := make(map[string][]int)
	var order []string
	for i, ex := range f.Exchanges {
		if ex.Session != "" {
			if _, ok := bySession[ex.Session]; !ok {
				order = append(order, ex.Session)
			}
			bySession[ex.Session] = append(bySession[ex.Session], i)
			continue
		}
		if ex.Agent != "" {
			if _, err := store.OpenAgentThread(ctx, ex.Agent); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				record(i, stream.Exchange{AgentID: ex.Agent, State: stream.StateErrored}, err)
				continue
			}
		}
		res, err := store.Send(ctx, ex.Text)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		record(i, res, err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, sid := range order {
		sid, idx := sid, bySession[sid]
		g.Go(func() error {
			for _, i := range idx {
				res, err := store.SendTo(gctx, sid, f.Exchanges[i].Text)
				if gctx.Err() != nil {
					return gctx.Err()
				}
				mu.Lock()
				record(i, res, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{Exchanges: outcomes, State: store.Snapshot()}, nil
}

// readFeed appends the events of an SSE feed to events.
func readFeed(feed *transport.Feed, events []transport.Event) ([]transport.Event, error) {
	defer feed.Close()
	ctx := context.Background()
	for {
		ev, err := feed.Next(ctx)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
