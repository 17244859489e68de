// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Topic is the watermill topic changes are published on.
const Topic = "sphere.changes"

// Kind says which part of the store changed.
type Kind string

const (
	KindSessions  Kind = "sessions"
	KindMessages  Kind = "messages"
	KindContent   Kind = "content"
	KindArtifacts Kind = "artifacts"
	KindStreaming Kind = "streaming"
	KindAgents    Kind = "agents"
	KindErrors    Kind = "errors"
)

// Change is one notification.
type Change struct {
	Kind       Kind      `json:"kind"`
	SessionID  string    `json:"session_id,omitempty"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher accepts change notifications.
type Publisher interface {
	Publish(ch Change)
}

// Options configures a Bus.
type Options struct {
	// ContentInterval is the minimum spacing of content notifications per
	// session. Zero disables throttling.
	ContentInterval time.Duration

	// Buffer is the per-subscriber output buffer. Default: 256
	Buffer int64

	Logger zerolog.Logger
}

// =============================================================================
// BUS
// =============================================================================

// Bus fans change notifications out to subscribers.
type Bus struct {
	pubsub *gochannel.GoChannel
	opts   Options
	log    zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewBus creates a bus backed by an in-memory gochannel pub/sub.
func NewBus(opts Options) *Bus {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: opts.Buffer,
		}, NewLoggerAdapter(opts.Logger)),
		opts:     opts,
		log:      opts.Logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Publish sends a change to every current subscriber. Throttled content
// changes are dropped silently.
func (b *Bus) Publish(ch Change) {
	if !b.allow(ch) {
		return
	}
	if ch.At.IsZero() {
		ch.At = time.Now()
	}

	payload, err := json.Marshal(ch)
	if err != nil {
		b.log.Error().Err(err).Msg("encoding change notification")
		return
	}
	if err := b.pubsub.Publish(Topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.log.Debug().Err(err).Str("kind", string(ch.Kind)).Msg("change notification not published")
	}
}

// allow applies the per-session content throttle. A streaming change
// resets the session's limiter so the next exchange starts unthrottled.
func (b *Bus) allow(ch Change) bool {
	if b.opts.ContentInterval <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ch.Kind {
	case KindContent:
		lim, ok := b.limiters[ch.SessionID]
		if !ok {
			lim = rate.NewLimiter(rate.Every(b.opts.ContentInterval), 1)
			b.limiters[ch.SessionID] = lim
		}
		return lim.Allow()
	case KindStreaming:
		delete(b.limiters, ch.SessionID)
	}
	return true
}

// Subscribe returns a channel of changes that is closed when ctx ends or the
// bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Change, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to change notifications")
	}

	out := make(chan Change, b.opts.Buffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			var ch Change
			if err := json.Unmarshal(msg.Payload, &ch); err != nil {
				b.log.Warn().Err(err).Msg("dropping undecodable change notification")
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the pub/sub down and closes every subscription.
func (b *Bus) Close() error {
	return errors.Wrap(b.pubsub.Close(), "close change bus")
}
