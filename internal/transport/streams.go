// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"sync"
)

// =============================================================================
// SLICE STREAM
// =============================================================================

// SliceStream replays a fixed list of events. When Err is set it is returned
// after the last event instead of io.EOF, simulating a transport failure.
type SliceStream struct {
	mu     sync.Mutex
	events []Event
	err    error
	pos    int
	closed bool
}

// NewSliceStream creates a stream over events.
func NewSliceStream(events []Event, err error) *SliceStream {
	return &SliceStream{events: append([]Event(nil), events...), err: err}
}

// Next returns the next event.
func (s *SliceStream) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, io.EOF
	}
	if s.pos < len(s.events) {
		ev := s.events[s.pos]
		s.pos++
		return ev, nil
	}
	if s.err != nil {
		return Event{}, s.err
	}
	return Event{}, io.EOF
}

// Close marks the stream finished.
func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// =============================================================================
// CHANNEL STREAM
// =============================================================================

type item struct {
	ev  Event
	err error
}

// ChanStream is fed by another goroutine, which lets tests interleave the
// events of several exchanges in a chosen order. Send blocks until the
// consumer has taken the event.
type ChanStream struct {
	items     chan item
	closeOnce sync.Once
	endOnce   sync.Once
	closed    chan struct{}
	ended     chan struct{}
}

// NewChanStream creates an unbuffered channel-fed stream.
func NewChanStream() *ChanStream {
	return &ChanStream{
		items:  make(chan item),
		closed: make(chan struct{}),
		ended:  make(chan struct{}),
	}
}

// Send delivers one event. It returns false if the consumer closed the
// stream first.
func (c *ChanStream) Send(ev Event) bool {
	select {
	case c.items <- item{ev: ev}:
		return true
	case <-c.closed:
		return false
	case <-c.ended:
		return false
	}
}

// Fail delivers a transport error.
func (c *ChanStream) Fail(err error) bool {
	select {
	case c.items <- item{err: err}:
		return true
	case <-c.closed:
		return false
	case <-c.ended:
		return false
	}
}

// End signals end of stream. Events already handed over by Send are
// delivered first because Send only returns once they were received.
func (c *ChanStream) End() {
	c.endOnce.Do(func() { close(c.ended) })
}

// Next waits for the next event, the end of the stream, or ctx.
func (c *ChanStream) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-c.closed:
		return Event{}, io.EOF
	case <-c.ended:
		return Event{}, io.EOF
	case it := <-c.items:
		return it.ev, it.err
	}
}

// Close releases any blocked sender.
func (c *ChanStream) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Done is closed once the consumer has closed the stream.
func (c *ChanStream) Done() <-chan struct{} {
	return c.closed
}
