// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
)

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a byte stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event name (usually empty), the joined data lines, and any
// error. Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return "", nil, err
		}
		eof := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			// Blank line terminates the event.
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimPrefix(line[5:], []byte(" ")))
		}
		// id:, retry: and ":" comment lines are ignored.

		if (len(line) == 0 || eof) && len(dataLines) > 0 {
			return eventType, bytes.Join(dataLines, []byte("\n")), nil
		}
		if eof {
			return "", nil, io.EOF
		}
	}
}

// =============================================================================
// FEED
// =============================================================================

var doneSentinel = []byte("[DONE]")

// Feed is an EventStream over SSE-framed JSON events. Frames that fail to
// decode are skipped; "[DONE]" and the end of input both end the stream.
type Feed struct {
	reader  *SSEReader
	closer  io.Closer
	logger  zerolog.Logger
	skipped int
	done    bool
}

// NewFeed wraps r. If r is also an io.Closer, Close closes it.
func NewFeed(r io.Reader, logger zerolog.Logger) *Feed {
	f := &Feed{reader: NewSSEReader(r), logger: logger}
	if c, ok := r.(io.Closer); ok {
		f.closer = c
	}
	return f
}

// Next returns the next well-formed event. A blocked read is only released by
// Close (or the producer ending the body), never by ctx alone.
func (f *Feed) Next(ctx context.Context) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if f.done {
			return Event{}, io.EOF
		}

		name, data, err := f.reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				f.done = true
			}
			return Event{}, err
		}

		if bytes.Equal(data, doneSentinel) {
			f.done = true
			return Event{}, io.EOF
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			f.skipped++
			f.logger.Debug().Err(err).Str("sse_event", name).Int("bytes", len(data)).Msg("skipping malformed stream event")
			continue
		}
		return ev, nil
	}
}

// Skipped returns how many malformed frames have been dropped so far.
func (f *Feed) Skipped() int {
	return f.skipped
}

// Close releases the underlying reader.
func (f *Feed) Close() error {
	f.done = true
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}
