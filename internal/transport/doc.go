// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport defines the contract between the sphere client store and
// the backend: session and agent calls, history fetches, and the typed live
// event stream of one exchange.
//
// The HTTP client itself lives outside this module. This package supplies the
// pieces the store needs around it:
//
//   - Transport and its narrower interfaces (SessionService, AgentService,
//     HistoryService, Streamer)
//   - Event and DecodeEvent for the JSON event vocabulary
//   - Feed, an EventStream over an SSE byte stream (recorded transcripts,
//     or a response body handed over by the HTTP layer)
//   - Scripted, an in-memory Transport for tests and fixture replay
//
// # Usage
//
//	feed := transport.NewFeed(resp.Body, logger)
//	defer feed.Close()
//	for {
//	    ev, err := feed.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package transport
