// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Command sphere-replay drives the SPHERE chat store from recorded fixtures.

A fixture describes what the backend knows (custom agents, sessions,
persisted histories) and a list of exchanges, each with the stream events
the backend answers with. The store runs against an in-memory transport
loaded from the fixture, so hydration, streaming and error handling can be
exercised and inspected without a backend.

# Commands

	sphere-replay run fixture.yaml [--format yaml|json] [--export md|json|yaml] [--out dir] [--config path]
	sphere-replay parse stream.sse

run prints a report with the outcome of every exchange and the final store
snapshot. Exchanges that name a session run concurrently with those of other
sessions and in order within their own; exchanges without a session are sent
first, one after the other, through the current session or, when they name
an agent, through that agent's own thread.

parse decodes an SSE transcript and prints one JSON event per line. Frames
that do not decode are skipped and counted.

# Fixture format

	agents:
	  - agent_id: legal-1
	    name: Lex
	sessions:
	  - session_id: s1
	    title: Chat con Nexus (CTO)
	histories:
	  s1:
	    messages:
	      - type: human
	        content: Dame un servidor
	load: [s1]
	exchanges:
	  - text: Genera código
	    agent: cto-1
	    events:
	      - {type: token, content: "Pensando..."}
	      - {type: artifact_open, title: Dynamic Art, artifact_type: code, language: javascript}
	      - {type: artifact_chunk, content: "const a = 1;"}
	      - {type: artifact_close}
	      - {type: done}
	  - session: s1
	    text: Otra vez
	    sse: streams/s1.sse
	    error: connection reset

sse paths are relative to the fixture file. error makes the transport fail
after the listed events.
*/
package main
