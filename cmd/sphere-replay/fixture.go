// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/transport"
)

// Fixture is a recorded backend plus the exchanges to replay against it.
type Fixture struct {
	Agents    []transport.AgentRecord      `yaml:"agents"`
	Sessions  []model.Session              `yaml:"sessions"`
	Histories map[string]transport.History `yaml:"histories"`
	Load      []string                     `yaml:"load"`
	Exchanges []Exchange                   `yaml:"exchanges"`

	// dir resolves relative sse paths.
	dir string
}

// Exchange is one message and the stream the backend answers with.
type Exchange struct {
	// Session sends into an existing session. Empty uses the current one.
	Session string `yaml:"session"`
	// Agent switches to that agent's thread, creating it when needed,
	// before sending. Only used without Session.
	Agent  string            `yaml:"agent"`
	Text   string            `yaml:"text"`
	Events []transport.Event `yaml:"events"`
	// SSE is a transcript file whose frames follow Events.
	SSE string `yaml:"sse"`
	// Error fails the transport after the events.
	Error string `yaml:"error"`
}

// LoadFixture reads a YAML fixture.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read fixture")
	}

	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrapf(err, "decode fixture %s", path)
	}
	f.dir = filepath.Dir(path)

	for i, ex := range f.Exchanges {
		if ex.Text == "" {
			return nil, errors.Errorf("exchange %d: text is required", i)
		}
		if ex.Session != "" && ex.Agent != "" {
			return nil, errors.Errorf("exchange %d: agent and session are exclusive", i)
		}
		for j, ev := range ex.Events {
			if err := ev.Validate(); err != nil {
				return nil, errors.Wrapf(err, "exchange %d event %d", i, j)
			}
		}
	}
	return &f, nil
}

// Transport builds the in-memory backend the fixture describes, with one
// queued stream per exchange.
func (f *Fixture) Transport(logger zerolog.Logger) (*transport.Scripted, error) {
	tr := transport.NewScripted()
	for _, rec := range f.Agents {
		tr.AddAgent(rec)
	}
	for _, sess := range f.Sessions {
		tr.AddSession(sess)
	}
	for id, h := range f.Histories {
		tr.SetHistory(id, h)
	}

	for i, ex := range f.Exchanges {
		script, err := f.script(ex, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "exchange %d", i)
		}
		tr.QueueStream(ex.Session, script)
	}
	return tr, nil
}

func (f *Fixture) script(ex Exchange, logger zerolog.Logger) (transport.Script, error) {
	var failure error
	if ex.Error != "" {
		failure = errors.New(ex.Error)
	}
	if ex.SSE == "" {
		return transport.Script{Events: ex.Events, Err: failure}, nil
	}

	path := ex.SSE
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return transport.Script{}, errors.Wrap(err, "read sse transcript")
	}

	events := append([]transport.Event(nil), ex.Events...)
	events, err = readFeed(transport.NewFeed(bytes.NewReader(data), logger), events)
	if err != nil {
		return transport.Script{}, errors.Wrapf(err, "decode %s", ex.SSE)
	}
	return transport.Script{Events: events, Err: failure}, nil
}
