// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/sphere-client/internal/model"
	"github.com/jeranaias/sphere-client/internal/storage"
	"github.com/jeranaias/sphere-client/internal/util"
)

var errNoSession = errors.New("transcript has no session")

// Transcript is one session with the messages and artifacts that belong to
// it.
type Transcript struct {
	Session   model.Session    `json:"session" yaml:"session"`
	Messages  []model.Message  `json:"messages" yaml:"messages"`
	Artifacts []model.Artifact `json:"artifacts" yaml:"artifacts"`

	// Display names keyed by agent id. Only Markdown uses them.
	AgentNames map[string]string `json:"-" yaml:"-"`
}

// FromSnapshot turns an archived snapshot into a transcript.
func FromSnapshot(snap storage.Snapshot, agentNames map[string]string) Transcript {
	return Transcript{
		Session:    snap.Session,
		Messages:   snap.Messages,
		Artifacts:  snap.Artifacts,
		AgentNames: agentNames,
	}
}

func (t Transcript) lookup(id string) (model.Artifact, bool) {
	for _, a := range t.Artifacts {
		if a.ID == id {
			return a, true
		}
	}
	return model.Artifact{}, false
}

func (t Transcript) heading() string {
	if s := t.Session.DisplayTitle(); s != "" {
		return s
	}
	return t.Session.ID
}

// Exporter renders a transcript in one output format.
type Exporter interface {
	Export(t Transcript) ([]byte, error)
	FileExtension() string
}

// Options tunes exports. Zero values are usable except OutputDir, which
// DefaultOptions sets to the working directory.
type Options struct {
	OutputDir string

	// Markdown only.
	IncludeMetadata   bool
	IncludeTimestamps bool

	// Clock for the "exported" stamp; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions writes into "." with front matter and message times.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Now:               time.Now,
	}
}

func (o *Options) clock() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// New picks an exporter by name. Accepted names are md, markdown, json,
// yaml and yml in any case.
func New(format string, opts *Options) (Exporter, error) {
	switch f := strings.ToLower(format); f {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	default:
		return nil, errors.Errorf("export: unknown format %q", format)
	}
}

// WriteFile renders t and stores it under opts.OutputDir as
// <slug-of-title><ext>. It returns the written path.
func WriteFile(t Transcript, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	body, err := exporter.Export(t)
	if err != nil {
		return "", errors.Wrapf(err, "export session %s", t.Session.ID)
	}
	path := filepath.Join(opts.OutputDir, util.Slug(t.heading())+exporter.FileExtension())
	// AtomicWriteFile creates OutputDir when missing.
	if err := util.AtomicWriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
