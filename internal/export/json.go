// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// structured writes the transcript as data. Message text keeps its
// [ARTIFACT:id:title] placeholders and the artifacts travel next to it, so
// a structured export can be loaded back without losing references.
type structured struct {
	ext    string
	encode func(v interface{}) ([]byte, error)
}

// NewJSONExporter returns an exporter producing indented JSON.
func NewJSONExporter(*Options) Exporter {
	return structured{
		ext: ".json",
		encode: func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		},
	}
}

// NewYAMLExporter returns an exporter producing YAML.
func NewYAMLExporter(*Options) Exporter {
	return structured{ext: ".yaml", encode: yaml.Marshal}
}

func (s structured) Export(t Transcript) ([]byte, error) {
	if t.Session.ID == "" {
		return nil, errNoSession
	}
	data, err := s.encode(t)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s transcript", s.ext)
	}
	return data, nil
}

func (s structured) FileExtension() string { return s.ext }
