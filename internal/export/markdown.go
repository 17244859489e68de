// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sphere-client/internal/model"
)

// MarkdownExporter produces a standalone document: every artifact
// placeholder is replaced by the artifact itself.
type MarkdownExporter struct {
	opts *Options
}

// NewMarkdownExporter returns a Markdown exporter; nil opts means defaults.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{opts: opts}
}

type frontMatter struct {
	Title     string `yaml:"title"`
	Session   string `yaml:"session"`
	Date      string `yaml:"date,omitempty"`
	Messages  int    `yaml:"messages"`
	Artifacts int    `yaml:"artifacts"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

func (m *MarkdownExporter) FileExtension() string { return ".md" }

func (m *MarkdownExporter) Export(t Transcript) ([]byte, error) {
	if t.Session.ID == "" {
		return nil, errNoSession
	}

	var b strings.Builder
	if m.opts.IncludeMetadata {
		if err := m.writeFrontMatter(&b, t); err != nil {
			return nil, err
		}
	}

	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(t.heading()))
	if m.opts.IncludeMetadata && !t.Session.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Created**: %s\n\n---\n\n", t.Session.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	for i, msg := range t.Messages {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		b.WriteString("### " + m.author(t, msg))
		if m.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&b, " <sub>%s</sub>", msg.Timestamp.Format("15:04:05"))
		}
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(inlineArtifacts(t, msg.Content)))
		b.WriteString("\n\n")
	}
	return []byte(b.String()), nil
}

func (m *MarkdownExporter) writeFrontMatter(b *strings.Builder, t Transcript) error {
	fm := frontMatter{
		Title:     t.heading(),
		Session:   t.Session.ID,
		Messages:  len(t.Messages),
		Artifacts: len(t.Artifacts),
		Exported:  m.opts.clock().Format(time.RFC3339),
		Generator: "sphere-client",
	}
	if !t.Session.CreatedAt.IsZero() {
		fm.Date = t.Session.CreatedAt.Format(time.RFC3339)
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return errors.Wrap(err, "front matter")
	}
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	return nil
}

// author labels a message with the agent's display name, falling back to
// the bare role.
func (m *MarkdownExporter) author(t Transcript, msg model.Message) string {
	switch msg.Role {
	case "":
		return "Unknown"
	case model.RoleUser:
		return "[User]"
	case model.RoleSystem:
		return "[System]"
	}
	if name := t.AgentNames[msg.AgentID]; name != "" {
		return "[" + name + "]"
	}
	return "[" + string(msg.Role) + "]"
}

// inlineArtifacts swaps each placeholder for its artifact. Placeholders
// pointing outside the transcript stay as written.
func inlineArtifacts(t Transcript, content string) string {
	var b strings.Builder
	for _, seg := range model.SplitContent(content) {
		if seg.Ref == nil {
			b.WriteString(seg.Text)
			continue
		}
		art, ok := t.lookup(seg.Ref.ID)
		if !ok {
			b.WriteString(model.Placeholder(seg.Ref.ID, seg.Ref.Title))
			continue
		}
		fmt.Fprintf(&b, "\n\n**%s**\n\n", escapeMarkdown(art.Title))
		if art.Type == model.ArtifactMarkdown {
			b.WriteString(strings.TrimSpace(art.Content))
		} else {
			fence := fenceFor(art.Content)
			fmt.Fprintf(&b, "%s%s\n%s\n%s", fence, art.FenceLanguage(), strings.TrimRight(art.Content, "\n"), fence)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

// fenceFor returns a backtick fence longer than any backtick run in body.
func fenceFor(body string) string {
	longest, run := 0, 0
	for _, r := range body {
		if r != '`' {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return strings.Repeat("`", max(3, longest+1))
}

var markdownEscaper = strings.NewReplacer(
	"#", `\#`,
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
)

// escapeMarkdown neutralises characters that would restyle a heading.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
