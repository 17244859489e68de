// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"bytes"
	"encoding/csv"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/jeranaias/sphere-client/internal/model"
)

// Candidate is a block of a reply that can become an artifact.
type Candidate struct {
	Type     model.ArtifactType
	Title    string
	Language string
	Content  string
}

// The parser configuration never changes and goldmark parsers are safe to
// share; per-call state lives in Parse.
var (
	markdown     goldmark.Markdown
	markdownOnce sync.Once
)

func parser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.Table))
	})
	return markdown
}

// Detect returns the candidates in content in document order.
func Detect(content string) []Candidate {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	source := []byte(content)
	doc := parser().Parser().Parse(text.NewReader(source))

	var out []Candidate
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.Kind() {
		case ast.KindFencedCodeBlock:
			if c, ok := fencedCandidate(node.(*ast.FencedCodeBlock), source); ok {
				out = append(out, c)
			}
			return ast.WalkSkipChildren, nil
		case extast.KindTable:
			if c, ok := tableCandidate(node, source); ok {
				out = append(out, c)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func fencedCandidate(node *ast.FencedCodeBlock, source []byte) (Candidate, bool) {
	var body bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		body.Write(seg.Value(source))
	}
	code := strings.TrimRight(body.String(), "\n")
	if strings.TrimSpace(code) == "" {
		return Candidate{}, false
	}

	lang := strings.ToLower(string(node.Language(source)))
	if lang == "mermaid" {
		return Candidate{Type: model.ArtifactMermaid, Title: "Mermaid Diagram", Content: code}, true
	}

	title := "Code"
	if lang != "" {
		title = "Code " + strings.ToUpper(lang)
	}
	return Candidate{Type: model.ArtifactCode, Title: title, Language: lang, Content: code}, true
}

func tableCandidate(node ast.Node, source []byte) (Candidate, bool) {
	var rows [][]string
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.Kind() {
		case extast.KindTableHeader, extast.KindTableRow:
			rows = append(rows, rowCells(child, source))
		}
	}
	if len(rows) == 0 {
		return Candidate{}, false
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return Candidate{}, false
	}
	return Candidate{
		Type:    model.ArtifactDataTable,
		Title:   "Data Table",
		Content: strings.TrimRight(buf.String(), "\n"),
	}, true
}

// rowCells collects the inline text of each cell in a header or body row.
func rowCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if cell.Kind() != extast.KindTableCell {
			continue
		}
		cells = append(cells, strings.TrimSpace(inlineText(cell, source)))
	}
	return cells
}

func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
