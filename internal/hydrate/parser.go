// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hydrate

import (
	"strings"
	"unicode"
)

const (
	startTagName = "<sphere_artifact"
	endTag       = "</sphere_artifact>"
)

// Block is one well-formed artifact block.
type Block struct {
	Start, End int // byte span of the whole block in the source text
	Title      string
	Type       string
	Language   string
	Body       string // untrimmed
}

// MalformedReason explains why a span was left verbatim.
type MalformedReason string

const (
	ReasonUnterminated MalformedReason = "unterminated"
	ReasonEmptyBody    MalformedReason = "missing body"
	ReasonBadStartTag  MalformedReason = "unclosed start tag"
)

// Malformed is a span that looked like an artifact block but did not parse.
type Malformed struct {
	Offset int
	Reason MalformedReason
}

// ParseResult holds the blocks and malformed spans of one text, in order.
type ParseResult struct {
	Blocks    []Block
	Malformed []Malformed
}

// Parse scans text for artifact blocks. It never fails: anything that does
// not match the grammar is reported in Malformed and left out of Blocks.
func Parse(text string) ParseResult {
	var res ParseResult
	pos := 0
	for pos < len(text) {
		start := indexStartTag(text, pos)
		if start < 0 {
			break
		}

		tagEnd := strings.IndexByte(text[start:], '>')
		if tagEnd < 0 {
			res.Malformed = append(res.Malformed, Malformed{Offset: start, Reason: ReasonBadStartTag})
			break
		}
		bodyStart := start + tagEnd + 1
		attrs := text[start+len(startTagName) : start+tagEnd]

		end := strings.Index(text[bodyStart:], endTag)
		next := indexStartTag(text, bodyStart)
		if end < 0 || (next >= 0 && next < bodyStart+end) {
			res.Malformed = append(res.Malformed, Malformed{Offset: start, Reason: ReasonUnterminated})
			if next < 0 {
				break
			}
			pos = next
			continue
		}

		bodyEnd := bodyStart + end
		blockEnd := bodyEnd + len(endTag)
		body := text[bodyStart:bodyEnd]
		if strings.TrimSpace(body) == "" {
			res.Malformed = append(res.Malformed, Malformed{Offset: start, Reason: ReasonEmptyBody})
			pos = blockEnd
			continue
		}

		values := parseAttributes(attrs)
		b := Block{
			Start:    start,
			End:      blockEnd,
			Title:    values["title"],
			Type:     values["artifact_type"],
			Language: values["language"],
			Body:     body,
		}
		if b.Title == "" {
			b.Title = "untitled"
		}
		if b.Type == "" {
			b.Type = "code"
		}
		res.Blocks = append(res.Blocks, b)
		pos = blockEnd
	}
	return res
}

// indexStartTag finds the next "<sphere_artifact" that is followed by
// whitespace or ">", so longer tag names are not mistaken for it.
func indexStartTag(text string, from int) int {
	for from < len(text) {
		i := strings.Index(text[from:], startTagName)
		if i < 0 {
			return -1
		}
		at := from + i
		after := at + len(startTagName)
		if after < len(text) && (text[after] == '>' || isSpace(text[after])) {
			return at
		}
		from = after
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// =============================================================================
// ATTRIBUTES
// =============================================================================

// parseAttributes reads name=value pairs. Values may be double quoted,
// single quoted, wrapped in escaped quotes (\"...\") as left behind by
// JSON-encoded storage, or bare. Inside double quotes \" is an escaped quote.
// The first occurrence of a name wins.
func parseAttributes(s string) map[string]string {
	out := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && (isSpace(s[i]) || s[i] == '/') {
			i++
		}
		nameStart := i
		for i < len(s) && isNameByte(s[i]) {
			i++
		}
		name := s[nameStart:i]
		if name == "" {
			// Skip a stray byte and resynchronise.
			i++
			continue
		}
		if i >= len(s) || s[i] != '=' {
			continue
		}
		i++

		var value string
		value, i = readValue(s, i)
		if _, dup := out[name]; !dup {
			out[name] = value
		}
	}
	return out
}

func isNameByte(c byte) bool {
	return c == '_' || c == '-' || c == ':' || c < unicode.MaxASCII && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)))
}

// readValue reads one attribute value starting at i and returns it together
// with the index just past it.
func readValue(s string, i int) (string, int) {
	switch {
	case strings.HasPrefix(s[i:], `\"`):
		i += 2
		end := strings.Index(s[i:], `\"`)
		if end < 0 {
			return s[i:], len(s)
		}
		return s[i : i+end], i + end + 2

	case i < len(s) && (s[i] == '"' || s[i] == '\''):
		quote := s[i]
		i++
		var sb strings.Builder
		for i < len(s) {
			c := s[i]
			if c == '\\' && i+1 < len(s) && s[i+1] == quote {
				sb.WriteByte(quote)
				i += 2
				continue
			}
			if c == quote {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
			i++
		}
		return sb.String(), i

	default:
		start := i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		return s[start:i], i
	}
}
