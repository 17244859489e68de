// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package errs

import (
	"errors"
	"fmt"
)

// =============================================================================
// TAXONOMY
// =============================================================================

// Kind classifies a domain error.
type Kind string

const (
	KindNetwork Kind = "NetworkError"
	KindParser  Kind = "ParserError"
	KindSession Kind = "SessionError"
)

// Category is the operation category an error is recorded under.
type Category string

const (
	CategoryFetchAgents    Category = "fetch_agents"
	CategoryCreateSession  Category = "create_session"
	CategorySendMessage    Category = "send_message"
	CategoryLoadHistory    Category = "load_history"
	CategoryArtifactParser Category = "artifact_parser"
	CategoryCoreEngine     Category = "core_engine"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryFetchAgents,
		CategoryCreateSession,
		CategorySendMessage,
		CategoryLoadHistory,
		CategoryArtifactParser,
		CategoryCoreEngine,
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a domain error carrying a human-readable message and the
// category of the operation that failed.
type Error struct {
	Kind     Kind
	Category Category
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind whose category is either equal
// or left empty, so errors.Is(err, &errs.Error{Kind: errs.KindNetwork})
// works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Category == "" || t.Category == e.Category
}

// Network creates a NetworkError.
func Network(cat Category, msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Category: cat, Message: msg, Cause: cause}
}

// Parser creates a ParserError.
func Parser(cat Category, msg string, cause error) *Error {
	return &Error{Kind: KindParser, Category: cat, Message: msg, Cause: cause}
}

// Session creates a SessionError.
func Session(cat Category, msg string, cause error) *Error {
	return &Error{Kind: KindSession, Category: cat, Message: msg, Cause: cause}
}

// =============================================================================
// ERROR CHECKING HELPERS
// =============================================================================

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain holds an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
