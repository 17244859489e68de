// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "github.com/google/uuid"

// NewID returns a random identifier. Identifiers for messages, artifacts and
// exchanges are always minted client-side.
func NewID() string {
	return uuid.New().String()
}
