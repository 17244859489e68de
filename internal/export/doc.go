// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export turns a session into a file a user can keep.
//
// Markdown output is meant for people: artifact placeholders in message text
// are expanded in place, code artifacts as fenced blocks and Markdown
// artifacts inline, and agent ids are shown by display name. JSON and YAML
// output is meant for tools and keeps the placeholders untouched with the
// artifacts listed beside the messages.
//
//	exp, err := export.New("md", opts)
//	if err != nil {
//		return err
//	}
//	path, err := export.WriteFile(transcript, exp, opts)
package export
