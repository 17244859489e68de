// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify publishes store change notifications to in-process
// subscribers over a watermill gochannel pub/sub.
//
// Notifications carry no state, only what changed; subscribers read the
// store's Snapshot to render. Content growth (tokens and artifact chunks)
// is throttled per session so a fast stream does not flood consumers;
// structural changes are always delivered.
//
// # Usage
//
//	bus := notify.NewBus(notify.Options{ContentInterval: 50 * time.Millisecond})
//	defer bus.Close()
//
//	changes, _ := bus.Subscribe(ctx)
//	for ch := range changes {
//	    render(store.Snapshot())
//	}
package notify
