// Package notewire is the Composition Root for the Notewire service.
//
// It connects the subscription coordination logic (registry, reconciliation)
// with the infrastructure adapters (storage, transport) using the Hexagonal
// Architecture pattern.
//
// Philosophy:
//
// Notewire is the backbone of a live web-notes product: notes pinned to web
// pages, comment threads on notes, and a "shared with me" feed, all kept in
// sync across browser frames in real time. The core is storage-agnostic; a
// store adapter only has to serve push-based live queries. The default
// adapter keeps notes as Markdown files on disk, the postgres adapter keeps
// them in a database.
//
// Features:
//
//   - **Subscription registry**: one live query per (tab, frame) page view,
//     per (tab, note) comment thread, and one shared-notes feed, with
//     replace-not-stack and cancel-before-attach discipline.
//   - **Snapshot reconciliation**: incoming snapshots are diffed against
//     local state, with a grace period protecting session-created notes
//     from lagging snapshots.
//   - **Default Adapter (FS)**: Markdown files with YAML frontmatter and
//     fsnotify-driven live queries.
//   - **Extensible**: any backend can plug in via core.Store.
//
// Usage:
//
//	// Assemble the service with functional options
//	svc, err := notewire.New("./vault",
//		notewire.WithAutoInit(true),
//		notewire.WithTransport(hub),
//		notewire.WithLogger(logger),
//	)
//
//	// Frames drive the registry
//	svc.Registry.SubscribeNotes(ctx, key, "https://example.com/a", "alice")
package notewire
