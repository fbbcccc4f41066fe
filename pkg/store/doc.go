/*
Package store persists events to a bbolt-backed journal.

The journal is an append-only log serving two jobs: an audit trail of every
accepted publish when persistence is enabled, and the history source for
subscriptions that request replay (Options.IncludeHistory). It implements
bus.HistoryProvider.

# Storage Layout

One bbolt database (relay.db) with a single events bucket. Keys are
big-endian uint64 sequence numbers from the bucket's NextSequence counter,
so cursor order is append order and reverse iteration yields newest first.
Values are the JSON-encoded event envelope.

A retention cap (default 100000 events) bounds the file: each append prunes
the oldest entries once the cap is exceeded.

# Usage

	j, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer j.Close()

	_ = j.Append(ev)

	// Newest 50 game-state events, oldest first
	events, err := j.Recent([]event.Category{event.CategoryGameState}, 50)

# Concurrency

bbolt serializes writers internally; Append and Recent are safe for
concurrent use. Reads run in their own view transactions and never block
appends for long.
*/
package store
