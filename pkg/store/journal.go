package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/emberworks/relay/pkg/event"
)

var (
	// Bucket names
	bucketEvents = []byte("events")
)

// defaultRetain caps the number of journaled events kept on disk
const defaultRetain = 100_000

// Journal is a bbolt-backed append-only event log. It backs the bus's
// persistence option and serves history replay for new subscriptions.
// Keys are big-endian sequence numbers so iteration order is append order.
type Journal struct {
	db     *bolt.DB
	retain int
}

// Open creates or opens the journal database in dataDir
func Open(dataDir string) (*Journal, error) {
	return OpenWithRetention(dataDir, defaultRetain)
}

// OpenWithRetention opens the journal with a custom retention cap
func OpenWithRetention(dataDir string, retain int) (*Journal, error) {
	dbPath := filepath.Join(dataDir, "relay.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEvents); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketEvents, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if retain <= 0 {
		retain = defaultRetain
	}
	return &Journal{db: db, retain: retain}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes one event to the journal, pruning the oldest entries once
// the retention cap is exceeded.
func (j *Journal) Append(ev *event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}

		// Prune oldest entries beyond the retention cap
		excess := b.Stats().KeyN + 1 - j.retain
		if excess > 0 {
			c := b.Cursor()
			for k, _ := c.First(); k != nil && excess > 0; k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
				excess--
			}
		}
		return nil
	})
}

// Recent returns up to limit most recent events whose category is in the
// given set, oldest first. An empty category set matches everything.
func (j *Journal) Recent(categories []event.Category, limit int) ([]*event.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	wanted := make(map[event.Category]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}

	var out []*event.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var ev event.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("failed to unmarshal event: %w", err)
			}
			if len(wanted) > 0 && !wanted[ev.Category] {
				continue
			}
			out = append(out, &ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, k := 0, len(out)-1; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out, nil
}

// Count returns the number of journaled events
func (j *Journal) Count() (int, error) {
	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEvents).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
