package store

import (
	"testing"

	"github.com/emberworks/relay/pkg/event"
)

func openTestJournal(t *testing.T, retain int) *Journal {
	t.Helper()
	j, err := OpenWithRetention(t.TempDir(), retain)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t, 100)

	for i := 0; i < 5; i++ {
		ev := event.New(event.CategoryGameState, "sync", map[string]any{"seq": i})
		if err := j.Append(ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	out, err := j.Recent(nil, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Recent() returned %d events, want 3", len(out))
	}

	// Oldest first, and the 3 most recent of the 5
	for i, ev := range out {
		want := float64(i + 2)
		if got := ev.Data["seq"]; got != want {
			t.Errorf("Recent()[%d] seq = %v, want %v", i, got, want)
		}
	}
}

func TestRecentFiltersByCategory(t *testing.T) {
	j := openTestJournal(t, 100)

	for i := 0; i < 4; i++ {
		cat := event.CategoryGameState
		if i%2 == 1 {
			cat = event.CategoryPlayerAction
		}
		if err := j.Append(event.New(cat, "e", nil)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	out, err := j.Recent([]event.Category{event.CategoryPlayerAction}, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Recent() returned %d events, want 2", len(out))
	}
	for _, ev := range out {
		if ev.Category != event.CategoryPlayerAction {
			t.Errorf("Recent() returned category %s, want player-action", ev.Category)
		}
	}
}

func TestRecentZeroLimit(t *testing.T) {
	j := openTestJournal(t, 100)

	if err := j.Append(event.New(event.CategoryGameState, "sync", nil)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	out, err := j.Recent(nil, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if out != nil {
		t.Errorf("Recent(0) = %v, want nil", out)
	}
}

func TestRetentionPrunesOldest(t *testing.T) {
	j := openTestJournal(t, 3)

	for i := 0; i < 10; i++ {
		ev := event.New(event.CategoryGameState, "sync", map[string]any{"seq": i})
		if err := j.Append(ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	n, err := j.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n > 3 {
		t.Errorf("Count() = %d, want at most 3", n)
	}

	out, err := j.Recent(nil, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(out) == 0 {
		t.Fatal("Recent() returned no events after pruning")
	}
	// The newest event always survives
	last := out[len(out)-1]
	if got := last.Data["seq"]; got != float64(9) {
		t.Errorf("newest surviving seq = %v, want 9", got)
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenWithRetention(dir, 100)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	ev := event.New(event.CategoryAdminAction, "command", map[string]any{"cmd": "pause"})
	if err := j.Append(ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenWithRetention(dir, 100)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	defer reopened.Close()

	out, err := reopened.Recent(nil, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Recent() returned %d events after reopen, want 1", len(out))
	}
	if out[0].ID != ev.ID {
		t.Errorf("reopened event ID = %s, want %s", out[0].ID, ev.ID)
	}
}

func TestCount(t *testing.T) {
	j := openTestJournal(t, 100)

	for i := 0; i < 7; i++ {
		if err := j.Append(event.New(event.CategoryGameState, "sync", nil)); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	n, err := j.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 7 {
		t.Errorf("Count() = %d, want 7", n)
	}
}
