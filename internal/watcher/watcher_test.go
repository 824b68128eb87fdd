package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/openclaw/vaultbridge/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// collector drains a watcher's event channel into a slice.
type collector struct {
	mu     sync.Mutex
	events []models.WatcherEvent
}

func (c *collector) drain(ch <-chan models.WatcherEvent) {
	for ev := range ch {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	}
}

func (c *collector) has(kind models.EventKind, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Kind == kind && ev.Path == path {
			return true
		}
	}
	return false
}

func (c *collector) find(kind models.EventKind, path string) (models.WatcherEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range c.events {
		if ev.Kind == kind && ev.Path == path {
			return ev, true
		}
	}
	return models.WatcherEvent{}, false
}

func startWatcher(t *testing.T, vaultDir string) *collector {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(vaultDir, []string{".md"}, testLogger())
	c := &collector{}
	go func() { _ = w.Run(ctx) }()
	go c.drain(w.Events())

	eventually(t, 2*time.Second, 10*time.Millisecond, w.Running, "watcher did not start")
	return c
}

func TestWatcher_CreateEmitsCreated(t *testing.T) {
	vaultDir := t.TempDir()
	c := startWatcher(t, vaultDir)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(models.EventCreated, "new.md")
	}, "expected created event for new.md")
}

func TestWatcher_IgnoresForeignExtensions(t *testing.T) {
	vaultDir := t.TempDir()
	c := startWatcher(t, vaultDir)

	_ = os.WriteFile(filepath.Join(vaultDir, "image.png"), []byte{0x89}, 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "note.md"), []byte("# Note"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(models.EventCreated, "note.md")
	}, "expected created event for note.md")

	if c.has(models.EventCreated, "image.png") {
		t.Error("non-markdown file should not produce an event")
	}
}

func TestWatcher_DeleteEmitsDeleted(t *testing.T) {
	vaultDir := t.TempDir()
	target := filepath.Join(vaultDir, "del.md")
	_ = os.WriteFile(target, []byte("# Delete Me"), 0o644)

	c := startWatcher(t, vaultDir)

	_ = os.Remove(target)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(models.EventDeleted, "del.md")
	}, "expected deleted event for del.md")
}

func TestWatcher_RenameEmitsMoved(t *testing.T) {
	vaultDir := t.TempDir()
	_ = os.WriteFile(filepath.Join(vaultDir, "old.md"), []byte("# Rename"), 0o644)

	c := startWatcher(t, vaultDir)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		ev, ok := c.find(models.EventMoved, "old.md")
		return ok && ev.DestPath == "renamed.md"
	}, "expected moved event pairing old.md with renamed.md")
}

func TestWatcher_RenameOutOfVaultFlushedAsDeleted(t *testing.T) {
	vaultDir := t.TempDir()
	outside := t.TempDir()
	_ = os.WriteFile(filepath.Join(vaultDir, "gone.md"), []byte("# Gone"), 0o644)

	c := startWatcher(t, vaultDir)

	_ = os.Rename(filepath.Join(vaultDir, "gone.md"), filepath.Join(outside, "gone.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(models.EventDeleted, "gone.md")
	}, "rename out of the vault should flush as deleted")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir := t.TempDir()
	c := startWatcher(t, vaultDir)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)

	// Give the watcher a beat to pick up the new directory.
	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(models.EventCreated, "subdir/deep.md")
	}, "file in new subdir not reported by watcher")
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var mu sync.Mutex
	var fired []models.WatcherEvent

	d := NewDebouncer(50*time.Millisecond, func(ev models.WatcherEvent) {
		mu.Lock()
		fired = append(fired, ev)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		d.Trigger(models.WatcherEvent{Kind: models.EventModified, Path: "burst.md"})
		time.Sleep(10 * time.Millisecond)
	}
	d.Trigger(models.WatcherEvent{Kind: models.EventCreated, Path: "burst.md"})

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	}, "burst should coalesce to one firing")

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0].Kind != models.EventCreated {
		t.Fatalf("expected one firing with the last event, got %v", fired)
	}
}

func TestDebouncer_IndependentPaths(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	d := NewDebouncer(30*time.Millisecond, func(ev models.WatcherEvent) {
		mu.Lock()
		seen[ev.Path]++
		mu.Unlock()
	})

	d.Trigger(models.WatcherEvent{Kind: models.EventModified, Path: "a.md"})
	d.Trigger(models.WatcherEvent{Kind: models.EventModified, Path: "b.md"})

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a.md"] == 1 && seen["b.md"] == 1
	}, "each path should fire once")
}

func TestDebouncer_Cancel(t *testing.T) {
	var mu sync.Mutex
	count := 0

	d := NewDebouncer(50*time.Millisecond, func(models.WatcherEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	d.Trigger(models.WatcherEvent{Kind: models.EventModified, Path: "x.md"})
	d.Cancel("x.md")

	if d.PendingCount() != 0 {
		t.Fatal("cancel should clear the pending event")
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatal("cancelled event must not fire")
	}
}

func TestEventLog_NewestFirstBounded(t *testing.T) {
	l := NewEventLog(3)
	for _, p := range []string{"a.md", "b.md", "c.md", "d.md"} {
		l.Add(models.WatcherEvent{Kind: models.EventModified, Path: p, Timestamp: time.Now()})
	}

	got := l.Recent(0)
	if len(got) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(got))
	}
	if got[0].Path != "d.md" || got[2].Path != "b.md" {
		t.Fatalf("expected newest-first order, got %v", got)
	}

	if n := len(l.Recent(2)); n != 2 {
		t.Fatalf("expected limit to cap results, got %d", n)
	}
}
