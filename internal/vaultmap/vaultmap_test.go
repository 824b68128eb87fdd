package vaultmap

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/openclaw/vaultbridge/internal/storage"
)

func testMap(t *testing.T, files map[string]string) *Map {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir, []string{".md"})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(store)
	if err := vm.Scan(); err != nil {
		t.Fatal(err)
	}
	return vm
}

func TestResolve_CaseInsensitive(t *testing.T) {
	vm := testMap(t, map[string]string{"concepts/Architecture.md": "# Architecture"})

	for _, q := range []string{"architecture", "Architecture", "ARCHITECTURE"} {
		if got := vm.Resolve(q); got != "concepts/Architecture.md" {
			t.Errorf("Resolve(%q) = %q, want concepts/Architecture.md", q, got)
		}
	}
}

func TestResolve_HeadingAnchorStripped(t *testing.T) {
	vm := testMap(t, map[string]string{"notes/ideas.md": "# Ideas"})

	if got := vm.Resolve("ideas#brainstorm"); got != "notes/ideas.md" {
		t.Errorf("Resolve = %q, want notes/ideas.md", got)
	}
}

func TestResolve_Unmatched(t *testing.T) {
	vm := testMap(t, map[string]string{"a.md": "x"})

	if got := vm.Resolve("missing"); got != "" {
		t.Errorf("Resolve(missing) = %q, want empty", got)
	}
}

func TestScan_DuplicateStemLexicographicWins(t *testing.T) {
	vm := testMap(t, map[string]string{
		"alpha/idea.md": "a",
		"beta/idea.md":  "b",
	})

	// List is sorted by path, so the lexicographically greater path wins.
	if got := vm.Resolve("idea"); got != "beta/idea.md" {
		t.Errorf("Resolve(idea) = %q, want beta/idea.md", got)
	}
}

func TestUpdate_Rename(t *testing.T) {
	vm := testMap(t, map[string]string{"drafts/idea.md": "x"})

	vm.Update("drafts/idea.md", "notes/idea.md")

	if got := vm.Resolve("idea"); got != "notes/idea.md" {
		t.Errorf("Resolve(idea) = %q, want notes/idea.md", got)
	}
	if vm.Len() != 1 {
		t.Errorf("Len = %d, want 1", vm.Len())
	}
}

func TestRemove(t *testing.T) {
	vm := testMap(t, map[string]string{"gone.md": "x"})

	vm.Remove("gone.md")

	if got := vm.Resolve("gone"); got != "" {
		t.Errorf("Resolve(gone) = %q, want empty", got)
	}
}

func TestConcurrentResolveAndUpdate(t *testing.T) {
	vm := testMap(t, map[string]string{"a.md": "x"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = vm.Resolve("a")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				vm.Update("a.md", "a.md")
			}
		}()
	}
	wg.Wait()

	if got := vm.Resolve("a"); got != "a.md" {
		t.Errorf("Resolve(a) = %q after concurrent updates", got)
	}
}
