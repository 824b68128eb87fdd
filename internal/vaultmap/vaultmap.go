// Package vaultmap maintains the filename-stem → path lookup used for
// wikilink resolution.
package vaultmap

import (
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/openclaw/vaultbridge/internal/storage"
)

// Map resolves wikilink text to vault-relative note paths by filename
// stem (case-insensitive). It is safe for concurrent use: the indexer
// is the only writer after Scan, readers never observe a torn state.
type Map struct {
	store storage.Provider

	mu sync.RWMutex
	m  map[string]string // lowercase stem -> relative path
}

// New creates an empty Map backed by the given vault provider.
func New(store storage.Provider) *Map {
	return &Map{store: store, m: make(map[string]string)}
}

// Scan rebuilds the map from the vault. Entries are inserted in
// lexicographic path order with last-write-wins, so a duplicate stem
// deterministically resolves to the lexicographically greatest path.
func (vm *Map) Scan() error {
	infos, err := vm.store.List("")
	if err != nil {
		return err
	}

	fresh := make(map[string]string, len(infos))
	for _, info := range infos {
		key := stem(info.Path)
		if prev, ok := fresh[key]; ok {
			slog.Warn("vaultmap: name collision",
				slog.String("stem", key),
				slog.String("kept", info.Path),
				slog.String("shadowed", prev))
		}
		fresh[key] = info.Path
	}

	vm.mu.Lock()
	vm.m = fresh
	vm.mu.Unlock()

	slog.Debug("vaultmap: scanned", slog.Int("files", len(fresh)))
	return nil
}

// Resolve maps link text to a note path, or "" when no note matches.
// Heading anchors ([[note#section]]) are stripped before lookup.
func (vm *Map) Resolve(linkText string) string {
	key, _, _ := strings.Cut(linkText, "#")
	key = strings.ToLower(strings.TrimSpace(key))

	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.m[key]
}

// Update registers newPath, removing the entry for oldPath first when
// given. The swap is atomic with respect to Resolve.
func (vm *Map) Update(oldPath, newPath string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if oldPath != "" {
		delete(vm.m, stem(oldPath))
	}
	vm.m[stem(newPath)] = newPath
}

// Remove drops the entry for path, if present.
func (vm *Map) Remove(p string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.m, stem(p))
}

// Len returns the number of tracked files.
func (vm *Map) Len() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.m)
}

// stem returns the lowercase basename of p without its extension.
func stem(p string) string {
	base := path.Base(p)
	ext := path.Ext(base)
	return strings.ToLower(strings.TrimSuffix(base, ext))
}
