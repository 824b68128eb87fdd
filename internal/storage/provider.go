// Package storage defines the read-only vault file-system abstraction.
// The indexer never writes to the vault; editors own the files.
package storage

import "github.com/openclaw/vaultbridge/internal/models"

// Provider is the interface for vault file access.
type Provider interface {
	// List returns metadata for every watched file under dir (relative
	// to the vault root), sorted by path.
	List(dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the
	// vault root).
	Read(path string) ([]byte, error)
	// Stat returns metadata for the single file at path.
	Stat(path string) (models.FileInfo, error)
}
