// Package kv provides the key-value slot that backs history persistence.
// Implementations are best effort: a missing or unreadable slot is not an
// error the conversation should ever see.
package kv

// Store is a single persisted slot of bytes.
type Store interface {
	// Load returns the slot contents, or nil if the slot is empty or absent.
	Load() ([]byte, error)

	// Save replaces the slot contents.
	Save(data []byte) error

	// Clear empties the slot. Clearing an already-empty slot is a no-op.
	Clear() error
}
