// Package archive stores the raw export payloads that runs were imported
// from, so the original file can always be re-fetched or re-parsed.
package archive

import (
	"context"
	"fmt"
)

// Storage defines the interface for archive backends.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// RunKey returns the archive path for a run's raw payload.
func RunKey(strategyID uint, runID string) string {
	return fmt.Sprintf("runs/%d/%s.csv", strategyID, runID)
}
