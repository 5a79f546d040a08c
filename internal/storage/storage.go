// Package storage selects a database backend by name.
package storage

import (
	"fmt"
	"os"

	"github.com/LeJamon/swapx/internal/storage/database"
	"github.com/LeJamon/swapx/internal/storage/database/bbolt"
	"github.com/LeJamon/swapx/internal/storage/database/leveldb"
	"github.com/LeJamon/swapx/internal/storage/database/memory"
	"github.com/LeJamon/swapx/internal/storage/database/pebble"
)

// Backend names accepted by Open.
const (
	BackendPebble  = "pebble"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bbolt"
	BackendMemory  = "memory"
)

// Backends lists every supported backend name.
var Backends = []string{BackendPebble, BackendLevelDB, BackendBolt, BackendMemory}

// Open returns a manager for backend rooted at path. The directory is
// created when missing; the memory backend ignores path.
func Open(backend, path string) (database.Manager, error) {
	if backend == BackendMemory {
		return memory.NewManager(), nil
	}
	if path == "" {
		return nil, fmt.Errorf("storage path is required for backend %q", backend)
	}

	var m database.Manager
	switch backend {
	case BackendPebble:
		m = pebble.NewManager(path)
	case BackendLevelDB:
		m = leveldb.NewManager(path)
	case BackendBolt:
		m = bbolt.NewManager(path)
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrUnknownBackend, backend)
	}

	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", path, err)
	}
	return m, nil
}
