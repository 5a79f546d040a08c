package pebble

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/LeJamon/swapx/internal/storage/database"
)

// NewManager opens one pebble directory per database name below path.
func NewManager(path string) *database.Registry {
	return database.NewRegistry(func(name string) (database.DB, io.Closer, error) {
		db, err := pebble.Open(filepath.Join(path, name+".db"), &pebble.Options{})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database %s: %w", name, err)
		}
		return NewDB(db), db, nil
	})
}
