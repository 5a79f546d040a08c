package leveldb

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/LeJamon/swapx/internal/storage/database"
)

// NewManager opens one leveldb directory per database name below path.
func NewManager(path string) *database.Registry {
	return database.NewRegistry(func(name string) (database.DB, io.Closer, error) {
		db, err := leveldb.OpenFile(filepath.Join(path, name+".ldb"), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database %s: %w", name, err)
		}
		return NewDB(db), db, nil
	})
}
