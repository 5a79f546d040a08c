package bbolt

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/LeJamon/swapx/internal/storage/database"
)

// NewManager opens one bbolt file per database name below path, each holding
// a bucket of the same name.
func NewManager(path string) *database.Registry {
	return database.NewRegistry(func(name string) (database.DB, io.Closer, error) {
		db, err := bbolt.Open(filepath.Join(path, name+".db"), 0600, &bbolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database %s: %w", name, err)
		}
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			return err
		})
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to create bucket for %s: %w", name, err)
		}
		return NewDB(db, []byte(name)), db, nil
	})
}
