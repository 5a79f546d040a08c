package memory

import (
	"io"

	"github.com/LeJamon/swapx/internal/storage/database"
)

// NewManager hands out named in-memory databases. Reopening a name returns
// the same data until it is closed.
func NewManager() *database.Registry {
	return database.NewRegistry(func(string) (database.DB, io.Closer, error) {
		db := NewDB()
		return db, database.CloserFunc(func() error {
			db.close()
			return nil
		}), nil
	})
}
