package bbolt

import (
	"testing"

	"github.com/LeJamon/swapx/internal/storage/database"
	"github.com/LeJamon/swapx/internal/storage/database/dbtest"
)

func TestBackend(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) database.Manager {
		return NewManager(t.TempDir())
	})
}
