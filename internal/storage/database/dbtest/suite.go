// Package dbtest holds the behaviour every database backend must share.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/swapx/internal/storage/database"
)

// Run exercises a backend through managers produced by open. Each call of
// open must return a manager over a fresh location.
func Run(t *testing.T, open func(t *testing.T) database.Manager) {
	ctx := context.Background()

	t.Run("read write delete", func(t *testing.T) {
		m := open(t)
		defer m.Close()
		db, err := m.OpenDB("kv")
		require.NoError(t, err)

		_, err = db.Read(ctx, []byte("missing"))
		require.ErrorIs(t, err, database.ErrKeyNotFound)

		require.NoError(t, db.Write(ctx, []byte("k"), []byte("v1")))
		got, err := db.Read(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)

		require.NoError(t, db.Write(ctx, []byte("k"), []byte("v2")))
		got, err = db.Read(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		require.NoError(t, db.Delete(ctx, []byte("k")))
		_, err = db.Read(ctx, []byte("k"))
		require.ErrorIs(t, err, database.ErrKeyNotFound)
	})

	t.Run("batch", func(t *testing.T) {
		m := open(t)
		defer m.Close()
		db, err := m.OpenDB("batch")
		require.NoError(t, err)

		require.NoError(t, db.Batch(ctx, []database.BatchOperation{
			{Type: database.BatchPut, Key: []byte("batch1"), Value: []byte("value1")},
			{Type: database.BatchPut, Key: []byte("batch2"), Value: []byte("value2")},
			{Type: database.BatchDelete, Key: []byte("batch1")},
		}))

		_, err = db.Read(ctx, []byte("batch1"))
		require.ErrorIs(t, err, database.ErrKeyNotFound)
		got, err := db.Read(ctx, []byte("batch2"))
		require.NoError(t, err)
		assert.Equal(t, []byte("value2"), got)

		err = db.Batch(ctx, []database.BatchOperation{{Type: database.BatchOpType(9), Key: []byte("x")}})
		require.Error(t, err)
	})

	t.Run("iterator bounds", func(t *testing.T) {
		m := open(t)
		defer m.Close()
		db, err := m.OpenDB("iter")
		require.NoError(t, err)

		for _, k := range []string{"a1", "b1", "b2", "b3", "c1"} {
			require.NoError(t, db.Write(ctx, []byte(k), []byte("v-"+k)))
		}

		collect := func(start, end []byte) []string {
			it, err := db.Iterator(ctx, start, end)
			require.NoError(t, err)
			defer it.Close()
			var keys []string
			for it.Next() {
				keys = append(keys, string(it.Key()))
				assert.Equal(t, "v-"+string(it.Key()), string(it.Value()))
			}
			require.NoError(t, it.Error())
			return keys
		}

		assert.Equal(t, []string{"b1", "b2", "b3"}, collect([]byte("b"), database.PrefixEnd([]byte("b"))))
		assert.Equal(t, []string{"b1", "b2"}, collect([]byte("b1"), []byte("b3")))
		assert.Equal(t, []string{"a1", "b1", "b2", "b3", "c1"}, collect(nil, nil))
		assert.Empty(t, collect([]byte("d"), nil))
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		m := open(t)
		defer m.Close()
		db, err := m.OpenDB("reopen")
		require.NoError(t, err)
		require.NoError(t, db.Write(ctx, []byte("k"), []byte("v")))

		again, err := m.OpenDB("reopen")
		require.NoError(t, err)
		got, err := again.Read(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		require.NoError(t, m.CloseDB("reopen"))
		require.Error(t, m.CloseDB("reopen"))
	})

	t.Run("concurrent access", func(t *testing.T) {
		m := open(t)
		defer m.Close()
		db, err := m.OpenDB("concurrent")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < 25; j++ {
					key := []byte(fmt.Sprintf("concurrent-%d-%d", id, j))
					if err := db.Write(ctx, key, key); err != nil {
						errs <- err
						return
					}
					if _, err := db.Read(ctx, key); err != nil {
						errs <- err
						return
					}
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
