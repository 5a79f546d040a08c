package database

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("b"), PrefixEnd([]byte("a")))
	assert.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
	assert.Nil(t, PrefixEnd(nil))
}

type stubDB struct{ DB }

func (stubDB) Read(context.Context, []byte) ([]byte, error) { return nil, ErrKeyNotFound }

func TestRegistry(t *testing.T) {
	opened := map[string]int{}
	closed := map[string]int{}
	r := NewRegistry(func(name string) (DB, io.Closer, error) {
		if name == "broken" {
			return nil, nil, errors.New("cannot open")
		}
		opened[name]++
		return stubDB{}, CloserFunc(func() error {
			closed[name]++
			if name == "sticky" {
				return errors.New("close failed")
			}
			return nil
		}), nil
	})

	_, err := r.OpenDB("ledger")
	require.NoError(t, err)
	_, err = r.OpenDB("ledger")
	require.NoError(t, err)
	assert.Equal(t, 1, opened["ledger"], "a name is opened once")

	_, err = r.OpenDB("broken")
	require.Error(t, err)
	assert.Equal(t, []string{"ledger"}, r.Names())

	require.NoError(t, r.CloseDB("ledger"))
	require.Error(t, r.CloseDB("ledger"))
	_, err = r.OpenDB("ledger")
	require.NoError(t, err)
	assert.Equal(t, 2, opened["ledger"])

	_, err = r.OpenDB("sticky")
	require.NoError(t, err)
	err = r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sticky")
	assert.Equal(t, 2, closed["ledger"])
	assert.Empty(t, r.Names())
}
