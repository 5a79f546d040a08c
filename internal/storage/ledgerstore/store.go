// Package ledgerstore persists ledger entries in a key-value database.
//
// Keys are the entry kind byte followed by the account and token IDs; values
// are 16-byte big-endian balances. Zero balances are deleted, singleton
// settings are always written.
package ledgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/storage/database"
)

// DBName is the database the ledger entries live in.
const DBName = "ledger"

// prefix separates ledger entries from anything else sharing the database.
const prefix = 'L'

const keySize = 2 + 2*ledger.IDSize

// ErrCorrupt is returned when a stored key or value cannot be decoded.
var ErrCorrupt = errors.New("corrupt ledger entry")

// Store implements ledger.Store.
type Store struct {
	db database.DB
}

// New returns a Store over db.
func New(db database.DB) *Store {
	return &Store{db: db}
}

// EncodeKey returns the database key of k.
func EncodeKey(k ledger.EntryKey) []byte {
	key := make([]byte, keySize)
	key[0] = prefix
	key[1] = byte(k.Kind)
	copy(key[2:], k.Account[:])
	copy(key[2+ledger.IDSize:], k.Token[:])
	return key
}

// DecodeKey parses a key produced by EncodeKey.
func DecodeKey(key []byte) (ledger.EntryKey, error) {
	if len(key) != keySize || key[0] != prefix {
		return ledger.EntryKey{}, fmt.Errorf("%w: key %x", ErrCorrupt, key)
	}
	var k ledger.EntryKey
	k.Kind = ledger.EntryKind(key[1])
	copy(k.Account[:], key[2:2+ledger.IDSize])
	copy(k.Token[:], key[2+ledger.IDSize:])
	return k, nil
}

// Load reads every ledger entry.
func (s *Store) Load(ctx context.Context) (map[ledger.EntryKey]amount.Balance, error) {
	it, err := s.db.Iterator(ctx, []byte{prefix}, database.PrefixEnd([]byte{prefix}))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	out := make(map[ledger.EntryKey]amount.Balance)
	for it.Next() {
		k, err := DecodeKey(it.Key())
		if err != nil {
			return nil, err
		}
		v, err := amount.FromBytes(it.Value())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, k.Kind, err)
		}
		out[k] = v
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// Commit writes changes as one batch.
func (s *Store) Commit(ctx context.Context, changes []ledger.Change) error {
	if len(changes) == 0 {
		return nil
	}
	ops := make([]database.BatchOperation, 0, len(changes))
	for _, c := range changes {
		if c.Current.IsZero() && !c.Key.Kind.Singleton() {
			ops = append(ops, database.BatchOperation{Type: database.BatchDelete, Key: EncodeKey(c.Key)})
			continue
		}
		ops = append(ops, database.BatchOperation{
			Type:  database.BatchPut,
			Key:   EncodeKey(c.Key),
			Value: c.Current.Bytes(),
		})
	}
	return s.db.Batch(ctx, ops)
}
