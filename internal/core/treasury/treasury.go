// Package treasury receives the protocol share of ledger fees.
package treasury

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/storage/database"
)

// DBName is the database Book persists its balances in.
const DBName = "treasury"

const keySize = 1 + 2*ledger.IDSize

// lastCreditKey holds the most recent credit applied, so a redelivery of it
// is recognised after a restart.
var lastCreditKey = []byte{'A'}

const lastCreditSize = 8 + 2*ledger.IDSize + amount.Size

// Discard drops every credit. It reproduces a deployment that does not route
// protocol fees anywhere and must be selected explicitly.
type Discard struct {
	Logger zerolog.Logger
}

// Credit implements ledger.Treasury.
func (d Discard) Credit(_ context.Context, c ledger.FeeCredit) error {
	d.Logger.Debug().
		Uint64("sequence", c.Sequence).
		Stringer("fund", c.Fund).
		Stringer("token", c.Token).
		Stringer("amount", c.Amount).
		Msg("protocol fee discarded")
	return nil
}

// Holding is the accrued balance of one fund in one token.
type Holding struct {
	Fund   ledger.AccountID `json:"fund"`
	Token  ledger.TokenID   `json:"token"`
	Amount amount.Balance   `json:"amount"`
}

type holdingKey struct {
	fund  ledger.AccountID
	token ledger.TokenID
}

// Book accrues protocol fees per fund and token and writes every credit
// through to a database before acknowledging it. A credit equal to the last
// one applied is acknowledged without being applied again.
type Book struct {
	mu       sync.RWMutex
	db       database.DB
	holdings map[holdingKey]amount.Balance
	last     *ledger.FeeCredit
	logger   zerolog.Logger
}

// BookOption configures a Book.
type BookOption func(*Book)

// WithLogger sets the logger of a Book.
func WithLogger(logger zerolog.Logger) BookOption {
	return func(b *Book) { b.logger = logger }
}

// NewBook loads the persisted holdings from db.
func NewBook(ctx context.Context, db database.DB, opts ...BookOption) (*Book, error) {
	b := &Book{db: db, holdings: make(map[holdingKey]amount.Balance), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}

	raw, err := db.Read(ctx, lastCreditKey)
	switch {
	case errors.Is(err, database.ErrKeyNotFound):
	case err != nil:
		return nil, err
	default:
		last, err := decodeCredit(raw)
		if err != nil {
			return nil, err
		}
		b.last = &last
	}

	it, err := db.Iterator(ctx, []byte{'T'}, []byte{'U'})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for it.Next() {
		k, err := decodeKey(it.Key())
		if err != nil {
			return nil, err
		}
		v, err := amount.FromBytes(it.Value())
		if err != nil {
			return nil, fmt.Errorf("treasury holding %s/%s: %w", k.fund, k.token, err)
		}
		b.holdings[k] = v
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return b, nil
}

// Credit implements ledger.Treasury. The holding is unchanged when the
// addition overflows or the write fails.
func (b *Book) Credit(ctx context.Context, c ledger.FeeCredit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.last != nil && *b.last == c {
		b.logger.Info().Uint64("sequence", c.Sequence).Msg("protocol fee already credited")
		return nil
	}

	k := holdingKey{fund: c.Fund, token: c.Token}
	next, err := b.holdings[k].Add(c.Amount)
	if err != nil {
		return fmt.Errorf("credit %s to %s: %w", c.Token, c.Fund, err)
	}
	err = b.db.Batch(ctx, []database.BatchOperation{
		{Type: database.BatchPut, Key: encodeKey(k), Value: next.Bytes()},
		{Type: database.BatchPut, Key: lastCreditKey, Value: encodeCredit(c)},
	})
	if err != nil {
		return fmt.Errorf("persist treasury holding: %w", err)
	}
	b.holdings[k] = next
	b.last = &c
	return nil
}

// Balance returns what fund has accrued in token.
func (b *Book) Balance(fund ledger.AccountID, token ledger.TokenID) amount.Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.holdings[holdingKey{fund: fund, token: token}]
}

// Holdings lists every non-zero holding ordered by fund then token.
func (b *Book) Holdings() []Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Holding, 0, len(b.holdings))
	for k, v := range b.holdings {
		out = append(out, Holding{Fund: k.fund, Token: k.token, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Fund[:], out[j].Fund[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Token[:], out[j].Token[:]) < 0
	})
	return out
}

func encodeKey(k holdingKey) []byte {
	key := make([]byte, keySize)
	key[0] = 'T'
	copy(key[1:], k.fund[:])
	copy(key[1+ledger.IDSize:], k.token[:])
	return key
}

var errBadKey = errors.New("malformed treasury key")

func decodeKey(key []byte) (holdingKey, error) {
	if len(key) != keySize {
		return holdingKey{}, fmt.Errorf("%w: %x", errBadKey, key)
	}
	var k holdingKey
	copy(k.fund[:], key[1:1+ledger.IDSize])
	copy(k.token[:], key[1+ledger.IDSize:])
	return k, nil
}

func encodeCredit(c ledger.FeeCredit) []byte {
	out := make([]byte, lastCreditSize)
	binary.BigEndian.PutUint64(out, c.Sequence)
	copy(out[8:], c.Fund[:])
	copy(out[8+ledger.IDSize:], c.Token[:])
	copy(out[8+2*ledger.IDSize:], c.Amount.Bytes())
	return out
}

func decodeCredit(raw []byte) (ledger.FeeCredit, error) {
	if len(raw) != lastCreditSize {
		return ledger.FeeCredit{}, fmt.Errorf("malformed last treasury credit: %x", raw)
	}
	var c ledger.FeeCredit
	c.Sequence = binary.BigEndian.Uint64(raw)
	copy(c.Fund[:], raw[8:8+ledger.IDSize])
	copy(c.Token[:], raw[8+ledger.IDSize:8+2*ledger.IDSize])
	amt, err := amount.FromBytes(raw[8+2*ledger.IDSize:])
	if err != nil {
		return ledger.FeeCredit{}, fmt.Errorf("last treasury credit: %w", err)
	}
	c.Amount = amt
	return c, nil
}
