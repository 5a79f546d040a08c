package treasury

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/storage/database"
	"github.com/LeJamon/swapx/internal/storage/database/memory"
)

var (
	fund   = ledger.AccountID{0xFD}
	other  = ledger.AccountID{0x01}
	tokenA = ledger.TokenID{0x0A}
	tokenB = ledger.TokenID{0x0B}
)

type failingDB struct {
	database.DB
}

func (failingDB) Batch(context.Context, []database.BatchOperation) error {
	return errors.New("read-only")
}

func credit(seq uint64, f ledger.AccountID, token ledger.TokenID, amt uint64) ledger.FeeCredit {
	return ledger.FeeCredit{Sequence: seq, Fund: f, Token: token, Amount: amount.New(amt)}
}

func TestBook(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()

	book, err := NewBook(ctx, db)
	require.NoError(t, err)

	require.NoError(t, book.Credit(ctx, credit(1, fund, tokenA, 5)))
	require.NoError(t, book.Credit(ctx, credit(2, fund, tokenA, 7)))
	require.NoError(t, book.Credit(ctx, credit(3, fund, tokenB, 1)))
	require.NoError(t, book.Credit(ctx, credit(4, other, tokenA, 3)))

	assert.Equal(t, amount.New(12), book.Balance(fund, tokenA))
	assert.Equal(t, amount.New(1), book.Balance(fund, tokenB))
	assert.True(t, book.Balance(other, tokenB).IsZero())

	holdings := book.Holdings()
	require.Len(t, holdings, 3)
	assert.Equal(t, other, holdings[0].Fund)
	assert.Equal(t, Holding{Fund: fund, Token: tokenA, Amount: amount.New(12)}, holdings[1])

	t.Run("reload", func(t *testing.T) {
		again, err := NewBook(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, holdings, again.Holdings())
	})

	t.Run("overflow", func(t *testing.T) {
		err := book.Credit(ctx, ledger.FeeCredit{Sequence: 5, Fund: fund, Token: tokenA, Amount: amount.Max})
		require.ErrorIs(t, err, amount.ErrOverflow)
		assert.Equal(t, amount.New(12), book.Balance(fund, tokenA))
	})

	t.Run("write failure", func(t *testing.T) {
		broken, err := NewBook(ctx, failingDB{DB: db})
		require.NoError(t, err)
		require.Error(t, broken.Credit(ctx, credit(6, fund, tokenA, 1)))
		assert.Equal(t, amount.New(12), broken.Balance(fund, tokenA))
	})
}

func TestBookIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()

	book, err := NewBook(ctx, db)
	require.NoError(t, err)
	require.NoError(t, book.Credit(ctx, credit(7, fund, tokenA, 5)))
	require.NoError(t, book.Credit(ctx, credit(7, fund, tokenA, 5)))
	assert.Equal(t, amount.New(5), book.Balance(fund, tokenA))

	// the last credit survives a restart
	again, err := NewBook(ctx, db)
	require.NoError(t, err)
	require.NoError(t, again.Credit(ctx, credit(7, fund, tokenA, 5)))
	assert.Equal(t, amount.New(5), again.Balance(fund, tokenA))

	// only an exact repeat is skipped
	require.NoError(t, again.Credit(ctx, credit(8, fund, tokenA, 5)))
	assert.Equal(t, amount.New(10), again.Balance(fund, tokenA))
	require.NoError(t, again.Credit(ctx, credit(8, fund, tokenB, 5)))
	assert.Equal(t, amount.New(5), again.Balance(fund, tokenB))
	assert.Len(t, again.Holdings(), 2)
}

func TestBookRejectsCorruptLastCredit(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	require.NoError(t, db.Write(ctx, lastCreditKey, []byte{1, 2, 3}))

	_, err := NewBook(ctx, db)
	require.Error(t, err)
}

func TestDiscard(t *testing.T) {
	require.NoError(t, Discard{}.Credit(context.Background(), credit(1, fund, tokenA, 5)))
}
