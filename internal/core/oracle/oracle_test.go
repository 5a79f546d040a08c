package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/core/ledger/mocks"
)

var (
	usd = ledger.TokenID{0x01}
	eur = ledger.TokenID{0x02}
	gbp = ledger.TokenID{0x03}
)

func TestParity(t *testing.T) {
	r, err := Parity{}.Rate(context.Background(), usd, eur)
	require.NoError(t, err)
	assert.Equal(t, amount.RateScale, r)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s, err := NewStatic(map[Pair]amount.Balance{
		{In: usd, Out: eur}: amount.MustParse("500000000000000000"),
	})
	require.NoError(t, err)

	t.Run("direct", func(t *testing.T) {
		r, err := s.Rate(ctx, usd, eur)
		require.NoError(t, err)
		assert.Equal(t, amount.MustParse("500000000000000000"), r)
	})

	t.Run("inverse", func(t *testing.T) {
		r, err := s.Rate(ctx, eur, usd)
		require.NoError(t, err)
		assert.Equal(t, amount.MustParse("2000000000000000000"), r)
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, err := s.Rate(ctx, usd, gbp)
		require.ErrorIs(t, err, ErrNoRate)
	})

	t.Run("set overrides", func(t *testing.T) {
		require.NoError(t, s.Set(Pair{In: eur, Out: usd}, amount.RateScale))
		r, err := s.Rate(ctx, eur, usd)
		require.NoError(t, err)
		assert.Equal(t, amount.RateScale, r)
	})

	t.Run("invalid rates", func(t *testing.T) {
		require.Error(t, s.Set(Pair{In: usd, Out: usd}, amount.RateScale))
		require.Error(t, s.Set(Pair{In: usd, Out: gbp}, amount.Zero))
		_, err := NewStatic(map[Pair]amount.Balance{{In: gbp, Out: eur}: amount.Zero})
		require.Error(t, err)
	})
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	next := mocks.NewMockRateOracle(ctrl)

	next.EXPECT().Rate(gomock.Any(), usd, eur).Return(amount.New(7), nil).Times(1)
	next.EXPECT().Rate(gomock.Any(), eur, usd).Return(amount.Zero, errors.New("stale feed")).Times(2)
	next.EXPECT().Rate(gomock.Any(), usd, gbp).Return(amount.Zero, nil).Times(2)

	c := NewCached(next, 8, time.Minute)
	for i := 0; i < 3; i++ {
		r, err := c.Rate(ctx, usd, eur)
		require.NoError(t, err)
		assert.Equal(t, amount.New(7), r)
	}
	for i := 0; i < 2; i++ {
		_, err := c.Rate(ctx, eur, usd)
		require.Error(t, err)
		r, err := c.Rate(ctx, usd, gbp)
		require.NoError(t, err)
		assert.True(t, r.IsZero())
	}
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCachedExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockRateOracle(ctrl)
	next.EXPECT().Rate(gomock.Any(), usd, eur).Return(amount.New(1), nil).Times(2)

	c := NewCached(next, 8, 20*time.Millisecond)
	_, err := c.Rate(context.Background(), usd, eur)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = c.Rate(context.Background(), usd, eur)
	require.NoError(t, err)
}
