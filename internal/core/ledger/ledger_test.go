package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/core/ledger/mocks"
)

var (
	alice  = ledger.AccountID{0xA1}
	bob    = ledger.AccountID{0xB0}
	fund   = ledger.AccountID{0xFD}
	tokenA = ledger.TokenID{0x0A}
	tokenB = ledger.TokenID{0x0B}
)

type fixture struct {
	ledger   *ledger.Ledger
	oracle   *mocks.MockRateOracle
	treasury *mocks.MockTreasury
}

func newFixture(t *testing.T, fee uint32, opts ...ledger.Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		oracle:   mocks.NewMockRateOracle(ctrl),
		treasury: mocks.NewMockTreasury(ctrl),
	}
	l, err := ledger.New(context.Background(), ledger.Config{FeePercentage: fee, ProtocolFund: fund}, f.oracle, f.treasury, opts...)
	require.NoError(t, err)
	f.ledger = l
	return f
}

func feeCredit(seq uint64, token ledger.TokenID, amt uint64) ledger.FeeCredit {
	return ledger.FeeCredit{Sequence: seq, Fund: fund, Token: token, Amount: amount.New(amt)}
}

func (f *fixture) parity() {
	f.oracle.EXPECT().Rate(gomock.Any(), gomock.Any(), gomock.Any()).Return(amount.RateScale, nil).AnyTimes()
}

func (f *fixture) seedPool(t *testing.T, a, b uint64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ledger.Deposit(ctx, alice, tokenA, amount.New(a)))
	require.NoError(t, f.ledger.Deposit(ctx, alice, tokenB, amount.New(b)))
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	oracle := mocks.NewMockRateOracle(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)

	_, err := ledger.New(context.Background(), ledger.Config{FeePercentage: 101}, oracle, treasury)
	require.ErrorIs(t, err, ledger.ErrInvalidFee)

	_, err = ledger.New(context.Background(), ledger.Config{}, nil, treasury)
	require.Error(t, err)

	_, err = ledger.New(context.Background(), ledger.Config{}, oracle, nil)
	require.Error(t, err)

	l, err := ledger.New(context.Background(), ledger.Config{FeePercentage: 3, ProtocolFund: fund}, oracle, treasury)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), l.FeePercentage())
	assert.Equal(t, fund, l.ProtocolFund())
	assert.Equal(t, uint64(0), l.Sequence())
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.ledger.Deposit(ctx, alice, tokenA, amount.New(500)))
	before := f.ledger.Snapshot()

	require.NoError(t, f.ledger.Deposit(ctx, bob, tokenA, amount.New(250)))
	after := f.ledger.Snapshot()

	assert.Equal(t, amount.New(750), f.ledger.Reserve(tokenA))
	assert.True(t, f.ledger.Contribution(bob, tokenA).IsZero())
	assert.True(t, f.ledger.TotalContribution(tokenA).IsZero())
	assert.Equal(t, before.Contributions, after.Contributions)
	assert.Equal(t, before.TotalContributions, after.TotalContributions)
	assert.Equal(t, before.Sequence+1, after.Sequence)

	t.Run("zero amount", func(t *testing.T) {
		err := f.ledger.Deposit(ctx, bob, tokenA, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
		assert.Equal(t, ledger.TemBAD_AMOUNT, ledger.ResultOf(err))
		assert.Equal(t, after, f.ledger.Snapshot())
	})

	t.Run("overflow", func(t *testing.T) {
		require.NoError(t, f.ledger.Deposit(ctx, bob, tokenB, amount.Max))
		snap := f.ledger.Snapshot()
		err := f.ledger.Deposit(ctx, bob, tokenB, amount.New(1))
		require.ErrorIs(t, err, ledger.ErrOverflow)
		assert.Equal(t, ledger.TecOVERFLOW, ledger.ResultOf(err))
		assert.Equal(t, snap, f.ledger.Snapshot())
	})
}

func TestAddLiquidity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.ledger.AddLiquidity(ctx, alice, tokenA, amount.New(1000)))
	require.NoError(t, f.ledger.AddLiquidity(ctx, bob, tokenA, amount.New(500)))

	assert.Equal(t, amount.New(1500), f.ledger.Reserve(tokenA))
	assert.Equal(t, amount.New(1000), f.ledger.Contribution(alice, tokenA))
	assert.Equal(t, amount.New(500), f.ledger.Contribution(bob, tokenA))
	assert.Equal(t, amount.New(1500), f.ledger.TotalContribution(tokenA))

	require.ErrorIs(t, f.ledger.AddLiquidity(ctx, alice, tokenA, amount.Zero), ledger.ErrInvalidAmount)

	t.Run("overflow leaves every map untouched", func(t *testing.T) {
		// the reserve overflows while contribution and total would not
		require.NoError(t, f.ledger.Deposit(ctx, bob, tokenB, amount.Max))
		snap := f.ledger.Snapshot()
		err := f.ledger.AddLiquidity(ctx, alice, tokenB, amount.New(1))
		require.ErrorIs(t, err, ledger.ErrOverflow)
		assert.Equal(t, snap, f.ledger.Snapshot())
	})
}

func TestAddThenRemoveLiquidity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.ledger.Deposit(ctx, bob, tokenA, amount.New(10_000)))
	require.NoError(t, f.ledger.AddLiquidity(ctx, alice, tokenA, amount.New(1000)))
	reserveAfterAdd := f.ledger.Reserve(tokenA)

	// fee 10, protocol share 5, 990 paid out
	f.treasury.EXPECT().Credit(gomock.Any(), feeCredit(3, tokenA, 5)).Return(nil)
	require.NoError(t, f.ledger.RemoveLiquidity(ctx, alice, tokenA, amount.New(1000)))

	assert.True(t, f.ledger.Contribution(alice, tokenA).IsZero())
	assert.Equal(t, amount.New(10), f.ledger.TotalContribution(tokenA))
	want, err := reserveAfterAdd.Sub(amount.New(990))
	require.NoError(t, err)
	assert.Equal(t, want, f.ledger.Reserve(tokenA))
	assert.Equal(t, amount.New(11_000-990), f.ledger.Reserve(tokenA))
}

func TestRemoveLiquidityFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("contribution too small", func(t *testing.T) {
		f := newFixture(t, 1)
		require.NoError(t, f.ledger.AddLiquidity(ctx, alice, tokenA, amount.New(100)))
		snap := f.ledger.Snapshot()
		err := f.ledger.RemoveLiquidity(ctx, alice, tokenA, amount.New(101))
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
		assert.Equal(t, ledger.TecINSUFFICIENT_LIQUIDITY, ledger.ResultOf(err))
		assert.Equal(t, snap, f.ledger.Snapshot())
	})

	t.Run("other account's stake", func(t *testing.T) {
		f := newFixture(t, 1)
		require.NoError(t, f.ledger.AddLiquidity(ctx, alice, tokenA, amount.New(100)))
		err := f.ledger.RemoveLiquidity(ctx, bob, tokenA, amount.New(1))
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
	})

	t.Run("reserve drained by swaps", func(t *testing.T) {
		f := newFixture(t, 0)
		f.parity()
		require.NoError(t, f.ledger.AddLiquidity(ctx, alice, tokenB, amount.New(100)))
		require.NoError(t, f.ledger.Deposit(ctx, bob, tokenA, amount.New(100)))
		require.NoError(t, f.ledger.Swap(ctx, bob, tokenA, amount.New(60), tokenB, amount.Zero))
		assert.Equal(t, amount.New(40), f.ledger.Reserve(tokenB))

		snap := f.ledger.Snapshot()
		err := f.ledger.RemoveLiquidity(ctx, alice, tokenB, amount.New(100))
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
		assert.Equal(t, snap, f.ledger.Snapshot())
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newFixture(t, 1)
		require.ErrorIs(t, f.ledger.RemoveLiquidity(ctx, alice, tokenA, amount.Zero), ledger.ErrInvalidAmount)
	})
}

func TestSwap(t *testing.T) {
	ctx := context.Background()

	t.Run("one percent fee at parity", func(t *testing.T) {
		f := newFixture(t, 1)
		f.parity()
		f.seedPool(t, 1_000_000, 1_000_000)

		q, err := f.ledger.Quote(ctx, tokenA, amount.New(1000), tokenB)
		require.NoError(t, err)
		assert.Equal(t, amount.New(1000), q.AmountOutPre)
		assert.Equal(t, amount.New(10), q.Fee)
		assert.Equal(t, amount.New(5), q.ProtocolFee)
		assert.Equal(t, amount.New(5), q.LiquidityFee)
		assert.Equal(t, amount.New(990), q.AmountOut)

		f.treasury.EXPECT().Credit(gomock.Any(), feeCredit(3, tokenB, 5)).Return(nil)
		require.NoError(t, f.ledger.Swap(ctx, bob, tokenA, amount.New(1000), tokenB, amount.New(985)))

		assert.Equal(t, amount.New(1_001_000), f.ledger.Reserve(tokenA))
		assert.Equal(t, amount.New(999_015), f.ledger.Reserve(tokenB))
		assert.True(t, f.ledger.Contribution(bob, tokenA).IsZero())
		assert.True(t, f.ledger.TotalContribution(tokenB).IsZero())
	})

	t.Run("slippage exceeded", func(t *testing.T) {
		f := newFixture(t, 1)
		f.parity()
		f.seedPool(t, 1_000_000, 1_000_000)
		snap := f.ledger.Snapshot()

		err := f.ledger.Swap(ctx, bob, tokenA, amount.New(1000), tokenB, amount.New(995))
		require.ErrorIs(t, err, ledger.ErrSlippageExceeded)
		assert.Equal(t, ledger.TecSLIPPAGE, ledger.ResultOf(err))
		assert.Equal(t, snap, f.ledger.Snapshot())
	})

	t.Run("non parity rate", func(t *testing.T) {
		f := newFixture(t, 2)
		// 1 A buys 2.5 B
		f.oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(amount.MustParse("2500000000000000000"), nil)
		f.seedPool(t, 10_000, 10_000)

		// pre 2500, fee 50, protocol 25, out 2450
		f.treasury.EXPECT().Credit(gomock.Any(), feeCredit(3, tokenB, 25)).Return(nil)
		require.NoError(t, f.ledger.Swap(ctx, bob, tokenA, amount.New(1000), tokenB, amount.New(2450)))
		assert.Equal(t, amount.New(11_000), f.ledger.Reserve(tokenA))
		assert.Equal(t, amount.New(10_000-2450+25), f.ledger.Reserve(tokenB))
	})

	t.Run("zero fee skips treasury", func(t *testing.T) {
		f := newFixture(t, 0)
		f.parity()
		f.seedPool(t, 1000, 1000)
		require.NoError(t, f.ledger.Swap(ctx, bob, tokenA, amount.New(100), tokenB, amount.New(100)))
		assert.Equal(t, amount.New(900), f.ledger.Reserve(tokenB))
	})

	t.Run("output larger than reserve", func(t *testing.T) {
		f := newFixture(t, 0)
		f.oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(amount.MustParse("3000000000000000000"), nil)
		f.seedPool(t, 1000, 1000)
		snap := f.ledger.Snapshot()
		err := f.ledger.Swap(ctx, bob, tokenA, amount.New(500), tokenB, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
		assert.Equal(t, snap, f.ledger.Snapshot())
	})

	t.Run("forced overflow", func(t *testing.T) {
		f := newFixture(t, 1)
		f.parity()
		require.NoError(t, f.ledger.Deposit(ctx, alice, tokenA, amount.Max))
		require.NoError(t, f.ledger.Deposit(ctx, alice, tokenB, amount.New(1)))
		snap := f.ledger.Snapshot()

		err := f.ledger.Swap(ctx, bob, tokenA, amount.Max, tokenB, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrOverflow)
		assert.Equal(t, ledger.TecOVERFLOW, ledger.ResultOf(err))
		assert.Equal(t, snap, f.ledger.Snapshot())
	})

	t.Run("input exceeds reserve", func(t *testing.T) {
		f := newFixture(t, 1)
		f.seedPool(t, 100, 100)
		err := f.ledger.Swap(ctx, bob, tokenA, amount.New(101), tokenB, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
	})

	t.Run("empty output reserve", func(t *testing.T) {
		f := newFixture(t, 1)
		require.NoError(t, f.ledger.Deposit(ctx, alice, tokenA, amount.New(100)))
		err := f.ledger.Swap(ctx, bob, tokenA, amount.New(10), tokenB, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrInsufficientLiquidity)
	})

	t.Run("same token on both sides", func(t *testing.T) {
		f := newFixture(t, 1)
		f.seedPool(t, 100, 100)
		err := f.ledger.Swap(ctx, bob, tokenA, amount.New(10), tokenA, amount.Zero)
		require.ErrorIs(t, err, ledger.ErrInvalidPair)
		assert.Equal(t, ledger.TemBAD_PAIR, ledger.ResultOf(err))
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newFixture(t, 1)
		f.seedPool(t, 100, 100)
		require.ErrorIs(t, f.ledger.Swap(ctx, bob, tokenA, amount.Zero, tokenB, amount.Zero), ledger.ErrInvalidAmount)
	})
}

func TestSwapOracleFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		rate amount.Balance
		err  error
	}{
		{name: "zero rate", rate: amount.Zero},
		{name: "oracle error", err: errors.New("feed offline")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			f.oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(tt.rate, tt.err).Times(2)
			f.seedPool(t, 1000, 1000)
			snap := f.ledger.Snapshot()

			err := f.ledger.Swap(ctx, bob, tokenA, amount.New(10), tokenB, amount.Zero)
			require.ErrorIs(t, err, ledger.ErrOracleUnavailable)
			assert.Equal(t, ledger.TecNO_RATE, ledger.ResultOf(err))
			assert.Equal(t, snap, f.ledger.Snapshot())

			_, err = f.ledger.SwapRate(ctx, tokenA, tokenB)
			require.ErrorIs(t, err, ledger.ErrOracleUnavailable)
		})
	}
}

func TestTreasuryFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	oracle := mocks.NewMockRateOracle(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)
	store := mocks.NewMockStore(ctrl)

	oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(amount.RateScale, nil)
	store.EXPECT().Load(gomock.Any()).Return(map[ledger.EntryKey]amount.Balance{
		ledger.ReserveKey(tokenA): amount.New(1000),
		ledger.ReserveKey(tokenB): amount.New(1000),
	}, nil)

	var committed, reverted []ledger.Change
	gomock.InOrder(
		store.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c []ledger.Change) error {
			committed = c
			return nil
		}),
		treasury.EXPECT().Credit(gomock.Any(), feeCredit(1, tokenB, 5)).Return(errors.New("treasury offline")),
		store.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, c []ledger.Change) error {
			reverted = c
			return nil
		}),
	)

	l, err := ledger.New(ctx, ledger.Config{FeePercentage: 1, ProtocolFund: fund}, oracle, treasury, ledger.WithStore(store))
	require.NoError(t, err)
	snap := l.Snapshot()

	err = l.Swap(ctx, bob, tokenA, amount.New(1000), tokenB, amount.Zero)
	require.ErrorIs(t, err, ledger.ErrTreasury)
	assert.Equal(t, ledger.TefTREASURY, ledger.ResultOf(err))
	assert.Equal(t, snap, l.Snapshot())

	assert.Contains(t, committed, ledger.Change{Key: pendingCredit(tokenB), Current: amount.New(5)})
	require.Len(t, reverted, len(committed))
	for i := range committed {
		assert.Equal(t, committed[i].Inverse(), reverted[i])
	}
}

func TestStoreFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	oracle := mocks.NewMockRateOracle(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)
	store := mocks.NewMockStore(ctrl)

	store.EXPECT().Load(gomock.Any()).Return(map[ledger.EntryKey]amount.Balance{}, nil)
	store.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	l, err := ledger.New(ctx, ledger.Config{FeePercentage: 1}, oracle, treasury, ledger.WithStore(store))
	require.NoError(t, err)

	err = l.Deposit(ctx, alice, tokenA, amount.New(10))
	require.ErrorIs(t, err, ledger.ErrStore)
	assert.Equal(t, ledger.TefSTORE, ledger.ResultOf(err))
	assert.True(t, l.Reserve(tokenA).IsZero())
	assert.Equal(t, uint64(0), l.Sequence())
}

func TestLoadFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(map[ledger.EntryKey]amount.Balance{
		ledger.ReserveKey(tokenA):             amount.New(70),
		ledger.ContributionKey(alice, tokenA): amount.New(50),
		ledger.TotalContributionKey(tokenA):   amount.New(50),
		{Kind: ledger.KindFeePercentage}:      amount.New(4),
		{Kind: ledger.KindSequence}:           amount.New(9),
	}, nil)

	l, err := ledger.New(context.Background(), ledger.Config{FeePercentage: 1}, mocks.NewMockRateOracle(ctrl), mocks.NewMockTreasury(ctrl), ledger.WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, uint32(4), l.FeePercentage())
	assert.Equal(t, uint64(9), l.Sequence())
	assert.Equal(t, amount.New(70), l.Reserve(tokenA))
	assert.Equal(t, amount.New(50), l.Contribution(alice, tokenA))
}

func TestSetFeePercentage(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	require.NoError(t, f.ledger.SetFeePercentage(ctx, 100))
	assert.Equal(t, uint32(100), f.ledger.FeePercentage())
	require.NoError(t, f.ledger.SetFeePercentage(ctx, 0))
	assert.Equal(t, uint32(0), f.ledger.FeePercentage())
	assert.Equal(t, uint64(2), f.ledger.Sequence())

	err := f.ledger.SetFeePercentage(ctx, 101)
	require.ErrorIs(t, err, ledger.ErrInvalidFee)
	assert.Equal(t, ledger.TemBAD_FEE, ledger.ResultOf(err))
	assert.Equal(t, uint32(0), f.ledger.FeePercentage())
	assert.Equal(t, uint64(2), f.ledger.Sequence())
}

func TestSwapRateIsReadOnly(t *testing.T) {
	f := newFixture(t, 1)
	f.oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(amount.New(42), nil).Times(3)
	f.seedPool(t, 10, 10)
	snap := f.ledger.Snapshot()

	for i := 0; i < 3; i++ {
		rate, err := f.ledger.SwapRate(context.Background(), tokenA, tokenB)
		require.NoError(t, err)
		assert.Equal(t, amount.New(42), rate)
	}
	assert.Equal(t, snap, f.ledger.Snapshot())
}

func TestEventsCarrySequence(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	oracle := mocks.NewMockRateOracle(ctrl)
	treasury := mocks.NewMockTreasury(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	oracle.EXPECT().Rate(gomock.Any(), tokenA, tokenB).Return(amount.RateScale, nil)
	var events []ledger.Event
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev ledger.Event) error {
		events = append(events, ev)
		return nil
	}).Times(3)

	l, err := ledger.New(ctx, ledger.Config{}, oracle, treasury,
		ledger.WithPublisher(publisher),
		ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, l.AddLiquidity(ctx, alice, tokenA, amount.New(100)))
	require.NoError(t, l.Deposit(ctx, alice, tokenB, amount.New(100)))
	require.NoError(t, l.Swap(ctx, bob, tokenA, amount.New(10), tokenB, amount.New(10)))

	require.Len(t, events, 3)
	assert.Equal(t, ledger.EventLiquidityAdded, events[0].Kind)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, ledger.EventDeposit, events[1].Kind)
	assert.Equal(t, uint64(2), events[1].Sequence)

	swap := events[2]
	assert.Equal(t, ledger.EventSwap, swap.Kind)
	assert.Equal(t, uint64(3), swap.Sequence)
	assert.Equal(t, bob, swap.Account)
	assert.Equal(t, tokenA, swap.Token)
	assert.Equal(t, amount.New(10), swap.Amount)
	require.NotNil(t, swap.TokenOut)
	assert.Equal(t, tokenB, *swap.TokenOut)
	require.NotNil(t, swap.AmountOut)
	assert.Equal(t, amount.New(10), *swap.AmountOut)
	assert.Equal(t, now, swap.Time)
}

func TestPublishFailureKeepsCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

	l, err := ledger.New(context.Background(), ledger.Config{}, mocks.NewMockRateOracle(ctrl), mocks.NewMockTreasury(ctrl), ledger.WithPublisher(publisher))
	require.NoError(t, err)

	require.NoError(t, l.Deposit(context.Background(), alice, tokenA, amount.New(5)))
	assert.Equal(t, amount.New(5), l.Reserve(tokenA))
}

func TestPublishRunsOutsideLock(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	entered := make(chan struct{})
	release := make(chan struct{})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, ledger.Event) error {
		close(entered)
		<-release
		return nil
	})

	l, err := ledger.New(ctx, ledger.Config{}, mocks.NewMockRateOracle(ctrl), mocks.NewMockTreasury(ctrl), ledger.WithPublisher(publisher))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.Deposit(ctx, alice, tokenA, amount.New(5)) }()
	<-entered

	// a slow subscriber must not hold up readers
	assert.Equal(t, amount.New(5), l.Reserve(tokenA))
	assert.Equal(t, uint64(1), l.Sequence())
	close(release)
	require.NoError(t, <-done)
}

func TestEventsPublishedInSequenceOrder(t *testing.T) {
	const n = 50
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev ledger.Event) error {
		mu.Lock()
		seqs = append(seqs, ev.Sequence)
		mu.Unlock()
		return nil
	}).Times(n)

	l, err := ledger.New(ctx, ledger.Config{}, mocks.NewMockRateOracle(ctrl), mocks.NewMockTreasury(ctrl), ledger.WithPublisher(publisher))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error { return l.Deposit(ctx, alice, tokenA, amount.New(1)) })
	}
	require.NoError(t, g.Wait())

	require.Len(t, seqs, n)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t, 7)
	require.NoError(t, src.ledger.AddLiquidity(ledger.WithSequence(ctx, 1), alice, tokenA, amount.New(300)))
	require.NoError(t, src.ledger.AddLiquidity(ctx, bob, tokenA, amount.New(200)))
	require.NoError(t, src.ledger.Deposit(ctx, bob, tokenB, amount.New(50)))
	state := src.ledger.Snapshot()

	require.Len(t, state.Reserves, 2)
	require.Len(t, state.Contributions, 2)
	require.Len(t, state.TotalContributions, 1)
	assert.Equal(t, []ledger.AccountSequence{{Account: alice, Sequence: 1}}, state.AccountSequences)
	assert.Equal(t, uint64(3), state.Sequence)

	dst := newFixture(t, 1)
	require.NoError(t, dst.ledger.Deposit(ctx, alice, ledger.TokenID{0xCC}, amount.New(1)))
	require.NoError(t, dst.ledger.Restore(ctx, state))

	assert.Equal(t, state, dst.ledger.Snapshot())
	assert.True(t, dst.ledger.Reserve(ledger.TokenID{0xCC}).IsZero())
	assert.Equal(t, uint32(7), dst.ledger.FeePercentage())
	assert.Equal(t, uint64(1), dst.ledger.AccountSequence(alice))

	t.Run("duplicate entries", func(t *testing.T) {
		bad := state
		bad.Reserves = append([]ledger.TokenBalance{}, state.Reserves...)
		bad.Reserves = append(bad.Reserves, state.Reserves[0])
		require.Error(t, dst.ledger.Restore(ctx, bad))
		assert.Equal(t, state, dst.ledger.Snapshot())
	})

	t.Run("duplicate account sequences", func(t *testing.T) {
		bad := state
		bad.AccountSequences = []ledger.AccountSequence{{Account: bob, Sequence: 1}, {Account: bob, Sequence: 2}}
		require.Error(t, dst.ledger.Restore(ctx, bad))
		assert.Equal(t, state, dst.ledger.Snapshot())
	})

	t.Run("fee out of range", func(t *testing.T) {
		bad := state
		bad.FeePercentage = 150
		require.ErrorIs(t, dst.ledger.Restore(ctx, bad), ledger.ErrInvalidFee)
	})
}

func TestMinAmountOut(t *testing.T) {
	tests := []struct {
		out      uint64
		slippage uint32
		want     uint64
	}{
		{out: 990, slippage: 0, want: 990},
		{out: 990, slippage: 1, want: 981},
		{out: 1000, slippage: 5, want: 950},
		{out: 1000, slippage: 100, want: 0},
		{out: 1000, slippage: 250, want: 0},
	}
	for _, tt := range tests {
		got, err := ledger.MinAmountOut(amount.New(tt.out), tt.slippage)
		require.NoError(t, err)
		assert.Equal(t, amount.New(tt.want), got, "out=%d slippage=%d", tt.out, tt.slippage)
	}
}
