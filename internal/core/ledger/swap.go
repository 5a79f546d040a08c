package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/metrics"
)

// Quote is the priced breakdown of a swap.
type Quote struct {
	Rate         amount.Balance `json:"rate"`
	AmountOutPre amount.Balance `json:"amount_out_pre"`
	Fee          amount.Balance `json:"fee"`
	ProtocolFee  amount.Balance `json:"protocol_fee"`
	LiquidityFee amount.Balance `json:"liquidity_fee"`
	AmountOut    amount.Balance `json:"amount_out"`
}

// Swap trades amountIn of tokenIn for tokenOut at the oracle rate. The fee
// is taken from the output; half of it, rounded down, goes to the protocol
// fund and the rest stays in the tokenOut reserve. Contributions are never
// touched.
func (l *Ledger) Swap(ctx context.Context, caller AccountID, tokenIn TokenID, amountIn amount.Balance, tokenOut TokenID, minAmountOut amount.Balance) error {
	return l.apply(ctx, "swap", func(t *stateTable) (*pending, error) {
		if err := t.consumeSequence(ctx, caller); err != nil {
			return nil, err
		}
		q, liquidityOut, err := l.price(ctx, t, tokenIn, amountIn, tokenOut)
		if err != nil {
			return nil, err
		}
		if q.AmountOut.Cmp(minAmountOut) < 0 {
			return nil, fmt.Errorf("%w: amount out %s below minimum %s", ErrSlippageExceeded, q.AmountOut, minAmountOut)
		}
		if liquidityOut.Cmp(q.AmountOut) < 0 {
			return nil, fmt.Errorf("%w: reserve of %s below %s", ErrInsufficientLiquidity, tokenOut, q.AmountOut)
		}

		if err := t.credit(ReserveKey(tokenIn), amountIn); err != nil {
			return nil, fmt.Errorf("swap reserve in: %w", err)
		}
		remaining, err := liquidityOut.Sub(q.AmountOut)
		if err != nil {
			return nil, fmt.Errorf("swap reserve out: %w", err)
		}
		reserveOut, err := remaining.Add(q.LiquidityFee)
		if err != nil {
			return nil, fmt.Errorf("swap reserve out: %w", err)
		}
		t.write(ReserveKey(tokenOut), reserveOut)

		out, paid := tokenOut, q.AmountOut
		return &pending{
			event: &Event{
				Kind:      EventSwap,
				Account:   caller,
				Token:     tokenIn,
				Amount:    amountIn,
				TokenOut:  &out,
				AmountOut: &paid,
			},
			protocolFee: q.ProtocolFee,
			feeToken:    tokenOut,
			fields: func(e *zerolog.Event) {
				e.Stringer("account", caller).
					Stringer("token_in", tokenIn).
					Stringer("amount_in", amountIn).
					Stringer("token_out", tokenOut).
					Stringer("amount_out", q.AmountOut).
					Stringer("fee", q.Fee)
				metrics.SwapVolumeTotal.WithLabelValues(tokenIn.String()).Add(approx(amountIn))
			},
		}, nil
	})
}

// Quote prices a swap against the current state without executing it. The
// slippage check is left to the caller.
func (l *Ledger) Quote(ctx context.Context, tokenIn TokenID, amountIn amount.Balance, tokenOut TokenID) (Quote, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t := newStateTable(l.entries)
	t.seed(feeKey, amount.New(uint64(l.fee)))
	q, liquidityOut, err := l.price(ctx, t, tokenIn, amountIn, tokenOut)
	if err != nil {
		return Quote{}, err
	}
	if liquidityOut.Cmp(q.AmountOut) < 0 {
		return Quote{}, fmt.Errorf("%w: reserve of %s below %s", ErrInsufficientLiquidity, tokenOut, q.AmountOut)
	}
	return q, nil
}

// price runs the validation and pricing steps shared by Swap and Quote and
// returns the quote together with the tokenOut reserve it was priced against.
func (l *Ledger) price(ctx context.Context, t *stateTable, tokenIn TokenID, amountIn amount.Balance, tokenOut TokenID) (Quote, amount.Balance, error) {
	if amountIn.IsZero() {
		return Quote{}, amount.Zero, ErrInvalidAmount
	}
	if tokenIn == tokenOut {
		return Quote{}, amount.Zero, fmt.Errorf("%w: %s", ErrInvalidPair, tokenIn)
	}

	liquidityIn := t.read(ReserveKey(tokenIn))
	liquidityOut := t.read(ReserveKey(tokenOut))
	if liquidityIn.Cmp(amountIn) < 0 {
		return Quote{}, amount.Zero, fmt.Errorf("%w: reserve of %s below %s", ErrInsufficientLiquidity, tokenIn, amountIn)
	}
	if liquidityOut.IsZero() {
		return Quote{}, amount.Zero, fmt.Errorf("%w: no reserve of %s", ErrInsufficientLiquidity, tokenOut)
	}

	rate, err := l.rate(ctx, tokenIn, tokenOut)
	if err != nil {
		return Quote{}, amount.Zero, err
	}

	q := Quote{Rate: rate}
	if q.AmountOutPre, err = amountIn.MulDiv(rate, amount.RateScale); err != nil {
		return Quote{}, amount.Zero, fmt.Errorf("swap amount out: %w", err)
	}
	if q.Fee, err = feeOf(q.AmountOutPre, t.fee()); err != nil {
		return Quote{}, amount.Zero, fmt.Errorf("swap fee: %w", err)
	}
	if q.ProtocolFee, err = q.Fee.Div(amount.New(2)); err != nil {
		return Quote{}, amount.Zero, err
	}
	if q.LiquidityFee, err = q.Fee.Sub(q.ProtocolFee); err != nil {
		return Quote{}, amount.Zero, fmt.Errorf("swap liquidity fee: %w", err)
	}
	if q.AmountOut, err = q.AmountOutPre.Sub(q.Fee); err != nil {
		return Quote{}, amount.Zero, fmt.Errorf("swap amount out after fee: %w", err)
	}
	return q, liquidityOut, nil
}

// SwapRate returns the oracle rate for the pair. It never touches ledger
// state.
func (l *Ledger) SwapRate(ctx context.Context, tokenIn, tokenOut TokenID) (amount.Balance, error) {
	start := time.Now()
	rate, err := l.rate(ctx, tokenIn, tokenOut)
	metrics.LedgerOpsTotal.WithLabelValues("swap_rate", ResultOf(err).String()).Inc()
	metrics.LedgerOpLatencyMs.WithLabelValues("swap_rate").Observe(float64(time.Since(start).Microseconds()) / 1000)
	return rate, err
}

func (l *Ledger) rate(ctx context.Context, tokenIn, tokenOut TokenID) (amount.Balance, error) {
	rate, err := l.oracle.Rate(ctx, tokenIn, tokenOut)
	if err != nil {
		return amount.Zero, fmt.Errorf("%w: %s/%s: %v", ErrOracleUnavailable, tokenIn, tokenOut, err)
	}
	if rate.IsZero() {
		return amount.Zero, fmt.Errorf("%w: zero rate for %s/%s", ErrOracleUnavailable, tokenIn, tokenOut)
	}
	return rate, nil
}

// MinAmountOut returns amountOut reduced by slippagePercent, the lowest
// output a caller tolerating that slippage should accept. A tolerance of 100
// or more yields zero.
func MinAmountOut(amountOut amount.Balance, slippagePercent uint32) (amount.Balance, error) {
	if slippagePercent >= 100 {
		return amount.Zero, nil
	}
	tolerance, err := feeOf(amountOut, slippagePercent)
	if err != nil {
		return amount.Zero, err
	}
	return amountOut.Sub(tolerance)
}
