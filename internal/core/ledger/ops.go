package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/core/amount"
)

// Deposit tops up Reserve[token] without recording a contribution.
func (l *Ledger) Deposit(ctx context.Context, caller AccountID, token TokenID, amt amount.Balance) error {
	return l.apply(ctx, "deposit", func(t *stateTable) (*pending, error) {
		if err := t.consumeSequence(ctx, caller); err != nil {
			return nil, err
		}
		if amt.IsZero() {
			return nil, ErrInvalidAmount
		}
		if err := t.credit(ReserveKey(token), amt); err != nil {
			return nil, fmt.Errorf("deposit reserve %s: %w", token, err)
		}
		return &pending{
			event:  &Event{Kind: EventDeposit, Account: caller, Token: token, Amount: amt},
			fields: opFields(caller, token, amt),
		}, nil
	})
}

// AddLiquidity credits amt to the pool and records it as caller's stake.
func (l *Ledger) AddLiquidity(ctx context.Context, caller AccountID, token TokenID, amt amount.Balance) error {
	return l.apply(ctx, "add_liquidity", func(t *stateTable) (*pending, error) {
		if err := t.consumeSequence(ctx, caller); err != nil {
			return nil, err
		}
		if amt.IsZero() {
			return nil, ErrInvalidAmount
		}
		for _, k := range []EntryKey{
			ReserveKey(token),
			ContributionKey(caller, token),
			TotalContributionKey(token),
		} {
			if err := t.credit(k, amt); err != nil {
				return nil, fmt.Errorf("add liquidity %s %s: %w", k.Kind, token, err)
			}
		}
		return &pending{
			event:  &Event{Kind: EventLiquidityAdded, Account: caller, Token: token, Amount: amt},
			fields: opFields(caller, token, amt),
		}, nil
	})
}

// RemoveLiquidity withdraws amt of caller's stake in token. The caller's
// contribution shrinks by the gross amount while the reserve and the total
// contribution shrink by the amount after fee. Half the fee, rounded down,
// goes to the protocol fund.
func (l *Ledger) RemoveLiquidity(ctx context.Context, caller AccountID, token TokenID, amt amount.Balance) error {
	return l.apply(ctx, "remove_liquidity", func(t *stateTable) (*pending, error) {
		if err := t.consumeSequence(ctx, caller); err != nil {
			return nil, err
		}
		if amt.IsZero() {
			return nil, ErrInvalidAmount
		}
		contribution := t.read(ContributionKey(caller, token))
		if contribution.Cmp(amt) < 0 {
			return nil, fmt.Errorf("%w: contribution %s below %s", ErrInsufficientLiquidity, contribution, amt)
		}

		fee, err := feeOf(amt, t.fee())
		if err != nil {
			return nil, fmt.Errorf("remove liquidity fee: %w", err)
		}
		protocolFee, err := fee.Div(amount.New(2))
		if err != nil {
			return nil, err
		}
		afterFee, err := amt.Sub(fee)
		if err != nil {
			return nil, fmt.Errorf("remove liquidity amount after fee: %w", err)
		}

		if err := t.debit(ReserveKey(token), afterFee); err != nil {
			if errors.Is(err, amount.ErrUnderflow) {
				return nil, fmt.Errorf("%w: reserve of %s below %s", ErrInsufficientLiquidity, token, afterFee)
			}
			return nil, err
		}
		if err := t.debit(ContributionKey(caller, token), amt); err != nil {
			return nil, fmt.Errorf("remove liquidity contribution: %w", err)
		}
		if err := t.debit(TotalContributionKey(token), afterFee); err != nil {
			return nil, fmt.Errorf("remove liquidity total contribution: %w", err)
		}

		return &pending{
			event:       &Event{Kind: EventLiquidityRemoved, Account: caller, Token: token, Amount: afterFee},
			protocolFee: protocolFee,
			feeToken:    token,
			fields: func(e *zerolog.Event) {
				opFields(caller, token, amt)(e)
				e.Stringer("fee", fee).Stringer("protocol_fee", protocolFee)
			},
		}, nil
	})
}

// SetFeePercentage replaces the fee rate. Rates above MaxFeePercentage are
// rejected.
func (l *Ledger) SetFeePercentage(ctx context.Context, rate uint32) error {
	return l.apply(ctx, "set_fee", func(t *stateTable) (*pending, error) {
		if rate > MaxFeePercentage {
			return nil, fmt.Errorf("%w: %d", ErrInvalidFee, rate)
		}
		previous := t.fee()
		t.write(feeKey, amount.New(uint64(rate)))
		return &pending{
			fields: func(e *zerolog.Event) {
				e.Uint32("previous", previous).Uint32("fee_percentage", rate)
			},
		}, nil
	})
}

// fee reads the staged fee rate.
func (t *stateTable) fee() uint32 {
	return uint32(t.read(feeKey).Big().Uint64())
}

// feeOf returns amt * rate / 100, rounded down.
func feeOf(amt amount.Balance, rate uint32) (amount.Balance, error) {
	return amt.MulDiv(amount.New(uint64(rate)), amount.PercentScale)
}

func opFields(caller AccountID, token TokenID, amt amount.Balance) func(*zerolog.Event) {
	return func(e *zerolog.Event) {
		e.Stringer("account", caller).Stringer("token", token).Stringer("amount", amt)
	}
}
