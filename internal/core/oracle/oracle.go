// Package oracle provides rate oracles for the liquidity ledger. Every rate
// is units of the output token per unit of the input token, scaled by
// amount.RateScale.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
)

// ErrNoRate is returned when an oracle has no rate for a pair.
var ErrNoRate = errors.New("no rate for pair")

// Pair is an ordered token pair.
type Pair struct {
	In  ledger.TokenID
	Out ledger.TokenID
}

func (p Pair) String() string { return p.In.String() + "/" + p.Out.String() }

// Parity quotes every pair at 1:1.
type Parity struct{}

// Rate returns amount.RateScale.
func (Parity) Rate(context.Context, ledger.TokenID, ledger.TokenID) (amount.Balance, error) {
	return amount.RateScale, nil
}

// Static serves rates from a fixed table. When only the opposite direction
// of a pair is known, the inverse rate is derived from it.
type Static struct {
	mu    sync.RWMutex
	rates map[Pair]amount.Balance
}

// NewStatic returns a Static oracle seeded with rates.
func NewStatic(rates map[Pair]amount.Balance) (*Static, error) {
	s := &Static{rates: make(map[Pair]amount.Balance, len(rates))}
	for p, r := range rates {
		if err := s.Set(p, r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set replaces the rate of p.
func (s *Static) Set(p Pair, rate amount.Balance) error {
	if p.In == p.Out {
		return fmt.Errorf("rate for %s: tokens must differ", p)
	}
	if rate.IsZero() {
		return fmt.Errorf("rate for %s must be positive", p)
	}
	s.mu.Lock()
	s.rates[p] = rate
	s.mu.Unlock()
	return nil
}

// Rate implements ledger.RateOracle.
func (s *Static) Rate(_ context.Context, tokenIn, tokenOut ledger.TokenID) (amount.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := Pair{In: tokenIn, Out: tokenOut}
	if r, ok := s.rates[p]; ok {
		return r, nil
	}
	if r, ok := s.rates[Pair{In: tokenOut, Out: tokenIn}]; ok {
		return invert(r)
	}
	return amount.Zero, fmt.Errorf("%w %s", ErrNoRate, p)
}

// invert returns RateScale^2 / r.
func invert(r amount.Balance) (amount.Balance, error) {
	sq, err := amount.RateScale.Mul(amount.RateScale)
	if err != nil {
		return amount.Zero, err
	}
	return sq.Div(r)
}
