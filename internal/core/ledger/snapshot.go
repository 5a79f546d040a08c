package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/metrics"
)

// TokenBalance is one entry of a per-token map.
type TokenBalance struct {
	Token  TokenID        `json:"token" codec:"token"`
	Amount amount.Balance `json:"amount" codec:"amount"`
}

// AccountBalance is one entry of the contribution map.
type AccountBalance struct {
	Account AccountID      `json:"account" codec:"account"`
	Token   TokenID        `json:"token" codec:"token"`
	Amount  amount.Balance `json:"amount" codec:"amount"`
}

// AccountSequence is the last sequence a signed caller has used.
type AccountSequence struct {
	Account  AccountID `json:"account" codec:"account"`
	Sequence uint64    `json:"sequence" codec:"sequence"`
}

// State is a consistent copy of the whole ledger. Slices are ordered by key
// and hold only non-zero balances.
type State struct {
	Sequence           uint64            `json:"sequence" codec:"sequence"`
	FeePercentage      uint32            `json:"fee_percentage" codec:"fee_percentage"`
	ProtocolFund       AccountID         `json:"protocol_fund" codec:"protocol_fund"`
	Reserves           []TokenBalance    `json:"reserves" codec:"reserves"`
	Contributions      []AccountBalance  `json:"contributions" codec:"contributions"`
	TotalContributions []TokenBalance    `json:"total_contributions" codec:"total_contributions"`
	AccountSequences   []AccountSequence `json:"account_sequences,omitempty" codec:"account_sequences,omitempty"`
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]EntryKey, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	s := State{
		Sequence:      l.sequence,
		FeePercentage: l.fee,
		ProtocolFund:  l.protocolFund,
	}
	for _, k := range keys {
		v := l.entries[k]
		switch k.Kind {
		case KindReserve:
			s.Reserves = append(s.Reserves, TokenBalance{Token: k.Token, Amount: v})
		case KindContribution:
			s.Contributions = append(s.Contributions, AccountBalance{Account: k.Account, Token: k.Token, Amount: v})
		case KindTotalContribution:
			s.TotalContributions = append(s.TotalContributions, TokenBalance{Token: k.Token, Amount: v})
		case KindAccountSequence:
			s.AccountSequences = append(s.AccountSequences, AccountSequence{Account: k.Account, Sequence: v.Big().Uint64()})
		}
	}
	return s
}

// entries flattens s into keyed balances, rejecting duplicates.
func (s State) entries() (map[EntryKey]amount.Balance, error) {
	out := make(map[EntryKey]amount.Balance, len(s.Reserves)+len(s.Contributions)+len(s.TotalContributions))
	put := func(k EntryKey, v amount.Balance) error {
		if _, dup := out[k]; dup {
			if k.Kind == KindAccountSequence {
				return fmt.Errorf("duplicate %s entry for account %s", k.Kind, k.Account)
			}
			return fmt.Errorf("duplicate %s entry for token %s", k.Kind, k.Token)
		}
		if !v.IsZero() {
			out[k] = v
		}
		return nil
	}
	for _, r := range s.Reserves {
		if err := put(ReserveKey(r.Token), r.Amount); err != nil {
			return nil, err
		}
	}
	for _, c := range s.Contributions {
		if err := put(ContributionKey(c.Account, c.Token), c.Amount); err != nil {
			return nil, err
		}
	}
	for _, r := range s.TotalContributions {
		if err := put(TotalContributionKey(r.Token), r.Amount); err != nil {
			return nil, err
		}
	}
	for _, a := range s.AccountSequences {
		if err := put(AccountSequenceKey(a.Account), amount.New(a.Sequence)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Restore replaces the whole ledger with s and persists it. The protocol
// fund is fixed at construction and is not taken from s.
func (l *Ledger) Restore(ctx context.Context, s State) error {
	if s.FeePercentage > MaxFeePercentage {
		return fmt.Errorf("%w: %d", ErrInvalidFee, s.FeePercentage)
	}
	next, err := s.entries()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t := newStateTable(l.entries)
	t.seed(feeKey, amount.New(uint64(l.fee)))
	t.seed(sequenceKey, amount.New(l.sequence))
	for k := range l.entries {
		if _, ok := next[k]; !ok {
			t.write(k, amount.Zero)
		}
	}
	for k, v := range next {
		t.write(k, v)
	}
	t.write(feeKey, amount.New(uint64(s.FeePercentage)))
	t.write(sequenceKey, amount.New(s.Sequence))

	if err := l.store.Commit(ctx, t.changes()); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	t.apply()
	l.fee = s.FeePercentage
	l.sequence = s.Sequence
	metrics.FeePercentage.Set(float64(l.fee))
	metrics.LedgerSequence.Set(float64(l.sequence))

	l.logger.Info().
		Uint64("sequence", s.Sequence).
		Int("entries", len(next)).
		Msg("ledger state restored")
	return nil
}
