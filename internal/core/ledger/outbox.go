package ledger

import (
	"context"
	"fmt"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/metrics"
)

// A protocol fee is recorded as a pending credit in the same batch as the
// operation that produced it, so a crash before the treasury acknowledges it
// cannot lose it. The record is cleared once the treasury has taken the
// credit; a record found on load is delivered again.

func pendingCreditKey(c FeeCredit) EntryKey {
	return EntryKey{Kind: KindPendingCredit, Account: c.Fund, Token: c.Token}
}

// outboxChanges returns the writes that replace the current pending record,
// held in l.pending, with next. Either may be nil.
func (l *Ledger) outboxChanges(next *FeeCredit) []Change {
	var out []Change
	prev := l.pending
	if prev != nil {
		if next == nil || pendingCreditKey(*next) != pendingCreditKey(*prev) {
			out = append(out, Change{Key: pendingCreditKey(*prev), Original: prev.Amount, Current: amount.Zero})
		}
		if next == nil {
			out = append(out, Change{Key: pendingSequenceKey, Original: amount.New(prev.Sequence), Current: amount.Zero})
		}
	}
	if next != nil {
		credit := Change{Key: pendingCreditKey(*next), Current: next.Amount}
		seq := Change{Key: pendingSequenceKey, Current: amount.New(next.Sequence)}
		if prev != nil {
			if credit.Key == pendingCreditKey(*prev) {
				credit.Original = prev.Amount
			}
			seq.Original = amount.New(prev.Sequence)
		}
		out = append(out, credit, seq)
	}
	return out
}

// deliver forwards c, the committed pending record held in l.pending, to the
// treasury and clears the record. A failed clear is logged; the record stays
// in l.pending and is dropped by the next commit.
func (l *Ledger) deliver(ctx context.Context, c FeeCredit) error {
	if err := l.treasury.Credit(ctx, c); err != nil {
		metrics.TreasuryFailuresTotal.Inc()
		return err
	}
	metrics.ProtocolFeesTotal.WithLabelValues(c.Token.String()).Add(approx(c.Amount))

	if err := l.store.Commit(ctx, l.outboxChanges(nil)); err != nil {
		l.logger.Warn().
			Uint64("sequence", c.Sequence).
			Err(err).
			Msg("failed to clear delivered protocol fee; it is redelivered on restart")
		return nil
	}
	l.pending = nil
	return nil
}

// loadPending extracts the pending record from loaded entries.
func loadPending(entries map[EntryKey]amount.Balance) (*FeeCredit, error) {
	var (
		credits []EntryKey
		seq     *amount.Balance
	)
	for k, v := range entries {
		switch k.Kind {
		case KindPendingCredit:
			credits = append(credits, k)
		case KindPendingSequence:
			v := v
			seq = &v
		}
	}
	switch {
	case len(credits) == 0 && seq == nil:
		return nil, nil
	case len(credits) != 1 || seq == nil:
		return nil, fmt.Errorf("inconsistent pending protocol fee: %d credits, sequence set %t", len(credits), seq != nil)
	}
	k := credits[0]
	return &FeeCredit{
		Sequence: seq.Big().Uint64(),
		Fund:     k.Account,
		Token:    k.Token,
		Amount:   entries[k],
	}, nil
}

// settle redelivers a pending credit found on load.
func (l *Ledger) settle(ctx context.Context) error {
	if l.pending == nil {
		return nil
	}
	c := *l.pending
	if err := l.deliver(ctx, c); err != nil {
		return fmt.Errorf("%w: redeliver protocol fee of sequence %d: %v", ErrTreasury, c.Sequence, err)
	}
	l.logger.Info().
		Uint64("sequence", c.Sequence).
		Stringer("token", c.Token).
		Stringer("amount", c.Amount).
		Msg("pending protocol fee redelivered")
	return nil
}
