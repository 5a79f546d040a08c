package ledger

import (
	"context"
	"fmt"

	"github.com/LeJamon/swapx/internal/core/amount"
)

type sequenceContextKey struct{}

// WithSequence returns a context carrying the account sequence a signed
// request claims. An operation run under it only applies when seq is exactly
// one past the caller's last used sequence, and consumes it in the same
// commit. Operations without a sequence skip the check.
func WithSequence(ctx context.Context, seq uint64) context.Context {
	return context.WithValue(ctx, sequenceContextKey{}, seq)
}

// SequenceFrom returns the sequence carried by ctx, if any.
func SequenceFrom(ctx context.Context) (uint64, bool) {
	seq, ok := ctx.Value(sequenceContextKey{}).(uint64)
	return seq, ok
}

// consumeSequence checks the claimed sequence of account and stages its
// increment.
func (t *stateTable) consumeSequence(ctx context.Context, account AccountID) error {
	seq, ok := SequenceFrom(ctx)
	if !ok {
		return nil
	}
	k := AccountSequenceKey(account)
	last := t.read(k).Big().Uint64()
	switch {
	case seq <= last:
		return fmt.Errorf("%w: %s used %d, got %d", ErrPastSequence, account, last, seq)
	case seq != last+1:
		return fmt.Errorf("%w: %s expects %d, got %d", ErrFutureSequence, account, last+1, seq)
	}
	t.write(k, amount.New(seq))
	return nil
}

// AccountSequence returns the last sequence account has used, 0 if none.
func (l *Ledger) AccountSequence(account AccountID) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[AccountSequenceKey(account)].Big().Uint64()
}
