// Package ledger implements the liquidity ledger: per-token reserves,
// per-account contributions and the swap and liquidity operations that move
// them. All arithmetic is checked unsigned 128-bit arithmetic and every
// operation is all-or-nothing.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/metrics"
)

// MaxFeePercentage is the highest accepted fee rate.
const MaxFeePercentage uint32 = 100

// Config holds the construction-time settings of a ledger.
type Config struct {
	// FeePercentage applies to swap output and liquidity removal (0-100).
	// A value persisted by an earlier SetFeePercentage takes precedence.
	FeePercentage uint32

	// ProtocolFund is the treasury account credited with protocol fees.
	ProtocolFund AccountID
}

// Option configures optional collaborators of a Ledger.
type Option func(*Ledger)

// WithStore persists entries through s. Without it the ledger is memory only.
func WithStore(s Store) Option {
	return func(l *Ledger) { l.store = s }
}

// WithPublisher delivers events to p.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger owns the reserve, contribution and total-contribution maps. All
// methods are safe for concurrent use; mutating operations are serialized.
type Ledger struct {
	mu sync.RWMutex

	entries      map[EntryKey]amount.Balance
	fee          uint32
	sequence     uint64
	protocolFund AccountID
	pending      *FeeCredit

	// Events are queued under mu in sequence order and published after it
	// is released. pubMu keeps deliveries in queue order.
	queueMu sync.Mutex
	queue   []Event
	pubMu   sync.Mutex

	oracle    RateOracle
	treasury  Treasury
	publisher Publisher
	store     Store

	logger zerolog.Logger
	now    func() time.Time
}

// New builds a ledger and loads any persisted state from the store.
func New(ctx context.Context, cfg Config, oracle RateOracle, treasury Treasury, opts ...Option) (*Ledger, error) {
	if oracle == nil {
		return nil, errors.New("rate oracle is required")
	}
	if treasury == nil {
		return nil, errors.New("treasury is required")
	}
	if cfg.FeePercentage > MaxFeePercentage {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFee, cfg.FeePercentage)
	}

	l := &Ledger{
		fee:          cfg.FeePercentage,
		protocolFund: cfg.ProtocolFund,
		oracle:       oracle,
		treasury:     treasury,
		publisher:    nopPublisher{},
		store:        memoryStore{},
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}
	if err := l.restore(entries); err != nil {
		return nil, err
	}
	if err := l.settle(ctx); err != nil {
		return nil, err
	}

	metrics.FeePercentage.Set(float64(l.fee))
	metrics.LedgerSequence.Set(float64(l.sequence))
	l.logger.Info().
		Uint32("fee_percentage", l.fee).
		Uint64("sequence", l.sequence).
		Int("entries", len(l.entries)).
		Msg("ledger loaded")

	return l, nil
}

// restore replaces in-memory state with entries, splitting out the singletons.
func (l *Ledger) restore(entries map[EntryKey]amount.Balance) error {
	l.entries = make(map[EntryKey]amount.Balance, len(entries))
	for k, v := range entries {
		switch k.Kind {
		case KindFeePercentage:
			if v.Cmp(amount.New(uint64(MaxFeePercentage))) > 0 {
				return fmt.Errorf("stored %w: %s", ErrInvalidFee, v)
			}
			l.fee = uint32(v.Big().Uint64())
		case KindSequence:
			if v.Cmp(amount.New(^uint64(0))) > 0 {
				return fmt.Errorf("stored sequence %s: %w", v, ErrOverflow)
			}
			l.sequence = v.Big().Uint64()
		case KindReserve, KindContribution, KindTotalContribution, KindAccountSequence:
			if !v.IsZero() {
				l.entries[k] = v
			}
		case KindPendingCredit, KindPendingSequence:
		default:
			return fmt.Errorf("unknown ledger entry kind %s", k.Kind)
		}
	}
	pending, err := loadPending(entries)
	if err != nil {
		return err
	}
	l.pending = pending
	return nil
}

// pending collects what a successful operation body wants to happen after
// its staged writes are committed.
type pending struct {
	event       *Event
	protocolFee amount.Balance
	feeToken    TokenID
	fields      func(*zerolog.Event)
}

// apply runs body under the write lock, commits the result, then publishes
// the operation's event once the lock is released.
func (l *Ledger) apply(ctx context.Context, op string, body func(t *stateTable) (*pending, error)) (err error) {
	start := time.Now()
	defer func() {
		metrics.LedgerOpsTotal.WithLabelValues(op, ResultOf(err).String()).Inc()
		metrics.LedgerOpLatencyMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := l.commit(ctx, op, body); err != nil {
		return err
	}
	l.flush(ctx)
	return nil
}

// commit stages body against a fresh state table and commits it: persist
// together with the pending protocol fee, forward the fee, apply to memory,
// then queue the event. A failure at any step leaves memory untouched and
// reverts anything already persisted.
func (l *Ledger) commit(ctx context.Context, op string, body func(t *stateTable) (*pending, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := newStateTable(l.entries)
	t.seed(feeKey, amount.New(uint64(l.fee)))
	t.seed(sequenceKey, amount.New(l.sequence))
	p, err := body(t)
	if err != nil {
		l.logger.Debug().Str("op", op).Err(err).Msg("operation rejected")
		return err
	}

	seq := l.sequence + 1
	t.write(sequenceKey, amount.New(seq))
	changes := t.changes()

	var credit *FeeCredit
	if !p.protocolFee.IsZero() {
		credit = &FeeCredit{Sequence: seq, Fund: l.protocolFund, Token: p.feeToken, Amount: p.protocolFee}
	}
	changes = append(changes, l.outboxChanges(credit)...)

	if err := l.store.Commit(ctx, changes); err != nil {
		l.logger.Error().Str("op", op).Err(err).Msg("failed to persist ledger changes")
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	prev := l.pending
	l.pending = credit
	if credit != nil {
		if err := l.deliver(ctx, *credit); err != nil {
			l.revert(ctx, op, changes)
			l.pending = prev
			return fmt.Errorf("%w: %v", ErrTreasury, err)
		}
	}

	t.apply()
	l.sequence = seq
	l.fee = uint32(t.read(feeKey).Big().Uint64())
	metrics.LedgerSequence.Set(float64(seq))
	metrics.FeePercentage.Set(float64(l.fee))

	evt := l.logger.Info().Str("op", op).Uint64("sequence", seq)
	if p.fields != nil {
		p.fields(evt)
	}
	evt.Msg("operation committed")

	if p.event != nil {
		p.event.Sequence = seq
		p.event.Time = l.now().UTC()
		l.queueMu.Lock()
		l.queue = append(l.queue, *p.event)
		l.queueMu.Unlock()
	}
	return nil
}

// flush publishes every queued event in sequence order. A caller whose event
// was taken by a concurrent flush waits for that flush to finish.
func (l *Ledger) flush(ctx context.Context) {
	l.pubMu.Lock()
	defer l.pubMu.Unlock()

	l.queueMu.Lock()
	events := l.queue
	l.queue = nil
	l.queueMu.Unlock()

	for _, ev := range events {
		if err := l.publisher.Publish(ctx, ev); err != nil {
			l.logger.Warn().Str("kind", string(ev.Kind)).Uint64("sequence", ev.Sequence).Err(err).Msg("failed to publish event")
		}
	}
}

func (l *Ledger) revert(ctx context.Context, op string, changes []Change) {
	undo := make([]Change, len(changes))
	for i, c := range changes {
		undo[i] = c.Inverse()
	}
	if err := l.store.Commit(ctx, undo); err != nil {
		l.logger.Error().Str("op", op).Err(err).Msg("failed to revert persisted changes; store diverges from memory until restart")
	}
}

// approx converts a balance to float64 for metrics only.
func approx(b amount.Balance) float64 {
	f, _ := strconv.ParseFloat(b.String(), 64)
	return f
}

// Reserve returns the pool's holdings of token.
func (l *Ledger) Reserve(token TokenID) amount.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[ReserveKey(token)]
}

// Contribution returns the liquidity account has contributed in token.
func (l *Ledger) Contribution(account AccountID, token TokenID) amount.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[ContributionKey(account, token)]
}

// TotalContribution returns the sum of all contributions in token.
func (l *Ledger) TotalContribution(token TokenID) amount.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[TotalContributionKey(token)]
}

// FeePercentage returns the current fee rate.
func (l *Ledger) FeePercentage() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fee
}

// ProtocolFund returns the account protocol fees are credited to.
func (l *Ledger) ProtocolFund() AccountID {
	return l.protocolFund
}

// Sequence returns the number of committed operations.
func (l *Ledger) Sequence() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sequence
}
