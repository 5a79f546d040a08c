// Package events delivers ledger events to in-process subscribers and to a
// SQL journal.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/metrics"
)

// Bus fans events out to subscribers. A subscriber that falls behind loses
// events rather than stalling the ledger.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan ledger.Event
	nextID uint64
	buffer int
	logger zerolog.Logger
}

// NewBus returns a bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int, logger zerolog.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[uint64]chan ledger.Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber. The returned cancel function closes the
// channel and must be called once the subscriber is done.
func (b *Bus) Subscribe() (<-chan ledger.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ledger.Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish implements ledger.Publisher. It never blocks.
func (b *Bus) Publish(_ context.Context, ev ledger.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			metrics.PublishFailuresTotal.WithLabelValues("bus").Inc()
			b.logger.Warn().Uint64("subscriber", id).Uint64("sequence", ev.Sequence).Msg("subscriber lagging, event dropped")
		}
	}
	return nil
}

// Multi publishes to each publisher in order and joins their errors.
type Multi []ledger.Publisher

// Publish implements ledger.Publisher.
func (m Multi) Publish(ctx context.Context, ev ledger.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
