package ledger

import (
	"context"

	"github.com/LeJamon/swapx/internal/core/amount"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators.go -package=mocks

// RateOracle supplies the exchange rate between two tokens as units of
// tokenOut per unit of tokenIn, scaled by amount.RateScale. It must not
// mutate the ledger. A zero rate is treated as no rate.
type RateOracle interface {
	Rate(ctx context.Context, tokenIn, tokenOut TokenID) (amount.Balance, error)
}

// FeeCredit is the protocol share of the fee of one committed operation.
// Sequence is the ledger sequence of that operation.
type FeeCredit struct {
	Sequence uint64
	Fund     AccountID
	Token    TokenID
	Amount   amount.Balance
}

// Treasury receives the protocol share of swap and removal fees. Credit is
// called inside the operation; an error aborts and reverts it. A credit
// whose acknowledgement was lost is delivered again when the ledger is
// reopened, so Credit must ignore a repeat of the last credit it applied.
type Treasury interface {
	Credit(ctx context.Context, c FeeCredit) error
}

// Publisher delivers notifications of committed operations. Errors are
// logged and never undo the operation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Store persists ledger entries. Commit must apply all changes or none.
type Store interface {
	Load(ctx context.Context) (map[EntryKey]amount.Balance, error)
	Commit(ctx context.Context, changes []Change) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

type memoryStore struct{}

func (memoryStore) Load(context.Context) (map[EntryKey]amount.Balance, error) {
	return map[EntryKey]amount.Balance{}, nil
}

func (memoryStore) Commit(context.Context, []Change) error { return nil }
