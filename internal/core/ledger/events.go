package ledger

import (
	"time"

	"github.com/LeJamon/swapx/internal/core/amount"
)

// EventKind names the four notifications the ledger emits.
type EventKind string

const (
	EventDeposit          EventKind = "deposit"
	EventSwap             EventKind = "swap"
	EventLiquidityAdded   EventKind = "liquidity_added"
	EventLiquidityRemoved EventKind = "liquidity_removed"
)

// Event announces a committed operation. For swaps Token/Amount describe the
// input side and TokenOut/AmountOut the output side; the other kinds leave
// the output fields empty.
type Event struct {
	Sequence  uint64          `json:"sequence"`
	Kind      EventKind       `json:"kind"`
	Account   AccountID       `json:"account"`
	Token     TokenID         `json:"token"`
	Amount    amount.Balance  `json:"amount"`
	TokenOut  *TokenID        `json:"token_out,omitempty"`
	AmountOut *amount.Balance `json:"amount_out,omitempty"`
	Time      time.Time       `json:"time"`
}
