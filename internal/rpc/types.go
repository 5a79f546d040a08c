package rpc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
)

// Request is a JSON-RPC call: {"method": "swap", "params": [{...}]}.
type Request struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params,omitempty"`
	ID     interface{}       `json:"id,omitempty"`
}

// Role gates access to methods.
type Role int

const (
	RoleGuest Role = iota
	RoleAdmin
)

// RpcContext carries request-scoped information into a handler.
type RpcContext struct {
	Context  context.Context
	Role     Role
	ClientIP string
}

// MethodHandler serves one RPC method.
type MethodHandler interface {
	Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	RequiredRole() Role
}

// methodFunc adapts a function to MethodHandler.
type methodFunc struct {
	fn   func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError)
	role Role
}

func (m methodFunc) Handle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return m.fn(ctx, params)
}

func (m methodFunc) RequiredRole() Role { return m.role }

// MethodRegistry maps method names to handlers.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

func (r *MethodRegistry) Register(name string, handler MethodHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = handler
}

func (r *MethodRegistry) Get(name string) (MethodHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.methods[name]
	return handler, exists
}

// List returns the registered method names in order.
func (r *MethodRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.methods))
	for name := range r.methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Ledger is the subset of *ledger.Ledger the methods need.
type Ledger interface {
	Deposit(ctx context.Context, caller ledger.AccountID, token ledger.TokenID, amt amount.Balance) error
	AddLiquidity(ctx context.Context, caller ledger.AccountID, token ledger.TokenID, amt amount.Balance) error
	RemoveLiquidity(ctx context.Context, caller ledger.AccountID, token ledger.TokenID, amt amount.Balance) error
	Swap(ctx context.Context, caller ledger.AccountID, tokenIn ledger.TokenID, amountIn amount.Balance, tokenOut ledger.TokenID, minAmountOut amount.Balance) error
	Quote(ctx context.Context, tokenIn ledger.TokenID, amountIn amount.Balance, tokenOut ledger.TokenID) (ledger.Quote, error)
	SwapRate(ctx context.Context, tokenIn, tokenOut ledger.TokenID) (amount.Balance, error)
	SetFeePercentage(ctx context.Context, rate uint32) error
	Reserve(token ledger.TokenID) amount.Balance
	Contribution(account ledger.AccountID, token ledger.TokenID) amount.Balance
	TotalContribution(token ledger.TokenID) amount.Balance
	FeePercentage() uint32
	Sequence() uint64
	AccountSequence(account ledger.AccountID) uint64
	Snapshot() ledger.State
}

// EventSource streams committed events.
type EventSource interface {
	Subscribe() (<-chan ledger.Event, func())
}

// EventHistory reads back journaled events.
type EventHistory interface {
	Events(ctx context.Context, after uint64, limit int) ([]ledger.Event, error)
}

// Method parameter shapes. Identity claims (account, public_key, signature,
// sequence) travel in the same object and are read by the identity resolver.

type liquidityParams struct {
	Token  ledger.TokenID `json:"token"`
	Amount amount.Balance `json:"amount"`
}

type swapParams struct {
	TokenIn      ledger.TokenID  `json:"token_in"`
	AmountIn     amount.Balance  `json:"amount_in"`
	TokenOut     ledger.TokenID  `json:"token_out"`
	MinAmountOut *amount.Balance `json:"min_amount_out,omitempty"`
	Slippage     *uint32         `json:"slippage,omitempty"`
}

type pairParams struct {
	TokenIn  ledger.TokenID `json:"token_in"`
	TokenOut ledger.TokenID `json:"token_out"`
}

type quoteParams struct {
	TokenIn  ledger.TokenID `json:"token_in"`
	AmountIn amount.Balance `json:"amount_in"`
	TokenOut ledger.TokenID `json:"token_out"`
	Slippage uint32         `json:"slippage"`
}

type feeParams struct {
	FeePercentage *uint32 `json:"fee_percentage"`
}

type accountParams struct {
	Account ledger.AccountID `json:"account"`
	Token   *ledger.TokenID  `json:"token,omitempty"`
}

type historyParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}
