package rpc

import (
	"context"
	"encoding/json"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/identity"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// registerAllMethods registers every method of the ledger API.
func (s *Server) registerAllMethods() {
	// Mutating methods, the caller is taken from the identity claims.
	s.registry.Register("deposit", methodFunc{fn: s.handleDeposit})
	s.registry.Register("add_liquidity", methodFunc{fn: s.handleAddLiquidity})
	s.registry.Register("remove_liquidity", methodFunc{fn: s.handleRemoveLiquidity})
	s.registry.Register("swap", methodFunc{fn: s.handleSwap})
	s.registry.Register("set_fee", methodFunc{fn: s.handleSetFee, role: RoleAdmin})

	// Queries
	s.registry.Register("swap_rate", methodFunc{fn: s.handleSwapRate})
	s.registry.Register("swap_quote", methodFunc{fn: s.handleSwapQuote})
	s.registry.Register("pool_state", methodFunc{fn: s.handlePoolState})
	s.registry.Register("account_liquidity", methodFunc{fn: s.handleAccountLiquidity})
	s.registry.Register("event_history", methodFunc{fn: s.handleEventHistory})
}

func decode(params json.RawMessage, v interface{}) *RpcError {
	if err := json.Unmarshal(params, v); err != nil {
		return RpcErrorInvalidParams("Invalid parameters: " + err.Error())
	}
	return nil
}

func (s *Server) caller(params json.RawMessage) (identity.Caller, *RpcError) {
	c, err := s.identity.Resolve(params)
	if err != nil {
		return identity.Caller{}, RpcErrorFromIdentity(err)
	}
	return c, nil
}

// liquidityCall decodes the shared parameters of deposit, add_liquidity and
// remove_liquidity and runs op for the resolved caller. op receives a context
// carrying the caller's sequence.
func (s *Server) liquidityCall(ctx *RpcContext, params json.RawMessage, op func(ctx context.Context, caller ledger.AccountID, p liquidityParams) error) (interface{}, *RpcError) {
	c, rpcErr := s.caller(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account := c.Account
	var p liquidityParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Token.IsZero() {
		return nil, RpcErrorInvalidParams("Missing field 'token'")
	}
	if err := op(c.Context(ctx.Context), account, p); err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	return map[string]interface{}{
		"engine_result":      ledger.TesSUCCESS.String(),
		"account":            account,
		"token":              p.Token,
		"amount":             p.Amount,
		"reserve":            s.ledger.Reserve(p.Token),
		"contribution":       s.ledger.Contribution(account, p.Token),
		"total_contribution": s.ledger.TotalContribution(p.Token),
		"account_sequence":   s.ledger.AccountSequence(account),
		"ledger_sequence":    s.ledger.Sequence(),
	}, nil
}

func (s *Server) handleDeposit(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return s.liquidityCall(ctx, params, func(opCtx context.Context, caller ledger.AccountID, p liquidityParams) error {
		return s.ledger.Deposit(opCtx, caller, p.Token, p.Amount)
	})
}

func (s *Server) handleAddLiquidity(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return s.liquidityCall(ctx, params, func(opCtx context.Context, caller ledger.AccountID, p liquidityParams) error {
		return s.ledger.AddLiquidity(opCtx, caller, p.Token, p.Amount)
	})
}

func (s *Server) handleRemoveLiquidity(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return s.liquidityCall(ctx, params, func(opCtx context.Context, caller ledger.AccountID, p liquidityParams) error {
		return s.ledger.RemoveLiquidity(opCtx, caller, p.Token, p.Amount)
	})
}

func (s *Server) handleSwap(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	c, rpcErr := s.caller(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account := c.Account
	var p swapParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.TokenIn.IsZero() || p.TokenOut.IsZero() {
		return nil, RpcErrorInvalidParams("Missing field 'token_in' or 'token_out'")
	}

	var minOut amount.Balance
	switch {
	case p.MinAmountOut != nil:
		minOut = *p.MinAmountOut
	case p.Slippage != nil:
		// Derive the floor from a fresh quote.
		q, err := s.ledger.Quote(ctx.Context, p.TokenIn, p.AmountIn, p.TokenOut)
		if err != nil {
			return nil, RpcErrorFromLedger(err)
		}
		if minOut, err = ledger.MinAmountOut(q.AmountOut, *p.Slippage); err != nil {
			return nil, RpcErrorFromLedger(err)
		}
	default:
		return nil, RpcErrorInvalidParams("One of 'min_amount_out' or 'slippage' is required")
	}

	if err := s.ledger.Swap(c.Context(ctx.Context), account, p.TokenIn, p.AmountIn, p.TokenOut, minOut); err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	return map[string]interface{}{
		"engine_result":    ledger.TesSUCCESS.String(),
		"account":          account,
		"token_in":         p.TokenIn,
		"amount_in":        p.AmountIn,
		"token_out":        p.TokenOut,
		"min_amount_out":   minOut,
		"reserve_in":       s.ledger.Reserve(p.TokenIn),
		"reserve_out":      s.ledger.Reserve(p.TokenOut),
		"account_sequence": s.ledger.AccountSequence(account),
		"ledger_sequence":  s.ledger.Sequence(),
	}, nil
}

func (s *Server) handleSetFee(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p feeParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.FeePercentage == nil {
		return nil, RpcErrorInvalidParams("Missing field 'fee_percentage'")
	}
	previous := s.ledger.FeePercentage()
	if err := s.ledger.SetFeePercentage(ctx.Context, *p.FeePercentage); err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	return map[string]interface{}{
		"engine_result":   ledger.TesSUCCESS.String(),
		"previous":        previous,
		"fee_percentage":  s.ledger.FeePercentage(),
		"ledger_sequence": s.ledger.Sequence(),
	}, nil
}

func (s *Server) handleSwapRate(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p pairParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	rate, err := s.ledger.SwapRate(ctx.Context, p.TokenIn, p.TokenOut)
	if err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	return map[string]interface{}{
		"token_in":  p.TokenIn,
		"token_out": p.TokenOut,
		"rate":      rate,
		"scale":     amount.RateScale,
	}, nil
}

func (s *Server) handleSwapQuote(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p quoteParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	q, err := s.ledger.Quote(ctx.Context, p.TokenIn, p.AmountIn, p.TokenOut)
	if err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	minOut, err := ledger.MinAmountOut(q.AmountOut, p.Slippage)
	if err != nil {
		return nil, RpcErrorFromLedger(err)
	}
	return map[string]interface{}{
		"token_in":       p.TokenIn,
		"amount_in":      p.AmountIn,
		"token_out":      p.TokenOut,
		"rate":           q.Rate,
		"amount_out_pre": q.AmountOutPre,
		"fee":            q.Fee,
		"protocol_fee":   q.ProtocolFee,
		"liquidity_fee":  q.LiquidityFee,
		"amount_out":     q.AmountOut,
		"min_amount_out": minOut,
		"slippage":       p.Slippage,
	}, nil
}

func (s *Server) handlePoolState(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	st := s.ledger.Snapshot()
	reserves := st.Reserves
	if reserves == nil {
		reserves = []ledger.TokenBalance{}
	}
	totals := st.TotalContributions
	if totals == nil {
		totals = []ledger.TokenBalance{}
	}
	return map[string]interface{}{
		"ledger_sequence":     st.Sequence,
		"fee_percentage":      st.FeePercentage,
		"protocol_fund":       st.ProtocolFund,
		"reserves":            reserves,
		"total_contributions": totals,
	}, nil
}

func (s *Server) handleAccountLiquidity(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p accountParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Account.IsZero() {
		return nil, RpcErrorInvalidParams("Missing field 'account'")
	}

	lines := []ledger.TokenBalance{}
	if p.Token != nil {
		if c := s.ledger.Contribution(p.Account, *p.Token); !c.IsZero() {
			lines = append(lines, ledger.TokenBalance{Token: *p.Token, Amount: c})
		}
	} else {
		for _, c := range s.ledger.Snapshot().Contributions {
			if c.Account == p.Account {
				lines = append(lines, ledger.TokenBalance{Token: c.Token, Amount: c.Amount})
			}
		}
	}
	return map[string]interface{}{
		"account":       p.Account,
		"contributions": lines,
		"sequence":      s.ledger.AccountSequence(p.Account),
	}, nil
}

func (s *Server) handleEventHistory(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	if s.history == nil {
		return nil, RpcErrorNotEnabled("Event journal is not configured")
	}
	var p historyParams
	if rpcErr := decode(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Limit <= 0 {
		p.Limit = defaultHistoryLimit
	}
	if p.Limit > maxHistoryLimit {
		p.Limit = maxHistoryLimit
	}
	evs, err := s.history.Events(ctx.Context, p.After, p.Limit)
	if err != nil {
		return nil, RpcErrorInternal("Failed to read event history: " + err.Error())
	}
	if evs == nil {
		evs = []ledger.Event{}
	}
	return map[string]interface{}{
		"after":  p.After,
		"limit":  p.Limit,
		"events": evs,
	}, nil
}
