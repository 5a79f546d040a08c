package ledger

import (
	"errors"

	"github.com/LeJamon/swapx/internal/core/amount"
)

// Result is the stable wire code for the outcome of a ledger operation.
type Result int

// Result codes are grouped by category:
// tem (-299..-200) malformed request, nothing was evaluated;
// tef (-199..-100) local failure of a collaborator or a replayed request,
// nothing was committed;
// ter (-99..-1) request may succeed later, nothing was committed;
// tec (100..199) request evaluated against ledger state and rejected.
const (
	TesSUCCESS Result = 0

	TemBAD_AMOUNT Result = -299
	TemBAD_FEE    Result = -298
	TemBAD_PAIR   Result = -297

	TefTREASURY Result = -199
	TefSTORE    Result = -198
	TefINTERNAL Result = -197
	TefPAST_SEQ Result = -196

	TerPRE_SEQ Result = -92

	TecINSUFFICIENT_LIQUIDITY Result = 101
	TecSLIPPAGE               Result = 102
	TecOVERFLOW               Result = 103
	TecUNDERFLOW              Result = 104
	TecNO_RATE                Result = 105
)

var resultNames = map[Result]string{
	TesSUCCESS:                "tesSUCCESS",
	TemBAD_AMOUNT:             "temBAD_AMOUNT",
	TemBAD_FEE:                "temBAD_FEE",
	TemBAD_PAIR:               "temBAD_PAIR",
	TefTREASURY:               "tefTREASURY",
	TefSTORE:                  "tefSTORE",
	TefINTERNAL:               "tefINTERNAL",
	TefPAST_SEQ:               "tefPAST_SEQ",
	TerPRE_SEQ:                "terPRE_SEQ",
	TecINSUFFICIENT_LIQUIDITY: "tecINSUFFICIENT_LIQUIDITY",
	TecSLIPPAGE:               "tecSLIPPAGE",
	TecOVERFLOW:               "tecOVERFLOW",
	TecUNDERFLOW:              "tecUNDERFLOW",
	TecNO_RATE:                "tecNO_RATE",
}

var resultMessages = map[Result]string{
	TesSUCCESS:                "The operation was applied.",
	TemBAD_AMOUNT:             "Amount must be greater than zero.",
	TemBAD_FEE:                "Fee percentage must be between 0 and 100.",
	TemBAD_PAIR:               "Swap must name two distinct tokens.",
	TefTREASURY:               "Protocol fee could not be forwarded to the treasury.",
	TefSTORE:                  "Ledger changes could not be persisted.",
	TefINTERNAL:               "Internal error.",
	TefPAST_SEQ:               "This sequence number has already passed.",
	TerPRE_SEQ:                "Sequence is ahead of the next expected value.",
	TecINSUFFICIENT_LIQUIDITY: "Insufficient liquidity.",
	TecSLIPPAGE:               "Output is below the requested minimum.",
	TecOVERFLOW:               "Arithmetic overflow.",
	TecUNDERFLOW:              "Arithmetic underflow.",
	TecNO_RATE:                "No exchange rate available for the pair.",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "tefINTERNAL"
}

// Message returns a human-readable description of the result.
func (r Result) Message() string {
	if msg, ok := resultMessages[r]; ok {
		return msg
	}
	return resultMessages[TefINTERNAL]
}

// IsSuccess reports whether r is TesSUCCESS.
func (r Result) IsSuccess() bool { return r == TesSUCCESS }

// IsMalformed reports whether the request was rejected before evaluation.
func (r Result) IsMalformed() bool { return r >= -299 && r <= -200 }

// IsTec reports whether the request was rejected by ledger state.
func (r Result) IsTec() bool { return r >= 100 && r <= 199 }

// ResultOf maps an error returned by the ledger to its Result code.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return TesSUCCESS
	case errors.Is(err, ErrInvalidAmount):
		return TemBAD_AMOUNT
	case errors.Is(err, ErrInvalidFee):
		return TemBAD_FEE
	case errors.Is(err, ErrInvalidPair):
		return TemBAD_PAIR
	case errors.Is(err, ErrTreasury):
		return TefTREASURY
	case errors.Is(err, ErrStore):
		return TefSTORE
	case errors.Is(err, ErrPastSequence):
		return TefPAST_SEQ
	case errors.Is(err, ErrFutureSequence):
		return TerPRE_SEQ
	case errors.Is(err, ErrInsufficientLiquidity):
		return TecINSUFFICIENT_LIQUIDITY
	case errors.Is(err, ErrSlippageExceeded):
		return TecSLIPPAGE
	case errors.Is(err, ErrOverflow):
		return TecOVERFLOW
	case errors.Is(err, ErrUnderflow):
		return TecUNDERFLOW
	case errors.Is(err, ErrOracleUnavailable):
		return TecNO_RATE
	case errors.Is(err, amount.ErrDivideByZero):
		return TecOVERFLOW
	default:
		return TefINTERNAL
	}
}
