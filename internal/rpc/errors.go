package rpc

import (
	"errors"

	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/identity"
)

// RpcError is the error object of a failed call.
type RpcError struct {
	Code        int    `json:"error_code"`
	ErrorString string `json:"error"`
	Message     string `json:"error_message,omitempty"`
	// Result is set when the ledger evaluated and rejected the request.
	Result string `json:"engine_result,omitempty"`
}

func (e RpcError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.ErrorString
}

// Error codes outside the ledger's result range.
const (
	RpcUNKNOWN          = -1
	RpcJSON_RPC         = -32600
	RpcMETHOD_NOT_FOUND = -32601
	RpcINVALID_PARAMS   = -32602
	RpcINTERNAL         = -32603

	RpcMISSING_COMMAND   = 2
	RpcCOMMAND_UNTRUSTED = 3
	RpcNOT_ENABLED       = 31
	RpcBAD_IDENTITY      = 63
	RpcLEDGER_REJECTED   = 64
)

func NewRpcError(code int, errorString, message string) *RpcError {
	return &RpcError{Code: code, ErrorString: errorString, Message: message}
}

func RpcErrorInvalidParams(message string) *RpcError {
	return NewRpcError(RpcINVALID_PARAMS, "invalidParams", message)
}

func RpcErrorMethodNotFound(method string) *RpcError {
	return NewRpcError(RpcMETHOD_NOT_FOUND, "unknownCmd", "Unknown method: "+method)
}

func RpcErrorInternal(message string) *RpcError {
	return NewRpcError(RpcINTERNAL, "internal", message)
}

func RpcErrorNoPermission(method string) *RpcError {
	return NewRpcError(RpcCOMMAND_UNTRUSTED, "noPermission", "Method '"+method+"' requires admin privileges")
}

func RpcErrorNotEnabled(message string) *RpcError {
	return NewRpcError(RpcNOT_ENABLED, "notEnabled", message)
}

// RpcErrorFromIdentity reports a request that could not be tied to an account.
func RpcErrorFromIdentity(err error) *RpcError {
	if errors.Is(err, identity.ErrBadSignature) {
		return NewRpcError(RpcBAD_IDENTITY, "badSignature", err.Error())
	}
	return NewRpcError(RpcBAD_IDENTITY, "badIdentity", err.Error())
}

// RpcErrorFromLedger maps a ledger error to its result code.
func RpcErrorFromLedger(err error) *RpcError {
	res := ledger.ResultOf(err)
	if res == ledger.TefINTERNAL {
		return &RpcError{Code: RpcINTERNAL, ErrorString: "internal", Message: err.Error(), Result: res.String()}
	}
	return &RpcError{
		Code:        RpcLEDGER_REJECTED,
		ErrorString: res.String(),
		Message:     res.Message() + " " + err.Error(),
		Result:      res.String(),
	}
}
