package grpc

import (
	"context"
	"encoding/json"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeJamon/swapx/internal/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "swapx.Ledger"

// Dispatcher runs a named ledger method. *rpc.Server implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, transport, method string, params json.RawMessage, role rpc.Role, ip string) (interface{}, *rpc.RpcError)
}

// LedgerServer is the handler type of the swapx.Ledger service.
type LedgerServer interface {
	Invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error)
}

// Methods maps gRPC method names to the ledger methods they run.
var Methods = []struct {
	Name   string
	Method string
}{
	{"Deposit", "deposit"},
	{"AddLiquidity", "add_liquidity"},
	{"RemoveLiquidity", "remove_liquidity"},
	{"Swap", "swap"},
	{"SwapRate", "swap_rate"},
	{"SwapQuote", "swap_quote"},
	{"SetFee", "set_fee"},
	{"PoolState", "pool_state"},
	{"AccountLiquidity", "account_liquidity"},
	{"EventHistory", "event_history"},
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*LedgerServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "swapx/ledger.proto",
	}
	for _, m := range Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler(m.Name, m.Method),
		})
	}
	return desc
}

func unaryHandler(name, method string) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return srv.(LedgerServer).Invoke(ctx, method, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(LedgerServer).Invoke(ctx, method, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ledgerService adapts a Dispatcher to LedgerServer.
type ledgerService struct {
	dispatcher Dispatcher
}

// Invoke converts req to JSON params, dispatches, and converts the result
// back into a Struct. Numbers that a double cannot hold exactly are rejected.
func (s *ledgerService) Invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	for name, v := range req.GetFields() {
		if err := checkNumber(name, v); err != nil {
			return nil, err
		}
	}
	params, err := json.Marshal(req.AsMap())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}

	role, ip := rpc.RoleGuest, ""
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ip = p.Addr.String()
		role = rpc.RoleForAddr(ip)
	}

	result, rpcErr := s.dispatcher.Dispatch(ctx, "grpc", method, params, role, ip)
	if rpcErr != nil {
		return nil, statusFromRpcError(rpcErr)
	}
	return toStruct(result)
}

// checkNumber rejects number values under v that are fractional, not finite
// or beyond MaxExactInteger.
func checkNumber(path string, v *structpb.Value) error {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > MaxExactInteger {
			return status.Errorf(codes.InvalidArgument,
				"field %q: %v is not an exact integer, send large or fractional values as decimal strings", path, n)
		}
	case *structpb.Value_StructValue:
		for name, f := range k.StructValue.GetFields() {
			if err := checkNumber(path+"."+name, f); err != nil {
				return err
			}
		}
	case *structpb.Value_ListValue:
		for i, e := range k.ListValue.GetValues() {
			if err := checkNumber(path+"["+strconv.Itoa(i)+"]", e); err != nil {
				return err
			}
		}
	}
	return nil
}

// toStruct round-trips v through JSON so custom marshalers (balances, IDs)
// produce the same field values as the JSON-RPC transport.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func statusFromRpcError(e *rpc.RpcError) error {
	code := codes.Unknown
	switch e.Code {
	case rpc.RpcINVALID_PARAMS, rpc.RpcJSON_RPC, rpc.RpcMISSING_COMMAND:
		code = codes.InvalidArgument
	case rpc.RpcMETHOD_NOT_FOUND:
		code = codes.Unimplemented
	case rpc.RpcCOMMAND_UNTRUSTED:
		code = codes.PermissionDenied
	case rpc.RpcBAD_IDENTITY:
		code = codes.Unauthenticated
	case rpc.RpcNOT_ENABLED:
		code = codes.FailedPrecondition
	case rpc.RpcLEDGER_REJECTED:
		code = codes.FailedPrecondition
	case rpc.RpcINTERNAL:
		code = codes.Internal
	}
	return status.Errorf(code, "%s: %s", e.ErrorString, e.Message)
}
