package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls swapx.Ledger on a remote daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// MaxExactInteger is the largest magnitude a request may carry as a number.
// Struct numbers are doubles; anything larger travels as a decimal string.
const MaxExactInteger = 1<<53 - 1

// ExactNumbers returns v with every json.Number replaced by a float64 when it
// is an integer no larger than MaxExactInteger in magnitude and by its
// decimal string otherwise. Maps and slices are copied.
func ExactNumbers(v interface{}) interface{} {
	switch v := v.(type) {
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil || n > MaxExactInteger || n < -MaxExactInteger {
			return v.String()
		}
		return float64(n)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = ExactNumbers(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = ExactNumbers(e)
		}
		return out
	default:
		return v
	}
}

// Call invokes the gRPC method name (e.g. "SwapRate") with params. Numbers
// decoded as json.Number are passed through ExactNumbers.
func (c *Client) Call(ctx context.Context, name string, params map[string]interface{}) (map[string]interface{}, error) {
	req, err := structpb.NewStruct(ExactNumbers(params).(map[string]interface{}))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+name, req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
