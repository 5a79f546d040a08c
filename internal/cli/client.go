package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	"github.com/LeJamon/swapx/internal/grpc"
	"github.com/LeJamon/swapx/internal/identity"
)

var (
	// Client flags
	grpcAddr    string
	signingKey  string
	callTimeout time.Duration
	quoteAmount string
)

var callCmd = &cobra.Command{
	Use:   "call <method> [params-json]",
	Short: "Call a ledger method on a running daemon over gRPC",
	Long: `Call a ledger method (deposit, swap, pool_state, ...) on a running daemon.
With --key the params are signed for identity mode "signed"; they must then
carry "sequence", one past the account's last used sequence as reported by
account_liquidity. Integers beyond 2^53 are sent as decimal strings.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{}
		if len(args) == 2 {
			var err error
			if params, err = parseParams(args[1]); err != nil {
				return err
			}
		}
		return callDaemon(cmd, args[0], params)
	},
}

// parseParams decodes a JSON object keeping integers exact: numbers a double
// cannot hold become decimal strings before they are signed or sent.
func parseParams(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	if raw == nil {
		return nil, errors.New("params must be a JSON object")
	}
	return grpc.ExactNumbers(raw).(map[string]interface{}), nil
}

var rateCmd = &cobra.Command{
	Use:   "rate <token_in> <token_out>",
	Short: "Show the oracle rate of a pair, or a full quote with --amount",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := map[string]interface{}{"token_in": args[0], "token_out": args[1]}
		if quoteAmount == "" {
			return callDaemon(cmd, "swap_rate", params)
		}
		params["amount_in"] = quoteAmount
		return callDaemon(cmd, "swap_quote", params)
	},
}

func init() {
	for _, c := range []*cobra.Command{callCmd, rateCmd} {
		c.Flags().StringVar(&grpcAddr, "addr", "127.0.0.1:50051", "gRPC address of the daemon")
		c.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "call timeout")
		rootCmd.AddCommand(c)
	}
	callCmd.Flags().StringVar(&signingKey, "key", "", "hex secp256k1 private key used to sign params")
	rateCmd.Flags().StringVar(&quoteAmount, "amount", "", "input amount to quote")
}

// grpcName maps a ledger method to its gRPC method name.
func grpcName(method string) (string, error) {
	for _, m := range grpc.Methods {
		if m.Method == method || m.Name == method {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", method)
}

// signParams adds the identity claims for keyHex to params.
func signParams(keyHex string, params map[string]interface{}) (map[string]interface{}, error) {
	raw, err := hex.DecodeString(keyHex)
	if err != nil || len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("key must be %d hex-encoded bytes", secp256k1.PrivKeyBytesLen)
	}
	signed, err := identity.Sign(secp256k1.PrivKeyFromBytes(raw), params)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(signed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func callDaemon(cmd *cobra.Command, method string, params map[string]interface{}) error {
	name, err := grpcName(method)
	if err != nil {
		return err
	}
	if signingKey != "" {
		if params, err = signParams(signingKey, params); err != nil {
			return err
		}
	}

	c, err := grpc.Dial(grpcAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	resp, err := c.Call(ctx, name, params)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
