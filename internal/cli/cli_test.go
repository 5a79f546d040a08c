package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/swapx/internal/config"
	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/core/oracle"
	"github.com/LeJamon/swapx/internal/snapshot"
)

const (
	fundHex   = "B5F762798A53D543A014CAF8B297CFF8F2F937E8"
	tokenAHex = "0000000000000000000000000000000000000001"
	tokenBHex = "0000000000000000000000000000000000000002"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "swapxd.toml")
	content := `
[ledger]
fee_percentage = 1
protocol_fund = "` + fundHex + `"

[storage]
backend = "pebble"
path = "` + filepath.Join(dir, "data") + `"

[logging]
level = "error"
` + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configFile, debug, pretty, signingKey, quoteAmount = "", false, false, "", ""
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "swapxd version 0.1.0-dev")
}

func TestExportImport(t *testing.T) {
	conf := writeConfig(t, "")
	tokenA, err := ledger.ParseTokenID(tokenAHex)
	require.NoError(t, err)
	alice := ledger.AccountID{0xA1}

	in := ledger.State{
		Sequence:      9,
		FeePercentage: 4,
		Reserves:      []ledger.TokenBalance{{Token: tokenA, Amount: amount.New(5000)}},
		Contributions: []ledger.AccountBalance{{Account: alice, Token: tokenA, Amount: amount.New(4000)}},
		TotalContributions: []ledger.TokenBalance{
			{Token: tokenA, Amount: amount.New(4000)},
		},
	}
	snap := filepath.Join(t.TempDir(), "in.snap")
	require.NoError(t, snapshot.Save(snap, in))

	out, err := run(t, "--conf", conf, "import", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "imported sequence 9")

	exported := filepath.Join(t.TempDir(), "out.snap")
	out, err = run(t, "--conf", conf, "export", exported)
	require.NoError(t, err)
	assert.Contains(t, out, "exported sequence 9")

	got, err := snapshot.Load(exported)
	require.NoError(t, err)
	assert.Equal(t, in.Sequence, got.Sequence)
	assert.Equal(t, in.FeePercentage, got.FeePercentage)
	assert.Equal(t, in.Reserves, got.Reserves)
	assert.Equal(t, in.Contributions, got.Contributions)
	assert.Equal(t, in.TotalContributions, got.TotalContributions)
	assert.Equal(t, fundHex, got.ProtocolFund.String())
}

func TestImportRejectsGarbage(t *testing.T) {
	conf := writeConfig(t, "")
	bad := filepath.Join(t.TempDir(), "bad.snap")
	require.NoError(t, os.WriteFile(bad, []byte("not a snapshot"), 0644))

	_, err := run(t, "--conf", conf, "import", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshot.ErrBadHeader)
}

func TestTreasury(t *testing.T) {
	conf := writeConfig(t, "")
	out, err := run(t, "--conf", conf, "treasury")
	require.NoError(t, err)
	var holdings []interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &holdings))
	assert.Empty(t, holdings)

	conf = writeConfig(t, "\n[treasury]\nkind = \"discard\"\n")
	_, err = run(t, "--conf", conf, "treasury")
	assert.Error(t, err)
}

func TestOpenAppPersistsProtocolFees(t *testing.T) {
	conf := writeConfig(t, "")
	cfg, err := config.LoadConfig(conf)
	require.NoError(t, err)
	ctx := context.Background()
	tokenA, _ := ledger.ParseTokenID(tokenAHex)
	tokenB, _ := ledger.ParseTokenID(tokenBHex)
	alice := ledger.AccountID{0xA1}

	a, err := openApp(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.ledger.AddLiquidity(ctx, alice, tokenA, amount.New(1_000_000)))
	require.NoError(t, a.ledger.AddLiquidity(ctx, alice, tokenB, amount.New(1_000_000)))
	require.NoError(t, a.ledger.Swap(ctx, alice, tokenA, amount.New(1000), tokenB, amount.New(990)))
	require.NoError(t, a.Close())

	a, err = openApp(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, uint64(3), a.ledger.Sequence())
	assert.Equal(t, amount.New(999_015), a.ledger.Reserve(tokenB))
	fund, err := cfg.Ledger.ProtocolFundID()
	require.NoError(t, err)
	assert.Equal(t, amount.New(5), a.book.Balance(fund, tokenB))
}

func TestBuildOracle(t *testing.T) {
	o, err := buildOracle(config.OracleConfig{Kind: config.OracleParity})
	require.NoError(t, err)
	assert.IsType(t, oracle.Parity{}, o)

	o, err = buildOracle(config.OracleConfig{
		Kind:      config.OracleStatic,
		CacheSize: 8,
		Rates:     []config.RateConfig{{From: tokenAHex, To: tokenBHex, Rate: "2000000000000000000"}},
	})
	require.NoError(t, err)
	require.IsType(t, &oracle.Cached{}, o)

	tokenA, _ := ledger.ParseTokenID(tokenAHex)
	tokenB, _ := ledger.ParseTokenID(tokenBHex)
	rate, err := o.Rate(context.Background(), tokenA, tokenB)
	require.NoError(t, err)
	assert.Equal(t, amount.MustParse("2000000000000000000"), rate)
	rate, err = o.Rate(context.Background(), tokenB, tokenA)
	require.NoError(t, err)
	assert.Equal(t, amount.MustParse("500000000000000000"), rate)

	_, err = buildOracle(config.OracleConfig{Kind: "chainlink"})
	assert.Error(t, err)
}

func TestGRPCName(t *testing.T) {
	name, err := grpcName("swap_quote")
	require.NoError(t, err)
	assert.Equal(t, "SwapQuote", name)
	name, err = grpcName("PoolState")
	require.NoError(t, err)
	assert.Equal(t, "PoolState", name)
	_, err = grpcName("ledger_accept")
	assert.Error(t, err)
}

func TestSignParams(t *testing.T) {
	key := "0101010101010101010101010101010101010101010101010101010101010101"
	out, err := signParams(key, map[string]interface{}{"token": tokenAHex})
	require.NoError(t, err)
	assert.Equal(t, tokenAHex, out["token"])
	assert.NotEmpty(t, out["public_key"])
	assert.NotEmpty(t, out["signature"])

	_, err = signParams("abcd", nil)
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams(`{"token":"0A","amount":9007199254740993,"sequence":4,"slippage":1.5}`)
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", params["amount"])
	assert.Equal(t, float64(4), params["sequence"])
	assert.Equal(t, "1.5", params["slippage"])
	assert.Equal(t, "0A", params["token"])

	// the signature covers the exact decimal
	signed, err := signParams("0101010101010101010101010101010101010101010101010101010101010101", params)
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", signed["amount"])

	_, err = parseParams(`[1,2]`)
	assert.Error(t, err)
	_, err = parseParams(`null`)
	assert.Error(t, err)
}
