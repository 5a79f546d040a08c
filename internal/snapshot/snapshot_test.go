package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
)

func sampleState() ledger.State {
	return ledger.State{
		Sequence:      42,
		FeePercentage: 1,
		ProtocolFund:  ledger.AccountID{0xFD},
		Reserves: []ledger.TokenBalance{
			{Token: ledger.TokenID{0x0A}, Amount: amount.New(1_001_000)},
			{Token: ledger.TokenID{0x0B}, Amount: amount.Max},
		},
		Contributions: []ledger.AccountBalance{
			{Account: ledger.AccountID{0xA1}, Token: ledger.TokenID{0x0A}, Amount: amount.New(500)},
		},
		TotalContributions: []ledger.TokenBalance{
			{Token: ledger.TokenID{0x0A}, Amount: amount.New(500)},
		},
	}
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleState()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), magic))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)
}

func TestReadRejectsForeignInput(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("{}")))
	require.ErrorIs(t, err, ErrBadHeader)

	_, err = Read(bytes.NewReader([]byte("NOTASNAPSHOT")))
	require.ErrorIs(t, err, ErrBadHeader)

	corrupt := append(append([]byte{}, magic...), 0x01, 0x02, 0x03)
	_, err = Read(bytes.NewReader(corrupt))
	require.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.snap")
	require.NoError(t, Save(path, sampleState()))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleState(), got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.snap"))
	require.Error(t, err)
}
