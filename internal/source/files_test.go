package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wethUSDT = `{
  "0xbbb": [
    {
      "tx_hash": "0x02",
      "user_address": "0xbbb",
      "token0": "WETH",
      "amount0": 500000000000000000,
      "token1": "USDT",
      "amount1": "-1250000000",
      "timestamp": "2024-09-02 08:30:00+00:00",
      "pool_liquidity": 123456789012345678901234
    }
  ],
  "0xaaa": [
    {
      "tx_hash": "0x01",
      "user_address": "0xaaa",
      "token0": "WETH",
      "amount0": -1000000000000000000,
      "token1": "USDT",
      "amount1": 2500000000,
      "timestamp": "2024-09-01T10:00:00Z"
    }
  ]
}`

func writePool(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestFileSource_LoadSwaps(t *testing.T) {
	dir := t.TempDir()
	writePool(t, dir, "data_WETH_USDT.json", wethUSDT)
	writePool(t, dir, "data_PEPE_WETH.json", `{"0xccc": []}`)
	writePool(t, dir, "notes.json", `not a pool`)

	src := NewFileSource(testLogger(), dir, []string{"WETH_USDT"})
	swaps, err := src.LoadSwaps(context.Background())
	require.NoError(t, err)
	require.Len(t, swaps, 2)

	first := swaps[0]
	assert.Equal(t, "0x01", first.TxHash)
	assert.Equal(t, "0xaaa", first.UserAddress)
	assert.Equal(t, "WETH_USDT", first.Pool)
	assert.Equal(t, "-1000000000000000000", first.Amount0.String())
	assert.Equal(t, "2500000000", first.Amount1.String())
	assert.Equal(t, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Empty(t, first.PoolLiquidity)

	second := swaps[1]
	assert.Equal(t, "-1250000000", second.Amount1.String())
	assert.Equal(t, "123456789012345678901234", second.PoolLiquidity)
	assert.Equal(t, time.Date(2024, 9, 2, 8, 30, 0, 0, time.UTC), second.Timestamp)
}

func TestFileSource_AllPoolsWhenNoTargets(t *testing.T) {
	dir := t.TempDir()
	writePool(t, dir, "data_WETH_USDT.json", wethUSDT)
	writePool(t, dir, "data_WETH_USDT_0.json", `{"0xddd": [{"tx_hash": "0x03", "amount0": 1, "amount1": -1, "timestamp": "2024-09-03 00:00:00"}]}`)

	src := NewFileSource(testLogger(), dir, nil)
	files, err := src.Files()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	swaps, err := src.LoadSwaps(context.Background())
	require.NoError(t, err)
	require.Len(t, swaps, 3)
	last := swaps[2]
	assert.Equal(t, "0xddd", last.UserAddress, "user falls back to the map key")
	assert.Equal(t, "WETH", last.Token0, "tokens fall back to the file name")
	assert.Equal(t, "USDT", last.Token1)
}

func TestFileSource_Errors(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		_, err := NewFileSource(testLogger(), t.TempDir(), nil).LoadSwaps(context.Background())
		assert.ErrorIs(t, err, ErrNoPoolFiles)
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		writePool(t, dir, "data_WETH_USDT.json", `{"0xaaa": [`)
		_, err := NewFileSource(testLogger(), dir, nil).LoadSwaps(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_WETH_USDT.json")
	})

	t.Run("bad amount", func(t *testing.T) {
		dir := t.TempDir()
		writePool(t, dir, "data_WETH_USDT.json", `{"0xaaa": [{"amount0": "lots", "amount1": 1, "timestamp": "2024-09-01T00:00:00Z"}]}`)
		_, err := NewFileSource(testLogger(), dir, nil).LoadSwaps(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing amount", func(t *testing.T) {
		dir := t.TempDir()
		writePool(t, dir, "data_WETH_USDT.json", `{"0xaaa": [{"amount0": 1, "timestamp": "2024-09-01T00:00:00Z"}]}`)
		_, err := NewFileSource(testLogger(), dir, nil).LoadSwaps(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing amount")
	})

	t.Run("bad timestamp", func(t *testing.T) {
		dir := t.TempDir()
		writePool(t, dir, "data_WETH_USDT.json", `{"0xaaa": [{"amount0": 1, "amount1": -1, "timestamp": "yesterday"}]}`)
		_, err := NewFileSource(testLogger(), dir, nil).LoadSwaps(context.Background())
		assert.Error(t, err)
	})
}

func TestPoolName(t *testing.T) {
	t0, t1, err := PoolName("/pools/data_USDC_WETH_3.json")
	require.NoError(t, err)
	assert.Equal(t, "USDC", t0)
	assert.Equal(t, "WETH", t1)

	_, _, err = PoolName("/pools/prices.json")
	assert.Error(t, err)
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`1000000000000000000`, "1000000000000000000"},
		{`"-2500000000"`, "-2500000000"},
		{`"010"`, "10"},
		{`010`, "10"},
	}
	for _, tt := range tests {
		var a Amount
		require.NoError(t, a.UnmarshalJSON([]byte(tt.raw)), tt.raw)
		assert.Equal(t, tt.want, a.Value.String(), tt.raw)
	}

	for _, raw := range []string{`"0x10"`, `"0b101"`, `"1_000"`, `"1.5"`, `"abc"`} {
		var a Amount
		assert.Error(t, a.UnmarshalJSON([]byte(raw)), raw)
	}

	var a Amount
	require.NoError(t, a.UnmarshalJSON([]byte(`null`)))
	assert.Nil(t, a.Value)
}
