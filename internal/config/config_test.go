package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Ledger.MinBuys)
	assert.Equal(t, 25, cfg.Ledger.MinSells)
	assert.Equal(t, 100, cfg.Ranking.TopN)
	assert.Equal(t, int32(6), cfg.Tokens.Decimals["USDC"])
	assert.Equal(t, int32(8), cfg.Tokens.Decimals["WBTC"])
	assert.Equal(t, "ETH", cfg.Prices.Canonical["WETH"])
	assert.Contains(t, cfg.Prices.Stable, "FRAX")
	assert.Equal(t, "files", cfg.Pools.Source)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
pools:
  dir: /data/pools
  targets: [WETH_USDT]
tokens:
  decimals:
    weth: 18
    usdt: 6
prices:
  stable: [usdt]
  canonical:
    weth: eth
ledger:
  min_buys: 3
  min_sells: 4
volume:
  reference_prices:
    weth: 2525.04
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("RANKING_TOP_N", "7")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/data/pools", cfg.Pools.Dir)
	assert.Equal(t, []string{"WETH_USDT"}, cfg.Pools.Targets)
	assert.Equal(t, int32(18), cfg.Tokens.Decimals["WETH"])
	assert.Equal(t, int32(6), cfg.Tokens.Decimals["USDT"])
	assert.Equal(t, []string{"USDT"}, cfg.Prices.Stable)
	assert.Equal(t, "ETH", cfg.Prices.Canonical["WETH"])
	assert.Equal(t, 3, cfg.Ledger.MinBuys)
	assert.Equal(t, 4, cfg.Ledger.MinSells)
	assert.Equal(t, 7, cfg.Ranking.TopN)
	assert.InDelta(t, 2525.04, cfg.Volume.ReferencePrices["WETH"], 1e-9)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ledger: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_EnvWithoutDefaults(t *testing.T) {
	t.Setenv("DATABASE_USER", "reader")
	t.Setenv("DATABASE_PASSWORD", "s3cret")
	t.Setenv("DATABASE_DBNAME", "events")
	t.Setenv("LOG_FILE", "/var/log/dexpnl.log")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "reader", cfg.Database.User)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "events", cfg.Database.DBName)
	assert.Equal(t, "/var/log/dexpnl.log", cfg.Log.File)
}
