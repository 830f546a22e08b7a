package export

import (
	"encoding/csv"
	"log/slog"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexpnl/internal/model"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return NewExporter(logger, t.TempDir()+"/out")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

var perfs = []model.UserPerformance{
	{
		UserAddress:    "0xwin",
		RealizedProfit: decimal.RequireFromString("120.5"),
		Volumes: map[string]decimal.Decimal{
			"WETH": decimal.RequireFromString("2"),
			"USDT": decimal.RequireFromString("5000"),
		},
	},
	{
		UserAddress:    "0xlose",
		RealizedProfit: decimal.RequireFromString("-3"),
		Volumes:        map[string]decimal.Decimal{},
	},
}

func TestExporter_WriteAddresses(t *testing.T) {
	e := testExporter(t)
	path, err := e.WriteAddresses(perfs)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0xwin\n0xlose\n", string(data))
}

func TestExporter_WriteRanking(t *testing.T) {
	e := testExporter(t)
	path, err := e.WriteRanking(perfs)
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"user_address", "profit_in_usdt", "volume_traded"}, rows[0])
	assert.Equal(t, "0xwin", rows[1][0])
	assert.Equal(t, "120.5", rows[1][1])
	assert.JSONEq(t, `{"WETH":"2","USDT":"5000"}`, rows[1][2])
	assert.Equal(t, "-3", rows[2][1])
	assert.JSONEq(t, `{}`, rows[2][2])
}

func TestExporter_WriteVolumeInUnit(t *testing.T) {
	e := testExporter(t)
	path, err := e.WriteVolumeInUnit(
		[]string{"0xa", "0xb"},
		[]map[string]float64{{"WETH": 5050.08, "USDT": 1000}, {"MATIC": 33}},
	)
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"user_address", "MATIC", "USDT", "WETH"}, rows[0])
	assert.Equal(t, []string{"0xa", "0", "1000", "5050.08"}, rows[1])
	assert.Equal(t, []string{"0xb", "33", "0", "0"}, rows[2])
}

func TestExporter_WriteCorrelation(t *testing.T) {
	e := testExporter(t)
	path, err := e.WriteCorrelation(
		[]model.DailyPoint{{Date: "2024-09-01", Value: 250}, {Date: "2024-09-02", Value: 30}},
		[]model.DailyPoint{{Date: "2024-09-02", Value: 4.2}},
	)
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"2024-09-01", "250", ""}, rows[1])
	assert.Equal(t, []string{"2024-09-02", "30", "4.2"}, rows[2])
}
