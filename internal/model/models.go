package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day key used for price lookups and last-touch dates.
const DateLayout = "2006-01-02"

// Token is a symbol with its on-chain decimal precision.
type Token struct {
	Symbol    string
	Precision int32
}

// SwapTransaction is a raw swap event as read from a pool file or the event store.
// A negative Amount0 means the user received token0 and paid with token1.
type SwapTransaction struct {
	TxHash        string
	UserAddress   string
	Pool          string
	Token0        string
	Token1        string
	Amount0       *big.Int
	Amount1       *big.Int
	Timestamp     time.Time
	PoolLiquidity string
}

// NormalizedSwap is a swap with amounts scaled by each token's precision.
type NormalizedSwap struct {
	TxHash      string
	UserAddress string
	Token0      string
	Token1      string
	Amount0     decimal.Decimal
	Amount1     decimal.Decimal
	Timestamp   time.Time
}

// Date returns the UTC calendar day of the swap.
func (s NormalizedSwap) Date() string {
	return s.Timestamp.UTC().Format(DateLayout)
}

// IsBuy reports whether the user acquired token0.
func (s NormalizedSwap) IsBuy() bool {
	return s.Amount0.IsNegative()
}

// UserPerformance is the result of one ledger run.
type UserPerformance struct {
	UserAddress    string                     `db:"user_address"`
	RealizedProfit decimal.Decimal            `db:"realized_profit"`
	Volumes        map[string]decimal.Decimal `db:"volumes"`
	BuyCount       int                        `db:"buy_count"`
	SellCount      int                        `db:"sell_count"`
	// UnpricedTokens lists open positions that could not be valued at finalization.
	UnpricedTokens []string `db:"-"`
}

// DailyPoint is one value of a date-indexed series.
type DailyPoint struct {
	Date  string
	Value float64
}
