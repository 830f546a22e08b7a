package price

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"dexpnl/internal/model"
)

// DefaultStable is the set of unit-of-account tokens priced at exactly 1.
var DefaultStable = []string{"USDT", "USDC", "DAI", "FRAX", "LDO"}

// DefaultCanonical maps wrapped assets onto the reference series they track.
var DefaultCanonical = map[string]string{"WETH": "ETH", "WBTC": "BTC"}

// Record is one row of the reference price table.
type Record struct {
	Date   string
	Symbol string
	Price  decimal.Decimal
}

type key struct {
	date   string
	symbol string
}

// Oracle answers price lookups against an immutable table.
// It is safe for concurrent use once constructed.
type Oracle struct {
	table     map[key]decimal.Decimal
	stable    map[string]struct{}
	canonical map[string]string
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithStable replaces the unit-of-account token set.
func WithStable(symbols ...string) Option {
	return func(o *Oracle) {
		o.stable = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			o.stable[strings.ToUpper(s)] = struct{}{}
		}
	}
}

// WithCanonical replaces the wrapped-asset symbol map.
func WithCanonical(m map[string]string) Option {
	return func(o *Oracle) {
		o.canonical = make(map[string]string, len(m))
		for from, to := range m {
			o.canonical[strings.ToUpper(from)] = strings.ToUpper(to)
		}
	}
}

// NewOracle builds an Oracle from price records. Later records for the same
// (date, symbol) overwrite earlier ones.
func NewOracle(records []Record, opts ...Option) *Oracle {
	o := &Oracle{table: make(map[key]decimal.Decimal, len(records))}
	WithStable(DefaultStable...)(o)
	WithCanonical(DefaultCanonical)(o)
	for _, opt := range opts {
		opt(o)
	}
	for _, r := range records {
		o.table[key{date: r.Date, symbol: strings.ToUpper(r.Symbol)}] = r.Price
	}
	return o
}

// IsStable reports whether symbol is a unit-of-account token.
func (o *Oracle) IsStable(symbol string) bool {
	_, ok := o.stable[symbol]
	return ok
}

// Canonical returns the reference series name for symbol.
func (o *Oracle) Canonical(symbol string) string {
	if c, ok := o.canonical[symbol]; ok {
		return c
	}
	return symbol
}

// Price returns the unit-of-account price of symbol on date (model.DateLayout).
// The boolean is false when the table has no entry; that is not an error.
func (o *Oracle) Price(symbol, date string) (decimal.Decimal, bool) {
	if o.IsStable(symbol) {
		return decimal.NewFromInt(1), true
	}
	p, ok := o.table[key{date: date, symbol: o.Canonical(symbol)}]
	return p, ok
}

// Series returns the date-ascending price series of symbol after canonicalization.
func (o *Oracle) Series(symbol string) []model.DailyPoint {
	sym := o.Canonical(strings.ToUpper(symbol))
	var out []model.DailyPoint
	for k, p := range o.table {
		if k.symbol != sym {
			continue
		}
		out = append(out, model.DailyPoint{Date: k.date, Value: p.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Len returns the number of entries in the table.
func (o *Oracle) Len() int {
	return len(o.table)
}
