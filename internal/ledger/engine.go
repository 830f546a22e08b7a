package ledger

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"dexpnl/internal/model"
)

// PriceSource provides unit-of-account prices by calendar day.
type PriceSource interface {
	Price(symbol, date string) (decimal.Decimal, bool)
	IsStable(symbol string) bool
}

// Config holds the activity threshold. A user is reported only when both
// counts are strictly greater than the minimums.
type Config struct {
	MinBuys  int
	MinSells int
}

// DefaultConfig returns the 25/25 activity threshold.
func DefaultConfig() Config {
	return Config{MinBuys: 25, MinSells: 25}
}

// Engine computes realized PnL for one user at a time. It holds no per-user
// state, so a single Engine can serve concurrent runs.
type Engine struct {
	logger *slog.Logger
	prices PriceSource
	cfg    Config
}

// NewEngine creates a new ledger Engine.
func NewEngine(logger *slog.Logger, prices PriceSource, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		prices: prices,
		cfg:    cfg,
	}
}

// state is owned by exactly one Run and discarded when it returns.
type state struct {
	profit    decimal.Decimal
	balances  map[string]decimal.Decimal
	lastTouch map[string]string
	volumes   map[string]decimal.Decimal
	buys      int
	sells     int
	skipped   int
}

func newState() *state {
	return &state{
		balances:  make(map[string]decimal.Decimal),
		lastTouch: make(map[string]string),
		volumes:   make(map[string]decimal.Decimal),
	}
}

// leg is one side of a swap as seen from the user.
type leg struct {
	token   string
	amount  decimal.Decimal // absolute quantity
	price   decimal.Decimal
	acquire bool
}

// Run replays swaps for address in timestamp order and returns the user's
// performance. ok is false when the user does not clear the activity threshold.
func (e *Engine) Run(address string, swaps []model.NormalizedSwap) (perf model.UserPerformance, ok bool) {
	ordered := make([]model.NormalizedSwap, len(swaps))
	copy(ordered, swaps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	s := newState()
	for _, swap := range ordered {
		e.apply(s, swap)
	}
	unpriced := e.finalize(address, s)

	if s.skipped > 0 {
		e.logger.Debug("Skipped unpriced swaps", "user", address, "skipped", s.skipped)
	}
	if s.buys <= e.cfg.MinBuys || s.sells <= e.cfg.MinSells {
		return model.UserPerformance{}, false
	}

	return model.UserPerformance{
		UserAddress:    address,
		RealizedProfit: s.profit,
		Volumes:        s.volumes,
		BuyCount:       s.buys,
		SellCount:      s.sells,
		UnpricedTokens: unpriced,
	}, true
}

// apply settles one swap. A swap with either price missing leaves s untouched.
func (e *Engine) apply(s *state, swap model.NormalizedSwap) {
	date := swap.Date()
	p0, ok0 := e.prices.Price(swap.Token0, date)
	p1, ok1 := e.prices.Price(swap.Token1, date)
	if !ok0 || !ok1 {
		s.skipped++
		return
	}

	a0, a1 := swap.Amount0.Abs(), swap.Amount1.Abs()
	s.volumes[swap.Token0] = s.volumes[swap.Token0].Add(a0)
	s.volumes[swap.Token1] = s.volumes[swap.Token1].Add(a1)

	leg0 := leg{token: swap.Token0, amount: a0, price: p0}
	leg1 := leg{token: swap.Token1, amount: a1, price: p1}
	if swap.IsBuy() {
		s.buys++
		leg0.acquire = true
		e.settleLeg(s, leg0, date)
		e.settleLeg(s, leg1, date)
	} else {
		s.sells++
		leg1.acquire = true
		e.settleLeg(s, leg1, date)
		e.settleLeg(s, leg0, date)
	}
}

// settleLeg books one side of a swap. Stable legs move profit directly.
// A non-stable acquisition adds inventory; a non-stable disposal draws from
// inventory at price, and any shortfall beyond the balance is charged at price.
func (e *Engine) settleLeg(s *state, l leg, date string) {
	stable := e.prices.IsStable(l.token)

	if l.acquire {
		s.lastTouch[l.token] = date
		if stable {
			s.profit = s.profit.Add(l.amount)
			return
		}
		s.balances[l.token] = s.balances[l.token].Add(l.amount)
		return
	}

	if stable {
		s.profit = s.profit.Sub(l.amount.Mul(l.price))
		return
	}
	held := s.balances[l.token]
	covered := decimal.Min(l.amount, held)
	shortfall := l.amount.Sub(covered)

	s.profit = s.profit.Add(covered.Mul(l.price))
	s.balances[l.token] = held.Sub(covered)
	s.profit = s.profit.Sub(shortfall.Mul(l.price))
}

// finalize values every open position at its last-touch price. Positions with
// no price on that day contribute nothing and are returned.
func (e *Engine) finalize(address string, s *state) []string {
	tokens := make([]string, 0, len(s.balances))
	for token := range s.balances {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var unpriced []string
	for _, token := range tokens {
		balance := s.balances[token]
		if !balance.IsPositive() {
			continue
		}
		date := s.lastTouch[token]
		p, ok := e.prices.Price(token, date)
		if !ok {
			e.logger.Warn("No price to value open position",
				"user", address,
				"token", token,
				"date", date,
				"balance", balance.String(),
			)
			unpriced = append(unpriced, token)
			continue
		}
		s.profit = s.profit.Add(balance.Mul(p))
	}
	return unpriced
}
