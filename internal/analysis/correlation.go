package analysis

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"dexpnl/internal/model"
)

// ErrInsufficientData is returned when fewer than two dates can be joined.
var ErrInsufficientData = errors.New("not enough overlapping data points")

// ErrConstantSeries is returned when either joined series has zero variance.
var ErrConstantSeries = errors.New("series has zero variance")

// Pricer values tokens in the unit of account.
type Pricer interface {
	Price(symbol, date string) (decimal.Decimal, bool)
	IsStable(symbol string) bool
}

// DailyVolume sums, per day, the unit-of-account volume of swaps made by the
// given addresses. A stable leg is taken at face value; otherwise token0 is
// valued at its price for the day and unpriced swaps are left out.
func DailyVolume(swaps []model.NormalizedSwap, addresses []string, prices Pricer) []model.DailyPoint {
	keep := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		keep[a] = struct{}{}
	}

	byDay := make(map[string]decimal.Decimal)
	for _, s := range swaps {
		if _, ok := keep[s.UserAddress]; !ok {
			continue
		}
		date := s.Date()
		var v decimal.Decimal
		switch {
		case prices.IsStable(s.Token0):
			v = s.Amount0.Abs()
		case prices.IsStable(s.Token1):
			v = s.Amount1.Abs()
		default:
			p, ok := prices.Price(s.Token0, date)
			if !ok {
				continue
			}
			v = s.Amount0.Abs().Mul(p)
		}
		byDay[date] = byDay[date].Add(v)
	}

	out := make([]model.DailyPoint, 0, len(byDay))
	for date, v := range byDay {
		out = append(out, model.DailyPoint{Date: date, Value: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Volatility converts a date-ascending price series into absolute
// day-over-day percentage changes. The first point has no predecessor and is dropped.
func Volatility(series []model.DailyPoint) []model.DailyPoint {
	if len(series) < 2 {
		return nil
	}
	out := make([]model.DailyPoint, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Value
		if prev == 0 {
			continue
		}
		out = append(out, model.DailyPoint{
			Date:  series[i].Date,
			Value: math.Abs(series[i].Value/prev-1) * 100,
		})
	}
	return out
}

// Correlate returns the Pearson correlation of two series over their common dates.
func Correlate(a, b []model.DailyPoint) (float64, int, error) {
	index := make(map[string]float64, len(b))
	for _, p := range b {
		index[p.Date] = p.Value
	}
	var xs, ys []float64
	for _, p := range a {
		if v, ok := index[p.Date]; ok {
			xs = append(xs, p.Value)
			ys = append(ys, v)
		}
	}
	if len(xs) < 2 {
		return 0, len(xs), ErrInsufficientData
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, len(xs), ErrConstantSeries
	}
	return r, len(xs), nil
}

// VolumeInUnit converts per-token traded volume with fixed reference prices.
// Stable tokens count at face value; tokens without a reference are omitted.
func VolumeInUnit(perf model.UserPerformance, refPrices map[string]float64, isStable func(string) bool) map[string]float64 {
	out := make(map[string]float64, len(perf.Volumes))
	for token, vol := range perf.Volumes {
		switch {
		case isStable(token):
			out[token] = vol.InexactFloat64()
		default:
			if p, ok := refPrices[token]; ok {
				out[token] = vol.InexactFloat64() * p
			}
		}
	}
	return out
}
