package normalize

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"dexpnl/internal/model"
)

// ErrUnknownToken is returned for a symbol missing from the precision registry.
var ErrUnknownToken = errors.New("token not in decimals registry")

// Normalizer scales raw integer amounts by each token's decimal precision.
type Normalizer struct {
	decimals map[string]int32
}

// NewNormalizer creates a Normalizer over a static symbol -> precision registry.
func NewNormalizer(decimals map[string]int32) *Normalizer {
	reg := make(map[string]int32, len(decimals))
	for sym, p := range decimals {
		reg[sym] = p
	}
	return &Normalizer{decimals: reg}
}

// Token returns the registry entry for symbol.
func (n *Normalizer) Token(symbol string) (model.Token, error) {
	p, ok := n.decimals[symbol]
	if !ok {
		return model.Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return model.Token{Symbol: symbol, Precision: p}, nil
}

// Normalize converts tx into decimal quantities. ok is false when either leg
// is exactly zero, or when both legs share a sign, and the swap should be dropped.
func (n *Normalizer) Normalize(tx model.SwapTransaction) (swap model.NormalizedSwap, ok bool, err error) {
	t0, err := n.Token(tx.Token0)
	if err != nil {
		return swap, false, err
	}
	t1, err := n.Token(tx.Token1)
	if err != nil {
		return swap, false, err
	}
	if tx.Amount0 == nil || tx.Amount1 == nil {
		return swap, false, fmt.Errorf("swap %s: missing amount", tx.TxHash)
	}

	swap = model.NormalizedSwap{
		TxHash:      tx.TxHash,
		UserAddress: tx.UserAddress,
		Token0:      tx.Token0,
		Token1:      tx.Token1,
		Amount0:     decimal.NewFromBigInt(tx.Amount0, -t0.Precision),
		Amount1:     decimal.NewFromBigInt(tx.Amount1, -t1.Precision),
		Timestamp:   tx.Timestamp,
	}
	if swap.Amount0.IsZero() || swap.Amount1.IsZero() {
		return swap, false, nil
	}
	// exactly one leg leaves the pool
	if swap.Amount0.Sign() == swap.Amount1.Sign() {
		return swap, false, nil
	}
	return swap, true, nil
}

// NormalizeAll normalizes txs in order, returning the kept swaps and the
// number dropped for a zero or one-sided leg pair. The first registry miss aborts.
func (n *Normalizer) NormalizeAll(txs []model.SwapTransaction) ([]model.NormalizedSwap, int, error) {
	out := make([]model.NormalizedSwap, 0, len(txs))
	dropped := 0
	for _, tx := range txs {
		swap, ok, err := n.Normalize(tx)
		if err != nil {
			return nil, 0, fmt.Errorf("pool %s tx %s: %w", tx.Pool, tx.TxHash, err)
		}
		if !ok {
			dropped++
			continue
		}
		out = append(out, swap)
	}
	return out, dropped, nil
}
