package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"dexpnl/internal/model"
)

// ErrNoPoolFiles is returned when no pool file matches the configured targets.
var ErrNoPoolFiles = errors.New("no pool files found")

// Source yields raw swap events for every configured pool.
type Source interface {
	LoadSwaps(ctx context.Context) ([]model.SwapTransaction, error)
}

// Amount is a signed integer that may be encoded as a JSON number or string.
type Amount struct {
	Value *big.Int
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "null" || s == "" {
		a.Value = nil
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid integer amount %q", s)
	}
	a.Value = v
	return nil
}

type poolRecord struct {
	TxHash        string `json:"tx_hash"`
	UserAddress   string `json:"user_address"`
	Token0        string `json:"token0"`
	Amount0       Amount `json:"amount0"`
	Token1        string `json:"token1"`
	Amount1       Amount `json:"amount1"`
	Timestamp     string `json:"timestamp"`
	PoolLiquidity Amount `json:"pool_liquidity"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp accepts RFC3339 and the space-separated form; zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// PoolName extracts "TOKEN0_TOKEN1" from a data_TOKEN0_TOKEN1[_k].json file name.
func PoolName(path string) (token0, token1 string, err error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) < 3 || parts[0] != "data" {
		return "", "", fmt.Errorf("pool file name %q is not data_<token0>_<token1>.json", filepath.Base(path))
	}
	return parts[1], parts[2], nil
}

// FileSource reads per-pool JSON files keyed by user address.
type FileSource struct {
	logger  *slog.Logger
	dir     string
	targets map[string]struct{}
}

// NewFileSource creates a FileSource over dir. An empty targets list loads every pool.
func NewFileSource(logger *slog.Logger, dir string, targets []string) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	t := make(map[string]struct{}, len(targets))
	for _, p := range targets {
		t[strings.ToUpper(p)] = struct{}{}
	}
	return &FileSource{logger: logger, dir: dir, targets: t}
}

// Files lists the pool files selected by the targets, in name order.
func (s *FileSource) Files() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "data_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var files []string
	for _, m := range matches {
		t0, t1, err := PoolName(m)
		if err != nil {
			s.logger.Warn("Ignoring pool file", "file", m, "error", err)
			continue
		}
		if len(s.targets) > 0 {
			if _, ok := s.targets[strings.ToUpper(t0+"_"+t1)]; !ok {
				continue
			}
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPoolFiles, s.dir)
	}
	return files, nil
}

// LoadSwaps decodes every selected pool file. Any malformed file aborts the load.
func (s *FileSource) LoadSwaps(ctx context.Context) ([]model.SwapTransaction, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var all []model.SwapTransaction
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txs, err := s.loadFile(f)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Loaded pool file", "file", f, "swaps", len(txs))
		all = append(all, txs...)
	}
	return all, nil
}

func (s *FileSource) loadFile(path string) ([]model.SwapTransaction, error) {
	t0, t1, err := PoolName(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pool file %s: %w", path, err)
	}

	var byUser map[string][]poolRecord
	if err := sonnet.Unmarshal(data, &byUser); err != nil {
		return nil, fmt.Errorf("decoding pool file %s: %w", path, err)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	pool := t0 + "_" + t1
	var out []model.SwapTransaction
	for _, u := range users {
		for i, r := range byUser[u] {
			tx, err := r.toSwap(pool, u, t0, t1)
			if err != nil {
				return nil, fmt.Errorf("pool file %s user %s record %d: %w", path, u, i, err)
			}
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r poolRecord) toSwap(pool, user, token0, token1 string) (model.SwapTransaction, error) {
	if r.Amount0.Value == nil || r.Amount1.Value == nil {
		return model.SwapTransaction{}, errors.New("missing amount")
	}
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return model.SwapTransaction{}, err
	}
	if r.UserAddress != "" {
		user = r.UserAddress
	}
	if r.Token0 != "" {
		token0 = r.Token0
	}
	if r.Token1 != "" {
		token1 = r.Token1
	}
	var liquidity string
	if r.PoolLiquidity.Value != nil {
		liquidity = r.PoolLiquidity.Value.String()
	}
	return model.SwapTransaction{
		TxHash:        r.TxHash,
		UserAddress:   user,
		Pool:          pool,
		Token0:        token0,
		Token1:        token1,
		Amount0:       r.Amount0.Value,
		Amount1:       r.Amount1.Value,
		Timestamp:     ts,
		PoolLiquidity: liquidity,
	}, nil
}
