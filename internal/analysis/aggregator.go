package analysis

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"dexpnl/internal/model"
)

// Ledger runs the PnL accounting for a single user.
type Ledger interface {
	Run(address string, swaps []model.NormalizedSwap) (model.UserPerformance, bool)
}

// Aggregator groups swaps by user, runs the ledger per user and ranks the results.
type Aggregator struct {
	logger  *slog.Logger
	ledger  Ledger
	workers int
	topN    int
}

// NewAggregator creates an Aggregator. topN <= 0 keeps every ranked user;
// workers <= 0 runs users sequentially.
func NewAggregator(logger *slog.Logger, ledger Ledger, workers, topN int) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Aggregator{
		logger:  logger,
		ledger:  ledger,
		workers: workers,
		topN:    topN,
	}
}

// GroupByUser buckets swaps by user address, preserving input order within a user.
func GroupByUser(swaps []model.NormalizedSwap) map[string][]model.NormalizedSwap {
	groups := make(map[string][]model.NormalizedSwap)
	for _, s := range swaps {
		groups[s.UserAddress] = append(groups[s.UserAddress], s)
	}
	return groups
}

// Rank returns users that cleared the activity threshold, ordered by realized
// profit descending. Ties are broken by address for a stable order.
func (a *Aggregator) Rank(ctx context.Context, swaps []model.NormalizedSwap) ([]model.UserPerformance, error) {
	groups := GroupByUser(swaps)
	users := make([]string, 0, len(groups))
	for u := range groups {
		users = append(users, u)
	}
	sort.Strings(users)

	var (
		mu      sync.Mutex
		results []model.UserPerformance
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, u := range users {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			perf, ok := a.ledger.Run(u, groups[u])
			if !ok {
				return nil
			}
			mu.Lock()
			results = append(results, perf)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if c := results[i].RealizedProfit.Cmp(results[j].RealizedProfit); c != 0 {
			return c > 0
		}
		return results[i].UserAddress < results[j].UserAddress
	})

	a.logger.Info("Ranked users",
		"users", len(users),
		"active", len(results),
		"topN", a.topN,
	)

	if a.topN > 0 && len(results) > a.topN {
		results = results[:a.topN]
	}
	return results, nil
}

// Addresses returns the user addresses of perfs in rank order.
func Addresses(perfs []model.UserPerformance) []string {
	out := make([]string, len(perfs))
	for i, p := range perfs {
		out[i] = p.UserAddress
	}
	return out
}
