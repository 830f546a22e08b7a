package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dexpnl/internal/analysis"
	"dexpnl/internal/config"
	"dexpnl/internal/database"
	"dexpnl/internal/export"
	"dexpnl/internal/ledger"
	"dexpnl/internal/model"
	"dexpnl/internal/normalize"
	"dexpnl/internal/price"
	"dexpnl/internal/source"
)

// Result summarises one batch run.
type Result struct {
	RunID       string
	Swaps       int
	Dropped     int
	Ranked      []model.UserPerformance
	Correlation *float64
	Files       []string
}

// Run loads prices and swaps, ranks users by realized PnL and writes the
// exports. Malformed inputs abort the run before anything is written.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logger = logger.With("run", res.RunID)

	oracle, err := price.LoadOracleFile(cfg.Prices.File,
		price.WithStable(cfg.Prices.Stable...),
		price.WithCanonical(cfg.Prices.Canonical),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded price table", "file", cfg.Prices.File, "entries", oracle.Len())

	var repo database.Repository
	if cfg.Database.Enabled {
		pool, err := database.Connect(ctx, database.ConnString(cfg.Database), 30*time.Second)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		repo = database.NewPostgresRepository(pool, logger, cfg.Pools.Targets)
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	var src source.Source
	switch cfg.Pools.Source {
	case "database":
		if repo == nil {
			return nil, errors.New("pools.source is database but database.enabled is false")
		}
		src = repo
	case "files", "":
		src = source.NewFileSource(logger, cfg.Pools.Dir, cfg.Pools.Targets)
	default:
		return nil, fmt.Errorf("unknown pools.source %q", cfg.Pools.Source)
	}

	raw, err := src.LoadSwaps(ctx)
	if err != nil {
		return nil, err
	}
	swaps, dropped, err := normalize.NewNormalizer(cfg.Tokens.Decimals).NormalizeAll(raw)
	if err != nil {
		return nil, err
	}
	res.Swaps, res.Dropped = len(swaps), dropped
	logger.Info("Normalized swaps", "kept", len(swaps), "dropped", dropped)

	engine := ledger.NewEngine(logger, oracle, ledger.Config{
		MinBuys:  cfg.Ledger.MinBuys,
		MinSells: cfg.Ledger.MinSells,
	})
	agg := analysis.NewAggregator(logger, engine, cfg.Ranking.Workers, cfg.Ranking.TopN)
	res.Ranked, err = agg.Rank(ctx, swaps)
	if err != nil {
		return nil, err
	}
	for i, p := range res.Ranked {
		if i >= 10 {
			break
		}
		logger.Info("Top performer",
			"rank", i+1,
			"user", p.UserAddress,
			"profit", p.RealizedProfit.StringFixed(2),
			"buys", p.BuyCount,
			"sells", p.SellCount,
		)
	}

	exp := export.NewExporter(logger, cfg.Ranking.OutputDir)
	for _, write := range []func([]model.UserPerformance) (string, error){exp.WriteAddresses, exp.WriteRanking} {
		path, err := write(res.Ranked)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}

	if len(cfg.Volume.ReferencePrices) > 0 {
		addrs := analysis.Addresses(res.Ranked)
		volumes := make([]map[string]float64, len(res.Ranked))
		for i, p := range res.Ranked {
			volumes[i] = analysis.VolumeInUnit(p, cfg.Volume.ReferencePrices, oracle.IsStable)
		}
		path, err := exp.WriteVolumeInUnit(addrs, volumes)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, path)
	}

	if cfg.Correlation.Enabled {
		if err := correlate(cfg, logger, oracle, swaps, res, exp); err != nil {
			return nil, err
		}
	}

	if repo != nil {
		if err := repo.SavePerformance(ctx, res.RunID, res.Ranked); err != nil {
			return nil, err
		}
		logger.Info("Saved ranking to database", "users", len(res.Ranked))
	}
	return res, nil
}

func correlate(cfg config.Config, logger *slog.Logger, oracle *price.Oracle, swaps []model.NormalizedSwap, res *Result, exp *export.Exporter) error {
	volume := analysis.DailyVolume(swaps, analysis.Addresses(res.Ranked), oracle)
	volatility := analysis.Volatility(oracle.Series(cfg.Correlation.ReferenceSymbol))

	path, err := exp.WriteCorrelation(volume, volatility)
	if err != nil {
		return err
	}
	res.Files = append(res.Files, path)

	r, n, err := analysis.Correlate(volume, volatility)
	if errors.Is(err, analysis.ErrInsufficientData) || errors.Is(err, analysis.ErrConstantSeries) {
		logger.Warn("Correlation undefined", "days", n, "reason", err)
		return nil
	}
	if err != nil {
		return err
	}
	res.Correlation = &r
	logger.Info("Volume/volatility correlation",
		"reference", cfg.Correlation.ReferenceSymbol,
		"days", n,
		"correlation", r,
	)
	return nil
}
