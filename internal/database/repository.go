package database

import (
	"context"

	"dexpnl/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LoadSwaps(ctx context.Context) ([]model.SwapTransaction, error)
	SavePerformance(ctx context.Context, runID string, perfs []model.UserPerformance) error
	Migrate(ctx context.Context) error
}
