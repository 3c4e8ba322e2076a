package cronrunner

import (
	"context"

	"go.uber.org/zap"
)

// Sweeper removes loot split sessions whose collection window has closed.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SweepJob returns a cron job that sweeps expired sessions and logs the outcome.
func SweepJob(s Sweeper, logger *zap.Logger) func(context.Context) {
	return func(ctx context.Context) {
		n, err := s.SweepExpired(ctx)
		if err != nil {
			logger.Error("expired session sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("expired sessions swept", zap.Int64("deleted", n))
		}
	}
}
