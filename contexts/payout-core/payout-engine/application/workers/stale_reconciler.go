package workers

import (
	"context"
	"log/slog"
	"time"

	application "tippy/contexts/payout-core/payout-engine/application"
)

// StaleReconciler sweeps payouts stuck in processing past the horizon
// and settles them from the rail's out-of-band status answer.
type StaleReconciler struct {
	Service   application.Service
	OlderThan time.Duration
	BatchSize int
	Logger    *slog.Logger
}

func (j StaleReconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	olderThan := j.OlderThan
	if olderThan <= 0 {
		olderThan = 30 * time.Minute
	}

	reconciled, err := j.Service.ReconcileStale(ctx, olderThan, j.BatchSize)
	if err != nil {
		logger.Error("stale payout sweep failed",
			"event", "payout_stale_sweep_failed",
			"module", "payout-core/payout-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if reconciled > 0 {
		logger.Info("stale payout sweep completed",
			"event", "payout_stale_sweep_completed",
			"module", "payout-core/payout-engine",
			"layer", "worker",
			"reconciled_count", reconciled,
		)
	}
	return nil
}
