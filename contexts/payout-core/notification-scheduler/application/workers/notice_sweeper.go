package workers

import (
	"context"
	"log/slog"
	"time"

	application "tippy/contexts/payout-core/notification-scheduler/application"
	"tippy/contexts/payout-core/notification-scheduler/ports"
)

// NoticeSweeper runs the daily upcoming-payout notice decision.
type NoticeSweeper struct {
	Service application.Service
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (j NoticeSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	today := time.Now().UTC()
	if j.Clock != nil {
		today = j.Clock.Now().UTC()
	}

	created, err := j.Service.RunUpcomingSweep(ctx, today)
	if err != nil {
		logger.Error("upcoming notice sweep failed",
			"event", "notice_sweep_failed",
			"module", "payout-core/notification-scheduler",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if created > 0 {
		logger.Info("upcoming notice sweep completed",
			"event", "notice_sweep_completed",
			"module", "payout-core/notification-scheduler",
			"layer", "worker",
			"created_count", created,
		)
	}
	return nil
}
