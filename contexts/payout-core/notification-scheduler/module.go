package notificationscheduler

import (
	"context"
	"log/slog"

	"tippy/contexts/payout-core/notification-scheduler/adapters/memory"
	"tippy/contexts/payout-core/notification-scheduler/application"
	"tippy/contexts/payout-core/notification-scheduler/ports"
)

type Module struct {
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Intents  ports.IntentRepository
	Payouts  ports.PendingPayoutsReader
	Policies ports.NotifyPolicyReader
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	// DefaultDaysBefore applies to restaurants without a stored notice
	// policy; zero falls back to the domain default.
	DefaultDaysBefore int
	Logger            *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Service: application.Service{
			Intents:           deps.Intents,
			Payouts:           deps.Payouts,
			Policies:          deps.Policies,
			Clock:             deps.Clock,
			IDGen:             deps.IDGen,
			DefaultDaysBefore: deps.DefaultDaysBefore,
			Logger:            deps.Logger,
		},
	}
}

// EventHandler adapts the service to the bus consumer signature.
func (m Module) EventHandler() func(context.Context, ports.EventEnvelope) error {
	return func(ctx context.Context, event ports.EventEnvelope) error {
		return m.Service.HandleDisbursementEvent(ctx, event)
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Intents:  store,
		Payouts:  store,
		Policies: store,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
