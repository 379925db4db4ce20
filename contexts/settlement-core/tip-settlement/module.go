package tipsettlement

import (
	"log/slog"

	"github.com/shopspring/decimal"

	httpadapter "tippy/contexts/settlement-core/tip-settlement/adapters/http"
	"tippy/contexts/settlement-core/tip-settlement/adapters/memory"
	"tippy/contexts/settlement-core/tip-settlement/application"
	"tippy/contexts/settlement-core/tip-settlement/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Tips                  ports.TipRepository
	WebhookLog            ports.WebhookLogRepository
	Restaurants           ports.RestaurantConfigReader
	Distributor           ports.DistributionTrigger
	Outbox                ports.OutboxWriter
	Clock                 ports.Clock
	IDGen                 ports.IDGenerator
	DefaultCommissionRate decimal.Decimal
	Logger                *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Tips:                  deps.Tips,
		WebhookLog:            deps.WebhookLog,
		Restaurants:           deps.Restaurants,
		Distributor:           deps.Distributor,
		Outbox:                deps.Outbox,
		Clock:                 deps.Clock,
		IDGen:                 deps.IDGen,
		DefaultCommissionRate: deps.DefaultCommissionRate,
		Logger:                deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the module against the in-process store, used by
// tests and local runs. The distributor is provided by the caller so the
// settlement path can drive a real distribution-engine module.
func NewInMemoryModule(
	commissionRates map[string]decimal.Decimal,
	distributor ports.DistributionTrigger,
	logger *slog.Logger,
) Module {
	store := memory.NewStore(commissionRates)
	module := NewModule(Dependencies{
		Tips:                  store,
		WebhookLog:            store,
		Restaurants:           store,
		Distributor:           distributor,
		Outbox:                store,
		Clock:                 store,
		IDGen:                 store,
		DefaultCommissionRate: decimal.NewFromInt(10),
		Logger:                logger,
	})
	module.Store = store
	return module
}
