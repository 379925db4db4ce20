package payoutengine

import (
	"log/slog"

	"github.com/shopspring/decimal"

	httpadapter "tippy/contexts/payout-core/payout-engine/adapters/http"
	"tippy/contexts/payout-core/payout-engine/adapters/memory"
	"tippy/contexts/payout-core/payout-engine/application"
	"tippy/contexts/payout-core/payout-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service

	// In-memory composition only.
	Store            *memory.Store
	MobileMoneyRail  *memory.MobileMoneyRail
	BankTransferRail *memory.BankTransferRail
	RailStatus       *memory.RailStatusStub
}

type Dependencies struct {
	Payouts          ports.PayoutRepository
	Tips             ports.TipTotalsReader
	Groups           ports.GroupConfigReader
	Accounts         ports.BankAccountReader
	Waiters          ports.WaiterDirectory
	MobileMoney      ports.MobileMoneyRail
	BankTransfer     ports.BankTransferRail
	RailStatus       ports.RailStatusQuery
	Outbox           ports.OutboxWriter
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	MinimumAmount    decimal.Decimal
	BatchParallelism int
	Logger           *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Payouts:          deps.Payouts,
		Tips:             deps.Tips,
		Groups:           deps.Groups,
		Accounts:         deps.Accounts,
		Waiters:          deps.Waiters,
		MobileMoney:      deps.MobileMoney,
		BankTransfer:     deps.BankTransfer,
		RailStatus:       deps.RailStatus,
		Outbox:           deps.Outbox,
		Clock:            deps.Clock,
		IDGen:            deps.IDGen,
		MinimumAmount:    deps.MinimumAmount,
		BatchParallelism: deps.BatchParallelism,
		Logger:           deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

// NewInMemoryModule wires the module against the in-process store and
// rail fakes, used by tests and local runs.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	mobileMoney := memory.NewMobileMoneyRail()
	bankTransfer := memory.NewBankTransferRail()
	railStatus := memory.NewRailStatusStub()

	module := NewModule(Dependencies{
		Payouts:      store,
		Tips:         store,
		Groups:       store,
		Accounts:     store,
		Waiters:      store,
		MobileMoney:  mobileMoney,
		BankTransfer: bankTransfer,
		RailStatus:   railStatus,
		Outbox:       store,
		Clock:        store,
		IDGen:        store,
		Logger:       logger,
	})
	module.Store = store
	module.MobileMoneyRail = mobileMoney
	module.BankTransferRail = bankTransfer
	module.RailStatus = railStatus
	return module
}
