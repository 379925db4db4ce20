package distributionengine

import (
	"log/slog"

	httpadapter "tippy/contexts/settlement-core/distribution-engine/adapters/http"
	"tippy/contexts/settlement-core/distribution-engine/adapters/memory"
	"tippy/contexts/settlement-core/distribution-engine/application"
	"tippy/contexts/settlement-core/distribution-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Groups   ports.GroupRepository
	Records  ports.RecordRepository
	Accounts ports.BankAccountRepository
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Groups:   deps.Groups,
		Records:  deps.Records,
		Accounts: deps.Accounts,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Groups:   store,
		Records:  store,
		Accounts: store,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,
	})
	module.Store = store
	return module
}
