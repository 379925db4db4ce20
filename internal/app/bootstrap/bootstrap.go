package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	notificationscheduler "tippy/contexts/payout-core/notification-scheduler"
	notifpostgres "tippy/contexts/payout-core/notification-scheduler/adapters/postgres"
	notifworkers "tippy/contexts/payout-core/notification-scheduler/application/workers"
	payoutengine "tippy/contexts/payout-core/payout-engine"
	payoutpostgres "tippy/contexts/payout-core/payout-engine/adapters/postgres"
	"tippy/contexts/payout-core/payout-engine/adapters/rails"
	payoutworkers "tippy/contexts/payout-core/payout-engine/application/workers"
	distributionengine "tippy/contexts/settlement-core/distribution-engine"
	distpostgres "tippy/contexts/settlement-core/distribution-engine/adapters/postgres"
	tipsettlement "tippy/contexts/settlement-core/tip-settlement"
	tippostgres "tippy/contexts/settlement-core/tip-settlement/adapters/postgres"
	tipworkers "tippy/contexts/settlement-core/tip-settlement/application/workers"
	"tippy/internal/platform/config"
	"tippy/internal/platform/db"
	"tippy/internal/platform/httpserver"
	"tippy/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	settlementRelay tipworkers.OutboxRelay
	payoutRelay     payoutworkers.OutboxRelay
	staleReconciler payoutworkers.StaleReconciler
	noticeSweeper   notifworkers.NoticeSweeper
	notifications   notificationscheduler.Module
	bus             *messaging.Kafka
	cfg             config.Config
	pollInterval    time.Duration
	lastSweepDay    string
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	distModule, tipModule := buildSettlementModules(pg, cfg, logger)
	payoutModule := buildPayoutModule(pg, cfg, logger)
	notifModule := buildNotificationModule(pg, cfg, logger)

	server := httpserver.New(
		tipModule,
		distModule,
		payoutModule,
		notifModule,
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	tipRepo := tippostgres.NewRepository(pg.DB, logger)
	payoutRepo := payoutpostgres.NewRepository(pg.DB, logger)
	payoutModule := buildPayoutModule(pg, cfg, logger)
	notifModule := buildNotificationModule(pg, cfg, logger)

	return &WorkerApp{
		postgres: pg,
		settlementRelay: tipworkers.OutboxRelay{
			Outbox:    tipRepo,
			Publisher: kafka,
			Clock:     tippostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		payoutRelay: payoutworkers.OutboxRelay{
			Outbox:    payoutRepo,
			Publisher: kafka,
			Clock:     payoutpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		staleReconciler: payoutworkers.StaleReconciler{
			Service:   payoutModule.Service,
			OlderThan: 30 * time.Minute,
			BatchSize: 100,
			Logger:    logger,
		},
		noticeSweeper: notifworkers.NoticeSweeper{
			Service: notifModule.Service,
			Clock:   notifpostgres.SystemClock{},
			Logger:  logger,
		},
		notifications: notifModule,
		bus:           kafka,
		cfg:           cfg,
		pollInterval:  2 * time.Second,
		logger:        logger,
	}, nil
}

func buildSettlementModules(
	pg *db.Postgres,
	cfg config.Config,
	logger *slog.Logger,
) (distributionengine.Module, tipsettlement.Module) {
	distRepo := distpostgres.NewRepository(pg.DB, logger)
	distModule := distributionengine.NewModule(distributionengine.Dependencies{
		Groups:   distRepo,
		Records:  distRepo,
		Accounts: distRepo,
		Clock:    distpostgres.SystemClock{},
		IDGen:    distpostgres.UUIDGenerator{},
		Logger:   logger,
	})

	tipRepo := tippostgres.NewRepository(pg.DB, logger)
	tipModule := tipsettlement.NewModule(tipsettlement.Dependencies{
		Tips:                  tipRepo,
		WebhookLog:            tipRepo,
		Restaurants:           tipRepo,
		Distributor:           distModule.Service,
		Outbox:                tipRepo,
		Clock:                 tippostgres.SystemClock{},
		IDGen:                 tippostgres.UUIDGenerator{},
		DefaultCommissionRate: decimal.NewFromFloat(cfg.DefaultCommissionRate),
		Logger:                logger,
	})
	return distModule, tipModule
}

func buildPayoutModule(pg *db.Postgres, cfg config.Config, logger *slog.Logger) payoutengine.Module {
	payoutRepo := payoutpostgres.NewRepository(pg.DB, logger)
	return payoutengine.NewModule(payoutengine.Dependencies{
		Payouts:  payoutRepo,
		Tips:     payoutRepo,
		Groups:   payoutRepo,
		Accounts: payoutRepo,
		Waiters:  payoutRepo,
		MobileMoney: &rails.MobileMoneyClient{
			BaseURL:   cfg.MobileMoneyBaseURL,
			ShortCode: cfg.MobileMoneyShortCode,
			Attempts:  cfg.RailSubmitAttempts,
			Logger:    logger,
		},
		BankTransfer: &rails.BankTransferClient{
			BaseURL:    cfg.BankTransferBaseURL,
			SourceAcct: cfg.BankSourceAccount,
			Attempts:   cfg.RailSubmitAttempts,
			Logger:     logger,
		},
		RailStatus: &rails.StatusClient{
			BaseURL: cfg.MobileMoneyBaseURL,
			Logger:  logger,
		},
		Outbox:        payoutRepo,
		Clock:         payoutpostgres.SystemClock{},
		IDGen:         payoutpostgres.UUIDGenerator{},
		MinimumAmount: decimal.NewFromInt(cfg.PayoutMinimumAmount),
		Logger:        logger,
	})
}

func buildNotificationModule(pg *db.Postgres, cfg config.Config, logger *slog.Logger) notificationscheduler.Module {
	notifRepo := notifpostgres.NewRepository(pg.DB, logger)
	return notificationscheduler.NewModule(notificationscheduler.Dependencies{
		Intents:           notifRepo,
		Payouts:           notifRepo,
		Policies:          notifRepo,
		Clock:             notifpostgres.SystemClock{},
		IDGen:             notifpostgres.UUIDGenerator{},
		DefaultDaysBefore: cfg.NotifyDaysBeforeMonthEnd,
		Logger:            logger,
	})
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.cfg.EnableDisbursementConsumer {
		handler := w.notifications.EventHandler()
		for _, topic := range []string{"payout.completed", "payout.failed"} {
			if err := w.bus.Subscribe(ctx, topic, "notification-scheduler-cg", handler); err != nil {
				return err
			}
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.settlementRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.payoutRelay.RunOnce(ctx); err != nil {
			return err
		}
		if w.cfg.EnableStaleReconciler {
			if err := w.staleReconciler.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.cfg.EnableUpcomingNotices {
			// The sweep decision is date-based; once per UTC day is enough.
			day := time.Now().UTC().Format("2006-01-02")
			if day != w.lastSweepDay {
				if err := w.noticeSweeper.RunOnce(ctx); err != nil {
					return err
				}
				w.lastSweepDay = day
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
