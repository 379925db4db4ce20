package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	distributionengine "tippy/contexts/settlement-core/distribution-engine"
	tipsettlement "tippy/contexts/settlement-core/tip-settlement"

	notificationscheduler "tippy/contexts/payout-core/notification-scheduler"
	payoutengine "tippy/contexts/payout-core/payout-engine"
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	tips          tipsettlement.Module
	distribution  distributionengine.Module
	payouts       payoutengine.Module
	notifications notificationscheduler.Module
}

func New(
	tips tipsettlement.Module,
	distribution distributionengine.Module,
	payouts payoutengine.Module,
	notifications notificationscheduler.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		tips:          tips,
		distribution:  distribution,
		payouts:       payouts,
		notifications: notifications,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.mux.HandleFunc("POST /v1/tips", s.handleCreateTip)
	s.mux.HandleFunc("GET /v1/tips/{tip_id}", s.handleGetTip)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/tips", s.handleListTips)
	s.mux.HandleFunc("POST /webhooks/settlement", s.handleSettlementCallback)

	s.mux.HandleFunc("PUT /v1/restaurants/{restaurant_id}/distribution-groups", s.handleConfigureGroups)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/distribution-groups", s.handleListGroups)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/tips/{tip_id}/distributions", s.handleListTipDistributions)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/distribution-ledger", s.handleDistributionLedger)
	s.mux.HandleFunc("POST /v1/restaurants/{restaurant_id}/bank-accounts", s.handleSaveBankAccount)

	s.mux.HandleFunc("POST /v1/payouts/generate", s.handleGeneratePayouts)
	s.mux.HandleFunc("POST /v1/payouts/process", s.handleProcessPayouts)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/payouts", s.handleListPayouts)
	s.mux.HandleFunc("GET /v1/restaurants/{restaurant_id}/notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /webhooks/mobile-money", s.handleMobileMoneyCallback)
	s.mux.HandleFunc("POST /webhooks/bank-transfer", s.handleBankTransferCallback)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
