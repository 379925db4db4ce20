package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	DefaultCommissionRate    float64
	PayoutMinimumAmount      int64
	NotifyDaysBeforeMonthEnd int
	RailSubmitAttempts       int

	MobileMoneyBaseURL   string
	MobileMoneyShortCode string
	BankTransferBaseURL  string
	BankSourceAccount    string

	EnableDisbursementConsumer bool
	EnableUpcomingNotices      bool
	EnableStaleReconciler      bool
}

func Load() (Config, error) {
	// Local development convenience only; a missing .env is not an error.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "tippy"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		DefaultCommissionRate:    envFloat("DEFAULT_COMMISSION_RATE", 10),
		PayoutMinimumAmount:      envInt64("PAYOUT_MINIMUM_AMOUNT", 100),
		NotifyDaysBeforeMonthEnd: envInt("NOTIFY_DAYS_BEFORE_MONTH_END", 3),
		RailSubmitAttempts:       envInt("RAIL_SUBMIT_ATTEMPTS", 3),

		MobileMoneyBaseURL:   os.Getenv("MOBILE_MONEY_BASE_URL"),
		MobileMoneyShortCode: os.Getenv("MOBILE_MONEY_SHORT_CODE"),
		BankTransferBaseURL:  os.Getenv("BANK_TRANSFER_BASE_URL"),
		BankSourceAccount:    os.Getenv("BANK_SOURCE_ACCOUNT"),

		EnableDisbursementConsumer: envBool("ENABLE_DISBURSEMENT_CONSUMER", true),
		EnableUpcomingNotices:      envBool("ENABLE_UPCOMING_NOTICES", true),
		EnableStaleReconciler:      envBool("ENABLE_STALE_RECONCILER", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
