package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tippy/contexts/payout-core/notification-scheduler/domain/entities"
	domainerrors "tippy/contexts/payout-core/notification-scheduler/domain/errors"
	"tippy/contexts/payout-core/notification-scheduler/ports"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateIntent(ctx context.Context, intent entities.NotificationIntent) error {
	row := intentModelFromEntity(intent)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrIntentExists
		}
		return r.logError("intent_repo_create_failed", err,
			"intent_id", intent.ID,
			"dedup_key", intent.DedupKey,
		)
	}
	return nil
}

func (r *Repository) ListIntentsByRestaurant(ctx context.Context, restaurantID string, limit int) ([]entities.NotificationIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []intentModel
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("intent_repo_list_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	items := make([]entities.NotificationIntent, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListPendingForMonth(ctx context.Context, month string) ([]ports.PayoutNotice, error) {
	var rows []payoutNoticeRow
	// Read-only projection over the payout engine's table.
	err := r.db.WithContext(ctx).
		Table("payouts").
		Select("id, restaurant_id, recipient_kind, recipient_key, month, amount").
		Where("month = ?", strings.TrimSpace(month)).
		Where("status = ?", "pending").
		Order("restaurant_id ASC, recipient_key ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("intent_repo_pending_payouts_failed", err,
			"month", strings.TrimSpace(month),
		)
	}
	items := make([]ports.PayoutNotice, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.PayoutNotice{
			PayoutID:     row.ID,
			RestaurantID: row.RestaurantID,
			Recipient:    row.RecipientKind,
			RecipientKey: row.RecipientKey,
			Month:        row.Month,
			Amount:       row.Amount,
		})
	}
	return items, nil
}

func (r *Repository) ListNotifyPolicies(ctx context.Context) ([]ports.NotifyPolicy, error) {
	var rows []notifyPolicyRow
	// Read-only projection; restaurant CRUD lives outside this module.
	err := r.db.WithContext(ctx).
		Table("restaurants").
		Select("id, notify_days_before").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("intent_repo_notify_policies_failed", err)
	}
	items := make([]ports.NotifyPolicy, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.NotifyPolicy{
			RestaurantID: row.ID,
			DaysBefore:   row.NotifyDaysBefore,
		})
	}
	return items, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "payout-core/notification-scheduler",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("notification intent repository operation failed", fields...)
	return err
}

type intentModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	DedupKey     string          `gorm:"column:dedup_key;uniqueIndex"`
	Kind         string          `gorm:"column:kind"`
	RestaurantID string          `gorm:"column:restaurant_id"`
	Recipient    string          `gorm:"column:recipient"`
	RecipientKey string          `gorm:"column:recipient_key"`
	PayoutID     string          `gorm:"column:payout_id"`
	Month        string          `gorm:"column:month"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (intentModel) TableName() string {
	return "notification_intents"
}

func intentModelFromEntity(intent entities.NotificationIntent) intentModel {
	return intentModel{
		ID:           strings.TrimSpace(intent.ID),
		DedupKey:     strings.TrimSpace(intent.DedupKey),
		Kind:         string(intent.Kind),
		RestaurantID: strings.TrimSpace(intent.RestaurantID),
		Recipient:    strings.TrimSpace(intent.Recipient),
		RecipientKey: strings.TrimSpace(intent.RecipientKey),
		PayoutID:     strings.TrimSpace(intent.PayoutID),
		Month:        strings.TrimSpace(intent.Month),
		Amount:       intent.Amount,
		CreatedAt:    intent.CreatedAt.UTC(),
	}
}

func (m intentModel) toEntity() entities.NotificationIntent {
	return entities.NotificationIntent{
		ID:           m.ID,
		DedupKey:     m.DedupKey,
		Kind:         entities.IntentKind(m.Kind),
		RestaurantID: m.RestaurantID,
		Recipient:    m.Recipient,
		RecipientKey: m.RecipientKey,
		PayoutID:     m.PayoutID,
		Month:        m.Month,
		Amount:       m.Amount,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type payoutNoticeRow struct {
	ID            string          `gorm:"column:id"`
	RestaurantID  string          `gorm:"column:restaurant_id"`
	RecipientKind string          `gorm:"column:recipient_kind"`
	RecipientKey  string          `gorm:"column:recipient_key"`
	Month         string          `gorm:"column:month"`
	Amount        decimal.Decimal `gorm:"column:amount"`
}

type notifyPolicyRow struct {
	ID               string `gorm:"column:id"`
	NotifyDaysBefore int    `gorm:"column:notify_days_before"`
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.IntentRepository = (*Repository)(nil)
var _ ports.PendingPayoutsReader = (*Repository)(nil)
var _ ports.NotifyPolicyReader = (*Repository)(nil)
