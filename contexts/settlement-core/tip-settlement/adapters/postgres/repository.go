package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tippy/contexts/settlement-core/tip-settlement/domain/entities"
	domainerrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
	"tippy/contexts/settlement-core/tip-settlement/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

var nonTerminalStatuses = []string{
	string(entities.TipStatusPending),
	string(entities.TipStatusProcessing),
}

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

func (r *Repository) CreateTip(ctx context.Context, tip entities.Tip) error {
	row, err := tipModelFromEntity(tip)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("tip_repo_create_unique_conflict",
				"tip_id", tip.ID,
				"correlation_id", tip.CorrelationID,
			)
			return domainerrors.ErrTipExists
		}
		return r.logError("tip_repo_create_failed", err,
			"tip_id", tip.ID,
			"restaurant_id", tip.RestaurantID,
		)
	}
	return nil
}

func (r *Repository) GetTip(ctx context.Context, restaurantID string, tipID string) (entities.Tip, error) {
	var row tipModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(tipID)).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Tip{}, domainerrors.ErrTipNotFound
		}
		return entities.Tip{}, r.logError("tip_repo_get_failed", err,
			"tip_id", strings.TrimSpace(tipID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetTipByCorrelationID(ctx context.Context, correlationID string) (entities.Tip, error) {
	var row tipModel
	err := r.db.WithContext(ctx).
		Where("correlation_id = ?", strings.TrimSpace(correlationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Tip{}, domainerrors.ErrTipNotFound
		}
		return entities.Tip{}, r.logError("tip_repo_get_by_correlation_failed", err,
			"correlation_id", strings.TrimSpace(correlationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListTipsByRestaurant(ctx context.Context, restaurantID string, limit int, offset int) ([]entities.Tip, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []tipModel
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, r.logError("tip_repo_list_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	items := make([]entities.Tip, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// SettleTip is the single guarded conditional update protecting the tip
// state machine against concurrent callback deliveries: only a row still in
// a non-terminal status is moved, and the loser of the race sees zero
// affected rows rather than an error.
func (r *Repository) SettleTip(ctx context.Context, update ports.TipSettlementUpdate) (bool, error) {
	values := map[string]any{
		"status":            string(update.Status),
		"commission_amount": update.Commission,
		"net_amount":        update.Net,
		"failure_reason":    strings.TrimSpace(update.FailureReason),
		"updated_at":        update.UpdatedAt.UTC(),
	}
	if strings.TrimSpace(update.ReceiptID) != "" {
		values["receipt_id"] = strings.TrimSpace(update.ReceiptID)
	}

	result := r.db.WithContext(ctx).
		Model(&tipModel{}).
		Where("id = ?", strings.TrimSpace(update.TipID)).
		Where("status IN ?", nonTerminalStatuses).
		Updates(values)
	if result.Error != nil {
		return false, r.logError("tip_repo_settle_failed", result.Error,
			"tip_id", strings.TrimSpace(update.TipID),
			"status", string(update.Status),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) AppendWebhookLog(ctx context.Context, entry ports.WebhookLogEntry) error {
	row := webhookLogModel{
		ID:            strings.TrimSpace(entry.ID),
		Provider:      strings.TrimSpace(entry.Provider),
		CorrelationID: strings.TrimSpace(entry.CorrelationID),
		Outcome:       strings.TrimSpace(entry.Outcome),
		Payload:       append([]byte(nil), entry.Payload...),
		ReceivedAt:    entry.ReceivedAt.UTC(),
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("tip_repo_webhook_log_failed", err,
			"correlation_id", row.CorrelationID,
			"outcome", row.Outcome,
		)
	}
	return nil
}

func (r *Repository) CommissionRate(ctx context.Context, restaurantID string) (decimal.Decimal, error) {
	var row restaurantProjectionModel
	// Read-only projection lookup; restaurant CRUD lives outside this module.
	err := r.db.WithContext(ctx).
		Select("commission_rate").
		Where("id = ?", strings.TrimSpace(restaurantID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Decimal{}, domainerrors.ErrRestaurantNotFound
		}
		return decimal.Decimal{}, r.logError("tip_repo_commission_rate_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	return row.CommissionRate, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("tip_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	row := settlementOutboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return r.logError("tip_repo_append_outbox_failed", err,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []settlementOutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("tip_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&settlementOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("tip_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("tip_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrTipNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "settlement-core/tip-settlement",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("tip repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "settlement-core/tip-settlement",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("tip repository warning", fields...)
}

type tipModel struct {
	ID            string          `gorm:"column:id;primaryKey"`
	RestaurantID  string          `gorm:"column:restaurant_id"`
	WaiterID      *string         `gorm:"column:waiter_id"`
	TableID       *string         `gorm:"column:table_id"`
	Gross         decimal.Decimal `gorm:"column:gross_amount;type:numeric(14,2)"`
	Commission    decimal.Decimal `gorm:"column:commission_amount;type:numeric(14,2)"`
	Net           decimal.Decimal `gorm:"column:net_amount;type:numeric(14,2)"`
	Target        string          `gorm:"column:target_kind"`
	Rail          string          `gorm:"column:payment_rail"`
	Status        string          `gorm:"column:status"`
	CorrelationID string          `gorm:"column:correlation_id;uniqueIndex"`
	ReceiptID     string          `gorm:"column:receipt_id"`
	FailureReason string          `gorm:"column:failure_reason"`
	Metadata      []byte          `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (tipModel) TableName() string {
	return "tips"
}

func tipModelFromEntity(tip entities.Tip) (tipModel, error) {
	var metadata []byte
	if len(tip.Metadata) > 0 {
		raw, err := json.Marshal(tip.Metadata)
		if err != nil {
			return tipModel{}, err
		}
		metadata = raw
	}
	return tipModel{
		ID:            strings.TrimSpace(tip.ID),
		RestaurantID:  strings.TrimSpace(tip.RestaurantID),
		WaiterID:      tip.WaiterID,
		TableID:       tip.TableID,
		Gross:         tip.Gross,
		Commission:    tip.Commission,
		Net:           tip.Net,
		Target:        string(tip.Target),
		Rail:          string(tip.Rail),
		Status:        string(tip.Status),
		CorrelationID: strings.TrimSpace(tip.CorrelationID),
		ReceiptID:     strings.TrimSpace(tip.ReceiptID),
		FailureReason: strings.TrimSpace(tip.FailureReason),
		Metadata:      metadata,
		CreatedAt:     tip.CreatedAt.UTC(),
		UpdatedAt:     tip.UpdatedAt.UTC(),
	}, nil
}

func (m tipModel) toEntity() entities.Tip {
	var metadata map[string]string
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}
	return entities.Tip{
		ID:            m.ID,
		RestaurantID:  m.RestaurantID,
		WaiterID:      m.WaiterID,
		TableID:       m.TableID,
		Gross:         m.Gross,
		Commission:    m.Commission,
		Net:           m.Net,
		Target:        entities.TargetKind(m.Target),
		Rail:          entities.PaymentRail(m.Rail),
		Status:        entities.TipStatus(m.Status),
		CorrelationID: m.CorrelationID,
		ReceiptID:     m.ReceiptID,
		FailureReason: m.FailureReason,
		Metadata:      metadata,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type webhookLogModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Provider      string    `gorm:"column:provider"`
	CorrelationID string    `gorm:"column:correlation_id"`
	Outcome       string    `gorm:"column:outcome"`
	Payload       []byte    `gorm:"column:payload;type:jsonb"`
	ReceivedAt    time.Time `gorm:"column:received_at"`
}

func (webhookLogModel) TableName() string {
	return "webhook_logs"
}

type restaurantProjectionModel struct {
	ID             string          `gorm:"column:id;primaryKey"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)"`
}

func (restaurantProjectionModel) TableName() string {
	return "restaurants"
}

type settlementOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (settlementOutboxModel) TableName() string {
	return "settlement_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.TipRepository = (*Repository)(nil)
var _ ports.WebhookLogRepository = (*Repository)(nil)
var _ ports.RestaurantConfigReader = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
