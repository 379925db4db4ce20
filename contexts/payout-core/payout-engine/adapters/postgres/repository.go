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

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
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

func (r *Repository) CreatePayout(ctx context.Context, payout entities.Payout) error {
	row := payoutModelFromEntity(payout)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("payout_repo_create_unique_conflict",
				"restaurant_id", payout.RestaurantID,
				"month", payout.Month,
				"recipient_key", payout.RecipientKey(),
			)
			return domainerrors.ErrPayoutExists
		}
		return r.logError("payout_repo_create_failed", err,
			"payout_id", payout.ID,
			"restaurant_id", payout.RestaurantID,
		)
	}
	return nil
}

func (r *Repository) GetPayout(ctx context.Context, payoutID string) (entities.Payout, error) {
	var row payoutModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(payoutID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Payout{}, domainerrors.ErrPayoutNotFound
		}
		return entities.Payout{}, r.logError("payout_repo_get_failed", err,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetPayoutByConversationID(ctx context.Context, conversationID string) (entities.Payout, error) {
	var row payoutModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", strings.TrimSpace(conversationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Payout{}, domainerrors.ErrPayoutNotFound
		}
		return entities.Payout{}, r.logError("payout_repo_get_by_conversation_failed", err,
			"conversation_id", strings.TrimSpace(conversationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) CountPayoutsForMonth(ctx context.Context, restaurantID string, month string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("month = ?", strings.TrimSpace(month)).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("payout_repo_count_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
			"month", strings.TrimSpace(month),
		)
	}
	return count, nil
}

func (r *Repository) ListPayouts(ctx context.Context, restaurantID string, month string) ([]entities.Payout, error) {
	query := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID))
	if strings.TrimSpace(month) != "" {
		query = query.Where("month = ?", strings.TrimSpace(month))
	}
	var rows []payoutModel
	if err := query.
		Order("month DESC, recipient_kind ASC, recipient_key ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	return toEntities(rows), nil
}

func (r *Repository) ListPendingPayouts(ctx context.Context, restaurantID string, limit int) ([]entities.Payout, error) {
	if limit <= 0 {
		limit = 200
	}
	query := r.db.WithContext(ctx).
		Where("status = ?", string(entities.PayoutPending))
	if rid := strings.TrimSpace(restaurantID); rid != "" {
		query = query.Where("restaurant_id = ?", rid)
	}
	var rows []payoutModel
	if err := query.
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_pending_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	return toEntities(rows), nil
}

func (r *Repository) ListPayoutsByIDs(ctx context.Context, payoutIDs []string) ([]entities.Payout, error) {
	trimmed := make([]string, 0, len(payoutIDs))
	for _, payoutID := range payoutIDs {
		if strings.TrimSpace(payoutID) != "" {
			trimmed = append(trimmed, strings.TrimSpace(payoutID))
		}
	}
	if len(trimmed) == 0 {
		return []entities.Payout{}, nil
	}
	var rows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", trimmed).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_by_ids_failed", err, "count", len(trimmed))
	}
	return toEntities(rows), nil
}

// ClaimPayout is the guarded conditional update that makes batch runs
// safe to overlap: only a row still pending moves to processing, and the
// loser sees zero affected rows.
func (r *Repository) ClaimPayout(ctx context.Context, payoutID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(entities.PayoutPending)).
		Updates(map[string]any{
			"status":     string(entities.PayoutProcessing),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("payout_repo_claim_failed", result.Error,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) RecordAcceptance(ctx context.Context, payoutID string, conversationID string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Updates(map[string]any{
			"conversation_id": strings.TrimSpace(conversationID),
			"updated_at":      now.UTC(),
		})
	if result.Error != nil {
		return r.logError("payout_repo_record_acceptance_failed", result.Error,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) CompletePayout(ctx context.Context, payoutID string, transactionRef string, processedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(entities.PayoutProcessing)).
		Updates(map[string]any{
			"status":          string(entities.PayoutCompleted),
			"transaction_ref": strings.TrimSpace(transactionRef),
			"processed_at":    processedAt.UTC(),
			"updated_at":      processedAt.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("payout_repo_complete_failed", result.Error,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) FailPayout(ctx context.Context, payoutID string, failureCode string, failureReason string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(entities.PayoutProcessing)).
		Updates(map[string]any{
			"status":         string(entities.PayoutFailed),
			"failure_code":   strings.TrimSpace(failureCode),
			"failure_reason": strings.TrimSpace(failureReason),
			"updated_at":     now.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("payout_repo_fail_failed", result.Error,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ResetPayout(ctx context.Context, payoutID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(entities.PayoutFailed)).
		Updates(map[string]any{
			"status":          string(entities.PayoutPending),
			"conversation_id": "",
			"failure_code":    "",
			"failure_reason":  "",
			"updated_at":      now.UTC(),
		})
	if result.Error != nil {
		return false, r.logError("payout_repo_reset_failed", result.Error,
			"payout_id", strings.TrimSpace(payoutID),
		)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]entities.Payout, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []payoutModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(entities.PayoutProcessing)).
		Where("updated_at < ?", cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_stale_failed", err, "limit", limit)
	}
	return toEntities(rows), nil
}

// WaiterTotals aggregates the month's completed direct tips straight off
// the settlement ledger. Aggregation is recomputed each run instead of
// trusting a running balance.
func (r *Repository) WaiterTotals(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) ([]ports.WaiterMonthTotal, error) {
	var rows []waiterTotalRow
	err := r.db.WithContext(ctx).
		Table("tips").
		Select("waiter_id, SUM(gross_amount) AS total_tips, SUM(commission_amount) AS commission, SUM(net_amount) AS net, COUNT(*) AS tip_count").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("target_kind = ?", "waiter").
		Where("status = ?", "completed").
		Where("waiter_id IS NOT NULL").
		Where("updated_at >= ? AND updated_at < ?", from.UTC(), to.UTC()).
		Group("waiter_id").
		Order("waiter_id ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("payout_repo_waiter_totals_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	items := make([]ports.WaiterMonthTotal, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.WaiterMonthTotal{
			WaiterID:   row.WaiterID,
			TotalTips:  row.TotalTips,
			Commission: row.Commission,
			Net:        row.Net,
			TipCount:   row.TipCount,
		})
	}
	return items, nil
}

func (r *Repository) RestaurantWideTotal(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (ports.RestaurantMonthTotal, error) {
	var row wideTotalRow
	err := r.db.WithContext(ctx).
		Table("tips").
		Select("COALESCE(SUM(gross_amount), 0) AS total_tips, COALESCE(SUM(commission_amount), 0) AS commission, COALESCE(SUM(net_amount), 0) AS net, COUNT(*) AS tip_count").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("target_kind = ?", "restaurant").
		Where("status = ?", "completed").
		Where("updated_at >= ? AND updated_at < ?", from.UTC(), to.UTC()).
		Scan(&row).
		Error
	if err != nil {
		return ports.RestaurantMonthTotal{}, r.logError("payout_repo_wide_total_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	return ports.RestaurantMonthTotal{
		TotalTips:  row.TotalTips,
		Commission: row.Commission,
		Net:        row.Net,
		TipCount:   row.TipCount,
	}, nil
}

func (r *Repository) ListGroupShares(ctx context.Context, restaurantID string) ([]ports.GroupShare, error) {
	var rows []groupShareRow
	// Read-only projection; group CRUD lives in the distribution engine.
	err := r.db.WithContext(ctx).
		Table("distribution_groups").
		Select("name, percentage").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Order("name ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("payout_repo_group_shares_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	items := make([]ports.GroupShare, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.GroupShare{
			Name:       row.Name,
			Percentage: row.Percentage,
		})
	}
	return items, nil
}

func (r *Repository) GroupBankAccount(ctx context.Context, restaurantID string, groupName string) (ports.BankAccountInfo, error) {
	var row bankAccountRow
	err := r.db.WithContext(ctx).
		Table("bank_accounts").
		Select("bank_name, account_name, account_number, verified").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("group_name = ?", strings.TrimSpace(groupName)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.BankAccountInfo{}, domainerrors.ErrRecipientUnresolvable
		}
		return ports.BankAccountInfo{}, r.logError("payout_repo_bank_account_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
			"group_name", strings.TrimSpace(groupName),
		)
	}
	return ports.BankAccountInfo{
		BankName:      row.BankName,
		AccountName:   row.AccountName,
		AccountNumber: row.AccountNumber,
		Verified:      row.Verified,
	}, nil
}

func (r *Repository) WaiterPhone(ctx context.Context, restaurantID string, waiterID string) (string, error) {
	var row waiterProjectionRow
	// Read-only projection; waiter CRUD lives outside this module.
	err := r.db.WithContext(ctx).
		Table("waiters").
		Select("phone_number").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("id = ?", strings.TrimSpace(waiterID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domainerrors.ErrRecipientUnresolvable
		}
		return "", r.logError("payout_repo_waiter_phone_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
			"waiter_id", strings.TrimSpace(waiterID),
		)
	}
	if strings.TrimSpace(row.PhoneNumber) == "" {
		return "", domainerrors.ErrRecipientUnresolvable
	}
	return row.PhoneNumber, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("payout_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	row := payoutOutboxModel{
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
		return r.logError("payout_repo_append_outbox_failed", err,
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
	var rows []payoutOutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("payout_repo_list_pending_outbox_failed", err, "limit", limit)
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
		Model(&payoutOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("payout_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("payout_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "payout-core/payout-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("payout repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "payout-core/payout-engine",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("payout repository warning", fields...)
}

type payoutModel struct {
	ID             string          `gorm:"column:id;primaryKey"`
	RestaurantID   string          `gorm:"column:restaurant_id;uniqueIndex:idx_payout_month_recipient"`
	Month          string          `gorm:"column:month;uniqueIndex:idx_payout_month_recipient"`
	RecipientKind  string          `gorm:"column:recipient_kind;uniqueIndex:idx_payout_month_recipient"`
	RecipientKey   string          `gorm:"column:recipient_key;uniqueIndex:idx_payout_month_recipient"`
	WaiterID       string          `gorm:"column:waiter_id"`
	GroupName      string          `gorm:"column:group_name"`
	TotalTips      decimal.Decimal `gorm:"column:total_tips;type:numeric(14,2)"`
	Commission     decimal.Decimal `gorm:"column:commission_amount;type:numeric(14,2)"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	TipCount       int             `gorm:"column:tip_count"`
	Status         string          `gorm:"column:status"`
	ConversationID string          `gorm:"column:conversation_id;index"`
	TransactionRef string          `gorm:"column:transaction_ref"`
	FailureCode    string          `gorm:"column:failure_code"`
	FailureReason  string          `gorm:"column:failure_reason"`
	ProcessedAt    *time.Time      `gorm:"column:processed_at"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string {
	return "payouts"
}

func payoutModelFromEntity(payout entities.Payout) payoutModel {
	return payoutModel{
		ID:             strings.TrimSpace(payout.ID),
		RestaurantID:   strings.TrimSpace(payout.RestaurantID),
		Month:          strings.TrimSpace(payout.Month),
		RecipientKind:  string(payout.Recipient),
		RecipientKey:   strings.TrimSpace(payout.RecipientKey()),
		WaiterID:       strings.TrimSpace(payout.WaiterID),
		GroupName:      strings.TrimSpace(payout.GroupName),
		TotalTips:      payout.TotalTips,
		Commission:     payout.Commission,
		Amount:         payout.Amount,
		TipCount:       payout.TipCount,
		Status:         string(payout.Status),
		ConversationID: strings.TrimSpace(payout.ConversationID),
		TransactionRef: strings.TrimSpace(payout.TransactionRef),
		FailureCode:    strings.TrimSpace(payout.FailureCode),
		FailureReason:  strings.TrimSpace(payout.FailureReason),
		ProcessedAt:    payout.ProcessedAt,
		CreatedAt:      payout.CreatedAt.UTC(),
		UpdatedAt:      payout.UpdatedAt.UTC(),
	}
}

func (m payoutModel) toEntity() entities.Payout {
	return entities.Payout{
		ID:             m.ID,
		RestaurantID:   m.RestaurantID,
		Recipient:      entities.RecipientKind(m.RecipientKind),
		WaiterID:       m.WaiterID,
		GroupName:      m.GroupName,
		Month:          m.Month,
		TotalTips:      m.TotalTips,
		Commission:     m.Commission,
		Amount:         m.Amount,
		TipCount:       m.TipCount,
		Status:         entities.PayoutStatus(m.Status),
		ConversationID: m.ConversationID,
		TransactionRef: m.TransactionRef,
		FailureCode:    m.FailureCode,
		FailureReason:  m.FailureReason,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

func toEntities(rows []payoutModel) []entities.Payout {
	items := make([]entities.Payout, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

type waiterTotalRow struct {
	WaiterID   string          `gorm:"column:waiter_id"`
	TotalTips  decimal.Decimal `gorm:"column:total_tips"`
	Commission decimal.Decimal `gorm:"column:commission"`
	Net        decimal.Decimal `gorm:"column:net"`
	TipCount   int             `gorm:"column:tip_count"`
}

type wideTotalRow struct {
	TotalTips  decimal.Decimal `gorm:"column:total_tips"`
	Commission decimal.Decimal `gorm:"column:commission"`
	Net        decimal.Decimal `gorm:"column:net"`
	TipCount   int             `gorm:"column:tip_count"`
}

type groupShareRow struct {
	Name       string          `gorm:"column:name"`
	Percentage decimal.Decimal `gorm:"column:percentage"`
}

type bankAccountRow struct {
	BankName      string `gorm:"column:bank_name"`
	AccountName   string `gorm:"column:account_name"`
	AccountNumber string `gorm:"column:account_number"`
	Verified      bool   `gorm:"column:verified"`
}

type waiterProjectionRow struct {
	PhoneNumber string `gorm:"column:phone_number"`
}

type payoutOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (payoutOutboxModel) TableName() string {
	return "payout_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PayoutRepository = (*Repository)(nil)
var _ ports.TipTotalsReader = (*Repository)(nil)
var _ ports.GroupConfigReader = (*Repository)(nil)
var _ ports.BankAccountReader = (*Repository)(nil)
var _ ports.WaiterDirectory = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
