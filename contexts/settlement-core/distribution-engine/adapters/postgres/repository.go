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
	"gorm.io/gorm/clause"

	"tippy/contexts/settlement-core/distribution-engine/domain/entities"
	domainerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
	"tippy/contexts/settlement-core/distribution-engine/ports"
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

func (r *Repository) ReplaceGroups(ctx context.Context, restaurantID string, groups []entities.DistributionGroup) error {
	restaurantID = strings.TrimSpace(restaurantID)
	rows := make([]distributionGroupModel, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, groupModelFromEntity(group))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("restaurant_id = ?", restaurantID).
			Delete(&distributionGroupModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return r.logError("distribution_repo_replace_groups_failed", err,
			"restaurant_id", restaurantID,
			"group_count", len(groups),
		)
	}
	return nil
}

func (r *Repository) ListGroups(ctx context.Context, restaurantID string) ([]entities.DistributionGroup, error) {
	var rows []distributionGroupModel
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_groups_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	groups := make([]entities.DistributionGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toEntity())
	}
	return groups, nil
}

func (r *Repository) CreateRecord(ctx context.Context, record entities.DistributionRecord) error {
	row := distributionRecordModel{
		ID:           strings.TrimSpace(record.ID),
		TipID:        strings.TrimSpace(record.TipID),
		RestaurantID: strings.TrimSpace(record.RestaurantID),
		GroupName:    strings.TrimSpace(record.GroupName),
		Amount:       record.Amount,
		CreatedAt:    record.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRecordExists
		}
		return r.logError("distribution_repo_create_record_failed", err,
			"tip_id", row.TipID,
			"group_name", row.GroupName,
		)
	}
	return nil
}

func (r *Repository) ListRecordsByTip(ctx context.Context, restaurantID string, tipID string) ([]entities.DistributionRecord, error) {
	var rows []distributionRecordModel
	if err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("tip_id = ?", strings.TrimSpace(tipID)).
		Order("group_name ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_list_records_failed", err,
			"tip_id", strings.TrimSpace(tipID),
		)
	}
	records := make([]entities.DistributionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, nil
}

func (r *Repository) SumRecordsByGroup(
	ctx context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (map[string]decimal.Decimal, error) {
	var rows []struct {
		GroupName string          `gorm:"column:group_name"`
		Total     decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.WithContext(ctx).
		Model(&distributionRecordModel{}).
		Select("group_name, SUM(amount) AS total").
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("created_at BETWEEN ? AND ?", from.UTC(), to.UTC()).
		Group("group_name").
		Scan(&rows).Error; err != nil {
		return nil, r.logError("distribution_repo_sum_records_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
		)
	}
	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.GroupName] = row.Total
	}
	return totals, nil
}

func (r *Repository) SaveBankAccount(ctx context.Context, account entities.BankAccount) error {
	row := bankAccountModel{
		ID:            strings.TrimSpace(account.ID),
		RestaurantID:  strings.TrimSpace(account.RestaurantID),
		GroupName:     strings.TrimSpace(account.GroupName),
		BankName:      strings.TrimSpace(account.BankName),
		AccountName:   strings.TrimSpace(account.AccountName),
		AccountNumber: strings.TrimSpace(account.AccountNumber),
		Verified:      account.Verified,
		IsDefault:     account.Default,
		CreatedAt:     account.CreatedAt.UTC(),
		UpdatedAt:     account.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "restaurant_id"}, {Name: "group_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"bank_name", "account_name", "account_number", "verified", "is_default", "updated_at",
		}),
	}).Create(&row).Error; err != nil {
		return r.logError("distribution_repo_save_bank_account_failed", err,
			"restaurant_id", row.RestaurantID,
			"group_name", row.GroupName,
		)
	}
	return nil
}

func (r *Repository) GetBankAccount(ctx context.Context, restaurantID string, groupName string) (entities.BankAccount, error) {
	var row bankAccountModel
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", strings.TrimSpace(restaurantID)).
		Where("group_name = ?", strings.TrimSpace(groupName)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.BankAccount{}, domainerrors.ErrBankAccountNotFound
		}
		return entities.BankAccount{}, r.logError("distribution_repo_get_bank_account_failed", err,
			"restaurant_id", strings.TrimSpace(restaurantID),
			"group_name", strings.TrimSpace(groupName),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "settlement-core/distribution-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("distribution repository operation failed", fields...)
	return err
}

type distributionGroupModel struct {
	ID            string          `gorm:"column:id;primaryKey"`
	RestaurantID  string          `gorm:"column:restaurant_id"`
	Name          string          `gorm:"column:name"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:numeric(5,2)"`
	BankAccountID *string         `gorm:"column:bank_account_id"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (distributionGroupModel) TableName() string {
	return "distribution_groups"
}

func groupModelFromEntity(group entities.DistributionGroup) distributionGroupModel {
	return distributionGroupModel{
		ID:            strings.TrimSpace(group.ID),
		RestaurantID:  strings.TrimSpace(group.RestaurantID),
		Name:          strings.TrimSpace(group.Name),
		Percentage:    group.Percentage,
		BankAccountID: group.BankAccountID,
		CreatedAt:     group.CreatedAt.UTC(),
		UpdatedAt:     group.UpdatedAt.UTC(),
	}
}

func (m distributionGroupModel) toEntity() entities.DistributionGroup {
	return entities.DistributionGroup{
		ID:            m.ID,
		RestaurantID:  m.RestaurantID,
		Name:          m.Name,
		Percentage:    m.Percentage,
		BankAccountID: m.BankAccountID,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

type distributionRecordModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	TipID        string          `gorm:"column:tip_id;uniqueIndex:idx_distribution_tip_group"`
	RestaurantID string          `gorm:"column:restaurant_id"`
	GroupName    string          `gorm:"column:group_name;uniqueIndex:idx_distribution_tip_group"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2)"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (distributionRecordModel) TableName() string {
	return "distribution_records"
}

func (m distributionRecordModel) toEntity() entities.DistributionRecord {
	return entities.DistributionRecord{
		ID:           m.ID,
		TipID:        m.TipID,
		RestaurantID: m.RestaurantID,
		GroupName:    m.GroupName,
		Amount:       m.Amount,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type bankAccountModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	RestaurantID  string    `gorm:"column:restaurant_id;uniqueIndex:idx_bank_account_group"`
	GroupName     string    `gorm:"column:group_name;uniqueIndex:idx_bank_account_group"`
	BankName      string    `gorm:"column:bank_name"`
	AccountName   string    `gorm:"column:account_name"`
	AccountNumber string    `gorm:"column:account_number"`
	Verified      bool      `gorm:"column:verified"`
	IsDefault     bool      `gorm:"column:is_default"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (bankAccountModel) TableName() string {
	return "bank_accounts"
}

func (m bankAccountModel) toEntity() entities.BankAccount {
	return entities.BankAccount{
		ID:            m.ID,
		RestaurantID:  m.RestaurantID,
		GroupName:     m.GroupName,
		BankName:      m.BankName,
		AccountName:   m.AccountName,
		AccountNumber: m.AccountNumber,
		Verified:      m.Verified,
		Default:       m.IsDefault,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.GroupRepository = (*Repository)(nil)
var _ ports.RecordRepository = (*Repository)(nil)
var _ ports.BankAccountRepository = (*Repository)(nil)
