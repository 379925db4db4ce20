package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/distribution-engine/domain/entities"
	domainerrors "tippy/contexts/settlement-core/distribution-engine/domain/errors"
	"tippy/contexts/settlement-core/distribution-engine/ports"
)

type Store struct {
	mu sync.RWMutex

	groups   map[string][]entities.DistributionGroup
	records  map[string]entities.DistributionRecord
	byTipKey map[string]bool
	accounts map[string]entities.BankAccount
}

func NewStore() *Store {
	return &Store{
		groups:   make(map[string][]entities.DistributionGroup),
		records:  make(map[string]entities.DistributionRecord),
		byTipKey: make(map[string]bool),
		accounts: make(map[string]entities.BankAccount),
	}
}

func (s *Store) ReplaceGroups(_ context.Context, restaurantID string, groups []entities.DistributionGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[strings.TrimSpace(restaurantID)] = append([]entities.DistributionGroup(nil), groups...)
	return nil
}

func (s *Store) ListGroups(_ context.Context, restaurantID string) ([]entities.DistributionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.DistributionGroup(nil), s.groups[strings.TrimSpace(restaurantID)]...), nil
}

func (s *Store) CreateRecord(_ context.Context, record entities.DistributionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := record.TipID + "|" + record.GroupName
	if s.byTipKey[key] {
		return domainerrors.ErrRecordExists
	}
	s.byTipKey[key] = true
	s.records[record.ID] = record
	return nil
}

func (s *Store) ListRecordsByTip(_ context.Context, restaurantID string, tipID string) ([]entities.DistributionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.DistributionRecord, 0)
	for _, record := range s.records {
		if record.TipID == strings.TrimSpace(tipID) && record.RestaurantID == strings.TrimSpace(restaurantID) {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].GroupName < items[j].GroupName
	})
	return items, nil
}

func (s *Store) SumRecordsByGroup(
	_ context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, record := range s.records {
		if record.RestaurantID != strings.TrimSpace(restaurantID) {
			continue
		}
		if record.CreatedAt.Before(from) || record.CreatedAt.After(to) {
			continue
		}
		totals[record.GroupName] = totals[record.GroupName].Add(record.Amount)
	}
	return totals, nil
}

func (s *Store) SaveBankAccount(_ context.Context, account entities.BankAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := account.RestaurantID + "|" + account.GroupName
	if existing, ok := s.accounts[key]; ok {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
	}
	s.accounts[key] = account
	return nil
}

func (s *Store) GetBankAccount(_ context.Context, restaurantID string, groupName string) (entities.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[strings.TrimSpace(restaurantID)+"|"+strings.TrimSpace(groupName)]
	if !ok {
		return entities.BankAccount{}, domainerrors.ErrBankAccountNotFound
	}
	return account, nil
}

// MarkAccountVerified flips the verification flag, standing in for the
// out-of-band verification flow.
func (s *Store) MarkAccountVerified(restaurantID string, groupName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(restaurantID) + "|" + strings.TrimSpace(groupName)
	if account, ok := s.accounts[key]; ok {
		account.Verified = true
		s.accounts[key] = account
	}
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.GroupRepository = (*Store)(nil)
var _ ports.RecordRepository = (*Store)(nil)
var _ ports.BankAccountRepository = (*Store)(nil)
