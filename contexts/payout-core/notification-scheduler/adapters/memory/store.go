package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tippy/contexts/payout-core/notification-scheduler/domain/entities"
	domainerrors "tippy/contexts/payout-core/notification-scheduler/domain/errors"
	"tippy/contexts/payout-core/notification-scheduler/ports"
)

// Store keeps intents and the projections the scheduler reads in process
// for tests and local runs.
type Store struct {
	mu sync.RWMutex

	intents    map[string]entities.NotificationIntent
	byDedupKey map[string]string
	pending    map[string][]ports.PayoutNotice
	policies   []ports.NotifyPolicy
}

func NewStore() *Store {
	return &Store{
		intents:    make(map[string]entities.NotificationIntent),
		byDedupKey: make(map[string]string),
		pending:    make(map[string][]ports.PayoutNotice),
	}
}

func (s *Store) SetNotifyPolicy(restaurantID string, daysBefore int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, policy := range s.policies {
		if policy.RestaurantID == restaurantID {
			s.policies[i].DaysBefore = daysBefore
			return
		}
	}
	s.policies = append(s.policies, ports.NotifyPolicy{
		RestaurantID: restaurantID,
		DaysBefore:   daysBefore,
	})
}

func (s *Store) AddPendingPayout(month string, notice ports.PayoutNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[month] = append(s.pending[month], notice)
}

func (s *Store) CreateIntent(_ context.Context, intent entities.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDedupKey[intent.DedupKey]; exists {
		return domainerrors.ErrIntentExists
	}
	s.intents[intent.ID] = intent
	s.byDedupKey[intent.DedupKey] = intent.ID
	return nil
}

func (s *Store) ListIntentsByRestaurant(_ context.Context, restaurantID string, limit int) ([]entities.NotificationIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.NotificationIntent, 0)
	for _, intent := range s.intents {
		if intent.RestaurantID == strings.TrimSpace(restaurantID) {
			items = append(items, intent)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Intents returns every recorded intent, for test assertions.
func (s *Store) Intents() []entities.NotificationIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.NotificationIntent, 0, len(s.intents))
	for _, intent := range s.intents {
		items = append(items, intent)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].DedupKey < items[j].DedupKey })
	return items
}

func (s *Store) ListPendingForMonth(_ context.Context, month string) ([]ports.PayoutNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.PayoutNotice(nil), s.pending[strings.TrimSpace(month)]...), nil
}

func (s *Store) ListNotifyPolicies(_ context.Context) ([]ports.NotifyPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.NotifyPolicy(nil), s.policies...), nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.IntentRepository = (*Store)(nil)
var _ ports.PendingPayoutsReader = (*Store)(nil)
var _ ports.NotifyPolicyReader = (*Store)(nil)
