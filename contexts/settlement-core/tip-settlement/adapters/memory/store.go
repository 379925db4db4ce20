package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/tip-settlement/domain/entities"
	domainerrors "tippy/contexts/settlement-core/tip-settlement/domain/errors"
	"tippy/contexts/settlement-core/tip-settlement/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

// Store keeps tips and supporting rows in process for tests and local runs.
// It implements every port the tip-settlement module needs.
type Store struct {
	mu sync.RWMutex

	tips          map[string]entities.Tip
	byCorrelation map[string]string
	webhookLogs   []ports.WebhookLogEntry
	rates         map[string]decimal.Decimal
	outbox        map[string]outboxRecord
}

func NewStore(commissionRates map[string]decimal.Decimal) *Store {
	rates := make(map[string]decimal.Decimal, len(commissionRates))
	for restaurantID, rate := range commissionRates {
		rates[restaurantID] = rate
	}
	return &Store{
		tips:          make(map[string]entities.Tip),
		byCorrelation: make(map[string]string),
		rates:         rates,
		outbox:        make(map[string]outboxRecord),
	}
}

// SetCommissionRate mimics an operator changing the restaurant's rate
// between intake and settlement.
func (s *Store) SetCommissionRate(restaurantID string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[restaurantID] = rate
}

func (s *Store) CreateTip(_ context.Context, tip entities.Tip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tips[tip.ID]; exists {
		return domainerrors.ErrTipExists
	}
	if _, exists := s.byCorrelation[tip.CorrelationID]; exists {
		return domainerrors.ErrTipExists
	}
	s.tips[tip.ID] = tip
	s.byCorrelation[tip.CorrelationID] = tip.ID
	return nil
}

func (s *Store) GetTip(_ context.Context, restaurantID string, tipID string) (entities.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip, ok := s.tips[strings.TrimSpace(tipID)]
	if !ok || tip.RestaurantID != strings.TrimSpace(restaurantID) {
		return entities.Tip{}, domainerrors.ErrTipNotFound
	}
	return tip, nil
}

func (s *Store) GetTipByCorrelationID(_ context.Context, correlationID string) (entities.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tipID, ok := s.byCorrelation[strings.TrimSpace(correlationID)]
	if !ok {
		return entities.Tip{}, domainerrors.ErrTipNotFound
	}
	return s.tips[tipID], nil
}

func (s *Store) ListTipsByRestaurant(_ context.Context, restaurantID string, limit int, offset int) ([]entities.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Tip, 0)
	for _, tip := range s.tips {
		if tip.RestaurantID == strings.TrimSpace(restaurantID) {
			items = append(items, tip)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if offset >= len(items) {
		return []entities.Tip{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]entities.Tip(nil), items[offset:end]...), nil
}

func (s *Store) SettleTip(_ context.Context, update ports.TipSettlementUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, ok := s.tips[strings.TrimSpace(update.TipID)]
	if !ok {
		return false, domainerrors.ErrTipNotFound
	}
	if tip.Status.Terminal() {
		return false, nil
	}
	tip.Status = update.Status
	tip.Commission = update.Commission
	tip.Net = update.Net
	if update.ReceiptID != "" {
		tip.ReceiptID = update.ReceiptID
	}
	tip.FailureReason = update.FailureReason
	tip.UpdatedAt = update.UpdatedAt.UTC()
	s.tips[tip.ID] = tip
	return true, nil
}

func (s *Store) AppendWebhookLog(_ context.Context, entry ports.WebhookLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookLogs = append(s.webhookLogs, entry)
	return nil
}

// WebhookLogs returns a copy for test assertions.
func (s *Store) WebhookLogs() []ports.WebhookLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.WebhookLogEntry(nil), s.webhookLogs...)
}

func (s *Store) CommissionRate(_ context.Context, restaurantID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.rates[strings.TrimSpace(restaurantID)]
	if !ok {
		return decimal.Decimal{}, domainerrors.ErrRestaurantNotFound
	}
	return rate, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidCallbackPayload
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      mustMarshal(envelope),
			CreatedAt:    envelope.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrTipNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func mustMarshal(envelope ports.EventEnvelope) []byte {
	payload, _ := json.Marshal(envelope)
	return payload
}

var _ ports.TipRepository = (*Store)(nil)
var _ ports.WebhookLogRepository = (*Store)(nil)
var _ ports.RestaurantConfigReader = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
