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

	"tippy/contexts/payout-core/payout-engine/domain/entities"
	domainerrors "tippy/contexts/payout-core/payout-engine/domain/errors"
	"tippy/contexts/payout-core/payout-engine/ports"
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

type settledTip struct {
	WaiterID       string
	RestaurantWide bool
	Gross          decimal.Decimal
	Commission     decimal.Decimal
	Net            decimal.Decimal
	SettledAt      time.Time
}

// Store keeps payouts and the cross-context projections they read in
// process for tests and local runs. It implements every port the
// payout-engine module needs except the rails, which live in rails.go.
type Store struct {
	mu sync.RWMutex

	payouts        map[string]entities.Payout
	byRecipientKey map[string]string
	byConversation map[string]string
	settledTips    map[string][]settledTip
	groupShares    map[string][]ports.GroupShare
	bankAccounts   map[string]ports.BankAccountInfo
	waiterPhones   map[string]string
	outbox         map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		payouts:        make(map[string]entities.Payout),
		byRecipientKey: make(map[string]string),
		byConversation: make(map[string]string),
		settledTips:    make(map[string][]settledTip),
		groupShares:    make(map[string][]ports.GroupShare),
		bankAccounts:   make(map[string]ports.BankAccountInfo),
		waiterPhones:   make(map[string]string),
		outbox:         make(map[string]outboxRecord),
	}
}

// AddSettledWaiterTip seeds a completed direct tip into the aggregation
// window.
func (s *Store) AddSettledWaiterTip(
	restaurantID string,
	waiterID string,
	gross decimal.Decimal,
	commission decimal.Decimal,
	net decimal.Decimal,
	settledAt time.Time,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settledTips[restaurantID] = append(s.settledTips[restaurantID], settledTip{
		WaiterID:   waiterID,
		Gross:      gross,
		Commission: commission,
		Net:        net,
		SettledAt:  settledAt.UTC(),
	})
}

// AddSettledRestaurantTip seeds a completed restaurant-wide tip.
func (s *Store) AddSettledRestaurantTip(
	restaurantID string,
	gross decimal.Decimal,
	commission decimal.Decimal,
	net decimal.Decimal,
	settledAt time.Time,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settledTips[restaurantID] = append(s.settledTips[restaurantID], settledTip{
		RestaurantWide: true,
		Gross:          gross,
		Commission:     commission,
		Net:            net,
		SettledAt:      settledAt.UTC(),
	})
}

func (s *Store) SetGroupShares(restaurantID string, shares []ports.GroupShare) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupShares[restaurantID] = append([]ports.GroupShare(nil), shares...)
}

func (s *Store) SetGroupBankAccount(restaurantID string, groupName string, account ports.BankAccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bankAccounts[restaurantID+"|"+groupName] = account
}

func (s *Store) SetWaiterPhone(restaurantID string, waiterID string, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiterPhones[restaurantID+"|"+waiterID] = phone
}

func (s *Store) WaiterTotals(
	_ context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) ([]ports.WaiterMonthTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byWaiter := make(map[string]*ports.WaiterMonthTotal)
	for _, tip := range s.settledTips[strings.TrimSpace(restaurantID)] {
		if tip.RestaurantWide || tip.SettledAt.Before(from) || !tip.SettledAt.Before(to) {
			continue
		}
		total, ok := byWaiter[tip.WaiterID]
		if !ok {
			total = &ports.WaiterMonthTotal{
				WaiterID:   tip.WaiterID,
				TotalTips:  decimal.Zero,
				Commission: decimal.Zero,
				Net:        decimal.Zero,
			}
			byWaiter[tip.WaiterID] = total
		}
		total.TotalTips = total.TotalTips.Add(tip.Gross)
		total.Commission = total.Commission.Add(tip.Commission)
		total.Net = total.Net.Add(tip.Net)
		total.TipCount++
	}

	items := make([]ports.WaiterMonthTotal, 0, len(byWaiter))
	for _, total := range byWaiter {
		items = append(items, *total)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].WaiterID < items[j].WaiterID })
	return items, nil
}

func (s *Store) RestaurantWideTotal(
	_ context.Context,
	restaurantID string,
	from time.Time,
	to time.Time,
) (ports.RestaurantMonthTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := ports.RestaurantMonthTotal{
		TotalTips:  decimal.Zero,
		Commission: decimal.Zero,
		Net:        decimal.Zero,
	}
	for _, tip := range s.settledTips[strings.TrimSpace(restaurantID)] {
		if !tip.RestaurantWide || tip.SettledAt.Before(from) || !tip.SettledAt.Before(to) {
			continue
		}
		total.TotalTips = total.TotalTips.Add(tip.Gross)
		total.Commission = total.Commission.Add(tip.Commission)
		total.Net = total.Net.Add(tip.Net)
		total.TipCount++
	}
	return total, nil
}

func (s *Store) ListGroupShares(_ context.Context, restaurantID string) ([]ports.GroupShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.GroupShare(nil), s.groupShares[strings.TrimSpace(restaurantID)]...), nil
}

func (s *Store) GroupBankAccount(_ context.Context, restaurantID string, groupName string) (ports.BankAccountInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.bankAccounts[strings.TrimSpace(restaurantID)+"|"+strings.TrimSpace(groupName)]
	if !ok {
		return ports.BankAccountInfo{}, domainerrors.ErrRecipientUnresolvable
	}
	return account, nil
}

func (s *Store) WaiterPhone(_ context.Context, restaurantID string, waiterID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phone, ok := s.waiterPhones[strings.TrimSpace(restaurantID)+"|"+strings.TrimSpace(waiterID)]
	if !ok {
		return "", domainerrors.ErrRecipientUnresolvable
	}
	return phone, nil
}

func recipientKey(payout entities.Payout) string {
	return payout.RestaurantID + "|" + payout.Month + "|" + string(payout.Recipient) + "|" + payout.RecipientKey()
}

func (s *Store) CreatePayout(_ context.Context, payout entities.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payouts[payout.ID]; exists {
		return domainerrors.ErrPayoutExists
	}
	key := recipientKey(payout)
	if _, exists := s.byRecipientKey[key]; exists {
		return domainerrors.ErrPayoutExists
	}
	s.payouts[payout.ID] = payout
	s.byRecipientKey[key] = payout.ID
	return nil
}

func (s *Store) GetPayout(_ context.Context, payoutID string) (entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return entities.Payout{}, domainerrors.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *Store) GetPayoutByConversationID(_ context.Context, conversationID string) (entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payoutID, ok := s.byConversation[strings.TrimSpace(conversationID)]
	if !ok {
		return entities.Payout{}, domainerrors.ErrPayoutNotFound
	}
	return s.payouts[payoutID], nil
}

func (s *Store) CountPayoutsForMonth(_ context.Context, restaurantID string, month string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, payout := range s.payouts {
		if payout.RestaurantID == strings.TrimSpace(restaurantID) && payout.Month == strings.TrimSpace(month) {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListPayouts(_ context.Context, restaurantID string, month string) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if payout.RestaurantID != strings.TrimSpace(restaurantID) {
			continue
		}
		if month != "" && payout.Month != month {
			continue
		}
		items = append(items, payout)
	}
	sortPayouts(items)
	return items, nil
}

func (s *Store) ListPendingPayouts(_ context.Context, restaurantID string, limit int) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 200
	}
	rid := strings.TrimSpace(restaurantID)
	items := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if payout.Status != entities.PayoutPending {
			continue
		}
		if rid != "" && payout.RestaurantID != rid {
			continue
		}
		items = append(items, payout)
	}
	sortPayouts(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListPayoutsByIDs(_ context.Context, payoutIDs []string) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Payout, 0, len(payoutIDs))
	for _, payoutID := range payoutIDs {
		if payout, ok := s.payouts[strings.TrimSpace(payoutID)]; ok {
			items = append(items, payout)
		}
	}
	return items, nil
}

func (s *Store) ClaimPayout(_ context.Context, payoutID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return false, domainerrors.ErrPayoutNotFound
	}
	if payout.Status != entities.PayoutPending {
		return false, nil
	}
	payout.Status = entities.PayoutProcessing
	payout.UpdatedAt = now.UTC()
	s.payouts[payout.ID] = payout
	return true, nil
}

func (s *Store) RecordAcceptance(_ context.Context, payoutID string, conversationID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return domainerrors.ErrPayoutNotFound
	}
	payout.ConversationID = strings.TrimSpace(conversationID)
	payout.UpdatedAt = now.UTC()
	s.payouts[payout.ID] = payout
	if payout.ConversationID != "" {
		s.byConversation[payout.ConversationID] = payout.ID
	}
	return nil
}

func (s *Store) CompletePayout(_ context.Context, payoutID string, transactionRef string, processedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return false, domainerrors.ErrPayoutNotFound
	}
	if payout.Status != entities.PayoutProcessing {
		return false, nil
	}
	ts := processedAt.UTC()
	payout.Status = entities.PayoutCompleted
	payout.TransactionRef = strings.TrimSpace(transactionRef)
	payout.ProcessedAt = &ts
	payout.UpdatedAt = ts
	s.payouts[payout.ID] = payout
	return true, nil
}

func (s *Store) FailPayout(_ context.Context, payoutID string, failureCode string, failureReason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return false, domainerrors.ErrPayoutNotFound
	}
	if payout.Status != entities.PayoutProcessing {
		return false, nil
	}
	payout.Status = entities.PayoutFailed
	payout.FailureCode = failureCode
	payout.FailureReason = failureReason
	payout.UpdatedAt = now.UTC()
	s.payouts[payout.ID] = payout
	return true, nil
}

func (s *Store) ResetPayout(_ context.Context, payoutID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payout, ok := s.payouts[strings.TrimSpace(payoutID)]
	if !ok {
		return false, domainerrors.ErrPayoutNotFound
	}
	if payout.Status != entities.PayoutFailed {
		return false, nil
	}
	if payout.ConversationID != "" {
		delete(s.byConversation, payout.ConversationID)
	}
	payout.Status = entities.PayoutPending
	payout.ConversationID = ""
	payout.FailureCode = ""
	payout.FailureReason = ""
	payout.UpdatedAt = now.UTC()
	s.payouts[payout.ID] = payout
	return true, nil
}

func (s *Store) ListStaleProcessing(_ context.Context, cutoff time.Time, limit int) ([]entities.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 200
	}
	items := make([]entities.Payout, 0)
	for _, payout := range s.payouts {
		if payout.Status == entities.PayoutProcessing && payout.UpdatedAt.Before(cutoff) {
			items = append(items, payout)
		}
	}
	sortPayouts(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidPayoutInput
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	payload, _ := json.Marshal(envelope)
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
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
		return domainerrors.ErrPayoutNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

// PendingOutboxCount returns how many outbox rows await relay, for test
// assertions.
func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			count++
		}
	}
	return count
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortPayouts(items []entities.Payout) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Recipient != items[j].Recipient {
			return items[i].Recipient == entities.RecipientWaiter
		}
		if items[i].RecipientKey() != items[j].RecipientKey() {
			return items[i].RecipientKey() < items[j].RecipientKey()
		}
		return items[i].ID < items[j].ID
	})
}

var _ ports.PayoutRepository = (*Store)(nil)
var _ ports.TipTotalsReader = (*Store)(nil)
var _ ports.GroupConfigReader = (*Store)(nil)
var _ ports.BankAccountReader = (*Store)(nil)
var _ ports.WaiterDirectory = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
