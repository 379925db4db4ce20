package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tippy/contexts/settlement-core/tip-settlement/domain/entities"
	"tippy/internal/shared/events"
)

type SettlementResult string

const (
	SettlementResultSuccess   SettlementResult = "success"
	SettlementResultFailed    SettlementResult = "failed"
	SettlementResultCancelled SettlementResult = "cancelled"
	SettlementResultTimeout   SettlementResult = "timeout"
)

// SettlementCallback is the validated, closed form of a provider callback.
// Raw payloads are parsed and checked at the transport boundary before any
// field reaches the state machine.
type SettlementCallback struct {
	CorrelationID string
	Result        SettlementResult
	SettledAmount *decimal.Decimal
	ReceiptID     string
}

// SettlementAck is the fixed acknowledgement returned to the provider
// regardless of internal outcome, to stop at-least-once redelivery.
type SettlementAck struct {
	ResultCode int
	ResultDesc string
}

type CreateTipInput struct {
	RestaurantID  string
	WaiterID      *string
	TableID       *string
	Gross         decimal.Decimal
	Target        entities.TargetKind
	Rail          entities.PaymentRail
	CorrelationID string
	Metadata      map[string]string
}

// TipSettlementUpdate carries the terminal transition applied by SettleTip.
type TipSettlementUpdate struct {
	TipID         string
	Status        entities.TipStatus
	Commission    decimal.Decimal
	Net           decimal.Decimal
	ReceiptID     string
	FailureReason string
	UpdatedAt     time.Time
}

type TipRepository interface {
	CreateTip(ctx context.Context, tip entities.Tip) error
	GetTip(ctx context.Context, restaurantID string, tipID string) (entities.Tip, error)
	GetTipByCorrelationID(ctx context.Context, correlationID string) (entities.Tip, error)
	ListTipsByRestaurant(ctx context.Context, restaurantID string, limit int, offset int) ([]entities.Tip, error)
	// SettleTip atomically moves a non-terminal tip into the given terminal
	// status. Returns false without error when the tip was already terminal,
	// closing the race between two concurrent callback deliveries.
	SettleTip(ctx context.Context, update TipSettlementUpdate) (bool, error)
}

type WebhookLogEntry struct {
	ID            string
	Provider      string
	CorrelationID string
	Outcome       string
	Payload       []byte
	ReceivedAt    time.Time
}

type WebhookLogRepository interface {
	AppendWebhookLog(ctx context.Context, entry WebhookLogEntry) error
}

// RestaurantConfigReader exposes the restaurant's commission rate as
// configured right now; the reconciler reads it at settlement time.
type RestaurantConfigReader interface {
	CommissionRate(ctx context.Context, restaurantID string) (decimal.Decimal, error)
}

// DistributionTrigger hands a completed restaurant-wide tip to the
// distribution engine. Implemented by the distribution-engine module.
type DistributionTrigger interface {
	DistributeTip(ctx context.Context, restaurantID string, tipID string, net decimal.Decimal) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
