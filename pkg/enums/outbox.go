package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateEscrow   OutboxAggregateType = "escrow_transaction"
	AggregateDelivery OutboxAggregateType = "delivery"
	AggregatePayout   OutboxAggregateType = "payout"
	AggregateDispute  OutboxAggregateType = "dispute"
	AggregateWallet   OutboxAggregateType = "vendor_wallet"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateEscrow,
	AggregateDelivery,
	AggregatePayout,
	AggregateDispute,
	AggregateWallet,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderCancelled        OutboxEventType = "order_cancelled"
	EventEscrowOpened          OutboxEventType = "escrow_opened"
	EventEscrowReleased        OutboxEventType = "escrow_released"
	EventEscrowRefunded        OutboxEventType = "escrow_refunded"
	EventDeliveryCreated       OutboxEventType = "delivery_created"
	EventDeliveryStatusChanged OutboxEventType = "delivery_status_changed"
	EventDeliveryConfirmed     OutboxEventType = "delivery_confirmed"
	EventPayoutRequested       OutboxEventType = "payout_requested"
	EventPayoutCompleted       OutboxEventType = "payout_completed"
	EventPayoutFailed          OutboxEventType = "payout_failed"
	EventDisputeOpened         OutboxEventType = "dispute_opened"
	EventDisputeResolved       OutboxEventType = "dispute_resolved"
	EventDisputeClosed         OutboxEventType = "dispute_closed"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderCancelled,
	EventEscrowOpened,
	EventEscrowReleased,
	EventEscrowRefunded,
	EventDeliveryCreated,
	EventDeliveryStatusChanged,
	EventDeliveryConfirmed,
	EventPayoutRequested,
	EventPayoutCompleted,
	EventPayoutFailed,
	EventDisputeOpened,
	EventDisputeResolved,
	EventDisputeClosed,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
