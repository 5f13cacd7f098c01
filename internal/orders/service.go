package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/pagination"
	"github.com/ojalabs/oja-backend/pkg/types"
)

const (
	orderNumberPrefix   = "OJA-"
	orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	orderNumberLength   = 10
	maxItemsPerOrder    = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// escrowOpener creates the payment hold when an order confirms.
type escrowOpener interface {
	OpenWithTx(ctx context.Context, tx *gorm.DB, input escrow.OpenInput) (*models.EscrowTransaction, error)
}

// Service owns order intake and the payment-driven half of the order state
// machine. Delivery-driven transitions live with the delivery and escrow
// services.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, input UpdatePaymentInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) error
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	escrow      escrowOpener
	logg        *logger.Logger
	orderNumber func() string
}

// CreateInput captures a buyer's checkout. Unit prices arrive snapshotted
// from the product catalog; totals are always recomputed here.
type CreateInput struct {
	BuyerID         uuid.UUID
	VendorID        uuid.UUID
	DeliveryAddress *types.Address
	DeliveryType    enums.DeliveryType
	Items           []CreateItemInput
	ShippingFeeKobo int64
	Notes           *string
	Actor           *outbox.ActorRef
}

// CreateItemInput is one line of the checkout.
type CreateItemInput struct {
	ProductID     uuid.UUID
	Title         string
	ImageURL      *string
	Quantity      int
	UnitPriceKobo int64
}

// UpdatePaymentInput applies a payment processor outcome to an order.
type UpdatePaymentInput struct {
	OrderID       uuid.UUID
	PaymentStatus enums.PaymentStatus
	PaymentMethod *string
	PaymentRef    *string
	Actor         *outbox.ActorRef
}

// CancelInput cancels an order before payment captures.
type CancelInput struct {
	OrderID     uuid.UUID
	CancelledBy uuid.UUID
	Reason      *string
	Actor       *outbox.ActorRef
}

// Page is one cursor page of orders.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// OrderCreatedEvent announces a new pending order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	VendorID     uuid.UUID `json:"vendor_id"`
	SubtotalKobo int64     `json:"subtotal_kobo"`
	TotalKobo    int64     `json:"total_kobo"`
	ItemCount    int       `json:"item_count"`
}

// OrderPaidEvent announces a confirmed payment and the escrow hold it
// opened.
type OrderPaidEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	EscrowID    uuid.UUID `json:"escrow_id"`
	TotalKobo   int64     `json:"total_kobo"`
}

// OrderCancelledEvent announces a cancellation.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Reason      string    `json:"reason,omitempty"`
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, escrowSvc escrowOpener, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if escrowSvc == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	generate, err := nanoid.CustomASCII(orderNumberAlphabet, orderNumberLength)
	if err != nil {
		return nil, fmt.Errorf("build order number generator: %w", err)
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      ob,
		escrow:      escrowSvc,
		logg:        logg,
		orderNumber: func() string { return orderNumberPrefix + generate() },
	}, nil
}

// Create validates the checkout, recomputes all money fields from the items,
// and persists the order with its lines and the created event in one
// transaction.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.BuyerID == input.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer cannot order from themselves")
	}
	if input.DeliveryAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if len(input.Items) > maxItemsPerOrder {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many items in one order")
	}
	if input.ShippingFeeKobo < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping fee cannot be negative")
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	var subtotal int64
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if strings.TrimSpace(line.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item title required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if line.UnitPriceKobo <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item unit price must be positive")
		}
		lineTotal := int64(line.Quantity) * line.UnitPriceKobo
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:     line.ProductID,
			Title:         strings.TrimSpace(line.Title),
			ImageURL:      line.ImageURL,
			Quantity:      line.Quantity,
			UnitPriceKobo: line.UnitPriceKobo,
			TotalKobo:     lineTotal,
		})
	}

	order := &models.Order{
		OrderNumber:     s.orderNumber(),
		BuyerID:         input.BuyerID,
		VendorID:        input.VendorID,
		DeliveryAddress: input.DeliveryAddress,
		DeliveryType:    input.DeliveryType,
		Status:          enums.OrderStatusPending,
		SubtotalKobo:    subtotal,
		ShippingFeeKobo: input.ShippingFeeKobo,
		TotalKobo:       subtotal + input.ShippingFeeKobo,
		PaymentStatus:   enums.PaymentStatusPending,
		Notes:           input.Notes,
		Items:           items,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: OrderCreatedEvent{
				OrderID:      created.ID,
				OrderNumber:  created.OrderNumber,
				BuyerID:      created.BuyerID,
				VendorID:     created.VendorID,
				SubtotalKobo: created.SubtotalKobo,
				TotalKobo:    created.TotalKobo,
				ItemCount:    len(created.Items),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")
	return order, nil
}

// UpdatePaymentStatus applies the processor's verdict. A successful payment
// confirms the order and opens its escrow hold in the same transaction, so a
// crash between the two cannot leave a paid order without a hold.
func (s *service) UpdatePaymentStatus(ctx context.Context, input UpdatePaymentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		switch input.PaymentStatus {
		case enums.PaymentStatusPaid:
			return s.applyPaid(ctx, tx, repo, order, input, &updated)
		case enums.PaymentStatusFailed:
			return s.applyFailed(ctx, repo, order, &updated)
		case enums.PaymentStatusRefunded:
			return s.applyGatewayRefund(ctx, tx, repo, order, input, &updated)
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment status")
		}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) applyPaid(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input UpdatePaymentInput, out **models.Order) error {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		// Processor retried its callback; the confirmed order stands.
		*out = order
		return nil
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled for this order")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusConfirmed) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be confirmed in current state")
	}

	updates := map[string]any{
		"status":         enums.OrderStatusConfirmed,
		"payment_status": enums.PaymentStatusPaid,
	}
	if input.PaymentMethod != nil {
		updates["payment_method"] = *input.PaymentMethod
	}
	if input.PaymentRef != nil {
		updates["payment_ref"] = *input.PaymentRef
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm paid order")
	}
	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid

	hold, err := s.escrow.OpenWithTx(ctx, tx, escrow.OpenInput{
		OrderID:      order.ID,
		VendorID:     order.VendorID,
		BuyerID:      order.BuyerID,
		SubtotalKobo: order.SubtotalKobo,
		TotalKobo:    order.TotalKobo,
		Actor:        input.Actor,
	})
	if err != nil {
		return err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: OrderPaidEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			EscrowID:    hold.ID,
			TotalKobo:   order.TotalKobo,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}
	*out = order
	return nil
}

func (s *service) applyFailed(ctx context.Context, repo Repository, order *models.Order, out **models.Order) error {
	if order.PaymentStatus != enums.PaymentStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled for this order")
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_status": enums.PaymentStatusFailed}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
	}
	order.PaymentStatus = enums.PaymentStatusFailed
	*out = order
	return nil
}

// applyGatewayRefund handles a refund reported by the processor before the
// order ever confirmed. Once an escrow hold exists, refunds go through the
// escrow ledger instead.
func (s *service) applyGatewayRefund(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input UpdatePaymentInput, out **models.Order) error {
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "refunds for confirmed orders settle through escrow")
	}

	now := time.Now()
	updates := map[string]any{
		"status":         enums.OrderStatusCancelled,
		"payment_status": enums.PaymentStatusRefunded,
		"cancelled_at":   now,
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel refunded order")
	}
	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = enums.PaymentStatusRefunded

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      "payment refunded by processor",
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}
	*out = order
	return nil
}

// Cancel withdraws an order that has not been paid for. Paid orders settle
// through escrow refund.
func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.CancelledBy != uuid.Nil && input.CancelledBy != order.BuyerID && input.CancelledBy != order.VendorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "paid orders settle through escrow refund")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in current state")
		}

		now := time.Now()
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		reason := ""
		if input.Reason != nil {
			reason = strings.TrimSpace(*input.Reason)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Reason:      reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if strings.TrimSpace(orderNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	if filter.BuyerID == nil && filter.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer or vendor filter required")
	}

	entries, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Orders: entries}
	if len(entries) > limit {
		page.Orders = entries[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
