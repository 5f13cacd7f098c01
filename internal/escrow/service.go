package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/wallet"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
	"github.com/ojalabs/oja-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// walletApplier is the only doorway to a vendor's balance.
type walletApplier interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, input wallet.ApplyDeltaInput) (*models.WalletTransaction, error)
}

// Service owns the escrow ledger: opening a hold against a paid order and
// moving it to released or refunded exactly once. Dispute filing lives here
// too because it flips escrow and order state atomically.
type Service interface {
	OpenWithTx(ctx context.Context, tx *gorm.DB, input OpenInput) (*models.EscrowTransaction, error)
	Release(ctx context.Context, input ReleaseInput) error
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error
	Refund(ctx context.Context, input RefundInput) error
	RefundWithTx(ctx context.Context, tx *gorm.DB, input RefundInput) error
	CreateDispute(ctx context.Context, input CreateDisputeInput) (*models.Dispute, error)
	ReopenHoldWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) error
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error)
	ReleaseDue(ctx context.Context, now time.Time, limit int) (int, error)
}

type service struct {
	repo              Repository
	tx                txRunner
	outbox            outboxPublisher
	wallet            walletApplier
	logg              *logger.Logger
	metrics           *metrics.SettlementMetrics
	feePercent        int
	autoReleaseWindow time.Duration
}

// OpenInput opens the hold for a freshly paid order.
type OpenInput struct {
	OrderID      uuid.UUID
	VendorID     uuid.UUID
	BuyerID      uuid.UUID
	SubtotalKobo int64
	TotalKobo    int64
	Actor        *outbox.ActorRef
}

// ReleaseInput moves held funds into the vendor's wallet.
type ReleaseInput struct {
	OrderID     uuid.UUID
	ReleaseType enums.EscrowReleaseType
	ReleasedBy  uuid.UUID
	Notes       *string
	Actor       *outbox.ActorRef
}

// RefundInput returns the hold to the buyer. ViaDispute marks the
// dispute-resolution path, the only one allowed to refund a disputed hold.
type RefundInput struct {
	OrderID    uuid.UUID
	Reason     string
	ViaDispute bool
	ResolvedBy uuid.UUID
	Actor      *outbox.ActorRef
}

// CreateDisputeInput files a dispute and freezes the release path.
type CreateDisputeInput struct {
	OrderID      uuid.UUID
	FiledBy      uuid.UUID
	FiledByType  enums.DisputeFilerType
	Type         enums.DisputeType
	Description  string
	EvidenceURLs []string
	Actor        *outbox.ActorRef
}

// ConfirmDeliveryInput is the buyer's manual delivery confirmation.
type ConfirmDeliveryInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Actor   *outbox.ActorRef
}

// EscrowOpenedEvent is emitted when a hold is created.
type EscrowOpenedEvent struct {
	EscrowID         uuid.UUID `json:"escrow_id"`
	OrderID          uuid.UUID `json:"order_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	VendorAmountKobo int64     `json:"vendor_amount_kobo"`
	PlatformFeeKobo  int64     `json:"platform_fee_kobo"`
}

// EscrowSettledEvent is emitted on release or refund.
type EscrowSettledEvent struct {
	EscrowID         uuid.UUID                `json:"escrow_id"`
	OrderID          uuid.UUID                `json:"order_id"`
	VendorID         uuid.UUID                `json:"vendor_id"`
	Status           enums.EscrowStatus       `json:"status"`
	ReleaseType      *enums.EscrowReleaseType `json:"release_type,omitempty"`
	VendorAmountKobo int64                    `json:"vendor_amount_kobo"`
	Reason           string                   `json:"reason,omitempty"`
}

// DisputeOpenedEvent is emitted when a dispute freezes an order.
type DisputeOpenedEvent struct {
	DisputeID   uuid.UUID              `json:"dispute_id"`
	OrderID     uuid.UUID              `json:"order_id"`
	EscrowID    *uuid.UUID             `json:"escrow_id,omitempty"`
	FiledBy     uuid.UUID              `json:"filed_by"`
	FiledByType enums.DisputeFilerType `json:"filed_by_type"`
	Type        enums.DisputeType      `json:"type"`
}

// DeliveryConfirmedEvent is emitted when the buyer confirms receipt.
type DeliveryConfirmedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
}

// NewService builds the escrow service. feePercent is the platform's cut of
// the order subtotal, in whole percent.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, walletSvc walletApplier, logg *logger.Logger, m *metrics.SettlementMetrics, feePercent int, autoReleaseWindow time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("escrow repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if feePercent < 0 || feePercent > 100 {
		return nil, fmt.Errorf("fee percent must be within [0,100]")
	}
	if autoReleaseWindow <= 0 {
		return nil, fmt.Errorf("auto release window must be positive")
	}
	return &service{
		repo:              repo,
		tx:                tx,
		outbox:            ob,
		wallet:            walletSvc,
		logg:              logg,
		metrics:           m,
		feePercent:        feePercent,
		autoReleaseWindow: autoReleaseWindow,
	}, nil
}

// PlatformFee computes the platform's cut of the subtotal, rounded half-up
// to whole kobo.
func PlatformFee(subtotalKobo int64, feePercent int) int64 {
	if subtotalKobo <= 0 || feePercent <= 0 {
		return 0
	}
	return (subtotalKobo*int64(feePercent) + 50) / 100
}

// OpenWithTx creates the hold for an order inside the caller's transaction.
// At most one escrow transaction exists per order; opening again returns the
// existing hold so payment retries converge.
func (s *service) OpenWithTx(ctx context.Context, tx *gorm.DB, input OpenInput) (*models.EscrowTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required to open escrow")
	}
	if input.OrderID == uuid.Nil || input.VendorID == uuid.Nil || input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order, vendor, and buyer ids required")
	}
	if input.TotalKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.FindEscrowByOrder(ctx, input.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing escrow")
	}

	fee := PlatformFee(input.SubtotalKobo, s.feePercent)
	if fee > input.TotalKobo {
		fee = input.TotalKobo
	}
	escrow := &models.EscrowTransaction{
		OrderID:          input.OrderID,
		VendorID:         input.VendorID,
		BuyerID:          input.BuyerID,
		Status:           enums.EscrowStatusHeld,
		VendorAmountKobo: input.TotalKobo - fee,
		PlatformFeeKobo:  fee,
	}
	created, err := repo.CreateEscrow(ctx, escrow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create escrow transaction")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventEscrowOpened,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   created.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: EscrowOpenedEvent{
			EscrowID:         created.ID,
			OrderID:          created.OrderID,
			VendorID:         created.VendorID,
			BuyerID:          created.BuyerID,
			VendorAmountKobo: created.VendorAmountKobo,
			PlatformFeeKobo:  created.PlatformFeeKobo,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ReleaseWithTx(ctx, tx, input)
	})
}

// ReleaseWithTx settles the hold to the vendor. The status flip, the wallet
// credit, and the ledger entry commit or roll back together; a concurrent
// second release sees a non-held status and gets a conflict.
func (s *service) ReleaseWithTx(ctx context.Context, tx *gorm.DB, input ReleaseInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to release escrow")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.ReleaseType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid release type")
	}

	repo := s.repo.WithTx(tx)

	escrow, err := repo.FindEscrowByOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow transaction not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
	}

	if err := s.assertReleasable(ctx, repo, escrow, input.ReleaseType); err != nil {
		return err
	}

	now := time.Now()
	reason := releaseReason(input.Notes, input.ReleaseType)
	updates := map[string]any{
		"status":         enums.EscrowStatusReleased,
		"release_type":   input.ReleaseType,
		"release_reason": reason,
		"released_at":    now,
	}
	if input.ReleasedBy != uuid.Nil {
		updates["released_by"] = input.ReleasedBy
	}
	affected, err := repo.TransitionEscrow(ctx, escrow.ID, escrow.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow settled concurrently")
	}

	narration := fmt.Sprintf("escrow release for order %s", escrow.OrderID)
	if _, err := s.wallet.ApplyDelta(ctx, tx, wallet.ApplyDeltaInput{
		VendorID:   escrow.VendorID,
		Type:       enums.WalletTransactionTypeSale,
		AmountKobo: escrow.VendorAmountKobo,
		Reference:  escrow.ID.String(),
		Narration:  &narration,
	}); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ObserveEscrowOutcome("released", escrow.VendorAmountKobo)
	}

	releaseType := input.ReleaseType
	event := outbox.DomainEvent{
		EventType:     enums.EventEscrowReleased,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   escrow.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: EscrowSettledEvent{
			EscrowID:         escrow.ID,
			OrderID:          escrow.OrderID,
			VendorID:         escrow.VendorID,
			Status:           enums.EscrowStatusReleased,
			ReleaseType:      &releaseType,
			VendorAmountKobo: escrow.VendorAmountKobo,
			Reason:           reason,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) assertReleasable(ctx context.Context, repo Repository, escrow *models.EscrowTransaction, releaseType enums.EscrowReleaseType) error {
	switch escrow.Status {
	case enums.EscrowStatusReleased, enums.EscrowStatusRefunded:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released or refunded")
	case enums.EscrowStatusDisputed:
		if releaseType != enums.EscrowReleaseDisputeResolution {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is under dispute")
		}
		return nil
	case enums.EscrowStatusHeld:
		if releaseType == enums.EscrowReleaseDisputeResolution {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no dispute to resolve on this escrow")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow not in a releasable state")
	}

	// Delivery-driven release types require the order to actually be
	// delivered or the buyer to have confirmed receipt.
	if releaseType == enums.EscrowReleaseAdminOverride {
		return nil
	}
	if escrow.BuyerConfirmed {
		return nil
	}
	order, err := repo.FindOrder(ctx, escrow.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order not delivered yet")
	}
	return nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.RefundWithTx(ctx, tx, input)
	})
}

// RefundWithTx returns the hold to the buyer and cancels the order. No
// wallet movement happens here; the buyer's payment processor refunds out of
// band.
func (s *service) RefundWithTx(ctx context.Context, tx *gorm.DB, input RefundInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to refund escrow")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}

	repo := s.repo.WithTx(tx)

	escrow, err := repo.FindEscrowByOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow transaction not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
	}

	switch escrow.Status {
	case enums.EscrowStatusHeld:
	case enums.EscrowStatusDisputed:
		if !input.ViaDispute {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is under dispute")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released or refunded")
	}

	now := time.Now()
	releaseType := enums.EscrowReleaseAdminOverride
	if input.ViaDispute {
		releaseType = enums.EscrowReleaseDisputeResolution
	}
	updates := map[string]any{
		"status":         enums.EscrowStatusRefunded,
		"release_type":   releaseType,
		"release_reason": input.Reason,
		"refunded_at":    now,
	}
	if input.ResolvedBy != uuid.Nil {
		updates["released_by"] = input.ResolvedBy
	}
	affected, err := repo.TransitionEscrow(ctx, escrow.ID, escrow.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update escrow status")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow settled concurrently")
	}

	orderUpdates := map[string]any{
		"status":         enums.OrderStatusCancelled,
		"payment_status": enums.PaymentStatusRefunded,
		"cancelled_at":   now,
	}
	if err := repo.UpdateOrder(ctx, escrow.OrderID, orderUpdates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel refunded order")
	}

	if s.metrics != nil {
		s.metrics.ObserveEscrowOutcome("refunded", escrow.VendorAmountKobo)
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventEscrowRefunded,
		AggregateType: enums.AggregateEscrow,
		AggregateID:   escrow.ID,
		Version:       1,
		Actor:         input.Actor,
		Data: EscrowSettledEvent{
			EscrowID:         escrow.ID,
			OrderID:          escrow.OrderID,
			VendorID:         escrow.VendorID,
			Status:           enums.EscrowStatusRefunded,
			ReleaseType:      &releaseType,
			VendorAmountKobo: escrow.VendorAmountKobo,
			Reason:           input.Reason,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

// CreateDispute files a dispute and flips the escrow and the order to
// disputed in one transaction; no observer sees only one of the two flipped.
func (s *service) CreateDispute(ctx context.Context, input CreateDisputeInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.FiledBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "filer identity missing")
	}
	if !input.FiledByType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filed_by_type must be buyer or vendor")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute type")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}

	var created *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusDisputed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already disputed")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already settled")
		}

		var escrowID *uuid.UUID
		escrow, err := repo.FindEscrowByOrder(ctx, input.OrderID)
		switch {
		case err == nil:
			switch escrow.Status {
			case enums.EscrowStatusHeld:
			case enums.EscrowStatusDisputed:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already open for this escrow")
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow already released or refunded")
			}
			escrowID = &escrow.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Pre-payment dispute; only the order flips.
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
		}

		dispute := &models.Dispute{
			OrderID:      input.OrderID,
			EscrowID:     escrowID,
			FiledBy:      input.FiledBy,
			FiledByType:  input.FiledByType,
			Type:         input.Type,
			Description:  input.Description,
			EvidenceURLs: pq.StringArray(input.EvidenceURLs),
			Status:       enums.DisputeStatusOpen,
			// Remembered so a dismissal can put the order back where the
			// filing found it.
			PriorOrderStatus: order.Status,
		}
		created, err = repo.CreateDispute(ctx, dispute)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		if escrowID != nil {
			affected, err := repo.TransitionEscrow(ctx, *escrowID, enums.EscrowStatusHeld, map[string]any{"status": enums.EscrowStatusDisputed})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "freeze escrow")
			}
			if affected == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow settled concurrently")
			}
		}
		if err := repo.UpdateOrder(ctx, input.OrderID, map[string]any{"status": enums.OrderStatusDisputed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag disputed order")
		}

		if s.metrics != nil {
			s.metrics.ObserveDispute("opened")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: DisputeOpenedEvent{
				DisputeID:   created.ID,
				OrderID:     created.OrderID,
				EscrowID:    created.EscrowID,
				FiledBy:     created.FiledBy,
				FiledByType: created.FiledByType,
				Type:        created.Type,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ReopenHoldWithTx thaws a frozen hold after a dispute is dismissed without
// a ruling. The escrow goes back to held so the normal release path (buyer
// confirmation or the auto release window) resumes.
func (s *service) ReopenHoldWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to reopen escrow hold")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	escrow, err := repo.FindEscrowByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "escrow transaction not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
	}
	if escrow.Status != enums.EscrowStatusDisputed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow is not frozen")
	}

	affected, err := repo.TransitionEscrow(ctx, escrow.ID, enums.EscrowStatusDisputed, map[string]any{
		"status": enums.EscrowStatusHeld,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen escrow hold")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "escrow settled concurrently")
	}
	return nil
}

// ConfirmDelivery records the buyer's receipt: the delivery and the order
// move to delivered and the escrow is marked buyer-confirmed so a
// manual_buyer release can proceed.
func (s *service) ConfirmDelivery(ctx context.Context, input ConfirmDeliveryInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order was cancelled")
		}

		delivery, err := repo.FindDeliveryByOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}

		now := time.Now()
		if delivery.Status != enums.DeliveryStatusDelivered {
			if !delivery.Status.CanTransitionTo(enums.DeliveryStatusDelivered) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery cannot be confirmed in current state")
			}
			if err := repo.UpdateDelivery(ctx, delivery.ID, map[string]any{
				"status":             enums.DeliveryStatusDelivered,
				"actual_delivery":    now,
				"last_status_update": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivery delivered")
			}
			history := &models.DeliveryStatusHistory{
				DeliveryID: delivery.ID,
				Status:     enums.DeliveryStatusDelivered,
				UpdatedBy:  enums.DeliveryUpdateSourceBuyer,
			}
			if err := repo.CreateDeliveryHistory(ctx, history); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery history")
			}
		}

		if order.Status != enums.OrderStatusDelivered {
			if !order.Status.CanTransitionTo(enums.OrderStatusDelivered) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be confirmed in current state")
			}
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"status":       enums.OrderStatusDelivered,
				"delivered_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
			}
		}

		escrow, err := repo.FindEscrowByOrder(ctx, input.OrderID)
		switch {
		case err == nil:
			if escrow.Status == enums.EscrowStatusHeld && !escrow.BuyerConfirmed {
				// A zero-row update here means the hold settled under us;
				// the confirmation flag no longer matters.
				if _, err := repo.TransitionEscrow(ctx, escrow.ID, enums.EscrowStatusHeld, map[string]any{"buyer_confirmed": true}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record buyer confirmation")
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Confirmation ahead of payment capture; nothing to mark.
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDeliveryConfirmed,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: DeliveryConfirmedEvent{
				OrderID:    order.ID,
				DeliveryID: delivery.ID,
				BuyerID:    input.BuyerID,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	escrow, err := s.repo.FindEscrowByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "escrow transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escrow transaction")
	}
	return escrow, nil
}

// ReleaseDue settles held escrows whose delivery has sat unconfirmed past
// the auto-release window. Each hold releases in its own transaction; one
// losing a race or failing does not hold back the rest. Returns the number
// released.
func (s *service) ReleaseDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be positive")
	}

	cutoff := now.Add(-s.autoReleaseWindow)
	holds, err := s.repo.ListExpiredHolds(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired holds")
	}

	released := 0
	for _, hold := range holds {
		err := s.Release(ctx, ReleaseInput{
			OrderID:     hold.OrderID,
			ReleaseType: enums.EscrowReleaseAutoDelivery,
		})
		switch {
		case err == nil:
			released++
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			// Settled or disputed since the listing; nothing to do.
		default:
			fields := map[string]any{
				"escrow_id": hold.ID.String(),
				"order_id":  hold.OrderID.String(),
			}
			s.logg.Error(s.logg.WithFields(ctx, fields), "auto release failed", err)
		}
	}
	return released, nil
}

func releaseReason(notes *string, releaseType enums.EscrowReleaseType) string {
	if notes != nil && strings.TrimSpace(*notes) != "" {
		return strings.TrimSpace(*notes)
	}
	return releaseType.String()
}
