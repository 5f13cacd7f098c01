package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// escrowSettler moves the disputed hold once an admin rules. All calls run
// inside the adjudication transaction.
type escrowSettler interface {
	ReleaseWithTx(ctx context.Context, tx *gorm.DB, input escrow.ReleaseInput) error
	RefundWithTx(ctx context.Context, tx *gorm.DB, input escrow.RefundInput) error
	ReopenHoldWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service owns dispute adjudication. Filing lives with the escrow service
// because it freezes the hold; everything after filing happens here.
type Service interface {
	StartInvestigation(ctx context.Context, input StartInvestigationInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Close(ctx context.Context, input CloseInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	escrow  escrowSettler
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
}

// StartInvestigationInput moves an open dispute under review.
type StartInvestigationInput struct {
	DisputeID uuid.UUID
	AdminID   uuid.UUID
	Actor     *outbox.ActorRef
}

// ResolveInput records the admin's ruling and settles the escrow.
type ResolveInput struct {
	DisputeID  uuid.UUID
	Outcome    enums.DisputeOutcome
	Resolution string
	ResolvedBy uuid.UUID
	Actor      *outbox.ActorRef
}

// CloseInput dismisses a dispute without a ruling.
type CloseInput struct {
	DisputeID uuid.UUID
	Reason    string
	ClosedBy  uuid.UUID
	Actor     *outbox.ActorRef
}

// Page is one cursor page of disputes.
type Page struct {
	Disputes   []models.Dispute
	NextCursor string
}

// DisputeClosedEvent announces a dismissal.
type DisputeClosedEvent struct {
	DisputeID uuid.UUID `json:"dispute_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Reason    string    `json:"reason"`
	ClosedBy  uuid.UUID `json:"closed_by"`
}

// DisputeResolvedEvent announces the ruling.
type DisputeResolvedEvent struct {
	DisputeID  uuid.UUID            `json:"dispute_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	Outcome    enums.DisputeOutcome `json:"outcome"`
	ResolvedBy uuid.UUID            `json:"resolved_by"`
}

// NewService builds the dispute service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, escrowSvc escrowSettler, logg *logger.Logger, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  ob,
		escrow:  escrowSvc,
		logg:    logg,
		metrics: m,
	}, nil
}

// StartInvestigation flags the dispute as under review.
func (s *service) StartInvestigation(ctx context.Context, input StartInvestigationInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}

	dispute, err := s.load(ctx, s.repo, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == enums.DisputeStatusInvestigating {
		return dispute, nil
	}
	if !dispute.Status.CanTransitionTo(enums.DisputeStatusInvestigating) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already settled")
	}

	if err := s.repo.UpdateDispute(ctx, dispute.ID, map[string]any{
		"status": enums.DisputeStatusInvestigating,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark dispute investigating")
	}
	dispute.Status = enums.DisputeStatusInvestigating

	if s.metrics != nil {
		s.metrics.ObserveDispute("investigating")
	}
	return dispute, nil
}

// Resolve records the ruling and settles the frozen escrow in the same
// transaction: release_to_vendor credits the vendor's wallet,
// refund_to_buyer cancels the order and returns the payment. A dispute
// filed before payment captured carries no hold, so the only valid ruling
// is refund_to_buyer, which voids the order without touching any wallet.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome must be release_to_vendor or refund_to_buyer")
	}
	if strings.TrimSpace(input.Resolution) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution notes required")
	}
	if input.ResolvedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "resolver identity missing")
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		dispute, err := s.load(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if dispute.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already settled")
		}
		if !dispute.Status.CanTransitionTo(enums.DisputeStatusResolved) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute cannot be resolved in current state")
		}

		if dispute.EscrowID == nil {
			// Filed before payment captured, so there is no hold to move
			// and nothing for the vendor to collect. The only valid ruling
			// voids the order.
			if input.Outcome != enums.DisputeOutcomeRefundToBuyer {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no escrow held for this dispute; only refund_to_buyer applies")
			}
			if err := repo.UpdateOrder(ctx, dispute.OrderID, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": time.Now(),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel disputed order")
			}
		} else {
			switch input.Outcome {
			case enums.DisputeOutcomeReleaseToVendor:
				err = s.escrow.ReleaseWithTx(ctx, tx, escrow.ReleaseInput{
					OrderID:     dispute.OrderID,
					ReleaseType: enums.EscrowReleaseDisputeResolution,
					ReleasedBy:  input.ResolvedBy,
					Notes:       &input.Resolution,
					Actor:       input.Actor,
				})
			case enums.DisputeOutcomeRefundToBuyer:
				err = s.escrow.RefundWithTx(ctx, tx, escrow.RefundInput{
					OrderID:    dispute.OrderID,
					Reason:     input.Resolution,
					ViaDispute: true,
					ResolvedBy: input.ResolvedBy,
					Actor:      input.Actor,
				})
			}
			if err != nil {
				return err
			}
		}

		now := time.Now()
		if err := repo.UpdateDispute(ctx, dispute.ID, map[string]any{
			"status":      enums.DisputeStatusResolved,
			"outcome":     input.Outcome,
			"resolution":  input.Resolution,
			"resolved_by": input.ResolvedBy,
			"resolved_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispute resolution")
		}

		dispute.Status = enums.DisputeStatusResolved
		outcome := input.Outcome
		dispute.Outcome = &outcome
		dispute.Resolution = &input.Resolution
		dispute.ResolvedBy = &input.ResolvedBy
		dispute.ResolvedAt = &now
		resolved = dispute

		if s.metrics != nil {
			s.metrics.ObserveDispute("resolved")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: DisputeResolvedEvent{
				DisputeID:  dispute.ID,
				OrderID:    dispute.OrderID,
				Outcome:    input.Outcome,
				ResolvedBy: input.ResolvedBy,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// Close dismisses a dispute without a ruling: withdrawn by the filer or
// found baseless during investigation. The frozen hold thaws back to held
// and the order returns to where the filing found it, so the ordinary
// release path resumes. Open disputes must be investigated before closing.
func (s *service) Close(ctx context.Context, input CloseInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "closure reason required")
	}
	if input.ClosedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "closer identity missing")
	}

	var closed *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		dispute, err := s.load(ctx, repo, input.DisputeID)
		if err != nil {
			return err
		}
		if dispute.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already settled")
		}
		if !dispute.Status.CanTransitionTo(enums.DisputeStatusClosed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "dispute must be investigated before closing")
		}

		if dispute.EscrowID != nil {
			if err := s.escrow.ReopenHoldWithTx(ctx, tx, dispute.OrderID); err != nil {
				return err
			}
		}
		if dispute.PriorOrderStatus.IsValid() {
			if err := repo.UpdateOrder(ctx, dispute.OrderID, map[string]any{
				"status": dispute.PriorOrderStatus,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore order status")
			}
		}

		now := time.Now()
		if err := repo.UpdateDispute(ctx, dispute.ID, map[string]any{
			"status":      enums.DisputeStatusClosed,
			"resolution":  input.Reason,
			"resolved_by": input.ClosedBy,
			"resolved_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record dispute closure")
		}

		dispute.Status = enums.DisputeStatusClosed
		dispute.Resolution = &input.Reason
		dispute.ResolvedBy = &input.ClosedBy
		dispute.ResolvedAt = &now
		closed = dispute

		if s.metrics != nil {
			s.metrics.ObserveDispute("closed")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDisputeClosed,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: DisputeClosedEvent{
				DisputeID: dispute.ID,
				OrderID:   dispute.OrderID,
				Reason:    input.Reason,
				ClosedBy:  input.ClosedBy,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	return s.load(ctx, s.repo, disputeID)
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	entries, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Disputes: entries}
	if len(entries) > limit {
		page.Disputes = entries[:limit]
		last := page.Disputes[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) load(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := repo.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}
