package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/wallet"
	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/pagination"
	"github.com/ojalabs/oja-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletApplier interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, input wallet.ApplyDeltaInput) (*models.WalletTransaction, error)
	FinalizePayoutDebit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, reference string, status enums.WalletTransactionStatus) error
}

// Service owns withdrawal requests. A request debits the wallet the moment
// it is created; the debit settles when the bank transfer completes and is
// reversed with a compensating credit when it fails.
type Service interface {
	RequestWithdrawal(ctx context.Context, input RequestInput) (*models.Payout, error)
	MarkProcessing(ctx context.Context, input MarkProcessingInput) (*models.Payout, error)
	MarkCompleted(ctx context.Context, input MarkCompletedInput) (*models.Payout, error)
	MarkFailed(ctx context.Context, input MarkFailedInput) (*models.Payout, error)
	Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error)
	List(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*Page, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	wallet  walletApplier
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
	cfg     config.PayoutConfig
}

// RequestInput asks to move wallet balance to a bank account.
type RequestInput struct {
	VendorID    uuid.UUID
	AmountKobo  int64
	BankAccount types.BankAccount
	Actor       *outbox.ActorRef
}

// MarkProcessingInput records that the transfer was handed to the bank.
type MarkProcessingInput struct {
	PayoutID          uuid.UUID
	TransferReference *string
	Actor             *outbox.ActorRef
}

// MarkCompletedInput settles a processing payout.
type MarkCompletedInput struct {
	PayoutID          uuid.UUID
	TransferReference *string
	Actor             *outbox.ActorRef
}

// MarkFailedInput fails a processing payout and restores the balance.
type MarkFailedInput struct {
	PayoutID uuid.UUID
	Reason   string
	Actor    *outbox.ActorRef
}

// Page is one cursor page of payouts.
type Page struct {
	Payouts    []models.Payout
	NextCursor string
}

// PayoutRequestedEvent announces a new withdrawal request.
type PayoutRequestedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	AmountKobo  int64     `json:"amount_kobo"`
	BankAccount string    `json:"bank_account"`
}

// PayoutSettledEvent announces a completed or failed payout.
type PayoutSettledEvent struct {
	PayoutID   uuid.UUID          `json:"payout_id"`
	VendorID   uuid.UUID          `json:"vendor_id"`
	AmountKobo int64              `json:"amount_kobo"`
	Status     enums.PayoutStatus `json:"status"`
	Reason     string             `json:"reason,omitempty"`
}

// NewService builds the payout service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, walletSvc walletApplier, logg *logger.Logger, m *metrics.SettlementMetrics, cfg config.PayoutConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  ob,
		wallet:  walletSvc,
		logg:    logg,
		metrics: m,
		cfg:     cfg,
	}, nil
}

// RequestWithdrawal creates the payout row and its pending wallet debit as
// one unit. Insufficient balance surfaces from the wallet ledger and aborts
// both writes.
func (s *service) RequestWithdrawal(ctx context.Context, input RequestInput) (*models.Payout, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}
	if input.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	if s.cfg.MinAmountKobo > 0 && input.AmountKobo < s.cfg.MinAmountKobo {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("withdrawal amount below minimum of %d kobo", s.cfg.MinAmountKobo))
	}
	if err := input.BankAccount.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bank account")
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account := input.BankAccount
		created, err := repo.CreatePayout(ctx, &models.Payout{
			VendorID:    input.VendorID,
			AmountKobo:  input.AmountKobo,
			BankAccount: &account,
			Status:      enums.PayoutStatusPending,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}
		payout = created

		narration := fmt.Sprintf("withdrawal to %s %s", account.BankName, account.Masked())
		status := enums.WalletTransactionStatusPending
		if _, err := s.wallet.ApplyDelta(ctx, tx, wallet.ApplyDeltaInput{
			VendorID:   input.VendorID,
			Type:       enums.WalletTransactionTypePayout,
			AmountKobo: -input.AmountKobo,
			Reference:  created.ID.String(),
			Status:     status,
			Narration:  &narration,
		}); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.ObservePayout("requested")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregatePayout,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: PayoutRequestedEvent{
				PayoutID:    created.ID,
				VendorID:    created.VendorID,
				AmountKobo:  created.AmountKobo,
				BankAccount: account.Masked(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// MarkProcessing records the hand-off to the bank.
func (s *service) MarkProcessing(ctx context.Context, input MarkProcessingInput) (*models.Payout, error) {
	return s.transition(ctx, input.PayoutID, enums.PayoutStatusProcessing, func(tx *gorm.DB, repo Repository, payout *models.Payout) error {
		updates := map[string]any{"status": enums.PayoutStatusProcessing}
		if input.TransferReference != nil {
			updates["transfer_reference"] = *input.TransferReference
		}
		if err := repo.UpdatePayout(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout processing")
		}
		if s.metrics != nil {
			s.metrics.ObservePayout("processing")
		}
		return nil
	})
}

// MarkCompleted settles the payout and finalizes its pending wallet debit.
func (s *service) MarkCompleted(ctx context.Context, input MarkCompletedInput) (*models.Payout, error) {
	return s.transition(ctx, input.PayoutID, enums.PayoutStatusCompleted, func(tx *gorm.DB, repo Repository, payout *models.Payout) error {
		updates := map[string]any{
			"status":       enums.PayoutStatusCompleted,
			"completed_at": time.Now(),
		}
		if input.TransferReference != nil {
			updates["transfer_reference"] = *input.TransferReference
		}
		if err := repo.UpdatePayout(ctx, payout.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout completed")
		}

		if err := s.wallet.FinalizePayoutDebit(ctx, tx, payout.VendorID, payout.ID.String(), enums.WalletTransactionStatusCompleted); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.ObservePayout("completed")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: PayoutSettledEvent{
				PayoutID:   payout.ID,
				VendorID:   payout.VendorID,
				AmountKobo: payout.AmountKobo,
				Status:     enums.PayoutStatusCompleted,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// MarkFailed fails the payout, reverses the original debit with a
// compensating refund credit, and marks the debit entry reversed. The refund
// reuses the payout id as its reference so bank retries cannot credit twice.
func (s *service) MarkFailed(ctx context.Context, input MarkFailedInput) (*models.Payout, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "failure reason required")
	}

	return s.transition(ctx, input.PayoutID, enums.PayoutStatusFailed, func(tx *gorm.DB, repo Repository, payout *models.Payout) error {
		if err := repo.UpdatePayout(ctx, payout.ID, map[string]any{
			"status":         enums.PayoutStatusFailed,
			"failure_reason": input.Reason,
			"failed_at":      time.Now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout failed")
		}

		narration := fmt.Sprintf("reversal of failed payout %s", payout.ID)
		if _, err := s.wallet.ApplyDelta(ctx, tx, wallet.ApplyDeltaInput{
			VendorID:   payout.VendorID,
			Type:       enums.WalletTransactionTypeRefund,
			AmountKobo: payout.AmountKobo,
			Reference:  payout.ID.String(),
			Narration:  &narration,
		}); err != nil {
			return err
		}
		if err := s.wallet.FinalizePayoutDebit(ctx, tx, payout.VendorID, payout.ID.String(), enums.WalletTransactionStatusReversed); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.ObservePayout("failed")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPayoutFailed,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: PayoutSettledEvent{
				PayoutID:   payout.ID,
				VendorID:   payout.VendorID,
				AmountKobo: payout.AmountKobo,
				Status:     enums.PayoutStatusFailed,
				Reason:     input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// transition loads the payout, checks the state machine, runs the
// status-specific work, and reloads the final row.
func (s *service) transition(ctx context.Context, payoutID uuid.UUID, target enums.PayoutStatus, apply func(tx *gorm.DB, repo Repository, payout *models.Payout) error) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var result *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindByID(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
		}
		if payout.Status == target {
			result = payout
			return nil
		}
		if !payout.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payout cannot move from %s to %s", payout.Status, target))
		}

		if err := apply(tx, repo, payout); err != nil {
			return err
		}

		reloaded, err := repo.FindByID(ctx, payoutID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
		}
		result = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) List(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*Page, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	entries, err := s.repo.List(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Payouts: entries}
	if len(entries) > limit {
		page.Payouts = entries[:limit]
		last := page.Payouts[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
