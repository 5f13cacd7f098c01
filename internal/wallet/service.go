package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/db"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/metrics"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

// casAttempts bounds the optimistic retry loop when concurrent writers
// contend for the same vendor's balance.
const casAttempts = 3

// Service owns every mutation of vendor_wallets.balance_kobo. Other domains
// never touch the balance column; they call ApplyDelta inside their own
// transaction and get back the ledger entry that explains the change.
type Service interface {
	ApplyDelta(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.WalletTransaction, error)
	FinalizePayoutDebit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, reference string, status enums.WalletTransactionStatus) error
	Balance(ctx context.Context, vendorID uuid.UUID) (int64, error)
	Statement(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*StatementPage, error)
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
}

// ApplyDeltaInput describes one signed balance change. AmountKobo is
// positive for credits and negative for debits; Reference plus Type form
// the idempotency key.
type ApplyDeltaInput struct {
	VendorID   uuid.UUID
	Type       enums.WalletTransactionType
	AmountKobo int64
	Reference  string
	Status     enums.WalletTransactionStatus
	Narration  *string
}

// StatementPage is one page of a vendor's ledger with the live balance.
type StatementPage struct {
	BalanceKobo  int64
	Transactions []models.WalletTransaction
	NextCursor   string
}

// NewService builds the wallet service with the required dependencies.
func NewService(repo Repository, logg *logger.Logger, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, metrics: m}, nil
}

// ApplyDelta applies one signed change to the vendor's balance and appends
// the matching ledger entry. It must run inside the caller's transaction so
// the balance write and the entry commit or roll back together. Retrying
// with the same (type, reference) returns the already-applied entry without
// moving the balance again.
func (s *service) ApplyDelta(ctx context.Context, tx *gorm.DB, input ApplyDeltaInput) (*models.WalletTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for wallet delta")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.AmountKobo == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	if strings.TrimSpace(input.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet transaction type")
	}
	status := input.Status
	if status == "" {
		status = enums.WalletTransactionStatusCompleted
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.FindTransactionByTypeAndReference(ctx, input.VendorID, input.Type, input.Reference)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check wallet idempotency")
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		balance, err := s.currentBalance(ctx, repo, input)
		if err != nil {
			return nil, err
		}

		next := balance + input.AmountKobo
		if next < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient funds")
		}

		swapped, err := repo.CompareAndSwapBalance(ctx, input.VendorID, balance, next)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write wallet balance")
		}
		if !swapped {
			continue
		}

		entry := &models.WalletTransaction{
			VendorID:         input.VendorID,
			Type:             input.Type,
			AmountKobo:       input.AmountKobo,
			BalanceAfterKobo: next,
			Reference:        input.Reference,
			Status:           status,
			Narration:        input.Narration,
		}
		created, err := repo.CreateTransaction(ctx, entry)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				// Lost a race against an identical delta; the other
				// writer's entry is the authoritative one.
				return repo.FindTransactionByTypeAndReference(ctx, input.VendorID, input.Type, input.Reference)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append wallet transaction")
		}
		return created, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet busy, please retry")
}

func (s *service) currentBalance(ctx context.Context, repo Repository, input ApplyDeltaInput) (int64, error) {
	current, err := repo.FindWalletByVendor(ctx, input.VendorID)
	if err == nil {
		return current.BalanceKobo, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor wallet")
	}
	if input.AmountKobo < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "insufficient funds")
	}
	wallet := &models.VendorWallet{VendorID: input.VendorID, BalanceKobo: 0}
	if _, err := repo.CreateWallet(ctx, wallet); err != nil {
		if db.IsUniqueViolation(err, "") {
			// Another request created it between our read and write.
			created, ferr := repo.FindWalletByVendor(ctx, input.VendorID)
			if ferr != nil {
				return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "reload vendor wallet")
			}
			return created.BalanceKobo, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor wallet")
	}
	return 0, nil
}

// FinalizePayoutDebit settles a pending payout debit entry, marking it
// completed when the transfer lands or reversed when it fails. The balance
// itself is untouched; reversal credits go through ApplyDelta.
func (s *service) FinalizePayoutDebit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, reference string, status enums.WalletTransactionStatus) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to finalize payout debit")
	}
	if vendorID == uuid.Nil || strings.TrimSpace(reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id and reference required")
	}
	if status != enums.WalletTransactionStatusCompleted && status != enums.WalletTransactionStatusReversed {
		return pkgerrors.New(pkgerrors.CodeValidation, "payout debit can only settle to completed or reversed")
	}

	repo := s.repo.WithTx(tx)
	if _, err := repo.FindTransactionByTypeAndReference(ctx, vendorID, enums.WalletTransactionTypePayout, reference); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payout debit entry not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout debit entry")
	}
	if err := repo.UpdateTransactionStatus(ctx, vendorID, enums.WalletTransactionTypePayout, reference, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payout debit entry")
	}
	return nil
}

// Balance returns the vendor's current balance, cross-checked against the
// newest ledger entry. A disagreement is an internal inconsistency: it is
// logged, counted, and surfaced as a generic retryable error.
func (s *service) Balance(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	if vendorID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	wallet, err := s.repo.FindWalletByVendor(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor wallet")
	}

	newest, err := s.repo.FindNewestTransaction(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if wallet.BalanceKobo != 0 {
				return 0, s.invariantBreak(ctx, vendorID, wallet.BalanceKobo, 0)
			}
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load newest wallet transaction")
	}

	if wallet.BalanceKobo != newest.BalanceAfterKobo {
		return 0, s.invariantBreak(ctx, vendorID, wallet.BalanceKobo, newest.BalanceAfterKobo)
	}
	return wallet.BalanceKobo, nil
}

func (s *service) invariantBreak(ctx context.Context, vendorID uuid.UUID, balance, ledger int64) error {
	if s.metrics != nil {
		s.metrics.IncInvariantViolation()
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"vendor_id":    vendorID.String(),
		"balance_kobo": balance,
		"ledger_kobo":  ledger,
	})
	err := pkgerrors.New(pkgerrors.CodeInvariant, "wallet balance disagrees with ledger")
	s.logg.Error(ctx, "wallet invariant violation", err)
	return err
}

// Statement returns the balance plus one page of ledger entries, newest
// first.
func (s *service) Statement(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*StatementPage, error) {
	balance, err := s.Balance(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListTransactions(ctx, vendorID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &StatementPage{BalanceKobo: balance, Transactions: entries}
	if len(entries) > limit {
		page.Transactions = entries[:limit]
		last := page.Transactions[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
