package escrow

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/wallet"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
)

type stubEscrowRepo struct {
	escrow   *models.EscrowTransaction
	order    *models.Order
	delivery *models.Delivery
	history  []models.DeliveryStatusHistory
	disputes []models.Dispute

	escrowUpdates   []map[string]any
	orderUpdates    []map[string]any
	deliveryUpdates []map[string]any

	// afterFindEscrow runs once after a successful escrow read, letting a
	// test commit a competing settlement between the read and the write.
	afterFindEscrow func()

	expiredHolds []models.EscrowTransaction
	listedCutoff time.Time
}

func (s *stubEscrowRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubEscrowRepo) CreateEscrow(ctx context.Context, escrow *models.EscrowTransaction) (*models.EscrowTransaction, error) {
	if escrow.ID == uuid.Nil {
		escrow.ID = uuid.New()
	}
	s.escrow = escrow
	return escrow, nil
}

func (s *stubEscrowRepo) FindEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	if s.escrow == nil || s.escrow.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.escrow
	if s.afterFindEscrow != nil {
		hook := s.afterFindEscrow
		s.afterFindEscrow = nil
		hook()
	}
	return &copied, nil
}

func (s *stubEscrowRepo) TransitionEscrow(ctx context.Context, escrowID uuid.UUID, from enums.EscrowStatus, updates map[string]any) (int64, error) {
	if s.escrow == nil || s.escrow.ID != escrowID || s.escrow.Status != from {
		return 0, nil
	}
	s.escrowUpdates = append(s.escrowUpdates, updates)
	if status, ok := updates["status"].(enums.EscrowStatus); ok {
		s.escrow.Status = status
	}
	if confirmed, ok := updates["buyer_confirmed"].(bool); ok {
		s.escrow.BuyerConfirmed = confirmed
	}
	return 1, nil
}

func (s *stubEscrowRepo) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.EscrowTransaction, error) {
	s.listedCutoff = cutoff
	if limit < len(s.expiredHolds) {
		return s.expiredHolds[:limit], nil
	}
	return s.expiredHolds, nil
}

func (s *stubEscrowRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubEscrowRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	s.orderUpdates = append(s.orderUpdates, updates)
	if s.order != nil && s.order.ID == orderID {
		if status, ok := updates["status"].(enums.OrderStatus); ok {
			s.order.Status = status
		}
		if status, ok := updates["payment_status"].(enums.PaymentStatus); ok {
			s.order.PaymentStatus = status
		}
	}
	return nil
}

func (s *stubEscrowRepo) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.delivery
	return &copied, nil
}

func (s *stubEscrowRepo) UpdateDelivery(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error {
	s.deliveryUpdates = append(s.deliveryUpdates, updates)
	if s.delivery != nil && s.delivery.ID == deliveryID {
		if status, ok := updates["status"].(enums.DeliveryStatus); ok {
			s.delivery.Status = status
		}
	}
	return nil
}

func (s *stubEscrowRepo) CreateDeliveryHistory(ctx context.Context, entry *models.DeliveryStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubEscrowRepo) CreateDispute(ctx context.Context, dispute *models.Dispute) (*models.Dispute, error) {
	if dispute.ID == uuid.Nil {
		dispute.ID = uuid.New()
	}
	s.disputes = append(s.disputes, *dispute)
	return dispute, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubWalletApplier struct {
	deltas []wallet.ApplyDeltaInput
	err    error
}

func (s *stubWalletApplier) ApplyDelta(ctx context.Context, tx *gorm.DB, input wallet.ApplyDeltaInput) (*models.WalletTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.deltas = append(s.deltas, input)
	return &models.WalletTransaction{
		ID:         uuid.New(),
		VendorID:   input.VendorID,
		Type:       input.Type,
		AmountKobo: input.AmountKobo,
		Reference:  input.Reference,
	}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "escrow-test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func newTestService(t *testing.T, repo *stubEscrowRepo, ob *stubOutboxPublisher, walletSvc *stubWalletApplier) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, ob, walletSvc, testLogger(), nil, 10, 7*24*time.Hour)
	require.NoError(t, err)
	return svc
}

func heldEscrow(orderID, vendorID uuid.UUID, vendorAmount int64) *models.EscrowTransaction {
	return &models.EscrowTransaction{
		ID:               uuid.New(),
		OrderID:          orderID,
		VendorID:         vendorID,
		BuyerID:          uuid.New(),
		Status:           enums.EscrowStatusHeld,
		VendorAmountKobo: vendorAmount,
		PlatformFeeKobo:  vendorAmount / 9,
	}
}

func TestPlatformFeeRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(0), PlatformFee(0, 10))
	assert.Equal(t, int64(1), PlatformFee(5, 10))
	assert.Equal(t, int64(0), PlatformFee(4, 10))
	assert.Equal(t, int64(126_000), PlatformFee(1_260_000, 10))
	assert.Equal(t, int64(30), PlatformFee(999, 3))
}

func TestOpenWithTxCreatesHoldAndEmitsEvent(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubWalletApplier{})

	escrow, err := svc.OpenWithTx(context.Background(), &gorm.DB{}, OpenInput{
		OrderID:      orderID,
		VendorID:     uuid.New(),
		BuyerID:      uuid.New(),
		SubtotalKobo: 1_200_000,
		TotalKobo:    1_260_000,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusHeld, escrow.Status)
	assert.Equal(t, int64(120_000), escrow.PlatformFeeKobo)
	assert.Equal(t, int64(1_140_000), escrow.VendorAmountKobo)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowOpened, ob.events[0].EventType)
}

func TestOpenWithTxReturnsExistingHold(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	repo := &stubEscrowRepo{escrow: heldEscrow(orderID, vendorID, 900_000)}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubWalletApplier{})

	escrow, err := svc.OpenWithTx(context.Background(), &gorm.DB{}, OpenInput{
		OrderID:      orderID,
		VendorID:     vendorID,
		BuyerID:      uuid.New(),
		SubtotalKobo: 1_000_000,
		TotalKobo:    1_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, repo.escrow.ID, escrow.ID)
	assert.Empty(t, ob.events)
}

func TestReleaseCreditsVendorWallet(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, vendorID, 1_134_000),
		order:  &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusDelivered},
	}
	ob := &stubOutboxPublisher{}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, ob, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseAutoDelivery,
	})
	require.NoError(t, err)

	require.Len(t, walletSvc.deltas, 1)
	assert.Equal(t, vendorID, walletSvc.deltas[0].VendorID)
	assert.Equal(t, enums.WalletTransactionTypeSale, walletSvc.deltas[0].Type)
	assert.Equal(t, int64(1_134_000), walletSvc.deltas[0].AmountKobo)
	assert.Equal(t, repo.escrow.ID.String(), walletSvc.deltas[0].Reference)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowReleased, ob.events[0].EventType)
}

func TestReleaseRequiresDeliveredOrderOrBuyerConfirmation(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, vendorID, 500_000),
		order:  &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusShipped},
	}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseManualBuyer,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, walletSvc.deltas)

	repo.escrow.BuyerConfirmed = true
	err = svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseManualBuyer,
	})
	require.NoError(t, err)
	assert.Len(t, walletSvc.deltas, 1)
}

func TestReleaseAdminOverrideSkipsDeliveryCheck(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{escrow: heldEscrow(orderID, uuid.New(), 250_000)}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseAdminOverride,
		ReleasedBy:  uuid.New(),
	})
	require.NoError(t, err)
	assert.Len(t, walletSvc.deltas, 1)
}

func TestReleaseRejectsSettledEscrow(t *testing.T) {
	orderID := uuid.New()
	escrow := heldEscrow(orderID, uuid.New(), 250_000)
	escrow.Status = enums.EscrowStatusReleased
	repo := &stubEscrowRepo{escrow: escrow}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseAdminOverride,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, walletSvc.deltas)
}

func TestReleaseLosesRaceAgainstConcurrentRefund(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, vendorID, 1_000_000),
		order:  &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusDelivered},
	}
	// A refund commits between the release's read and its write.
	repo.afterFindEscrow = func() {
		repo.escrow.Status = enums.EscrowStatusRefunded
	}
	ob := &stubOutboxPublisher{}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, ob, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseAutoDelivery,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, enums.EscrowStatusRefunded, repo.escrow.Status)
	assert.Empty(t, walletSvc.deltas)
	assert.Empty(t, ob.events)
}

func TestReleaseDisputedRequiresResolution(t *testing.T) {
	orderID := uuid.New()
	escrow := heldEscrow(orderID, uuid.New(), 250_000)
	escrow.Status = enums.EscrowStatusDisputed
	repo := &stubEscrowRepo{escrow: escrow}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseAdminOverride,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	err = svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseDisputeResolution,
		ReleasedBy:  uuid.New(),
	})
	require.NoError(t, err)
	assert.Len(t, walletSvc.deltas, 1)
}

func TestReleaseManualBuyerAfterConfirmation(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	escrow := heldEscrow(orderID, vendorID, 450_000)
	escrow.BuyerConfirmed = true
	repo := &stubEscrowRepo{
		escrow: escrow,
		order:  &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusShipped},
	}
	ob := &stubOutboxPublisher{}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, ob, walletSvc)

	err := svc.Release(context.Background(), ReleaseInput{
		OrderID:     orderID,
		ReleaseType: enums.EscrowReleaseManualBuyer,
		ReleasedBy:  vendorID,
	})
	require.NoError(t, err)
	require.Len(t, walletSvc.deltas, 1)
	assert.Equal(t, int64(450_000), walletSvc.deltas[0].AmountKobo)
	assert.Equal(t, enums.EscrowStatusReleased, repo.escrow.Status)
}

func TestReleaseDueSettlesExpiredHolds(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	escrow := heldEscrow(orderID, vendorID, 800_000)
	repo := &stubEscrowRepo{
		escrow:       escrow,
		order:        &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusDelivered},
		expiredHolds: []models.EscrowTransaction{*escrow},
	}
	ob := &stubOutboxPublisher{}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, ob, walletSvc)

	now := time.Now()
	released, err := svc.ReleaseDue(context.Background(), now, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Equal(t, now.Add(-7*24*time.Hour), repo.listedCutoff)
	require.Len(t, walletSvc.deltas, 1)
	assert.Equal(t, int64(800_000), walletSvc.deltas[0].AmountKobo)
	assert.Equal(t, enums.EscrowStatusReleased, repo.escrow.Status)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowReleased, ob.events[0].EventType)
}

func TestReleaseDueSkipsConcurrentlySettledHold(t *testing.T) {
	orderID := uuid.New()
	vendorID := uuid.New()
	expired := *heldEscrow(orderID, vendorID, 800_000)
	settled := expired
	settled.Status = enums.EscrowStatusRefunded
	repo := &stubEscrowRepo{
		escrow:       &settled,
		order:        &models.Order{ID: orderID, VendorID: vendorID, Status: enums.OrderStatusDelivered},
		expiredHolds: []models.EscrowTransaction{expired},
	}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, walletSvc)

	released, err := svc.ReleaseDue(context.Background(), time.Now(), 50)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
	assert.Empty(t, walletSvc.deltas)
}

func TestRefundCancelsOrderWithoutWalletMovement(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, uuid.New(), 500_000),
		order:  &models.Order{ID: orderID, Status: enums.OrderStatusConfirmed, PaymentStatus: enums.PaymentStatusPaid},
	}
	ob := &stubOutboxPublisher{}
	walletSvc := &stubWalletApplier{}
	svc := newTestService(t, repo, ob, walletSvc)

	err := svc.Refund(context.Background(), RefundInput{
		OrderID: orderID,
		Reason:  "vendor could not fulfil",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusRefunded, repo.escrow.Status)
	assert.Equal(t, enums.OrderStatusCancelled, repo.order.Status)
	assert.Equal(t, enums.PaymentStatusRefunded, repo.order.PaymentStatus)
	assert.Empty(t, walletSvc.deltas)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventEscrowRefunded, ob.events[0].EventType)
}

func TestRefundDisputedOnlyViaResolution(t *testing.T) {
	orderID := uuid.New()
	escrow := heldEscrow(orderID, uuid.New(), 500_000)
	escrow.Status = enums.EscrowStatusDisputed
	repo := &stubEscrowRepo{
		escrow: escrow,
		order:  &models.Order{ID: orderID, Status: enums.OrderStatusDisputed, PaymentStatus: enums.PaymentStatusPaid},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	err := svc.Refund(context.Background(), RefundInput{OrderID: orderID, Reason: "buyer request"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	err = svc.Refund(context.Background(), RefundInput{
		OrderID:    orderID,
		Reason:     "dispute resolved for buyer",
		ViaDispute: true,
		ResolvedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusRefunded, repo.escrow.Status)
}

func TestCreateDisputeFreezesEscrowAndOrder(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, uuid.New(), 400_000),
		order:  &models.Order{ID: orderID, BuyerID: buyerID, Status: enums.OrderStatusShipped},
	}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubWalletApplier{})

	dispute, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		OrderID:     orderID,
		FiledBy:     buyerID,
		FiledByType: enums.DisputeFilerBuyer,
		Type:        enums.DisputeTypeNonDelivery,
		Description: "package never arrived",
	})
	require.NoError(t, err)
	require.NotNil(t, dispute.EscrowID)
	assert.Equal(t, repo.escrow.ID, *dispute.EscrowID)
	assert.Equal(t, enums.EscrowStatusDisputed, repo.escrow.Status)
	assert.Equal(t, enums.OrderStatusDisputed, repo.order.Status)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDisputeOpened, ob.events[0].EventType)
}

func TestCreateDisputeRejectsSecondDispute(t *testing.T) {
	orderID := uuid.New()
	escrow := heldEscrow(orderID, uuid.New(), 400_000)
	escrow.Status = enums.EscrowStatusDisputed
	repo := &stubEscrowRepo{
		escrow: escrow,
		order:  &models.Order{ID: orderID, Status: enums.OrderStatusDisputed},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	_, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		OrderID:     orderID,
		FiledBy:     uuid.New(),
		FiledByType: enums.DisputeFilerVendor,
		Type:        enums.DisputeTypeOther,
		Description: "second attempt",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Empty(t, repo.disputes)
}

func TestCreateDisputeRejectsSettledOrder(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{
		order: &models.Order{ID: orderID, Status: enums.OrderStatusCancelled},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	_, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		OrderID:     orderID,
		FiledBy:     uuid.New(),
		FiledByType: enums.DisputeFilerBuyer,
		Type:        enums.DisputeTypeOther,
		Description: "too late",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCreateDisputeRecordsPriorOrderStatus(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, uuid.New(), 400_000),
		order:  &models.Order{ID: orderID, BuyerID: buyerID, Status: enums.OrderStatusShipped},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	dispute, err := svc.CreateDispute(context.Background(), CreateDisputeInput{
		OrderID:     orderID,
		FiledBy:     buyerID,
		FiledByType: enums.DisputeFilerBuyer,
		Type:        enums.DisputeTypeDamagedItem,
		Description: "screen cracked in transit",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, dispute.PriorOrderStatus)
}

func TestReopenHoldThawsDisputedEscrow(t *testing.T) {
	orderID := uuid.New()
	escrow := heldEscrow(orderID, uuid.New(), 400_000)
	escrow.Status = enums.EscrowStatusDisputed
	repo := &stubEscrowRepo{escrow: escrow}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	err := svc.ReopenHoldWithTx(context.Background(), &gorm.DB{}, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusHeld, repo.escrow.Status)
}

func TestReopenHoldRejectsUnfrozenEscrow(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{escrow: heldEscrow(orderID, uuid.New(), 400_000)}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	err := svc.ReopenHoldWithTx(context.Background(), &gorm.DB{}, orderID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, enums.EscrowStatusHeld, repo.escrow.Status)
}

func TestConfirmDeliveryMarksEverythingDelivered(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	repo := &stubEscrowRepo{
		escrow: heldEscrow(orderID, uuid.New(), 800_000),
		order:  &models.Order{ID: orderID, BuyerID: buyerID, Status: enums.OrderStatusShipped},
		delivery: &models.Delivery{
			ID:      uuid.New(),
			OrderID: orderID,
			Status:  enums.DeliveryStatusInTransit,
		},
	}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubWalletApplier{})

	err := svc.ConfirmDelivery(context.Background(), ConfirmDeliveryInput{OrderID: orderID, BuyerID: buyerID})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusDelivered, repo.delivery.Status)
	assert.Equal(t, enums.OrderStatusDelivered, repo.order.Status)
	assert.True(t, repo.escrow.BuyerConfirmed)
	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.DeliveryUpdateSourceBuyer, repo.history[0].UpdatedBy)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDeliveryConfirmed, ob.events[0].EventType)
}

func TestConfirmDeliveryRejectsWrongBuyer(t *testing.T) {
	orderID := uuid.New()
	repo := &stubEscrowRepo{
		order: &models.Order{ID: orderID, BuyerID: uuid.New(), Status: enums.OrderStatusShipped},
		delivery: &models.Delivery{
			ID:      uuid.New(),
			OrderID: orderID,
			Status:  enums.DeliveryStatusInTransit,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubWalletApplier{})

	err := svc.ConfirmDelivery(context.Background(), ConfirmDeliveryInput{OrderID: orderID, BuyerID: uuid.New()})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
