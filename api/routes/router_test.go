package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/internal/deliveries"
	"github.com/ojalabs/oja-backend/internal/disputes"
	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/internal/orders"
	"github.com/ojalabs/oja-backend/internal/payouts"
	"github.com/ojalabs/oja-backend/internal/wallet"
	pkgauth "github.com/ojalabs/oja-backend/pkg/auth"
	"github.com/ojalabs/oja-backend/pkg/config"
	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), BuyerID: input.BuyerID, VendorID: input.VendorID}, nil
}

func (stubOrdersService) UpdatePaymentStatus(ctx context.Context, input orders.UpdatePaymentInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, input orders.CancelInput) error { return nil }

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubOrdersService) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubOrdersService) List(ctx context.Context, filter orders.ListFilter, params pagination.Params) (*orders.Page, error) {
	return &orders.Page{}, nil
}

type stubEscrowService struct{}

func (stubEscrowService) OpenWithTx(ctx context.Context, tx *gorm.DB, input escrow.OpenInput) (*models.EscrowTransaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubEscrowService) Release(ctx context.Context, input escrow.ReleaseInput) error { return nil }

func (stubEscrowService) ReleaseWithTx(ctx context.Context, tx *gorm.DB, input escrow.ReleaseInput) error {
	return nil
}

func (stubEscrowService) Refund(ctx context.Context, input escrow.RefundInput) error { return nil }

func (stubEscrowService) RefundWithTx(ctx context.Context, tx *gorm.DB, input escrow.RefundInput) error {
	return nil
}

func (stubEscrowService) CreateDispute(ctx context.Context, input escrow.CreateDisputeInput) (*models.Dispute, error) {
	return &models.Dispute{ID: uuid.New(), OrderID: input.OrderID}, nil
}

func (stubEscrowService) ConfirmDelivery(ctx context.Context, input escrow.ConfirmDeliveryInput) error {
	return nil
}

func (stubEscrowService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.EscrowTransaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubEscrowService) ReleaseDue(ctx context.Context, now time.Time, limit int) (int, error) {
	return 0, nil
}

func (stubEscrowService) ReopenHoldWithTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return nil
}

type stubDeliveriesService struct{}

func (stubDeliveriesService) Create(ctx context.Context, input deliveries.CreateInput) (*models.Delivery, error) {
	return &models.Delivery{ID: uuid.New(), OrderID: input.OrderID}, nil
}

func (stubDeliveriesService) UpdateFromWebhook(ctx context.Context, event courier.WebhookEvent) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}

func (stubDeliveriesService) UploadProof(ctx context.Context, input deliveries.UploadProofInput) (*models.Delivery, error) {
	return &models.Delivery{}, nil
}

func (stubDeliveriesService) QuoteCost(ctx context.Context, input deliveries.QuoteInput) (*deliveries.CostQuote, error) {
	return &deliveries.CostQuote{CostKobo: 150_000, Currency: "NGN", Source: "zone_rate"}, nil
}

func (stubDeliveriesService) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubDeliveriesService) History(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusHistory, error) {
	return nil, nil
}

func (stubDeliveriesService) Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackingInfo, error) {
	return nil, fmt.Errorf("not implemented")
}

type stubPayoutsService struct{}

func (stubPayoutsService) RequestWithdrawal(ctx context.Context, input payouts.RequestInput) (*models.Payout, error) {
	return &models.Payout{ID: uuid.New(), VendorID: input.VendorID}, nil
}

func (stubPayoutsService) MarkProcessing(ctx context.Context, input payouts.MarkProcessingInput) (*models.Payout, error) {
	return &models.Payout{ID: input.PayoutID}, nil
}

func (stubPayoutsService) MarkCompleted(ctx context.Context, input payouts.MarkCompletedInput) (*models.Payout, error) {
	return &models.Payout{ID: input.PayoutID}, nil
}

func (stubPayoutsService) MarkFailed(ctx context.Context, input payouts.MarkFailedInput) (*models.Payout, error) {
	return &models.Payout{ID: input.PayoutID}, nil
}

func (stubPayoutsService) Get(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubPayoutsService) List(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*payouts.Page, error) {
	return &payouts.Page{}, nil
}

type stubWalletService struct{}

func (stubWalletService) ApplyDelta(ctx context.Context, tx *gorm.DB, input wallet.ApplyDeltaInput) (*models.WalletTransaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubWalletService) FinalizePayoutDebit(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, reference string, status enums.WalletTransactionStatus) error {
	return nil
}

func (stubWalletService) Balance(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	return 2_500_000, nil
}

func (stubWalletService) Statement(ctx context.Context, vendorID uuid.UUID, params pagination.Params) (*wallet.StatementPage, error) {
	return &wallet.StatementPage{BalanceKobo: 2_500_000}, nil
}

type stubDisputesService struct{}

func (stubDisputesService) StartInvestigation(ctx context.Context, input disputes.StartInvestigationInput) (*models.Dispute, error) {
	return &models.Dispute{ID: input.DisputeID}, nil
}

func (stubDisputesService) Resolve(ctx context.Context, input disputes.ResolveInput) (*models.Dispute, error) {
	return &models.Dispute{ID: input.DisputeID}, nil
}

func (stubDisputesService) Close(ctx context.Context, input disputes.CloseInput) (*models.Dispute, error) {
	return &models.Dispute{ID: input.DisputeID}, nil
}

func (stubDisputesService) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubDisputesService) List(ctx context.Context, filter disputes.ListFilter, params pagination.Params) (*disputes.Page, error) {
	return &disputes.Page{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "oja", ExpirationMinutes: 30},
	}
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.ErrorLevel, Output: io.Discard}),
		DB:         stubPinger{},
		Orders:     stubOrdersService{},
		Escrow:     stubEscrowService{},
		Deliveries: stubDeliveriesService{},
		Payouts:    stubPayoutsService{},
		Wallet:     stubWalletService{},
		Disputes:   stubDisputesService{},
	})
}

func bearerToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Oja-Env"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuyerCanListOrders(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", bearerToken(t, enums.UserRoleBuyer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVendorCannotCreateOrder(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearerToken(t, enums.UserRoleVendor))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuyerCannotReleaseEscrow(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/orders/"+uuid.NewString()+"/escrow/release",
		strings.NewReader(`{}`),
	)
	req.Header.Set("Authorization", bearerToken(t, enums.UserRoleBuyer))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/admin/v1/payouts/"+uuid.NewString()+"/complete",
		strings.NewReader(`{}`),
	)
	req.Header.Set("Authorization", bearerToken(t, enums.UserRoleVendor))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVendorWalletEndpoints(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	req.Header.Set("Authorization", bearerToken(t, enums.UserRoleVendor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "balance_kobo")
}

func TestCourierWebhookRejectsMissingSignature(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// No courier client wired, so the handler refuses before signature checks.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
