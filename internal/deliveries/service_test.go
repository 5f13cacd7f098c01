package deliveries

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/types"
)

type stubDeliveryRepo struct {
	order    *models.Order
	delivery *models.Delivery
	history  []models.DeliveryStatusHistory

	createDeliveryErr error
}

func (s *stubDeliveryRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubDeliveryRepo) CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if s.createDeliveryErr != nil {
		return nil, s.createDeliveryErr
	}
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	s.delivery = delivery
	return delivery, nil
}

func (s *stubDeliveryRepo) FindByID(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.ID != deliveryID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.delivery
	return &copied, nil
}

func (s *stubDeliveryRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.delivery
	return &copied, nil
}

func (s *stubDeliveryRepo) FindByShipment(ctx context.Context, shipmentID string) (*models.Delivery, error) {
	if s.delivery == nil || s.delivery.ShipmentID != shipmentID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.delivery
	return &copied, nil
}

func (s *stubDeliveryRepo) UpdateDelivery(ctx context.Context, deliveryID uuid.UUID, updates map[string]any) error {
	if s.delivery != nil && s.delivery.ID == deliveryID {
		if status, ok := updates["status"].(enums.DeliveryStatus); ok {
			s.delivery.Status = status
		}
		if url, ok := updates["proof_image_url"].(string); ok {
			s.delivery.ProofImageURL = &url
		}
	}
	return nil
}

func (s *stubDeliveryRepo) CreateHistory(ctx context.Context, entry *models.DeliveryStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubDeliveryRepo) ListHistory(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryStatusHistory, error) {
	return s.history, nil
}

func (s *stubDeliveryRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubDeliveryRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	if s.order != nil && s.order.ID == orderID {
		if status, ok := updates["status"].(enums.OrderStatus); ok {
			s.order.Status = status
		}
	}
	return nil
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

type stubGateway struct {
	quote     *courier.Quote
	quoteErr  error
	shipment  *courier.Shipment
	createErr error
	trackErr  error
	cancelled []string
}

func (s *stubGateway) Quote(ctx context.Context, params courier.QuoteParams) (*courier.Quote, error) {
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return s.quote, nil
}

func (s *stubGateway) CreateShipment(ctx context.Context, params courier.ShipmentCreateParams) (*courier.Shipment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.shipment, nil
}

func (s *stubGateway) Track(ctx context.Context, shipmentID string) (*courier.TrackingInfo, error) {
	if s.trackErr != nil {
		return nil, s.trackErr
	}
	return &courier.TrackingInfo{ShipmentID: shipmentID, Status: "in_transit"}, nil
}

func (s *stubGateway) CancelShipment(ctx context.Context, shipmentID string) error {
	s.cancelled = append(s.cancelled, shipmentID)
	return nil
}

type stubUploader struct {
	uploaded []string
	err      error
}

func (s *stubUploader) UploadObject(ctx context.Context, bucket, object, contentType string, payload io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploaded = append(s.uploaded, object)
	return "https://storage.googleapis.com/" + bucket + "/" + object, nil
}

func (s *stubUploader) ProofBucket() string {
	return "oja-delivery-proofs"
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "deliveries-test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func lagosAddress() types.Address {
	return types.Address{
		ContactName: "Emeka Umeh",
		Phone:       "+2348031112222",
		Line1:       "5 Allen Avenue",
		City:        "Ikeja",
		State:       "Lagos",
		Country:     "NG",
	}
}

func abujaAddress() types.Address {
	return types.Address{
		ContactName: "Hauwa Bello",
		Phone:       "+2348094445555",
		Line1:       "2 Gana Street, Maitama",
		City:        "Abuja",
		State:       "FCT",
		Country:     "NG",
	}
}

func smallPackage() types.PackageDimensions {
	return types.PackageDimensions{WeightGrams: 2_500, LengthCM: 30, WidthCM: 20, HeightCM: 10}
}

func confirmedOrder() *models.Order {
	addr := abujaAddress()
	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     "OJA-7KQ2M4NP9X",
		BuyerID:         uuid.New(),
		VendorID:        uuid.New(),
		DeliveryAddress: &addr,
		DeliveryType:    enums.DeliveryTypeStandard,
		Status:          enums.OrderStatusConfirmed,
		PaymentStatus:   enums.PaymentStatusPaid,
		SubtotalKobo:    1_200_000,
		TotalKobo:       1_260_000,
	}
}

func newTestService(t *testing.T, repo *stubDeliveryRepo, ob *stubOutboxPublisher, gateway *stubGateway, uploader *stubUploader) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, ob, gateway, uploader, testLogger())
	require.NoError(t, err)
	return svc
}

func TestCreateRegistersShipmentAndMovesOrder(t *testing.T) {
	order := confirmedOrder()
	repo := &stubDeliveryRepo{order: order}
	ob := &stubOutboxPublisher{}
	gateway := &stubGateway{
		shipment: &courier.Shipment{
			ShipmentID:     "SHP-2001",
			TrackingNumber: "GIGL-4455",
			TrackingURL:    "https://giglogistics.com/track/GIGL-4455",
			CostKobo:       250_000,
		},
	}
	svc := newTestService(t, repo, ob, gateway, &stubUploader{})

	delivery, err := svc.Create(context.Background(), CreateInput{
		OrderID:       order.ID,
		VendorID:      order.VendorID,
		PickupAddress: lagosAddress(),
		Package:       smallPackage(),
	})
	require.NoError(t, err)
	assert.Equal(t, "SHP-2001", delivery.ShipmentID)
	assert.Equal(t, enums.DeliveryStatusPickupScheduled, delivery.Status)
	assert.Equal(t, enums.OrderStatusProcessing, repo.order.Status)
	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.DeliveryUpdateSourceSystem, repo.history[0].UpdatedBy)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDeliveryCreated, ob.events[0].EventType)
	assert.Empty(t, gateway.cancelled)
}

func TestCreateCancelsShipmentWhenPersistFails(t *testing.T) {
	order := confirmedOrder()
	repo := &stubDeliveryRepo{
		order:             order,
		createDeliveryErr: fmt.Errorf("connection reset"),
	}
	gateway := &stubGateway{
		shipment: &courier.Shipment{ShipmentID: "SHP-2002", TrackingNumber: "GIGL-4456"},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubUploader{})

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID:       order.ID,
		VendorID:      order.VendorID,
		PickupAddress: lagosAddress(),
		Package:       smallPackage(),
	})
	require.Error(t, err)
	assert.Equal(t, []string{"SHP-2002"}, gateway.cancelled)
}

func TestCreateRejectsUnpaidOrder(t *testing.T) {
	order := confirmedOrder()
	order.PaymentStatus = enums.PaymentStatusPending
	repo := &stubDeliveryRepo{order: order}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubGateway{}, &stubUploader{})

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID:       order.ID,
		PickupAddress: lagosAddress(),
		Package:       smallPackage(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCreateRejectsDuplicateShipment(t *testing.T) {
	order := confirmedOrder()
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ShipmentID: "SHP-OLD",
			Status:     enums.DeliveryStatusInTransit,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubGateway{}, &stubUploader{})

	_, err := svc.Create(context.Background(), CreateInput{
		OrderID:       order.ID,
		PickupAddress: lagosAddress(),
		Package:       smallPackage(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestWebhookMovesDeliveryAndOrderForward(t *testing.T) {
	order := confirmedOrder()
	order.Status = enums.OrderStatusProcessing
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			VendorID:   order.VendorID,
			ShipmentID: "SHP-3001",
			Status:     enums.DeliveryStatusPickupScheduled,
		},
	}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubGateway{}, &stubUploader{})

	updated, err := svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		EventID:    "evt-001",
		ShipmentID: "SHP-3001",
		Status:     "picked_up",
		Location:   "Gbagada hub",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusInTransit, updated.Status)
	assert.Equal(t, enums.OrderStatusShipped, repo.order.Status)
	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.DeliveryUpdateSourceCourierWebhook, repo.history[0].UpdatedBy)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDeliveryStatusChanged, ob.events[0].EventType)
}

func TestWebhookDeliveredCompletesOrder(t *testing.T) {
	order := confirmedOrder()
	order.Status = enums.OrderStatusShipped
	recipient := time.Now()
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ShipmentID: "SHP-3002",
			Status:     enums.DeliveryStatusInTransit,
		},
	}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubGateway{}, &stubUploader{})

	updated, err := svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		EventID:       "evt-002",
		ShipmentID:    "SHP-3002",
		Status:        "delivered",
		RecipientName: "Ngozi A.",
		OccurredAt:    &recipient,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusDelivered, updated.Status)
	assert.Equal(t, enums.OrderStatusDelivered, repo.order.Status)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDeliveryConfirmed, ob.events[0].EventType)
}

func TestWebhookReplayAndLateCheckpointsAreAbsorbed(t *testing.T) {
	order := confirmedOrder()
	order.Status = enums.OrderStatusDelivered
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ShipmentID: "SHP-3003",
			Status:     enums.DeliveryStatusDelivered,
		},
	}
	ob := &stubOutboxPublisher{}
	svc := newTestService(t, repo, ob, &stubGateway{}, &stubUploader{})

	// Same status again.
	_, err := svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		ShipmentID: "SHP-3003",
		Status:     "delivered",
	})
	require.NoError(t, err)

	// A straggling checkpoint after the terminal state.
	_, err = svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		ShipmentID: "SHP-3003",
		Status:     "in_transit",
	})
	require.NoError(t, err)

	assert.Empty(t, ob.events)
	assert.Empty(t, repo.history)
}

func TestWebhookRejectsUnknownStatusAndShipment(t *testing.T) {
	repo := &stubDeliveryRepo{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubGateway{}, &stubUploader{})

	_, err := svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		ShipmentID: "SHP-9",
		Status:     "teleported",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.UpdateFromWebhook(context.Background(), courier.WebhookEvent{
		ShipmentID: "SHP-9",
		Status:     "delivered",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestTrackServesStoredStatusWhenCourierIsDown(t *testing.T) {
	order := confirmedOrder()
	location := "Gbagada hub"
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:             uuid.New(),
			OrderID:        order.ID,
			VendorID:       order.VendorID,
			ShipmentID:     "SHP-7001",
			TrackingNumber: "GIGL-7001",
			Status:         enums.DeliveryStatusInTransit,
		},
		history: []models.DeliveryStatusHistory{
			{Status: enums.DeliveryStatusPickupScheduled, UpdatedBy: enums.DeliveryUpdateSourceCourierWebhook},
			{Status: enums.DeliveryStatusInTransit, Location: &location, UpdatedBy: enums.DeliveryUpdateSourceCourierWebhook},
		},
	}
	gateway := &stubGateway{
		trackErr: pkgerrors.New(pkgerrors.CodeDependency, "courier track failed"),
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, gateway, &stubUploader{})

	info, err := svc.Track(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "SHP-7001", info.ShipmentID)
	assert.Equal(t, "GIGL-7001", info.TrackingNumber)
	assert.Equal(t, string(enums.DeliveryStatusInTransit), info.Status)
	require.Len(t, info.Events, 2)
	assert.Equal(t, "Gbagada hub", info.Events[1].Location)
}

func TestTrackPrefersLiveCourierView(t *testing.T) {
	order := confirmedOrder()
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ShipmentID: "SHP-7002",
			Status:     enums.DeliveryStatusPickupScheduled,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubGateway{}, &stubUploader{})

	info, err := svc.Track(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_transit", info.Status)
}

func TestUploadProofMarksDelivered(t *testing.T) {
	order := confirmedOrder()
	order.Status = enums.OrderStatusShipped
	repo := &stubDeliveryRepo{
		order: order,
		delivery: &models.Delivery{
			ID:         uuid.New(),
			OrderID:    order.ID,
			VendorID:   order.VendorID,
			ShipmentID: "SHP-4001",
			Status:     enums.DeliveryStatusInTransit,
		},
	}
	ob := &stubOutboxPublisher{}
	uploader := &stubUploader{}
	svc := newTestService(t, repo, ob, &stubGateway{}, uploader)

	delivery, err := svc.UploadProof(context.Background(), UploadProofInput{
		OrderID:     order.ID,
		VendorID:    order.VendorID,
		Filename:    "doorstep.jpg",
		ContentType: "image/jpeg",
		Payload:     bytes.NewReader([]byte("jpegdata")),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusDelivered, delivery.Status)
	require.NotNil(t, delivery.ProofImageURL)
	assert.Contains(t, *delivery.ProofImageURL, "oja-delivery-proofs")
	assert.Equal(t, enums.OrderStatusDelivered, repo.order.Status)
	require.Len(t, repo.history, 1)
	assert.Equal(t, enums.DeliveryUpdateSourceVendor, repo.history[0].UpdatedBy)
	require.Len(t, ob.events, 1)
	assert.Equal(t, enums.EventDeliveryConfirmed, ob.events[0].EventType)
	assert.Len(t, uploader.uploaded, 1)
}

func TestUploadProofRejectsNonImage(t *testing.T) {
	svc := newTestService(t, &stubDeliveryRepo{}, &stubOutboxPublisher{}, &stubGateway{}, &stubUploader{})

	_, err := svc.UploadProof(context.Background(), UploadProofInput{
		OrderID:     uuid.New(),
		Filename:    "notes.pdf",
		ContentType: "application/pdf",
		Payload:     bytes.NewReader([]byte("pdf")),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQuoteCostPrefersGateway(t *testing.T) {
	gateway := &stubGateway{
		quote: &courier.Quote{CostKobo: 275_000, Currency: "NGN", EstimatedETA: "2 days"},
	}
	svc := newTestService(t, &stubDeliveryRepo{}, &stubOutboxPublisher{}, gateway, &stubUploader{})

	quote, err := svc.QuoteCost(context.Background(), QuoteInput{
		PickupAddress:   lagosAddress(),
		DeliveryAddress: abujaAddress(),
		Package:         smallPackage(),
		DeliveryType:    enums.DeliveryTypeStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(275_000), quote.CostKobo)
	assert.Equal(t, "courier", quote.Source)
}

func TestQuoteCostFallsBackToZoneRates(t *testing.T) {
	gateway := &stubGateway{
		quoteErr: pkgerrors.New(pkgerrors.CodeDependency, "courier unreachable"),
	}
	svc := newTestService(t, &stubDeliveryRepo{}, &stubOutboxPublisher{}, gateway, &stubUploader{})

	quote, err := svc.QuoteCost(context.Background(), QuoteInput{
		PickupAddress:   lagosAddress(),
		DeliveryAddress: abujaAddress(),
		Package:         smallPackage(),
		DeliveryType:    enums.DeliveryTypeExpress,
	})
	require.NoError(t, err)
	assert.Equal(t, "zone_rate", quote.Source)
	// fct: 250000 base + 30000*2.5kg = 325000; +25% interstate = 406250; x1.5 express.
	assert.Equal(t, int64(609_375), quote.CostKobo)

	// Deterministic across calls.
	again, err := svc.QuoteCost(context.Background(), QuoteInput{
		PickupAddress:   lagosAddress(),
		DeliveryAddress: abujaAddress(),
		Package:         smallPackage(),
		DeliveryType:    enums.DeliveryTypeExpress,
	})
	require.NoError(t, err)
	assert.Equal(t, quote.CostKobo, again.CostKobo)
}

func TestZoneRateCostUnknownStateUsesDefault(t *testing.T) {
	dest := types.Address{Line1: "1 Market Rd", City: "Yenagoa", State: "Bayelsa", Country: "NG"}
	cost := zoneRateCost(lagosAddress(), dest, types.PackageDimensions{WeightGrams: 1_000}, enums.DeliveryTypeStandard)
	// default: 320000 + 40000*1kg = 360000; +25% interstate = 450000.
	assert.Equal(t, int64(450_000), cost)
}
