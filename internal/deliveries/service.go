package deliveries

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/ojalabs/oja-backend/pkg/courier"
	"github.com/ojalabs/oja-backend/pkg/db/models"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// proofUploader stores delivery proof images and returns their public URL.
type proofUploader interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, payload io.Reader) (string, error)
	ProofBucket() string
}

// Service owns the courier-facing half of an order: registering the
// shipment, mirroring courier status callbacks, and recording proof of
// delivery.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Delivery, error)
	UpdateFromWebhook(ctx context.Context, event courier.WebhookEvent) (*models.Delivery, error)
	UploadProof(ctx context.Context, input UploadProofInput) (*models.Delivery, error)
	QuoteCost(ctx context.Context, input QuoteInput) (*CostQuote, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusHistory, error)
	Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackingInfo, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	gateway  courier.Gateway
	uploader proofUploader
	logg     *logger.Logger
}

// CreateInput registers the shipment for a confirmed order.
type CreateInput struct {
	OrderID       uuid.UUID
	VendorID      uuid.UUID
	PickupAddress types.Address
	Package       types.PackageDimensions
	Notes         *string
	Actor         *outbox.ActorRef
}

// UploadProofInput attaches a delivery photo and closes out the shipment.
type UploadProofInput struct {
	OrderID       uuid.UUID
	VendorID      uuid.UUID
	Filename      string
	ContentType   string
	Payload       io.Reader
	RecipientName *string
	Actor         *outbox.ActorRef
}

// QuoteInput prices a prospective shipment.
type QuoteInput struct {
	PickupAddress   types.Address
	DeliveryAddress types.Address
	Package         types.PackageDimensions
	DeliveryType    enums.DeliveryType
}

// CostQuote is a shipping price with its origin. Source is "courier" when
// the gateway answered and "zone_rate" when the static table had to step in.
type CostQuote struct {
	CostKobo     int64
	Currency     string
	Source       string
	EstimatedETA string
}

// DeliveryCreatedEvent announces a registered shipment.
type DeliveryCreatedEvent struct {
	DeliveryID     uuid.UUID `json:"delivery_id"`
	OrderID        uuid.UUID `json:"order_id"`
	ShipmentID     string    `json:"shipment_id"`
	TrackingNumber string    `json:"tracking_number"`
	CostKobo       int64     `json:"cost_kobo"`
}

// DeliveryStatusChangedEvent mirrors one courier status transition.
type DeliveryStatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"delivery_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	Status     enums.DeliveryStatus `json:"status"`
	Location   string               `json:"location,omitempty"`
	Source     string               `json:"source"`
}

// DeliveryConfirmedEvent is emitted when a shipment reaches delivered.
type DeliveryConfirmedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	Source     string    `json:"source"`
}

// NewService builds the delivery service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, gateway courier.Gateway, uploader proofUploader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if uploader == nil {
		return nil, fmt.Errorf("proof uploader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   ob,
		gateway:  gateway,
		uploader: uploader,
		logg:     logg,
	}, nil
}

// Create registers the shipment with the courier, then persists the mirror
// row. If the local write fails after the courier accepted the shipment, the
// shipment is cancelled so the two systems do not drift; a failed cancel is
// reported alongside the original error.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := input.PickupAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup address")
	}
	if err := input.Package.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.VendorID != uuid.Nil && order.VendorID != input.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been paid for")
	}
	if order.Status != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order not awaiting shipment")
	}
	if order.DeliveryAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "order has no delivery address")
	}
	if _, err := s.repo.FindByOrder(ctx, input.OrderID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipment already exists for order")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing delivery")
	}

	notes := ""
	if input.Notes != nil {
		notes = strings.TrimSpace(*input.Notes)
	}
	shipment, err := s.gateway.CreateShipment(ctx, courier.ShipmentCreateParams{
		OrderReference:  order.OrderNumber,
		PickupAddress:   input.PickupAddress,
		DeliveryAddress: *order.DeliveryAddress,
		Package:         input.Package,
		DeliveryType:    order.DeliveryType.String(),
		Notes:           notes,
	})
	if err != nil {
		return nil, err
	}

	pickup := input.PickupAddress
	pkg := input.Package
	delivery := &models.Delivery{
		OrderID:           order.ID,
		VendorID:          order.VendorID,
		BuyerID:           order.BuyerID,
		ShipmentID:        shipment.ShipmentID,
		TrackingNumber:    shipment.TrackingNumber,
		PickupAddress:     &pickup,
		DeliveryAddress:   order.DeliveryAddress,
		Package:           &pkg,
		DeliveryType:      order.DeliveryType,
		Status:            enums.DeliveryStatusPickupScheduled,
		CostKobo:          shipment.CostKobo,
		EstimatedDelivery: shipment.EstimatedDelivery,
		Notes:             input.Notes,
	}
	if shipment.TrackingURL != "" {
		delivery.TrackingURL = &shipment.TrackingURL
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		created, err := repo.CreateDelivery(ctx, delivery)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}
		delivery = created

		if err := repo.CreateHistory(ctx, &models.DeliveryStatusHistory{
			DeliveryID: created.ID,
			Status:     enums.DeliveryStatusPickupScheduled,
			UpdatedBy:  enums.DeliveryUpdateSourceSystem,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery history")
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":          enums.OrderStatusProcessing,
			"tracking_number": shipment.TrackingNumber,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move order to processing")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDeliveryCreated,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: DeliveryCreatedEvent{
				DeliveryID:     created.ID,
				OrderID:        order.ID,
				ShipmentID:     created.ShipmentID,
				TrackingNumber: created.TrackingNumber,
				CostKobo:       created.CostKobo,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if txErr != nil {
		s.logg.Error(ctx, "delivery persist failed, cancelling courier shipment", txErr)
		if cancelErr := s.gateway.CancelShipment(ctx, shipment.ShipmentID); cancelErr != nil {
			return nil, multierr.Append(txErr, fmt.Errorf("cancel orphaned shipment %s: %w", shipment.ShipmentID, cancelErr))
		}
		return nil, txErr
	}
	return delivery, nil
}

// UpdateFromWebhook mirrors one courier callback into the local state.
// Replayed events and statuses the delivery already passed are absorbed
// without error so the courier can retry freely.
func (s *service) UpdateFromWebhook(ctx context.Context, event courier.WebhookEvent) (*models.Delivery, error) {
	if strings.TrimSpace(event.ShipmentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	status, ok := mapCourierStatus(event.Status)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unrecognized courier status %q", event.Status))
	}

	delivery, err := s.repo.FindByShipment(ctx, event.ShipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery for shipment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	if delivery.Status == status {
		return delivery, nil
	}
	if !delivery.Status.CanTransitionTo(status) {
		if delivery.Status.IsTerminal() {
			// Late checkpoint after delivered or cancelled; drop it.
			return delivery, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery cannot move from %s to %s", delivery.Status, status))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now()
		occurred := now
		if event.OccurredAt != nil {
			occurred = *event.OccurredAt
		}
		updates := map[string]any{
			"status":             status,
			"last_status_update": now,
		}
		if status == enums.DeliveryStatusDelivered {
			updates["actual_delivery"] = occurred
			if event.RecipientName != "" {
				updates["recipient_name"] = event.RecipientName
			}
		}
		if err := repo.UpdateDelivery(ctx, delivery.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}

		history := &models.DeliveryStatusHistory{
			DeliveryID: delivery.ID,
			Status:     status,
			UpdatedBy:  enums.DeliveryUpdateSourceCourierWebhook,
		}
		if event.Location != "" {
			history.Location = &event.Location
		}
		if event.Notes != "" {
			history.Notes = &event.Notes
		}
		if err := repo.CreateHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery history")
		}

		if status == enums.DeliveryStatusDelivered {
			return s.finishDeliveredOrder(ctx, tx, repo, delivery, string(enums.DeliveryUpdateSourceCourierWebhook), nil)
		}
		if status == enums.DeliveryStatusInTransit {
			if err := s.markOrderShipped(ctx, repo, delivery.OrderID); err != nil {
				return err
			}
		}

		statusEvent := outbox.DomainEvent{
			EventType:     enums.EventDeliveryStatusChanged,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			Version:       1,
			Data: DeliveryStatusChangedEvent{
				DeliveryID: delivery.ID,
				OrderID:    delivery.OrderID,
				Status:     status,
				Location:   event.Location,
				Source:     string(enums.DeliveryUpdateSourceCourierWebhook),
			},
		}
		return s.outbox.Emit(ctx, tx, statusEvent)
	})
	if err != nil {
		return nil, err
	}

	delivery.Status = status
	return delivery, nil
}

// markOrderShipped advances the order alongside an in_transit checkpoint.
func (s *service) markOrderShipped(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusShipped) {
		return nil
	}
	if err := repo.UpdateOrder(ctx, orderID, map[string]any{"status": enums.OrderStatusShipped}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move order to shipped")
	}
	return nil
}

// finishDeliveredOrder flips the order to delivered and emits the
// confirmation event inside the caller's transaction.
func (s *service) finishDeliveredOrder(ctx context.Context, tx *gorm.DB, repo Repository, delivery *models.Delivery, source string, actor *outbox.ActorRef) error {
	order, err := repo.FindOrder(ctx, delivery.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusDelivered && order.Status.CanTransitionTo(enums.OrderStatusDelivered) {
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": time.Now(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventDeliveryConfirmed,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   delivery.ID,
		Version:       1,
		Actor:         actor,
		Data: DeliveryConfirmedEvent{
			OrderID:    delivery.OrderID,
			DeliveryID: delivery.ID,
			Source:     source,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

// UploadProof stores the vendor's delivery photo and closes out the
// shipment. The upload happens before the transaction; an orphaned object in
// the bucket is harmless.
func (s *service) UploadProof(ctx context.Context, input UploadProofInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof image required")
	}
	if !strings.HasPrefix(input.ContentType, "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof must be an image")
	}

	delivery, err := s.repo.FindByOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if input.VendorID != uuid.Nil && delivery.VendorID != input.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery does not belong to vendor")
	}
	if delivery.Status == enums.DeliveryStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery was cancelled")
	}
	if delivery.Status != enums.DeliveryStatusDelivered && !delivery.Status.CanTransitionTo(enums.DeliveryStatusDelivered) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery cannot be completed in current state")
	}

	object := proofObjectName(delivery.ID, input.Filename)
	proofURL, err := s.uploader.UploadObject(ctx, s.uploader.ProofBucket(), object, input.ContentType, input.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload proof image")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := time.Now()
		updates := map[string]any{
			"proof_image_url":    proofURL,
			"last_status_update": now,
		}
		newlyDelivered := delivery.Status != enums.DeliveryStatusDelivered
		if newlyDelivered {
			updates["status"] = enums.DeliveryStatusDelivered
			updates["actual_delivery"] = now
		}
		if input.RecipientName != nil {
			updates["recipient_name"] = *input.RecipientName
		}
		if err := repo.UpdateDelivery(ctx, delivery.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record proof of delivery")
		}

		if !newlyDelivered {
			return nil
		}

		if err := repo.CreateHistory(ctx, &models.DeliveryStatusHistory{
			DeliveryID: delivery.ID,
			Status:     enums.DeliveryStatusDelivered,
			UpdatedBy:  enums.DeliveryUpdateSourceVendor,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery history")
		}
		return s.finishDeliveredOrder(ctx, tx, repo, delivery, string(enums.DeliveryUpdateSourceVendor), input.Actor)
	})
	if err != nil {
		return nil, err
	}

	delivery.Status = enums.DeliveryStatusDelivered
	delivery.ProofImageURL = &proofURL
	return delivery, nil
}

// QuoteCost asks the courier for a price and falls back to the zone-rate
// table when the gateway is unreachable.
func (s *service) QuoteCost(ctx context.Context, input QuoteInput) (*CostQuote, error) {
	if err := input.PickupAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pickup address")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
	}
	if err := input.Package.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid package")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}

	quote, err := s.gateway.Quote(ctx, courier.QuoteParams{
		PickupAddress:   input.PickupAddress,
		DeliveryAddress: input.DeliveryAddress,
		Package:         input.Package,
		DeliveryType:    input.DeliveryType.String(),
	})
	if err == nil {
		return &CostQuote{
			CostKobo:     quote.CostKobo,
			Currency:     quote.Currency,
			Source:       "courier",
			EstimatedETA: quote.EstimatedETA,
		}, nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeValidation) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		// The gateway understood the request and said no; do not mask that.
		return nil, err
	}

	s.logg.Warn(ctx, "courier quote unavailable, using zone rates")
	return &CostQuote{
		CostKobo: zoneRateCost(input.PickupAddress, input.DeliveryAddress, input.Package, input.DeliveryType),
		Currency: "NGN",
		Source:   "zone_rate",
	}, nil
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	delivery, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryStatusHistory, error) {
	delivery, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, delivery.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery history")
	}
	return entries, nil
}

func (s *service) Track(ctx context.Context, orderID uuid.UUID) (*courier.TrackingInfo, error) {
	delivery, err := s.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	info, err := s.gateway.Track(ctx, delivery.ShipmentID)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			return nil, err
		}
		// Courier gateway down or timing out. Serve the last status we
		// mirrored locally instead of failing the read.
		ctxWithFields := s.logg.WithFields(ctx, map[string]any{
			"order_id":    orderID.String(),
			"shipment_id": delivery.ShipmentID,
			"error":       err.Error(),
		})
		s.logg.Warn(ctxWithFields, "courier tracking unavailable, serving stored status")
		return s.storedTracking(ctx, delivery), nil
	}
	return info, nil
}

// storedTracking rebuilds a tracking view from the mirrored delivery row and
// its history trail.
func (s *service) storedTracking(ctx context.Context, delivery *models.Delivery) *courier.TrackingInfo {
	info := &courier.TrackingInfo{
		ShipmentID:        delivery.ShipmentID,
		TrackingNumber:    delivery.TrackingNumber,
		Status:            string(delivery.Status),
		EstimatedDelivery: delivery.EstimatedDelivery,
	}
	history, err := s.repo.ListHistory(ctx, delivery.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "delivery_id", delivery.ID.String()), "delivery history unavailable for stored tracking")
		return info
	}
	for _, entry := range history {
		event := courier.TrackingEvent{
			Status:    string(entry.Status),
			Timestamp: entry.CreatedAt,
		}
		if entry.Location != nil {
			event.Location = *entry.Location
		}
		if entry.Notes != nil {
			event.Notes = *entry.Notes
		}
		info.Events = append(info.Events, event)
	}
	return info
}

// mapCourierStatus translates the gateway's status vocabulary into ours.
func mapCourierStatus(raw string) (enums.DeliveryStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pickup_scheduled", "pending_pickup", "assigned":
		return enums.DeliveryStatusPickupScheduled, true
	case "picked_up", "in_transit", "out_for_delivery", "at_hub":
		return enums.DeliveryStatusInTransit, true
	case "delivered", "completed":
		return enums.DeliveryStatusDelivered, true
	case "cancelled", "returned":
		return enums.DeliveryStatusCancelled, true
	default:
		return "", false
	}
}

func proofObjectName(deliveryID uuid.UUID, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("proofs/%s/%d%s", deliveryID, time.Now().UnixNano(), ext)
}
