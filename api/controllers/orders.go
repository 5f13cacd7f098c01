package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/api/validators"
	"github.com/ojalabs/oja-backend/internal/orders"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/outbox"
	"github.com/ojalabs/oja-backend/pkg/pagination"
	"github.com/ojalabs/oja-backend/pkg/types"
)

type orderItemRequest struct {
	ProductID     uuid.UUID `json:"product_id" validate:"required"`
	Title         string    `json:"title" validate:"required"`
	ImageURL      *string   `json:"image_url,omitempty"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
	UnitPriceKobo int64     `json:"unit_price_kobo" validate:"required,gt=0"`
}

type orderCreateRequest struct {
	VendorID        uuid.UUID          `json:"vendor_id" validate:"required"`
	DeliveryAddress *types.Address     `json:"delivery_address" validate:"required"`
	DeliveryType    string             `json:"delivery_type" validate:"required"`
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingFeeKobo int64              `json:"shipping_fee_kobo" validate:"min=0"`
	Notes           *string            `json:"notes,omitempty"`
}

type orderCancelRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type orderPaymentRequest struct {
	PaymentStatus string  `json:"payment_status" validate:"required"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	PaymentRef    *string `json:"payment_ref,omitempty"`
}

func actorRef(r *http.Request) *outbox.ActorRef {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID: userID,
		Role:   string(middleware.RoleFromContext(r.Context())),
	}
}

// OrderCreate handles buyer checkout.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryType, err := enums.ParseDeliveryType(req.DeliveryType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
			return
		}

		items := make([]orders.CreateItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, orders.CreateItemInput{
				ProductID:     item.ProductID,
				Title:         item.Title,
				ImageURL:      item.ImageURL,
				Quantity:      item.Quantity,
				UnitPriceKobo: item.UnitPriceKobo,
			})
		}

		order, err := svc.Create(r.Context(), orders.CreateInput{
			BuyerID:         middleware.UserIDFromContext(r.Context()),
			VendorID:        req.VendorID,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryType:    deliveryType,
			Items:           items,
			ShippingFeeKobo: req.ShippingFeeKobo,
			Notes:           req.Notes,
			Actor:           actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderDetail returns one order to a participant or an admin.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		role := middleware.RoleFromContext(r.Context())
		if role != enums.UserRoleAdmin && order.BuyerID != userID && order.VendorID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderDetailByNumber resolves an order from its human-facing number.
func OrderDetailByNumber(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetByNumber(r.Context(), orderNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		role := middleware.RoleFromContext(r.Context())
		if role != enums.UserRoleAdmin && order.BuyerID != userID && order.VendorID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// OrderList pages the caller's orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filter := orders.ListFilter{}
		userID := middleware.UserIDFromContext(r.Context())
		switch middleware.RoleFromContext(r.Context()) {
		case enums.UserRoleBuyer:
			filter.BuyerID = &userID
		case enums.UserRoleVendor:
			filter.VendorID = &userID
		case enums.UserRoleAdmin:
			if filter.BuyerID, err = validators.ParseQueryUUID(r, "buyer_id"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if filter.VendorID, err = validators.ParseQueryUUID(r, "vendor_id"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid order status"))
				return
			}
			filter.Status = &status
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"orders":      page.Orders,
			"next_cursor": page.NextCursor,
		})
	}
}

// OrderCancel cancels an unpaid order on behalf of a participant.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req orderCancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:     orderID,
			CancelledBy: middleware.UserIDFromContext(r.Context()),
			Reason:      req.Reason,
			Actor:       actorRef(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// OrderPaymentUpdate applies a payment processor outcome. Admin only; the
// processor callback lands here after verification upstream.
func OrderPaymentUpdate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req orderPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		order, err := svc.UpdatePaymentStatus(r.Context(), orders.UpdatePaymentInput{
			OrderID:       orderID,
			PaymentStatus: status,
			PaymentMethod: req.PaymentMethod,
			PaymentRef:    req.PaymentRef,
			Actor:         actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}
