package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/api/validators"
	"github.com/ojalabs/oja-backend/internal/deliveries"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/types"
)

// Proof photos top out well under this; the cap guards the upload path.
const maxProofUploadBytes = 10 << 20

type deliveryCreateRequest struct {
	OrderID       uuid.UUID               `json:"order_id" validate:"required"`
	PickupAddress types.Address           `json:"pickup_address" validate:"required"`
	Package       types.PackageDimensions `json:"package" validate:"required"`
	Notes         *string                 `json:"notes,omitempty"`
}

type deliveryQuoteRequest struct {
	PickupAddress   types.Address           `json:"pickup_address" validate:"required"`
	DeliveryAddress types.Address           `json:"delivery_address" validate:"required"`
	Package         types.PackageDimensions `json:"package" validate:"required"`
	DeliveryType    string                  `json:"delivery_type" validate:"required"`
}

// DeliveryCreate registers a shipment for a paid order. Vendor only.
func DeliveryCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deliveryCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.Create(r.Context(), deliveries.CreateInput{
			OrderID:       req.OrderID,
			VendorID:      middleware.UserIDFromContext(r.Context()),
			PickupAddress: req.PickupAddress,
			Package:       req.Package,
			Notes:         req.Notes,
			Actor:         actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

// DeliveryQuote prices a prospective shipment.
func DeliveryQuote(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deliveryQuoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryType, err := enums.ParseDeliveryType(req.DeliveryType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery type"))
			return
		}

		quote, err := svc.QuoteCost(r.Context(), deliveries.QuoteInput{
			PickupAddress:   req.PickupAddress,
			DeliveryAddress: req.DeliveryAddress,
			Package:         req.Package,
			DeliveryType:    deliveryType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"cost_kobo":     quote.CostKobo,
			"currency":      quote.Currency,
			"source":        quote.Source,
			"estimated_eta": quote.EstimatedETA,
		})
	}
}

// DeliveryDetail returns the shipment attached to an order.
func DeliveryDetail(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryHistory returns the audit trail of courier checkpoints.
func DeliveryHistory(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}

// DeliveryTrack proxies a live tracking lookup to the courier.
func DeliveryTrack(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.Track(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, info)
	}
}

// DeliveryProofUpload accepts a multipart delivery photo from the vendor.
func DeliveryProofUpload(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxProofUploadBytes)
		if err := r.ParseMultipartForm(maxProofUploadBytes); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart payload"))
			return
		}

		file, header, err := r.FormFile("proof")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "proof file required"))
			return
		}
		defer file.Close()

		var recipientName *string
		if name := r.FormValue("recipient_name"); name != "" {
			recipientName = &name
		}

		delivery, err := svc.UploadProof(r.Context(), deliveries.UploadProofInput{
			OrderID:       orderID,
			VendorID:      middleware.UserIDFromContext(r.Context()),
			Filename:      header.Filename,
			ContentType:   header.Header.Get("Content-Type"),
			Payload:       file,
			RecipientName: recipientName,
			Actor:         actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}
