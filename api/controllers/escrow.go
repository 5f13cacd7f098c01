package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/api/validators"
	"github.com/ojalabs/oja-backend/internal/escrow"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
)

type escrowReleaseRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type escrowRefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type disputeCreateRequest struct {
	OrderID      uuid.UUID `json:"order_id" validate:"required"`
	Type         string    `json:"type" validate:"required"`
	Description  string    `json:"description" validate:"required"`
	EvidenceURLs []string  `json:"evidence_urls,omitempty"`
}

// EscrowDetail returns the escrow hold for an order.
func EscrowDetail(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		role := middleware.RoleFromContext(r.Context())
		if role != enums.UserRoleAdmin && hold.BuyerID != userID && hold.VendorID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "escrow belongs to another account"))
			return
		}

		responses.WriteSuccess(w, hold)
	}
}

// EscrowRelease is the admin override that releases a hold to the vendor.
func EscrowRelease(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req escrowReleaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Release(r.Context(), escrow.ReleaseInput{
			OrderID:     orderID,
			ReleaseType: enums.EscrowReleaseAdminOverride,
			ReleasedBy:  middleware.UserIDFromContext(r.Context()),
			Notes:       req.Notes,
			Actor:       actorRef(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// EscrowReleaseManual lets the vendor claim a hold once the buyer has
// confirmed receipt (or the order is delivered); the service rejects
// anything earlier.
func EscrowReleaseManual(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req escrowReleaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if hold.VendorID != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "escrow belongs to another vendor"))
			return
		}

		if err := svc.Release(r.Context(), escrow.ReleaseInput{
			OrderID:     orderID,
			ReleaseType: enums.EscrowReleaseManualBuyer,
			ReleasedBy:  userID,
			Notes:       req.Notes,
			Actor:       actorRef(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// EscrowRefund is the admin override that returns a hold to the buyer.
func EscrowRefund(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req escrowRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Refund(r.Context(), escrow.RefundInput{
			OrderID:    orderID,
			Reason:     req.Reason,
			ResolvedBy: middleware.UserIDFromContext(r.Context()),
			Actor:      actorRef(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "refunded"})
	}
}

// OrderConfirmDelivery records the buyer's manual receipt confirmation.
func OrderConfirmDelivery(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ConfirmDelivery(r.Context(), escrow.ConfirmDeliveryInput{
			OrderID: orderID,
			BuyerID: middleware.UserIDFromContext(r.Context()),
			Actor:   actorRef(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "confirmed"})
	}
}

// DisputeCreate files a dispute against an order for the caller's side.
func DisputeCreate(svc escrow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req disputeCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		disputeType, err := enums.ParseDisputeType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute type"))
			return
		}

		filerType := enums.DisputeFilerBuyer
		if middleware.RoleFromContext(r.Context()) == enums.UserRoleVendor {
			filerType = enums.DisputeFilerVendor
		}

		dispute, err := svc.CreateDispute(r.Context(), escrow.CreateDisputeInput{
			OrderID:      req.OrderID,
			FiledBy:      middleware.UserIDFromContext(r.Context()),
			FiledByType:  filerType,
			Type:         disputeType,
			Description:  req.Description,
			EvidenceURLs: req.EvidenceURLs,
			Actor:        actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}
