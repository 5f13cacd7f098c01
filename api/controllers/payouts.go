package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/api/validators"
	"github.com/ojalabs/oja-backend/internal/payouts"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/pagination"
	"github.com/ojalabs/oja-backend/pkg/types"
)

type payoutRequestRequest struct {
	AmountKobo  int64             `json:"amount_kobo" validate:"required,gt=0"`
	BankAccount types.BankAccount `json:"bank_account" validate:"required"`
}

type payoutProcessingRequest struct {
	TransferReference *string `json:"transfer_reference,omitempty"`
}

type payoutFailRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PayoutRequest opens a withdrawal against the vendor's wallet balance.
func PayoutRequest(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req payoutRequestRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.RequestWithdrawal(r.Context(), payouts.RequestInput{
			VendorID:    middleware.UserIDFromContext(r.Context()),
			AmountKobo:  req.AmountKobo,
			BankAccount: req.BankAccount,
			Actor:       actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// PayoutDetail returns one payout to its vendor or an admin.
func PayoutDetail(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Get(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role != enums.UserRoleAdmin && payout.VendorID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "payout belongs to another account"))
			return
		}

		responses.WriteSuccess(w, payout)
	}
}

// PayoutList pages the vendor's withdrawal history.
func PayoutList(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"payouts":     page.Payouts,
			"next_cursor": page.NextCursor,
		})
	}
}

// PayoutMarkProcessing records hand-off to the bank transfer rail.
func PayoutMarkProcessing(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payoutProcessingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkProcessing(r.Context(), payouts.MarkProcessingInput{
			PayoutID:          payoutID,
			TransferReference: req.TransferReference,
			Actor:             actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payout)
	}
}

// PayoutMarkCompleted settles a processing payout.
func PayoutMarkCompleted(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payoutProcessingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkCompleted(r.Context(), payouts.MarkCompletedInput{
			PayoutID:          payoutID,
			TransferReference: req.TransferReference,
			Actor:             actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payout)
	}
}

// PayoutMarkFailed fails a processing payout and restores the wallet.
func PayoutMarkFailed(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payoutID, err := validators.ParsePathUUID(chi.URLParam(r, "payoutId"), "payoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payoutFailRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkFailed(r.Context(), payouts.MarkFailedInput{
			PayoutID: payoutID,
			Reason:   req.Reason,
			Actor:    actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payout)
	}
}
