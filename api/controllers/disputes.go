package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ojalabs/oja-backend/api/middleware"
	"github.com/ojalabs/oja-backend/api/responses"
	"github.com/ojalabs/oja-backend/api/validators"
	"github.com/ojalabs/oja-backend/internal/disputes"
	"github.com/ojalabs/oja-backend/pkg/enums"
	pkgerrors "github.com/ojalabs/oja-backend/pkg/errors"
	"github.com/ojalabs/oja-backend/pkg/logger"
	"github.com/ojalabs/oja-backend/pkg/pagination"
)

type disputeResolveRequest struct {
	Outcome    string `json:"outcome" validate:"required"`
	Resolution string `json:"resolution" validate:"required"`
}

type disputeCloseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// DisputeDetail returns one dispute to the filer or an admin.
func DisputeDetail(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role != enums.UserRoleAdmin && dispute.FiledBy != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "dispute belongs to another account"))
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// DisputeList pages disputes. Admins see everything; other roles see only
// their own filings.
func DisputeList(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := disputes.ListFilter{}
		if middleware.RoleFromContext(r.Context()) == enums.UserRoleAdmin {
			if filter.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if filter.FiledBy, err = validators.ParseQueryUUID(r, "filed_by"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		} else {
			userID := middleware.UserIDFromContext(r.Context())
			filter.FiledBy = &userID
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseDisputeStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid dispute status"))
				return
			}
			filter.Status = &status
		}

		page, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"disputes":    page.Disputes,
			"next_cursor": page.NextCursor,
		})
	}
}

// DisputeStartInvestigation moves an open dispute under admin review.
func DisputeStartInvestigation(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.StartInvestigation(r.Context(), disputes.StartInvestigationInput{
			DisputeID: disputeID,
			AdminID:   middleware.UserIDFromContext(r.Context()),
			Actor:     actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// DisputeResolve records the admin ruling and settles the escrow.
func DisputeResolve(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeResolveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := enums.ParseDisputeOutcome(req.Outcome)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid outcome"))
			return
		}

		dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:  disputeID,
			Outcome:    outcome,
			Resolution: req.Resolution,
			ResolvedBy: middleware.UserIDFromContext(r.Context()),
			Actor:      actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// DisputeClose dismisses a dispute without a ruling and thaws the hold.
func DisputeClose(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParsePathUUID(chi.URLParam(r, "disputeId"), "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeCloseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Close(r.Context(), disputes.CloseInput{
			DisputeID: disputeID,
			Reason:    req.Reason,
			ClosedBy:  middleware.UserIDFromContext(r.Context()),
			Actor:     actorRef(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}
