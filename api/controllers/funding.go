package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/api/responses"
	"github.com/angelmondragon/dumpsterpool-backend/api/validators"
	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/internal/paymentmethods"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

type generateRequest struct {
	TotalCost   string          `json:"total_cost" validate:"required,money"`
	Method      json.RawMessage `json:"payment_method"`
	Description string          `json:"description" validate:"max=500"`
}

type bulkPaidRequest struct {
	RequestIDs []uuid.UUID `json:"request_ids" validate:"required,min=1,unique"`
}

type registerCardRequest struct {
	SourceID          string `json:"source_id" validate:"required"`
	CardholderName    string `json:"cardholder_name" validate:"required,max=120"`
	VerificationToken string `json:"verification_token"`
}

func unavailableFunding(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "funding service unavailable"))
}

// FundingSummary returns the breakdown and payment request states for a group.
func FundingSummary(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), req.groupID, req.identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// PreviewBreakdown splits ?total= across the current participants without persisting.
func PreviewBreakdown(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := validators.RequireQuery(r, "total")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		breakdown, err := svc.Preview(r.Context(), req.groupID, req.identity, total)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, breakdown)
	}
}

// GeneratePaymentRequests finalizes the total and issues one request per payer.
func GeneratePaymentRequests(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body generateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := funding.DecodeMethod(body.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.Generate(r.Context(), req.groupID, req.identity, funding.GenerateInput{
			TotalCost:   body.TotalCost,
			Method:      method,
			Description: validators.SanitizeString(body.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, batch)
	}
}

func MarkRequestPaid(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.MarkPaid(r.Context(), requestID, identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func BulkMarkPaid(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body bulkPaidRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.BulkMarkPaid(r.Context(), req.groupID, body.RequestIDs, req.identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// RegisterCard vaults the caller's card for charging their payment request.
func RegisterCard(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body registerCardRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		card, err := svc.RegisterCard(r.Context(), req.groupID, req.identity, paymentmethods.StoreCardInput{
			SourceID:          strings.TrimSpace(body.SourceID),
			CardholderName:    validators.SanitizeString(body.CardholderName, 120),
			VerificationToken: strings.TrimSpace(body.VerificationToken),
			IdempotencyKey:    strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, card)
	}
}

// ChargeRequest pays the caller's request with their card on file.
func ChargeRequest(svc funding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailableFunding(w, r, logg)
			return
		}
		identity, err := identityFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		paid, err := svc.PayByCard(r.Context(), requestID, identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paid)
	}
}
