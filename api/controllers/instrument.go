package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/api/responses"
	"github.com/angelmondragon/dumpsterpool-backend/api/validators"
	"github.com/angelmondragon/dumpsterpool-backend/internal/disbursement"
	"github.com/angelmondragon/dumpsterpool-backend/internal/funding"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/pagination"
)

type revealRequest struct {
	Nonce string `json:"nonce" validate:"required,max=200"`
}

type limitRequest struct {
	Limit string `json:"limit" validate:"required,money"`
}

type transactionsResponse struct {
	Instrument disbursement.InstrumentDTO                   `json:"instrument"`
	Stale      bool                                         `json:"stale"`
	Page       pagination.Page[disbursement.TransactionDTO] `json:"transactions"`
}

type instrumentFunc func(disbursement.Service, context.Context, uuid.UUID, auth.Identity) (*disbursement.InstrumentDTO, error)

func GetInstrument(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return instrumentAction(svc, logg, disbursement.Service.Get)
}

func FreezeInstrument(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return instrumentAction(svc, logg, disbursement.Service.Freeze)
}

func UnfreezeInstrument(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return instrumentAction(svc, logg, disbursement.Service.Unfreeze)
}

func instrumentAction(svc disbursement.Service, logg *logger.Logger, fn instrumentFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursement service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inst, err := fn(svc, r.Context(), req.groupID, req.identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inst)
	}
}

// UpdateInstrumentLimit sets the card's spending limit, given in dollars.
func UpdateInstrumentLimit(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursement service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body limitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cents, err := funding.ParseAmount(body.Limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inst, err := svc.UpdateLimit(r.Context(), req.groupID, req.identity, cents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inst)
	}
}

// RevealInstrument returns an ephemeral key for client-side display of the
// card number. The caller must hold a verified card access session.
func RevealInstrument(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursement service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body revealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reveal, err := svc.Reveal(r.Context(), req.groupID, req.identity, strings.TrimSpace(body.Nonce))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, reveal)
	}
}

// InstrumentTransactions pages the card's authorizations newest first.
func InstrumentTransactions(svc disbursement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursement service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		log, err := svc.Transactions(r.Context(), req.groupID, req.identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := log.Page(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionsResponse{
			Instrument: log.Instrument,
			Stale:      log.Stale,
			Page:       page,
		})
	}
}
