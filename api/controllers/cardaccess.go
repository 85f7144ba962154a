package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/dumpsterpool-backend/api/responses"
	"github.com/angelmondragon/dumpsterpool-backend/internal/cardaccess"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/logger"
)

func VerifyCardAccess(svc cardaccess.Service, logg *logger.Logger) http.HandlerFunc {
	return cardAccessAction(svc, logg, cardaccess.Service.Verify)
}

func CardAccessStatus(svc cardaccess.Service, logg *logger.Logger) http.HandlerFunc {
	return cardAccessAction(svc, logg, cardaccess.Service.Status)
}

// ResetCardAccess clears failures and the verified window. Creator only.
func ResetCardAccess(svc cardaccess.Service, logg *logger.Logger) http.HandlerFunc {
	return cardAccessAction(svc, logg, cardaccess.Service.Reset)
}

type cardAccessFunc func(cardaccess.Service, context.Context, uuid.UUID, auth.Identity) (*cardaccess.StatusDTO, error)

func cardAccessAction(svc cardaccess.Service, logg *logger.Logger, fn cardAccessFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "card access service unavailable"))
			return
		}
		req, err := parseGroupRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := fn(svc, r.Context(), req.groupID, req.identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
