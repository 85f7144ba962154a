package controllers

import (
	"net/http"

	"github.com/angelmondragon/dumpsterpool-backend/api/middleware"
	"github.com/angelmondragon/dumpsterpool-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

func identityFrom(r *http.Request) (auth.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return identity, nil
}
