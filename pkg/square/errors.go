package square

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

// mapError translates SDK failures into domain codes. Reused idempotency keys
// and authentication failures win over the HTTP status.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, "square "+op+" timed out")
	}
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "square "+op+" failed")
	}

	code := codeForStatus(apiErr.StatusCode)
	if override, ok := detailCode(apiErrors(apiErr)); ok {
		code = override
	}
	return pkgerrors.Wrap(code, err, "square "+op+" failed")
}

func detailCode(details []*sq.Error) (pkgerrors.Code, bool) {
	for _, detail := range details {
		if detail == nil {
			continue
		}
		if detail.Code == sq.ErrorCodeIdempotencyKeyReused {
			return pkgerrors.CodeIdempotency, true
		}
		if detail.Category == sq.ErrorCategoryAuthenticationError {
			return pkgerrors.CodeUnauthorized, true
		}
	}
	return "", false
}

// apiErrors decodes the {"errors": [...]} body carried by an APIError.
func apiErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil || apiErr.Unwrap() == nil {
		return nil
	}
	body := strings.TrimSpace(apiErr.Unwrap().Error())
	if body == "" {
		return nil
	}
	var envelope struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(body), &envelope) != nil {
		return nil
	}
	return envelope.Errors
}

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func codeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeGatewayError
}
