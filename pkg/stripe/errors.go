package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/dumpsterpool-backend/pkg/errors"
)

func mapStripeError(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, fmt.Sprintf("stripe %s timed out", op))
	}
	var apiErr *stripe.Error
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeInstrumentNotFound, err, fmt.Sprintf("stripe %s: card not found", op))
		case http.StatusBadRequest:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("stripe %s rejected", op))
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, fmt.Sprintf("stripe %s failed", op))
}
