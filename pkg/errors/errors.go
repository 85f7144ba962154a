package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeGroupFull                 Code = "GROUP_FULL"
	CodeInvalidTransition         Code = "INVALID_TRANSITION"
	CodeInvalidOrExpiredToken     Code = "INVALID_OR_EXPIRED_TOKEN"
	CodeIdentityMismatch          Code = "IDENTITY_MISMATCH"
	CodeTimeSlotSelectionRequired Code = "TIME_SLOT_SELECTION_REQUIRED"
	CodeNotAuthorized             Code = "NOT_AUTHORIZED"
	CodeAccessBlocked             Code = "ACCESS_BLOCKED"
	CodeVerificationRequired      Code = "VERIFICATION_REQUIRED"
	CodeTooFrequent               Code = "TOO_FREQUENT"
	CodeInstrumentNotFound        Code = "INSTRUMENT_NOT_FOUND"
	CodeInstrumentAlreadyIssued   Code = "INSTRUMENT_ALREADY_ISSUED"
	CodeInstrumentInactive        Code = "INSTRUMENT_INACTIVE"
	CodeGatewayTimeout            Code = "GATEWAY_TIMEOUT"
	CodeGatewayError              Code = "GATEWAY_ERROR"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	final          = false
	retryable      = true
	withoutDetails = false
	withDetails    = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, final, "validation failed", withDetails},
	CodeUnauthorized:  {http.StatusUnauthorized, final, "authentication required", withoutDetails},
	CodeForbidden:     {http.StatusForbidden, final, "access denied", withoutDetails},
	CodeNotFound:      {http.StatusNotFound, final, "resource not found", withoutDetails},
	CodeConflict:      {http.StatusConflict, final, "conflict detected", withoutDetails},
	CodeStateConflict: {http.StatusUnprocessableEntity, final, "state transition disallowed", withDetails},
	CodeIdempotency:   {http.StatusConflict, final, "idempotency key reused", withDetails},
	CodeRateLimit:     {http.StatusTooManyRequests, final, "rate limit exceeded", withoutDetails},
	CodeInternal:      {http.StatusInternalServerError, retryable, "internal server error", withoutDetails},
	CodeDependency:    {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},

	CodeGroupFull:                 {http.StatusConflict, final, "group is full", withoutDetails},
	CodeInvalidTransition:         {http.StatusUnprocessableEntity, final, "invalid status transition", withDetails},
	CodeInvalidOrExpiredToken:     {http.StatusNotFound, final, "invitation is invalid or has already been used", withoutDetails},
	CodeIdentityMismatch:          {http.StatusForbidden, final, "signed-in account does not match the invitation", withoutDetails},
	CodeTimeSlotSelectionRequired: {http.StatusBadRequest, final, "select at least one time slot", withoutDetails},
	CodeNotAuthorized:             {http.StatusForbidden, final, "only the group creator can do this", withoutDetails},
	CodeAccessBlocked:             {http.StatusLocked, final, "card access is temporarily blocked", withDetails},
	CodeVerificationRequired:      {http.StatusForbidden, final, "card access must be verified first", withDetails},
	CodeTooFrequent:               {http.StatusTooManyRequests, retryable, "verification attempted too frequently", withDetails},
	CodeInstrumentNotFound:        {http.StatusNotFound, final, "no card has been issued for this group", withoutDetails},
	CodeInstrumentAlreadyIssued:   {http.StatusConflict, final, "a card has already been issued for this group", withoutDetails},
	CodeInstrumentInactive:        {http.StatusConflict, final, "card is not active", withoutDetails},
	CodeGatewayTimeout:            {http.StatusGatewayTimeout, retryable, "payment provider timed out", withoutDetails},
	CodeGatewayError:              {http.StatusBadGateway, retryable, "payment provider error", withoutDetails},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded domain error. The message is what 4xx responses show;
// the cause is only logged.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a new coded error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

// Code reports CodeInternal for a nil receiver.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode compares code against the outermost *Error in err's chain, so a
// rewrap with a new code hides the inner one.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
