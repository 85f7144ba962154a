package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeGroupFull, status: http.StatusConflict, publicMsg: "group is full"},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, publicMsg: "invalid status transition", detailsOK: true},
		{code: CodeAccessBlocked, status: http.StatusLocked, publicMsg: "card access is temporarily blocked", detailsOK: true},
		{code: CodeVerificationRequired, status: http.StatusForbidden, publicMsg: "card access must be verified first", detailsOK: true},
		{code: CodeTooFrequent, status: http.StatusTooManyRequests, publicMsg: "verification attempted too frequently", retryable: true, detailsOK: true},
		{code: CodeGatewayTimeout, status: http.StatusGatewayTimeout, publicMsg: "payment provider timed out", retryable: true},
		{code: CodeGatewayError, status: http.StatusBadGateway, publicMsg: "payment provider error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeWalksWrappedChain(t *testing.T) {
	err := fmt.Errorf("join: %w", New(CodeGroupFull, "group is full"))
	if !IsCode(err, CodeGroupFull) {
		t.Fatalf("expected GROUP_FULL to be found in chain")
	}
	if IsCode(err, CodeConflict) {
		t.Fatalf("did not expect CONFLICT")
	}
	if IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestDumpCollectsChainAndPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "participants_group_user_key", TableName: "participants"}
	err := Wrap(CodeConflict, fmt.Errorf("insert participant: %w", pgErr), "already joined")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "participants_group_user_key" || d.PGTable != "participants" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected unwrap chain, got %v", d.Chain)
	}
}

func TestIsCodeUsesOutermostCode(t *testing.T) {
	inner := New(CodeNotFound, "participant missing")
	outer := Wrap(CodeDependency, inner, "load participant")
	if !IsCode(outer, CodeDependency) {
		t.Fatalf("expected outer code to match")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("rewrapped code should hide the inner one")
	}
	if Wrap(CodeInternal, nil, "no cause").Unwrap() != nil {
		t.Fatalf("nil cause should unwrap to nil")
	}
}
