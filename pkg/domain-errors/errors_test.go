package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode_WalksChain(t *testing.T) {
	cause := New(CodeNotFound, "domain not found")
	wrapped := Wrap(cause, CodeInternal, "lookup failed")
	outer := fmt.Errorf("handler: %w", wrapped)

	if !HasCode(outer, CodeInternal) {
		t.Fatal("expected outer code to match")
	}
	if !HasCode(outer, CodeNotFound) {
		t.Fatal("expected inner code to be reachable through the chain")
	}
	if HasCode(outer, CodeConflict) {
		t.Fatal("did not expect an absent code to match")
	}
	if HasCode(nil, CodeInternal) {
		t.Fatal("nil error must not carry any code")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "dns gateway unreachable")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to remain reachable via errors.Is")
	}
	if got := err.Error(); got != "unavailable: dns gateway unreachable: connection refused" {
		t.Fatalf("unexpected error string: %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeConflict, "duplicate domain")); got != CodeConflict {
		t.Fatalf("expected conflict, got %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Fatalf("uncoded errors must classify as internal, got %q", got)
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeInvalidInput:       http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeInvariantViolation: http.StatusConflict,
		CodeTimeout:            http.StatusGatewayTimeout,
		CodeUnavailable:        http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
		Code("unknown"):        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := ToHTTPStatus(code); got != want {
			t.Fatalf("code %q: expected %d, got %d", code, want, got)
		}
	}
}
