package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("user u1: %w", ErrNotFound), http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("cannot remove own admin role: %w", ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("username taken: %w", ErrConflict), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("acl: %w", ErrSystemFailure), http.StatusServiceUnavailable},
		{New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := StatusCode(c.err); got != c.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestMessage_HidesInternalErrors(t *testing.T) {
	if got := Message(New("dial tcp 10.0.0.1:5432: refused")); got != "internal server error" {
		t.Fatalf("internal error leaked: %q", got)
	}
	err := fmt.Errorf("role tutor: %w", ErrNotFound)
	if got := Message(err); got != "role tutor: not found" {
		t.Fatalf("unexpected message %q", got)
	}
}
