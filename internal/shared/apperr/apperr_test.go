package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestTaxonomy(t *testing.T) {
	if !IsNotFound(NotFound("vehicle", "v1")) {
		t.Fatalf("expected not found")
	}
	if !IsInvalid(Invalid("missing %s", "topic")) {
		t.Fatalf("expected invalid input")
	}
	cause := errors.New("conn reset")
	err := Store("insert vehicle", cause)
	if !errors.Is(err, ErrStore) || !errors.Is(err, cause) {
		t.Fatalf("expected store error wrapping cause: %v", err)
	}
	if IsNotFound(err) {
		t.Fatalf("store error must not match not found")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("service", "s1"):          http.StatusNotFound,
		Invalid("bad status"):              http.StatusBadRequest,
		Store("query", errors.New("boom")): http.StatusInternalServerError,
		errors.New("plain"):                http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(err); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
