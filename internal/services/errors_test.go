package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"authindex/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstreamUnavailable, "updater", "health", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"updater", "health", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(nil) {
		t.Fatal("nil error should not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrValidation, "api", "mode", "bad mode", nil)) {
		t.Fatal("validation errors should not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrUpstreamUnavailable, "upstream", "get", "", errors.New("503"))) {
		t.Fatal("upstream errors should be retryable")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{services.ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", services.ErrNotFound), http.StatusNotFound},
		{services.ErrBusy, http.StatusConflict},
		{services.ErrUpstreamUnavailable, http.StatusBadGateway},
		{services.ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
