package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"authindex/internal/marc"
	"authindex/internal/services"
	"authindex/internal/testsupport"
	"authindex/internal/upstream"
)

func window() upstream.Window {
	to := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	return upstream.Window{From: to.AddDate(0, 0, -2), To: to}
}

func newClient(baseURL string, opts ...upstream.Option) *upstream.Client {
	opts = append([]upstream.Option{upstream.WithSleeper(func(time.Duration) {})}, opts...)
	return upstream.New(upstream.Config{BaseURL: baseURL, PageLimit: 2, RetryAttempts: 3}, opts...)
}

func TestWindowString(t *testing.T) {
	if got := window().String(); got != "2026-05-08T12:00:00Z,2026-05-10T12:00:00Z" {
		t.Fatalf("window = %q", got)
	}
}

func TestUpdatedRecordsFollowsContinuationTokens(t *testing.T) {
	srv := testsupport.NewUpstreamServer(t)
	srv.AddUpdatePage("authorities", testsupport.AuthorityRecord("a1", "100", "One"), testsupport.AuthorityRecord("a2", "100", "Two"))
	srv.AddUpdatePage("authorities", testsupport.AuthorityRecord("a3", "100", "Three"))

	var ids []string
	err := newClient(srv.URL).UpdatedRecords(context.Background(), upstream.ResourceAuthorities, window(), func(page marc.Page) error {
		for _, rec := range page.Records {
			ids = append(ids, rec.ControlValue("001"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdatedRecords: %v", err)
	}
	if strings.Join(ids, ",") != "a1,a2,a3" {
		t.Fatalf("ids = %v", ids)
	}
	requests := srv.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %v", requests)
	}
	if !strings.Contains(requests[0], "updatedDate=2026-05-08T12%3A00%3A00Z%2C2026-05-10T12%3A00%3A00Z") || !strings.Contains(requests[0], "limit=2") {
		t.Fatalf("unexpected first request %q", requests[0])
	}
}

func TestDeletedIDsPaginates(t *testing.T) {
	srv := testsupport.NewUpstreamServer(t)
	srv.AddDeletionPage("bibs", "b1", "b2")
	srv.AddDeletionPage("bibs", "b3")

	var ids []string
	err := newClient(srv.URL).DeletedIDs(context.Background(), upstream.ResourceBibs, window(), func(page []string) error {
		ids = append(ids, page...)
		return nil
	})
	if err != nil {
		t.Fatalf("DeletedIDs: %v", err)
	}
	if strings.Join(ids, ",") != "b1,b2,b3" {
		t.Fatalf("ids = %v", ids)
	}
	for _, uri := range srv.Requests() {
		if !strings.Contains(uri, "deleted=true") {
			t.Fatalf("deletion request without deleted flag: %s", uri)
		}
	}
}

func TestDeletedIDsPrefersControlNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nextPage":null,"authorities":[{"id":17,"marc":{"fields":[{"001":"a0000000000017"}]}},{"id":18}]}`))
	}))
	defer srv.Close()

	var ids []string
	err := newClient(srv.URL).DeletedIDs(context.Background(), upstream.ResourceAuthorities, window(), func(page []string) error {
		ids = append(ids, page...)
		return nil
	})
	if err != nil {
		t.Fatalf("DeletedIDs: %v", err)
	}
	if strings.Join(ids, ",") != "a0000000000017,18" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestRetryHonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`<resp><nextPage></nextPage><collection/></resp>`))
	}))
	defer srv.Close()

	var delays []time.Duration
	client := upstream.New(upstream.Config{BaseURL: srv.URL, RetryAttempts: 3},
		upstream.WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)
	if _, err := client.FetchPage(context.Background(), srv.URL+"/bibs.marcxml"); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(delays) != 1 || delays[0] != 7*time.Second {
		t.Fatalf("delays = %v", delays)
	}
}

func TestNonRetryableStatusIsUpstreamUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).FetchPage(context.Background(), srv.URL+"/bibs.marcxml?x=1")
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if upstream.StatusCodeOf(err) != http.StatusNotFound {
		t.Fatalf("status = %d", upstream.StatusCodeOf(err))
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, calls = %d", calls.Load())
	}
}

func TestOversizedResponseIsRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, upstream.WithMaxBodyBytes(16)).FetchPage(context.Background(), srv.URL+"/bibs.marcxml")
	if !errors.Is(err, upstream.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("oversized responses must not be retried, calls = %d", calls.Load())
	}
}

func TestHealthCheckRespectsBodyCap(t *testing.T) {
	srv := testsupport.NewUpstreamServer(t)
	client := newClient(srv.URL, upstream.WithMaxBodyBytes(1<<20))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	tight := newClient(srv.URL, upstream.WithMaxBodyBytes(1))
	if err := tight.HealthCheck(context.Background()); !errors.Is(err, upstream.ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	srv := testsupport.NewUpstreamServer(t)
	srv.FailPath("/authorities.marcxml", http.StatusBadGateway)

	var delays []time.Duration
	client := upstream.New(upstream.Config{BaseURL: srv.URL, RetryAttempts: 3},
		upstream.WithRetryBackoff(time.Second, 10*time.Second),
		upstream.WithSleeper(func(d time.Duration) { delays = append(delays, d) }),
	)
	err := client.UpdatedRecords(context.Background(), upstream.ResourceAuthorities, window(), func(marc.Page) error { return nil })
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if srv.RequestCount("/authorities.marcxml") != 3 {
		t.Fatalf("requests = %d", srv.RequestCount("/authorities.marcxml"))
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("delays = %v", delays)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := testsupport.NewUpstreamServer(t)
	client := newClient(srv.URL)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	srv.SetHealthy(false)
	if err := client.HealthCheck(context.Background()); !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
