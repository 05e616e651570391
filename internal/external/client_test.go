package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"railrisk/internal/types"
)

// noopSleep is a sleep function that does nothing, for fast tests.
func noopSleep(time.Duration) {}

// noRetry makes each Do call exactly one attempt.
var noRetry = RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond}

func newTestClient(t *testing.T, policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	t.Helper()
	opts = append([]BaseClientOption{WithSleepFunc(noopSleep)}, opts...)
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-breaker",
		policy,
		"RailRisk-Test/1.0",
		opts...,
	)
}

func mustGet(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

func asAppError(t *testing.T, err error) *types.AppError {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	return appErr
}

func TestDo_InjectsHeaders(t *testing.T) {
	var gotTrace, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Get("X-B3-TraceId")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, DefaultRetryPolicy())
	ctx := types.WithRequestID(context.Background(), "req-abc-123")

	resp, err := client.Do(mustGet(t, ctx, server.URL))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
	if gotTrace != "req-abc-123" {
		t.Errorf("expected trace ID 'req-abc-123', got '%s'", gotTrace)
	}
	if gotUA != "RailRisk-Test/1.0" {
		t.Errorf("expected test User-Agent, got '%s'", gotUA)
	}
}

func TestDo_NoTraceIDWhenNotInContext(t *testing.T) {
	var present bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["X-B3-Traceid"]
	}))
	defer server.Close()

	resp, err := newTestClient(t, noRetry).Do(mustGet(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	resp.Body.Close()

	if present {
		t.Error("expected no X-B3-TraceId header")
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(code)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

		client := newTestClient(t, RetryPolicy{MaxRetries: 3, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond})
		resp, err := client.Do(mustGet(t, context.Background(), server.URL))
		if err != nil {
			t.Fatalf("%d: expected success after retries, got: %v", code, err)
		}
		resp.Body.Close()

		if got := calls.Load(); got != 3 {
			t.Errorf("%d: expected 3 calls, got %d", code, got)
		}
		server.Close()
	}
}

func TestDo_ExhaustedRetriesUsesUpstreamCode(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t,
		RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		WithUpstreamCode(types.ErrCodeUpstreamWeather),
	)
	resp, err := client.Do(mustGet(t, context.Background(), server.URL))
	if resp != nil {
		t.Error("expected nil response after exhausted retries")
	}

	appErr := asAppError(t, err)
	if appErr.Code != types.ErrCodeUpstreamWeather {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamWeather, appErr.Code)
	}
	if appErr.HTTPStatus() != http.StatusBadGateway {
		t.Errorf("expected 502 mapping, got %d", appErr.HTTPStatus())
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestDo_ExhaustedRetriesOn429IsRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Millisecond})
	_, err := client.Do(mustGet(t, context.Background(), server.URL))

	if code := asAppError(t, err).Code; code != types.ErrCodeUpstreamRateLimited {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamRateLimited, code)
	}
}

func TestDo_4xxNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	resp, err := newTestClient(t, DefaultRetryPolicy()).Do(mustGet(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected 4xx to be returned as a response, got: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestDo_CircuitBreakerOpensAfterThreshold(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	client := NewBaseClientWithBreaker(
		&http.Client{Timeout: 5 * time.Second},
		breaker,
		noRetry,
		"RailRisk-Test/1.0",
		WithSleepFunc(noopSleep),
		WithUpstreamCode(types.ErrCodeUpstreamOfficial),
	)

	for i := 0; i < 4; i++ {
		_, _ = client.Do(mustGet(t, context.Background(), server.URL))
	}
	before := calls.Load()

	_, err := client.Do(mustGet(t, context.Background(), server.URL))
	appErr := asAppError(t, err)
	if appErr.Code != types.ErrCodeUpstreamOfficial {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamOfficial, appErr.Code)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected the open-state error to be wrapped, got %v", err)
	}
	if after := calls.Load(); after != before {
		t.Errorf("expected no server calls while open, got %d more", after-before)
	}
}

func TestDo_RespectsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-retry-after",
		RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 5 * time.Second},
		"RailRisk-Test/1.0",
		WithSleepFunc(func(d time.Duration) { slept = append(slept, d) }),
	)

	resp, err := client.Do(mustGet(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	resp.Body.Close()

	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Errorf("expected a single 2s wait, got %v", slept)
	}
}

func TestDo_StopsRetryingWhenContextCancelled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-cancel",
		RetryPolicy{MaxRetries: 5, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"RailRisk-Test/1.0",
		WithSleepFunc(func(time.Duration) { cancel() }),
		WithUpstreamCode(types.ErrCodeUpstreamInference),
	)

	_, err := client.Do(mustGet(t, ctx, server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if code := asAppError(t, err).Code; code != types.ErrCodeUpstreamInference {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamInference, code)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected one attempt before cancellation, got %d", got)
	}
}

func TestDo_PostBodyPreservedAcrossRetries(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, server.URL, strings.NewReader(`{"features":{}}`))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := newTestClient(t, RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Millisecond}).Do(req)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[1] != `{"features":{}}` {
		t.Errorf("expected identical bodies on both attempts, got %q", bodies)
	}
}

func TestDo_NetworkErrorMapsToUpstreamCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, noRetry, WithUpstreamCode(types.ErrCodeUpstreamWeather))
	_, err := client.Do(mustGet(t, context.Background(), url))

	if code := asAppError(t, err).Code; code != types.ErrCodeUpstreamWeather {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamWeather, code)
	}
}

func TestComputeBackoff(t *testing.T) {
	c := newTestClient(t, RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: time.Second})

	if got := c.computeBackoff(0, nil); got != 100*time.Millisecond {
		t.Errorf("attempt 0: expected MinWait, got %v", got)
	}
	for attempt := 1; attempt < 6; attempt++ {
		got := c.computeBackoff(attempt, nil)
		if got < 100*time.Millisecond || got > time.Second {
			t.Errorf("attempt %d: %v outside [MinWait, MaxWait]", attempt, got)
		}
	}

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"60"}}}
	if got := c.computeBackoff(0, resp); got != time.Second {
		t.Errorf("expected Retry-After capped at MaxWait, got %v", got)
	}
}
