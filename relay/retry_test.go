package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"push-relay/tokens"
)

// scriptedSender returns the queued results in order.
type scriptedSender struct {
	results []SendResult
	calls   int
}

func (s *scriptedSender) Send(ctx context.Context, req SendRequest) SendResult {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	return s.results[i]
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := sleepHook
	sleepHook = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepHook = orig })
	return &slept
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invalid", &InvalidRequestError{Field: "fcmToken", Reason: "empty"}, false},
		{"timeout", &TimeoutError{Op: "provider request"}, true},
		{"credential", &tokens.CredentialExchangeError{Err: errors.New("x")}, true},
		{"network", &ProviderError{Err: errors.New("refused")}, true},
		{"429", &ProviderError{StatusCode: 429}, true},
		{"503", &ProviderError{StatusCode: 503}, true},
		{"404", &ProviderError{StatusCode: 404}, false},
		{"400", &ProviderError{StatusCode: 400}, false},
		{"unknown", errors.New("?"), false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("%s: Retryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSendWithRetryRecovers(t *testing.T) {
	slept := noSleep(t)
	s := &scriptedSender{results: []SendResult{
		failure(&ProviderError{StatusCode: 503}),
		failure(&TimeoutError{Op: "provider request"}),
		{Success: true, ProviderResponse: "ok"},
	}}

	policy := RetryPolicy{Attempts: 5, BaseBackoff: 100 * time.Millisecond}
	res := SendWithRetry(context.Background(), s, validRequest(), policy)
	if !res.Success {
		t.Fatalf("expected eventual success, got %s", res.ErrorMessage)
	}
	if s.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", s.calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) || (*slept)[0] != want[0] || (*slept)[1] != want[1] {
		t.Errorf("expected backoffs %v, got %v", want, *slept)
	}
}

func TestSendWithRetryStopsOnPermanentFailure(t *testing.T) {
	noSleep(t)
	s := &scriptedSender{results: []SendResult{
		failure(&ProviderError{StatusCode: 404}),
		{Success: true},
	}}

	res := SendWithRetry(context.Background(), s, validRequest(), RetryPolicy{Attempts: 3})
	if res.Success {
		t.Fatal("404 must not be retried")
	}
	if s.calls != 1 {
		t.Errorf("expected a single attempt, got %d", s.calls)
	}
}

type countingSender struct {
	n   int
	res SendResult
}

func (c *countingSender) Send(ctx context.Context, req SendRequest) SendResult {
	c.n++
	return c.res
}

func TestSendWithRetryAttemptCount(t *testing.T) {
	noSleep(t)
	c := &countingSender{res: failure(&ProviderError{StatusCode: 500})}

	SendWithRetry(context.Background(), c, validRequest(), RetryPolicy{Attempts: 4})
	if c.n != 4 {
		t.Errorf("expected 4 attempts, got %d", c.n)
	}

	c.n = 0
	SendWithRetry(context.Background(), c, validRequest(), RetryPolicy{})
	if c.n != 1 {
		t.Errorf("zero attempts should mean one try, got %d", c.n)
	}
}

func TestSendWithRetryContextCancelled(t *testing.T) {
	noSleep(t)
	c := &countingSender{res: failure(&TimeoutError{Op: "provider request"})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := SendWithRetry(ctx, c, validRequest(), RetryPolicy{Attempts: 5})
	if res.Success {
		t.Fatal("expected failure")
	}
	if c.n != 1 {
		t.Errorf("expected retries to stop after cancellation, got %d attempts", c.n)
	}
}

func TestBackoffCapped(t *testing.T) {
	p := RetryPolicy{BaseBackoff: time.Second, MaxBackoff: 3 * time.Second}
	if d := p.backoff(5); d != 3*time.Second {
		t.Errorf("expected capped backoff 3s, got %v", d)
	}

	p.Jitter = 100 * time.Millisecond
	d := p.backoff(1)
	if d < time.Second || d >= time.Second+100*time.Millisecond {
		t.Errorf("jittered backoff out of range: %v", d)
	}
}
