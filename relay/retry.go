package relay

import (
	"context"
	crand "crypto/rand"
	"math/big"
	"time"

	"push-relay/logging"
)

// Sender is anything that performs a single send attempt.
type Sender interface {
	Send(ctx context.Context, req SendRequest) SendResult
}

// RetryPolicy controls caller-side retries layered on top of Relay.Send.
type RetryPolicy struct {
	Attempts    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      time.Duration
}

// DefaultRetryPolicy makes three attempts starting at 500ms.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:    3,
	BaseBackoff: 500 * time.Millisecond,
	MaxBackoff:  10 * time.Second,
	Jitter:      250 * time.Millisecond,
}

// sleepHook is replaced in tests to avoid sleeping for real.
var sleepHook = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendWithRetry calls s.Send until it succeeds, the failure is not
// retryable, the attempts run out or ctx is done. The last result is returned.
func SendWithRetry(ctx context.Context, s Sender, req SendRequest, p RetryPolicy) SendResult {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	log := logging.Component("retry")

	var res SendResult
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		res = s.Send(ctx, req)
		if res.Success || !Retryable(res.Err) || attempt == p.Attempts {
			return res
		}

		d := p.backoff(attempt)
		log.Warn().Err(res.Err).Int("attempt", attempt).Dur("backoff", d).Msg("send attempt failed, retrying")
		if err := sleepHook(ctx, d); err != nil {
			return res
		}
	}
	return res
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff * time.Duration(1<<uint(attempt-1))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		if n, err := crand.Int(crand.Reader, big.NewInt(int64(p.Jitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}
