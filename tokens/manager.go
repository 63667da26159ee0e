package tokens

import (
	"context"
	"sync"
	"time"

	"push-relay/logging"
	"push-relay/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Defaults used when a Manager is built without options.
const (
	DefaultMargin  = 5 * time.Minute
	DefaultTimeout = 10 * time.Second
)

const flightKey = "access-token"

// Manager hands out a currently-valid access token, exchanging the credential
// only when the cached token is missing or close to expiry.
//
// The cache is guarded by mu. Refreshes go through group so that concurrent
// callers observing a stale cache share a single exchange.
type Manager struct {
	exchanger Exchanger
	margin    time.Duration
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger

	mu      sync.RWMutex
	current AccessToken

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithMargin sets how much validity must remain for a cached token to be reused.
func WithMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithTimeout bounds each credential exchange.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager that refreshes through ex.
func NewManager(ex Exchanger, opts ...Option) *Manager {
	m := &Manager{
		exchanger: ex,
		margin:    DefaultMargin,
		timeout:   DefaultTimeout,
		now:       time.Now,
		log:       logging.Component("tokens"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns the cached token if it is still fresh, otherwise exchanges the
// credential for a new one. Failures are *CredentialExchangeError.
func (m *Manager) Token(ctx context.Context) (AccessToken, error) {
	if tok, ok := m.cached(); ok {
		metrics.IncTokenCacheHit()
		return tok, nil
	}

	ch := m.group.DoChan(flightKey, func() (interface{}, error) {
		// A flight that finished just before this one may have refreshed the cache.
		if tok, ok := m.cached(); ok {
			return tok, nil
		}
		return m.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	case <-ctx.Done():
		return AccessToken{}, &CredentialExchangeError{Err: ctx.Err()}
	}
}

// refresh runs the exchange detached from the caller's cancellation, since
// other callers may be waiting on the same flight. The timeout still applies.
func (m *Manager) refresh(ctx context.Context) (AccessToken, error) {
	exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	start := m.now()
	tok, err := m.exchanger.Exchange(exCtx)
	metrics.IncTokenExchange(err)
	if err != nil {
		m.log.Error().Err(err).Msg("credential exchange failed")
		return AccessToken{}, &CredentialExchangeError{Err: err}
	}

	m.mu.Lock()
	m.current = tok
	m.mu.Unlock()

	m.log.Debug().
		Time("expires_at", tok.ExpiresAt).
		Dur("took", m.now().Sub(start)).
		Msg("access token refreshed")
	return tok, nil
}

func (m *Manager) cached() (AccessToken, bool) {
	m.mu.RLock()
	tok := m.current
	m.mu.RUnlock()
	return tok, tok.FreshAt(m.now(), m.margin)
}

// Invalidate drops the cached token so the next call exchanges again.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.current = AccessToken{}
	m.mu.Unlock()
}
