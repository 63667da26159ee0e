// Package relay forwards notification requests to Firebase Cloud Messaging
// and normalizes every outcome into a SendResult.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"push-relay/logging"
	"push-relay/metrics"
	"push-relay/tokens"

	"github.com/rs/zerolog"
)

// DefaultEndpoint is the FCM HTTP v1 API base URL.
const DefaultEndpoint = "https://fcm.googleapis.com"

// DefaultTimeout bounds the provider call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

const maxResponseBody = 1 << 20

// TokenProvider returns a currently-valid access token.
type TokenProvider interface {
	Token(ctx context.Context) (tokens.AccessToken, error)
}

// SendRequest is one notification addressed to one device.
type SendRequest struct {
	TargetToken string
	Title       string
	Body        string
	Data        map[string]interface{}
}

// Validate checks the request locally, without any network call.
func (r SendRequest) Validate() error {
	if strings.TrimSpace(r.TargetToken) == "" {
		return &InvalidRequestError{Field: "fcmToken", Reason: "must not be empty"}
	}
	return nil
}

// SendResult is the uniform outcome of a send. Its JSON form is the
// caller-facing contract {success, result?, error?}.
type SendResult struct {
	Success          bool        `json:"success"`
	ProviderResponse interface{} `json:"result,omitempty"`
	ErrorMessage     string      `json:"error,omitempty"`

	// Err is the typed failure for in-process callers.
	Err error `json:"-"`
}

func failure(err error) SendResult {
	return SendResult{Success: false, ErrorMessage: err.Error(), Err: err}
}

// Relay sends notifications through the FCM v1 API.
type Relay struct {
	tokens   TokenProvider
	client   *http.Client
	endpoint string
	timeout  time.Duration
	log      zerolog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithEndpoint overrides the FCM API base URL.
func WithEndpoint(base string) Option {
	return func(r *Relay) { r.endpoint = base }
}

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) { r.timeout = d }
}

// New creates a Relay that sends on behalf of projectID.
func New(tp TokenProvider, projectID string, opts ...Option) *Relay {
	r := &Relay{
		tokens:   tp,
		client:   http.DefaultClient,
		endpoint: DefaultEndpoint,
		timeout:  DefaultTimeout,
		log:      logging.Component("fcm"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.endpoint = fmt.Sprintf("%s/v1/projects/%s/messages:send",
		strings.TrimRight(r.endpoint, "/"), url.PathEscape(projectID))
	return r
}

// Endpoint returns the full send URL.
func (r *Relay) Endpoint() string {
	return r.endpoint
}

// Send performs exactly one delivery attempt. It never returns an error:
// every failure is reported in the result.
func (r *Relay) Send(ctx context.Context, req SendRequest) SendResult {
	start := time.Now()
	res := r.send(ctx, req)
	elapsed := time.Since(start)

	metrics.ObserveSendDuration(elapsed.Seconds())
	metrics.IncSend(outcome(res.Err))

	if res.Success {
		r.log.Info().Dur("took", elapsed).Interface("response", res.ProviderResponse).Msg("notification sent")
	} else {
		r.log.Warn().Err(res.Err).Str("outcome", outcome(res.Err)).Dur("took", elapsed).Msg("notification failed")
	}
	return res
}

func (r *Relay) send(ctx context.Context, req SendRequest) SendResult {
	if err := req.Validate(); err != nil {
		return failure(err)
	}

	tok, err := r.tokens.Token(ctx)
	if err != nil {
		var ce *tokens.CredentialExchangeError
		if errors.As(err, &ce) && ce.Timeout() {
			return failure(&TimeoutError{Op: "credential exchange", Err: err})
		}
		return failure(err)
	}

	body, err := json.Marshal(BuildEnvelope(req))
	if err != nil {
		return failure(&InvalidRequestError{Field: "data", Reason: err.Error()})
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(&ProviderError{Err: err})
	}
	httpReq.Header.Set("Authorization", "Bearer "+tok.Value)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return failure(r.transportError(callCtx, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if isTimeout(callCtx, err) {
			return failure(r.transportError(callCtx, err))
		}
		return failure(&ProviderError{StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			r.invalidateToken()
		}
		return failure(&ProviderError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return failure(&ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Err:        fmt.Errorf("malformed response: %w", err),
		})
	}

	return SendResult{Success: true, ProviderResponse: parsed}
}

func (r *Relay) transportError(callCtx context.Context, err error) error {
	if isTimeout(callCtx, err) {
		return &TimeoutError{Op: "provider request", After: r.timeout, Err: err}
	}
	return &ProviderError{Err: err}
}

// invalidateToken drops a token FCM rejected so the next send exchanges again.
func (r *Relay) invalidateToken() {
	if inv, ok := r.tokens.(interface{ Invalidate() }); ok {
		inv.Invalidate()
		r.log.Warn().Msg("provider rejected access token, cache invalidated")
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
