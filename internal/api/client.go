// Package api is the HTTP client for the concert backend. Every call goes
// through one gateway that applies rate limiting, a circuit breaker,
// retries for idempotent requests and structured request logging, then
// checks the response envelope before any payload field is trusted.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "gigs-cli/1.0"

	maxResponseBytes = 8 << 20
	maxBackoff       = 30 * time.Second
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	UserID    string
	Token     string
	UserAgent string
	Timeout   time.Duration

	// RatePerSec and Burst size the token bucket (default 5/s, burst 10).
	RatePerSec float64
	Burst      int
	// FailureThreshold consecutive 429/5xx responses open the circuit for
	// ResetTimeout (default 5 and 60s).
	FailureThreshold int
	ResetTimeout     time.Duration
	// MaxRetries bounds retries of idempotent calls (default 4), starting
	// at InitialBackoff (default 500ms) and doubling. Negative disables retries.
	MaxRetries     int
	InitialBackoff time.Duration

	HTTPClient *http.Client
	Log        *logrus.Entry
	RequestLog *logrus.Entry
	Metrics    *metrics.Metrics
}

// Client talks to the concert backend. Safe for concurrent use.
type Client struct {
	base       *url.URL
	userID     string
	token      string
	userAgent  string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
	log        *logrus.Entry
	reqLog     *requestLog
	metrics    *metrics.Metrics
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &model.ValidationError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", opts.BaseURL)}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 10
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout == 0 {
		opts.ResetTimeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 4
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = opts.Timeout
		httpClient = &clone
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}
	c := &Client{
		base:       base,
		userID:     opts.UserID,
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		http:       httpClient,
		limiter:    newLimiter(opts.RatePerSec, opts.Burst),
		maxRetries: max(opts.MaxRetries, 0),
		backoff:    opts.InitialBackoff,
		log:        opts.Log,
		metrics:    opts.Metrics,
	}
	if opts.RequestLog != nil {
		c.reqLog = &requestLog{log: opts.RequestLog}
	}
	c.breaker = newBreaker(opts.FailureThreshold, opts.ResetTimeout, c.reqLog)
	return c, nil
}

// statusError is a 429/5xx answer that the gateway gave up on.
type statusError struct {
	label    string
	code     int
	status   string
	attempts int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: HTTP %s after %d attempt(s)", e.label, e.status, e.attempts)
}

// retryDo is the single gateway for every outbound call. In order it waits
// on the rate limiter, consults the circuit breaker, executes the request
// and, when retry is set, retries 429/5xx with exponential backoff that
// honours Retry-After. Every attempt, wait, rejection and state change is
// logged. The caller closes the returned body.
func (c *Client) retryDo(ctx context.Context, label, requestID string, retry bool, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		waited, err := waitLimiter(ctx, c.limiter)
		if err != nil {
			return nil, fmt.Errorf("rate limiter cancelled for %s: %w", label, err)
		}
		if waited > time.Millisecond {
			c.reqLog.rateLimitWait(label, waited)
		}

		req, err := makeReq()
		if err != nil {
			return nil, err
		}
		var duration time.Duration
		result, err := c.breaker.Execute(func() (interface{}, error) {
			start := time.Now()
			resp, err := c.http.Do(req)
			duration = time.Since(start)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return resp, &statusError{label: label, code: resp.StatusCode, status: resp.Status, attempts: attempt + 1}
			}
			return resp, nil
		})
		if breakerRejected(err) {
			c.reqLog.circuitRejected(label)
			return nil, fmt.Errorf("%w (label: %s)", ErrCircuitOpen, label)
		}
		resp, _ := result.(*http.Response)
		if resp == nil {
			c.reqLog.request(label, requestID, 0, duration, attempt, c.breaker.State(), err)
			return nil, err
		}
		c.reqLog.request(label, requestID, resp.StatusCode, duration, attempt, c.breaker.State(), err)

		var failure *statusError
		if !errors.As(err, &failure) {
			return resp, nil
		}
		if !retry {
			// The caller classifies it after reading the body.
			return resp, nil
		}
		resp.Body.Close()
		if attempt >= c.maxRetries {
			return nil, failure
		}

		wait := backoff
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, e := strconv.Atoi(ra); e == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// call describes one backend endpoint invocation.
type call struct {
	label  string
	method string
	path   []string
	body   any
	retry  bool
}

// do executes cl and decodes a success envelope into out. Failures are
// returned as *model.NetworkError or *model.BackendError.
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	defer func() {
		c.metrics.APIRequests.WithLabelValues(cl.label, outcome(err)).Inc()
	}()

	var payload []byte
	if cl.body != nil {
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", cl.label, err)
		}
	}
	target := c.base.JoinPath(append([]string{"api"}, cl.path...)...).String()
	requestID := uuid.NewString()

	resp, err := c.retryDo(ctx, cl.label, requestID, cl.retry, func() (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)
		if c.userID != "" {
			req.Header.Set("X-User-ID", c.userID)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return req, nil
	})
	if err != nil {
		return &model.NetworkError{Op: cl.label, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &model.NetworkError{Op: cl.label, Err: fmt.Errorf("read body: %w", err)}
	}

	var env model.Envelope
	decodeErr := json.Unmarshal(data, &env)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &model.NetworkError{Op: cl.label, Err: &statusError{label: cl.label, code: resp.StatusCode, status: resp.Status, attempts: 1}}
	}
	if resp.StatusCode >= 400 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &model.BackendError{Op: cl.label, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &model.BackendError{Op: cl.label, StatusCode: resp.StatusCode, Message: "malformed response: " + decodeErr.Error()}
	}
	if !env.OK() {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("status %q", env.Status)
		}
		return &model.BackendError{Op: cl.label, StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &model.BackendError{Op: cl.label, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
		}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrBackendRejected):
		return "rejected"
	case errors.Is(err, model.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}

// CircuitState reports the breaker state for status output.
func (c *Client) CircuitState() string {
	return c.breaker.State().String()
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}
