package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/openminiapp/miniapp/internal/infrastructure/logging"
	"github.com/openminiapp/miniapp/internal/infrastructure/resilience"
)

const (
	// RetryMax is the number of retries after the initial attempt; a call
	// that always fails with a 5xx is attempted RetryMax+1 times total.
	RetryMax = 5

	// retryBaseWait is the base of the exponential backoff. The wait before
	// retry n (n starting at 0) is retryBaseWait * 2^n, with no jitter.
	retryBaseWait = 500 * time.Millisecond

	// retryMaxWait is resty's clamp on retry waits. It must stay at or above
	// the largest scheduled wait, retryBaseWait * 2^(RetryMax-1), or the
	// tail of the schedule flattens to the clamp.
	retryMaxWait = 8 * time.Second

	requestTimeout = 30 * time.Second
)

// Request is one outbound registry call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response carries the body, status, and headers of a successful (2xx) call.
type Response struct {
	Body       []byte
	StatusCode int
	Headers    http.Header
}

// Client issues HTTP requests with authentication headers, certificate
// pinning, and a bounded exponential-backoff retry policy for server errors.
type Client struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	limiter *rate.Limiter
	logger  *logging.Logger

	pinOnce sync.Once
	pinSet  *PinSet
	pinErr  error
}

// Option configures a Client.
type Option func(*Client)

// WithPinning enables certificate pinning for the given host. The pin set is
// installed lazily on the first request.
func WithPinning(host, primary, backup string) Option {
	return func(c *Client) {
		// Validation is deferred to first use so a misconfigured pin fails
		// the request rather than client construction.
		c.pinOnce = sync.Once{}
		c.pinSet = &PinSet{Host: host, Pins: []string{primary, backup}}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithHeader sets a default header applied to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.resty.SetHeader(key, value)
	}
}

// New creates a transport client with the retry policy for server errors:
// retries only when the status is >= 500, up to RetryMax attempts, waiting
// retryBaseWait * 2^n between attempts.
func New(logger *logging.Logger, opts ...Option) *Client {
	restyClient := resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(RetryMax).
		SetRetryMaxWaitTime(retryMaxWait).
		SetHeader("User-Agent", "miniapp-runtime/1.0")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err == nil && r != nil && r.StatusCode() >= 500
	})
	restyClient.SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
		// Attempt is 1 after the initial try, so the first wait is
		// retryBaseWait * 2^0.
		n := r.Request.Attempt - 1
		if n < 0 {
			n = 0
		}
		return retryBaseWait * (1 << uint(n)), nil
	})

	breaker := resilience.New("registry", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	c := &Client{
		resty:   restyClient,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// configurePinning installs the pin set into the TLS layer. Runs once, on
// first use.
func (c *Client) configurePinning() {
	if c.pinSet == nil {
		return
	}
	c.pinOnce.Do(func() {
		pins, err := NewPinSet(c.pinSet.Host, c.pinSet.Pins[0], c.pinSet.Pins[1])
		if err != nil {
			c.pinErr = err
			return
		}
		c.pinSet = pins
		transport := &http.Transport{
			TLSClientConfig: pins.TLSConfig(),
		}
		if err := http2.ConfigureTransport(transport); err != nil {
			c.pinErr = err
			return
		}
		c.resty.SetTransport(transport)
	})
}

// Send issues the request. Any 2xx response is success; other statuses are
// translated into a typed ServerError after the retry budget is exhausted.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if req.URL == "" {
		return nil, ErrInvalidURL
	}

	c.configurePinning()
	if c.pinErr != nil {
		return nil, c.pinErr
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		r := c.resty.R().SetContext(ctx)
		for k, v := range req.Headers {
			r.SetHeader(k, v)
		}
		if req.Body != nil {
			r.SetBody(req.Body)
		}
		return r.Execute(req.Method, req.URL)
	})
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, err
	}

	resp := result.(*resty.Response)
	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode()),
		zap.Int("attempts", resp.Request.Attempt),
	)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, DecodeServerError(resp.StatusCode(), resp.Body())
	}

	return &Response{
		Body:       resp.Body(),
		StatusCode: resp.StatusCode(),
		Headers:    resp.Header(),
	}, nil
}

// BreakerState exposes the circuit breaker state for health reporting.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}
