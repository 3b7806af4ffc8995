package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// Backoff settings
	InitialBackoff = 2 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0

	DefaultUserAgent = "GCG-Companion/1.0"
)

// DefaultRateLimit is one request per second.
var DefaultRateLimit = rate.Every(1 * time.Second)

var tracer = otel.Tracer("github.com/ramonehamilton/GCG-Companion/internal/provider")

// envelope is the provider's response wrapper.
type envelope struct {
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client fetches game record resources over HTTP.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger

	stats   ClientStats
	statsMu sync.RWMutex

	backoff         time.Duration
	lastFailureTime time.Time
	backoffMu       sync.Mutex
}

// ClientOptions configures the provider client.
type ClientOptions struct {
	// BaseURL is the API root the resource paths are appended to.
	BaseURL string

	// RateLimit controls request frequency (default: 1 req/second).
	// Burst allows the three report resources to go out together.
	RateLimit rate.Limit
	Burst     int

	// Timeout for HTTP requests (default: 30 seconds)
	Timeout time.Duration

	UserAgent string

	// HTTPClient allows custom HTTP client
	HTTPClient *http.Client

	Logger *logger.Logger
}

// DefaultClientOptions returns conservative default options.
func DefaultClientOptions(baseURL string) ClientOptions {
	return ClientOptions{
		BaseURL:   baseURL,
		RateLimit: DefaultRateLimit,
		Burst:     len(ResourceKinds),
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// NewClient creates a provider client.
func NewClient(options ClientOptions) *Client {
	if options.RateLimit == 0 {
		options.RateLimit = DefaultRateLimit
	}
	if options.Burst <= 0 {
		options.Burst = 1
	}
	if options.Timeout == 0 {
		options.Timeout = DefaultTimeout
	}
	if options.UserAgent == "" {
		options.UserAgent = DefaultUserAgent
	}
	if options.Logger == nil {
		options.Logger = logger.Nop()
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		userAgent:  options.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(options.RateLimit, options.Burst),
		log:        options.Logger.With("component", "provider"),
		backoff:    InitialBackoff,
	}
}

// Fetch retrieves one resource for user. A nil payload with a nil error
// means the provider had no data, usually because the account must pass a
// verification challenge first.
func (c *Client) Fetch(ctx context.Context, kind ResourceKind, user models.UserContext) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "provider.Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("gcg.resource", string(kind)),
		attribute.String("gcg.uid", user.UID),
	)

	data, err := c.fetch(ctx, kind, user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("gcg.absent", data == nil))
	return data, nil
}

func (c *Client) fetch(ctx context.Context, kind ResourceKind, user models.UserContext) (json.RawMessage, error) {
	path, err := kind.Path()
	if err != nil {
		return nil, &APIError{Type: ErrInvalidParams, Message: "invalid resource", Err: err}
	}
	if user.UID == "" {
		return nil, &APIError{Type: ErrInvalidParams, Message: "uid is required"}
	}

	query := url.Values{}
	query.Set("role_id", user.UID)
	if user.Server != "" {
		query.Set("server", user.Server)
	}

	body, err := c.doRequest(ctx, c.baseURL+path+"?"+query.Encode(), user.Cookie)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{
			Type:    ErrParseError,
			Message: "failed to parse response envelope",
			Err:     err,
		}
	}

	if env.Retcode != 0 || len(env.Data) == 0 || string(env.Data) == "null" {
		c.updateStats(func(s *ClientStats) { s.AbsentResponses++ })
		c.log.Warn("provider returned no data",
			"resource", string(kind),
			"uid", user.UID,
			"retcode", env.Retcode,
			"message", env.Message,
		)
		return nil, nil
	}
	return env.Data, nil
}

// doRequest performs an HTTP request with rate limiting and backoff.
func (c *Client) doRequest(ctx context.Context, url, cookie string) ([]byte, error) {
	if err := c.checkBackoff(); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{
			Type:    ErrRateLimited,
			Message: "rate limiter error",
			Err:     err,
		}
	}

	c.updateStats(func(s *ClientStats) {
		s.TotalRequests++
		s.LastRequestTime = time.Now()
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{
			Type:    ErrInvalidParams,
			Message: "failed to create request",
			Err:     err,
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(startTime)

	if err != nil {
		// Cancelled callers do not count against the provider.
		if ctx.Err() == nil {
			c.recordFailure()
		}
		return nil, &APIError{
			Type:    ErrUnavailable,
			Message: "failed to execute request",
			Err:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{
			Type:       ErrUnavailable,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil {
			c.recordFailure()
		}
		return nil, &APIError{
			Type:    ErrUnavailable,
			Message: "failed to read response body",
			Err:     err,
		}
	}

	c.recordSuccess(latency)
	return body, nil
}

// checkBackoff checks if we're in a backoff period.
func (c *Client) checkBackoff() error {
	c.backoffMu.Lock()
	defer c.backoffMu.Unlock()

	if !c.lastFailureTime.IsZero() {
		elapsed := time.Since(c.lastFailureTime)
		if elapsed < c.backoff {
			return &APIError{
				Type:    ErrRateLimited,
				Message: fmt.Sprintf("in backoff period, %v remaining", c.backoff-elapsed),
			}
		}
	}
	return nil
}

// recordFailure records a failed request and increases backoff.
func (c *Client) recordFailure() {
	c.backoffMu.Lock()
	c.lastFailureTime = time.Now()
	c.backoff = time.Duration(float64(c.backoff) * BackoffFactor)
	if c.backoff > MaxBackoff {
		c.backoff = MaxBackoff
	}
	c.backoffMu.Unlock()

	c.updateStats(func(s *ClientStats) {
		s.FailedRequests++
		s.LastFailureTime = time.Now()
		s.ConsecutiveErrors++
	})
}

// recordSuccess records a successful request and resets backoff.
func (c *Client) recordSuccess(latency time.Duration) {
	c.backoffMu.Lock()
	c.backoff = InitialBackoff
	c.lastFailureTime = time.Time{}
	c.backoffMu.Unlock()

	c.updateStats(func(s *ClientStats) {
		s.LastSuccessTime = time.Now()
		s.ConsecutiveErrors = 0
		if s.AverageLatency == 0 {
			s.AverageLatency = latency
		} else {
			s.AverageLatency = (s.AverageLatency + latency) / 2
		}
	})
}

func (c *Client) updateStats(fn func(*ClientStats)) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	fn(&c.stats)
}

// GetStats returns a copy of the current client statistics.
func (c *Client) GetStats() ClientStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// ResetBackoff manually resets the backoff timer.
func (c *Client) ResetBackoff() {
	c.backoffMu.Lock()
	defer c.backoffMu.Unlock()
	c.backoff = InitialBackoff
	c.lastFailureTime = time.Time{}
}
