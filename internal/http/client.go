// Package http executes portal REST calls with layered retry handling:
// transient failures retry with exponential backoff, rate-limited responses
// retry with quadratic backoff, and a rejected token is refreshed and
// retried exactly once.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// TokenManager supplies bearer tokens and replaces rejected ones.
type TokenManager interface {
	// EnsureAuthorized returns a token expected to be valid.
	EnsureAuthorized(ctx context.Context) (string, error)

	// InvalidateOnUnauthorized reports that the portal rejected the given
	// token and blocks until a replacement is available.
	InvalidateOnUnauthorized(ctx context.Context, rejected string) (string, error)
}

// Logger interface for HTTP request/response logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Request is a single portal REST call.
type Request struct {
	// Verb is the HTTP verb. Empty means GET.
	Verb string

	// Method is the portal method name, for example "crm.lead.fields".
	Method string

	// Body is JSON-encoded for POST requests.
	Body any

	// Headers are additional request headers.
	Headers map[string]string
}

// Response is the final HTTP response of a call after all retries.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes REST calls against one portal.
type Client struct {
	baseURL      string
	tokenManager TokenManager
	retryClient  *retryablehttp.Client
	httpClient   *http.Client
	logger       Logger
	debug        bool
	userAgent    string

	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration

	rateLimitStatus  int
	rateLimitRetries int
	rateLimitBase    time.Duration
	rateLimitMax     time.Duration
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets a logger for the client.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig configures the transient retry budget. A retryMax of
// constants.RetryForever retries until the context is cancelled.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retryMax = retryMax

		if waitMin > 0 {
			c.retryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.retryWaitMax = waitMax
		}
	}
}

// WithRateLimit configures which status counts as throttling and the
// quadratic backoff applied to it.
func WithRateLimit(status, retries int, base, maxWait time.Duration) Option {
	return func(c *Client) {
		if status > 0 {
			c.rateLimitStatus = status
		}

		if retries > 0 {
			c.rateLimitRetries = retries
		}

		if base > 0 {
			c.rateLimitBase = base
		}

		if maxWait > 0 {
			c.rateLimitMax = maxWait
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, for custom transports
// and timeouts.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a REST executor for the given base URL, typically
// "https://{portal}/rest". A nil tokenManager sends unauthenticated calls.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	client := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		tokenManager:     tokenManager,
		httpClient:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		logger:           bitrix24.NewNoopLogger(),
		retryMax:         constants.DefaultTransientRetries,
		retryWaitMin:     constants.DefaultRetryWaitMin,
		retryWaitMax:     constants.DefaultRetryWaitMax,
		rateLimitStatus:  constants.DefaultRateLimitStatus,
		rateLimitRetries: constants.DefaultRateLimitRetries,
		rateLimitBase:    constants.DefaultRateLimitBase,
		rateLimitMax:     constants.DefaultRateLimitMax,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.retryClient = client.buildRetryClient()

	return client
}

// Get performs a GET call for the given method.
func (c *Client) Get(ctx context.Context, method string) (*Response, error) {
	return c.Do(ctx, &Request{
		Verb:   http.MethodGet,
		Method: method,
	})
}

// Post performs a POST call for the given method with a JSON body.
func (c *Client) Post(ctx context.Context, method string, body any) (*Response, error) {
	return c.Do(ctx, &Request{
		Verb:   http.MethodPost,
		Method: method,
		Body:   body,
	})
}

// Do executes a call, retrying transient failures and throttled responses.
// A 401 triggers one token replacement and one more attempt; a second 401 is
// terminal. Terminal failures are reported as *bitrix24.CallError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	verb := req.Verb
	if verb == "" {
		verb = http.MethodGet
	}

	rawBody, err := c.prepare(verb, req)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + req.Method

	token, err := c.authorize(ctx, req.Method)
	if err != nil {
		return nil, err
	}

	resp, err := c.doThrottled(ctx, verb, req, endpoint, rawBody, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		token, err = c.tokenManager.InvalidateOnUnauthorized(ctx, token)
		if err != nil {
			return nil, &bitrix24.CallError{Method: req.Method, Err: err}
		}

		resp, err = c.doThrottled(ctx, verb, req, endpoint, rawBody, token)
		if err != nil {
			return nil, err
		}
	}

	return c.finalize(req.Method, resp)
}

// prepare validates the call and encodes the body before any I/O happens.
func (c *Client) prepare(verb string, req *Request) ([]byte, error) {
	if strings.TrimSpace(req.Method) == "" {
		return nil, bitrix24.ErrEmptyMethod
	}

	if verb != http.MethodPost {
		return nil, nil
	}

	if req.Body == nil {
		return nil, bitrix24.ErrNilBody
	}

	rawBody, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding body for %s: %w", req.Method, err)
	}

	return rawBody, nil
}

func (c *Client) authorize(ctx context.Context, method string) (string, error) {
	if c.tokenManager == nil {
		return "", nil
	}

	token, err := c.tokenManager.EnsureAuthorized(ctx)
	if err != nil {
		return "", &bitrix24.CallError{Method: method, Err: err}
	}

	return token, nil
}

// doThrottled sends the call, waiting out throttled responses with a
// quadratic backoff: base times the square of the attempt number, capped.
func (c *Client) doThrottled(ctx context.Context, verb string, req *Request, endpoint string, rawBody []byte, token string) (*Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := c.doOnce(ctx, verb, req, endpoint, rawBody, token)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != c.rateLimitStatus {
			return resp, nil
		}

		if attempt > c.rateLimitRetries {
			return resp, nil
		}

		wait := c.rateLimitWait(attempt)
		c.logger.Warn("rate limited, backing off", map[string]interface{}{
			"method":  req.Method,
			"attempt": attempt,
			"wait":    wait.String(),
		})

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, &bitrix24.CallError{Method: req.Method, Err: ctx.Err()}
		}
	}
}

// doOnce performs one logical send. Transient failures are retried inside
// retryablehttp; throttled and unauthorized responses are returned to the
// outer layers untouched.
func (c *Client) doOnce(ctx context.Context, verb string, req *Request, endpoint string, rawBody []byte, token string) (*Response, error) {
	var body interface{}
	if rawBody != nil {
		body = rawBody
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, verb, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", req.Method, err)
	}

	httpReq.Header.Set("Accept", "application/json")

	if rawBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"verb":   verb,
			"method": req.Method,
			"url":    endpoint,
		})
	}

	start := time.Now()

	httpResp, err := c.retryClient.Do(httpReq)
	if err != nil {
		return nil, &bitrix24.CallError{Method: req.Method, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response for %s: %w", req.Method, err)
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":   req.Method,
			"status":   httpResp.StatusCode,
			"duration": time.Since(start).String(),
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

// finalize maps the final status to the call outcome.
func (c *Client) finalize(method string, resp *Response) (*Response, error) {
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		if !json.Valid(resp.Body) {
			return resp, &bitrix24.CallError{
				Method:     method,
				StatusCode: resp.StatusCode,
				Body:       resp.Body,
				Err:        bitrix24.ErrResponseMalformed,
			}
		}

		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return resp, &bitrix24.CallError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        bitrix24.ErrUnauthorized,
		}
	case resp.StatusCode == c.rateLimitStatus:
		return resp, &bitrix24.CallError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        bitrix24.ErrRateLimited,
		}
	default:
		return resp, &bitrix24.CallError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        bitrix24.ErrRemoteCallFailed,
		}
	}
}

func (c *Client) rateLimitWait(attempt int) time.Duration {
	wait := c.rateLimitBase * time.Duration(attempt*attempt)
	if c.rateLimitMax > 0 && wait > c.rateLimitMax {
		wait = c.rateLimitMax
	}

	return wait
}

func (c *Client) buildRetryClient() *retryablehttp.Client {
	retryMax := c.retryMax
	if retryMax == constants.RetryForever {
		retryMax = math.MaxInt32
	}

	return &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryMax:     retryMax,
		RetryWaitMin: c.retryWaitMin,
		RetryWaitMax: c.retryWaitMax,
		CheckRetry:   c.checkRetry,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
}

// checkRetry carves throttled and unauthorized responses out of the
// transient retry policy so the outer layers can apply their own handling.
func (c *Client) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || resp == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	if resp.StatusCode == c.rateLimitStatus || resp.StatusCode == http.StatusUnauthorized {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
