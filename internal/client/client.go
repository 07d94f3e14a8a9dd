// Package client assembles the full call pipeline: token lifecycle, retrying
// HTTP executor, optional throttled dispatch, and the CRM entity clients.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/ainq-io/bitrix24-client/internal/auth"
	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/internal/dispatch"
	b24http "github.com/ainq-io/bitrix24-client/internal/http"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// Client implements the bitrix24.Client interface.
type Client struct {
	portal       string
	httpClient   *b24http.Client
	tokenManager *auth.Manager
	dispatcher   *dispatch.Dispatcher
	logger       bitrix24.Logger
	closed       atomic.Bool

	// Resource clients
	leads    bitrix24.LeadsClient
	deals    bitrix24.DealsClient
	contacts bitrix24.ContactsClient
}

// New creates a client for one portal.
func New(ctx context.Context, config *bitrix24.Config) (*Client, error) {
	if config == nil {
		return nil, bitrix24.ErrConfigRequired
	}

	base, portal := portalAddress(config.Portal)
	if portal == "" {
		return nil, bitrix24.ErrPortalRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = bitrix24.NewNoopLogger()
	}

	storage := config.Storage
	if storage == nil {
		storage = bitrix24.NewMemoryTokenStorage()
	}

	tokenManager := auth.NewManager(&auth.Config{
		OAuth: &auth.OAuthConfig{
			TokenURL:     tokenURL(config, base),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
		},
		Storage:      storage,
		Codes:        config.AuthorizationCodes,
		PollInterval: config.CodePollInterval,
		Logger:       logger,
	})

	if config.AccessToken != "" || config.RefreshToken != "" {
		tokenManager.SeedTokens(ctx, config.AccessToken, config.RefreshToken)
	}

	httpOpts := createHTTPClientOptions(config, logger)
	httpClient := b24http.NewClient(base+"/rest", tokenManager, httpOpts...)

	client := &Client{
		portal:       portal,
		httpClient:   httpClient,
		tokenManager: tokenManager,
		dispatcher:   createDispatcher(config, logger),
		logger:       logger,
	}

	// Initialize resource clients
	client.initializeResourceClients(config)

	return client, nil
}

// tokenURL returns the token endpoint from config or the portal default.
func tokenURL(config *bitrix24.Config, base string) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return base + "/oauth/token/"
}

// portalAddress normalizes the configured portal into a base URL and a bare
// hostname. An explicit scheme prefix is preserved; without one the portal
// is assumed to be HTTPS.
func portalAddress(configured string) (baseURL, host string) {
	addr := strings.TrimRight(strings.TrimSpace(configured), "/")

	switch {
	case strings.HasPrefix(addr, "https://"):
		return addr, strings.TrimPrefix(addr, "https://")
	case strings.HasPrefix(addr, "http://"):
		return addr, strings.TrimPrefix(addr, "http://")
	case addr == "":
		return "", ""
	default:
		return "https://" + addr, addr
	}
}

// createHTTPClientOptions builds HTTP executor options from config.
func createHTTPClientOptions(config *bitrix24.Config, logger bitrix24.Logger) []b24http.Option {
	httpOpts := []b24http.Option{b24http.WithLogger(logger)}

	if config.Debug {
		httpOpts = append(httpOpts, b24http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, b24http.WithUserAgent(config.UserAgent))
	}

	retryMax := config.TransientRetries
	if retryMax == 0 {
		retryMax = constants.DefaultTransientRetries
	}

	httpOpts = append(httpOpts,
		b24http.WithRetryConfig(retryMax, config.RetryWaitMin, config.RetryWaitMax),
		b24http.WithRateLimit(config.RateLimitStatus, config.RateLimitRetries,
			config.RateLimitBase, config.RateLimitMax))

	if config.HTTPTimeout > 0 || config.SkipTLSVerify {
		httpOpts = append(httpOpts, b24http.WithHTTPClient(buildHTTPClient(config)))
	}

	return httpOpts
}

func buildHTTPClient(config *bitrix24.Config) *http.Client {
	timeout := config.HTTPTimeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	if config.SkipTLSVerify {
		httpClient.Transport = &http.Transport{
			//nolint:gosec // explicit opt-in for local development portals
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return httpClient
}

// createDispatcher builds the dispatch worker when any of the serialization
// knobs are set. Without them calls go straight to the HTTP executor.
func createDispatcher(config *bitrix24.Config, logger bitrix24.Logger) *dispatch.Dispatcher {
	if !config.SerializeCalls && config.ThrottleInterval <= 0 && config.MaxPriority <= 0 {
		return nil
	}

	maxPriority := config.MaxPriority
	if maxPriority <= 0 {
		maxPriority = constants.DefaultMaxPriority
	}

	return dispatch.NewDispatcher(&dispatch.Config{
		ThrottleInterval: config.ThrottleInterval,
		MaxPriority:      maxPriority,
		Logger:           logger,
	})
}

// initializeResourceClients initializes the CRM entity clients.
func (c *Client) initializeResourceClients(config *bitrix24.Config) {
	cacheTTL := config.FieldsCacheTTL
	if cacheTTL == 0 {
		cacheTTL = constants.DefaultFieldsCacheTTL
	}

	c.leads = NewLeadsClient(c, cacheTTL)
	c.deals = NewDealsClient(c, cacheTTL)
	c.contacts = NewContactsClient(c, cacheTTL)
}

// Portal implements bitrix24.RestClient.Portal.
func (c *Client) Portal() string {
	return c.portal
}

// Get implements bitrix24.RestClient.Get.
func (c *Client) Get(ctx context.Context, method string) (json.RawMessage, error) {
	return c.Do(ctx, bitrix24.Request{Method: method})
}

// Post implements bitrix24.RestClient.Post.
func (c *Client) Post(ctx context.Context, method string, body any) (json.RawMessage, error) {
	if body == nil {
		return nil, bitrix24.ErrNilBody
	}

	return c.Do(ctx, bitrix24.Request{Method: method, Body: body})
}

// Do implements bitrix24.RestClient.Do. With the dispatcher enabled the call
// is queued at its priority; otherwise it executes immediately.
func (c *Client) Do(ctx context.Context, req bitrix24.Request) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, bitrix24.ErrClientClosed
	}

	if c.dispatcher == nil {
		return c.execute(ctx, req)
	}

	return c.dispatcher.Submit(ctx, req.Priority, func(ctx context.Context) (json.RawMessage, error) {
		return c.execute(ctx, req)
	})
}

func (c *Client) execute(ctx context.Context, req bitrix24.Request) (json.RawMessage, error) {
	var (
		resp *b24http.Response
		err  error
	)

	if req.Body == nil {
		resp, err = c.httpClient.Get(ctx, req.Method)
	} else {
		resp, err = c.httpClient.Post(ctx, req.Method, req.Body)
	}

	if err != nil {
		return nil, err
	}

	return json.RawMessage(resp.Body), nil
}

// Resource client accessors

// Leads implements bitrix24.CRMClients.Leads.
func (c *Client) Leads() bitrix24.LeadsClient {
	return c.leads
}

// Deals implements bitrix24.CRMClients.Deals.
func (c *Client) Deals() bitrix24.DealsClient {
	return c.deals
}

// Contacts implements bitrix24.CRMClients.Contacts.
func (c *Client) Contacts() bitrix24.ContactsClient {
	return c.contacts
}

// Batch implements bitrix24.Client.Batch.
func (c *Client) Batch(concurrency int) *bitrix24.BatchExecutor {
	return bitrix24.NewBatchExecutor(c, concurrency)
}

// TokenManager exposes the token lifecycle manager, mainly for tooling that
// needs to trigger authentication eagerly.
func (c *Client) TokenManager() *auth.Manager {
	return c.tokenManager
}

// Close stops the dispatch worker and any in-flight re-authorization wait.
// Calls made after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
	}

	if c.tokenManager != nil {
		return c.tokenManager.Close()
	}

	return nil
}
