package bitrix24

import (
	"context"
	"encoding/json"
	"time"
)

// RestClient is the raw method-call surface of the pipeline. Method names
// are logical remote methods like "crm.lead.fields"; results are the parsed
// response document.
type RestClient interface {
	// Get issues GET {portal}/rest/{method}.
	Get(ctx context.Context, method string) (json.RawMessage, error)

	// Post issues POST {portal}/rest/{method} with a JSON body. A nil body
	// is rejected before any network I/O.
	Post(ctx context.Context, method string, body any) (json.RawMessage, error)

	// Do issues a call described by a Request, including its priority when
	// the dispatcher is enabled.
	Do(ctx context.Context, req Request) (json.RawMessage, error)

	// Portal returns the portal hostname this client is bound to.
	Portal() string
}

// CRMClients provides access to the CRM entity clients.
type CRMClients interface {
	Leads() LeadsClient
	Deals() DealsClient
	Contacts() ContactsClient
}

type Client interface {
	RestClient
	CRMClients

	// Batch creates a batch executor that fans operations out through this
	// client with bounded concurrency.
	Batch(concurrency int) *BatchExecutor

	// Close stops the dispatcher worker and any in-flight re-authorization.
	Close() error
}

// EntityClient is the shared CRUD surface of the CRM entity clients.
type EntityClient interface {
	// Get fetches one record by ID.
	Get(ctx context.Context, id int) (Entity, error)

	// List fetches one page of records.
	List(ctx context.Context, opts *ListOptions) (*ListResult, error)

	// ListAll follows the next-offset chain until the listing is exhausted.
	ListAll(ctx context.Context, opts *ListOptions) ([]Entity, error)

	// Create adds a record and returns its new ID.
	Create(ctx context.Context, fields Entity) (int, error)

	// Update modifies a record in place.
	Update(ctx context.Context, id int, fields Entity) error

	// Delete removes a record.
	Delete(ctx context.Context, id int) error

	// Fields returns the entity field schema, cached between calls.
	Fields(ctx context.Context) (map[string]Field, error)
}

// LeadsClient operates on crm.lead.* methods.
type LeadsClient interface {
	EntityClient
}

// DealsClient operates on crm.deal.* methods.
type DealsClient interface {
	EntityClient
}

// ContactsClient operates on crm.contact.* methods.
type ContactsClient interface {
	EntityClient
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Config represents client configuration for building a bitrix24.Client.
//
// # Token lifecycle
//
// The client keeps the current access token in memory and persists the token
// pair through Storage. Expiry is never predicted locally: a 401 from the
// portal invalidates the cached token and triggers one refresh-and-retry.
// When the refresh token is also rejected, the client polls
// AuthorizationCodes until a human completes the external consent flow, then
// exchanges the code at the token endpoint. Concurrent callers share a
// single in-flight refresh.
//
// # Retries
//
// Network failures and 5xx responses are retried with exponential backoff up
// to TransientRetries attempts (RetryForever removes the bound). The
// rate-limit status (RateLimitStatus, default 429) is retried with a
// quadratic backoff: RateLimitBase × n² before the n-th retry, capped at
// RateLimitMax, up to RateLimitRetries attempts.
//
// # Dispatch
//
// With SerializeCalls, ThrottleInterval or MaxPriority set, every call is
// funneled through a single worker that starts consecutive calls no closer
// together than ThrottleInterval and always picks the highest-priority
// queued call first. Without them, calls run concurrently with no ordering
// guarantee.
type Config struct {
	// Required fields
	// Portal: the portal hostname, e.g. "example.bitrix24.com". A scheme
	// prefix and a trailing slash are stripped during normalization.
	Portal string
	// ClientID: OAuth application client ID issued for the portal.
	ClientID string
	// ClientSecret: OAuth application client secret used with ClientID.
	ClientSecret string

	// Authentication options
	// TokenURL: full OAuth token endpoint. Defaults to
	// "https://{portal}/oauth/token/".
	TokenURL string
	// Storage: persistent token storage. Defaults to an in-memory storage
	// that forgets tokens when the process exits.
	Storage TokenStorage
	// AuthorizationCodes: source of fresh authorization codes for full
	// re-authorization. Without it, a rejected refresh token is a terminal
	// authorization failure.
	AuthorizationCodes AuthorizationCodeProvider
	// AccessToken: optional seed access token stored before the first call.
	AccessToken string
	// RefreshToken: optional seed refresh token stored before the first call.
	RefreshToken string
	// CodePollInterval: delay between empty authorization-code polls.
	CodePollInterval time.Duration

	// Retry tuning
	// TransientRetries: maximum retries for network failures and 5xx. If 0,
	// a sensible default is used; RetryForever (-1) removes the bound.
	TransientRetries int
	// RetryWaitMin: minimum backoff between transient retries.
	RetryWaitMin time.Duration
	// RetryWaitMax: maximum backoff between transient retries.
	RetryWaitMax time.Duration
	// RateLimitStatus: HTTP status the portal uses to signal throttling.
	RateLimitStatus int
	// RateLimitRetries: maximum rate-limit retries per call.
	RateLimitRetries int
	// RateLimitBase: base of the quadratic rate-limit backoff.
	RateLimitBase time.Duration
	// RateLimitMax: upper bound on a single rate-limit wait.
	RateLimitMax time.Duration

	// Dispatch tuning
	// SerializeCalls: funnel all calls through the single dispatch worker
	// even when no throttle interval is configured.
	SerializeCalls bool
	// ThrottleInterval: minimum spacing between the start times of
	// consecutive calls. Zero disables throttling.
	ThrottleInterval time.Duration
	// MaxPriority: enables priority dispatch when > 0; Request.Priority is
	// clamped into [0, MaxPriority].
	MaxPriority int

	// Optional configurations
	// HTTPTimeout: timeout applied to each HTTP attempt. Most callers should
	// rely on context deadlines instead.
	HTTPTimeout time.Duration
	// FieldsCacheTTL: how long crm.*.fields schemas are reused.
	FieldsCacheTTL time.Duration
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger used by the pipeline.
	Logger Logger
	// SkipTLSVerify: disables TLS verification. Local development only.
	SkipTLSVerify bool
}

// NoopLogger discards all log records. It is the default when Config.Logger
// is nil.
type NoopLogger struct{}

// NewNoopLogger creates a logger that discards everything.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// Debug does nothing.
func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}

// Info does nothing.
func (l *NoopLogger) Info(msg string, fields map[string]interface{}) {}

// Warn does nothing.
func (l *NoopLogger) Warn(msg string, fields map[string]interface{}) {}

// Error does nothing.
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}
