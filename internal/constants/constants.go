package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and token files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for REST requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultOAuthTimeout is the timeout for token endpoint requests.
	DefaultOAuthTimeout = 30 * time.Second
)

// Transient retry limits.
const (
	// DefaultTransientRetries is the default maximum number of retries
	// for network failures and 5xx responses.
	DefaultTransientRetries = 5

	// RetryForever removes the transient retry bound.
	RetryForever = -1

	// DefaultRetryWaitMin is the minimum wait between transient retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait between transient retries.
	DefaultRetryWaitMax = 30 * time.Second
)

// Rate-limit retry tuning.
const (
	// DefaultRateLimitStatus is the HTTP status treated as a rate-limit
	// signal. Portals that throttle with a different status can override it.
	DefaultRateLimitStatus = 429

	// DefaultRateLimitRetries is the maximum number of rate-limit retries.
	DefaultRateLimitRetries = 4

	// DefaultRateLimitBase is the base of the quadratic rate-limit backoff:
	// the wait before retry n is base * n * n.
	DefaultRateLimitBase = 1 * time.Second

	// DefaultRateLimitMax caps the quadratic backoff growth.
	DefaultRateLimitMax = 2 * time.Minute
)

// Authorization flow tuning.
const (
	// DefaultCodePollInterval is the delay between empty authorization-code
	// polls while waiting for a human to complete the external flow.
	DefaultCodePollInterval = 5 * time.Second
)

// Dispatcher tuning.
const (
	// DefaultMaxPriority bounds request priorities when priority dispatch
	// is enabled. Priorities are clamped into [0, max].
	DefaultMaxPriority = 9
)

// Batch execution limits.
const (
	// DefaultBatchConcurrency limits concurrent operations in a batch.
	DefaultBatchConcurrency = 3
)

// Field schema caching.
const (
	// DefaultFieldsCacheTTL is how long crm.*.fields responses are reused
	// before being fetched again.
	DefaultFieldsCacheTTL = 15 * time.Minute
)

// Storage defaults.
const (
	// DefaultNATSBucket is the JetStream KV bucket for token storage.
	DefaultNATSBucket = "b24-tokens"

	// DefaultRedisKeyPrefix namespaces token keys in Redis.
	DefaultRedisKeyPrefix = "b24:token:"
)
