package bitrix24

import (
	"errors"
	"fmt"
)

// Static errors for err113 compliance.
var (
	// ErrEmptyMethod is returned when a call is attempted with an empty or
	// whitespace-only method name. Detected before any network I/O.
	ErrEmptyMethod = errors.New("method name is empty")

	// ErrNilBody is returned when a POST call is attempted without a body.
	// Detected before any network I/O.
	ErrNilBody = errors.New("request body is required")

	// ErrRateLimited is the terminal error after the rate-limit retry budget
	// is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is the terminal error when the remote still rejects
	// the call after the single credential refresh.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrResponseMalformed is returned when a 200 response body is not
	// valid JSON.
	ErrResponseMalformed = errors.New("response is not valid JSON")

	// ErrRemoteCallFailed is the terminal error for any other non-200 final
	// status.
	ErrRemoteCallFailed = errors.New("remote call failed")

	// ErrDispatcherClosed is returned for calls enqueued after Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrClientClosed is returned for calls made after the client is closed.
	ErrClientClosed = errors.New("client is closed")

	// ErrNoCodeProvider is returned when re-authorization is required but no
	// AuthorizationCodeProvider was configured.
	ErrNoCodeProvider = errors.New("no authorization code provider configured")

	// ErrTokenNotFound is returned by token storages for absent tokens.
	ErrTokenNotFound = errors.New("token not found")

	// ErrConfigRequired is returned when a nil Config is passed to the
	// client constructor.
	ErrConfigRequired = errors.New("config is required")

	// ErrPortalRequired is returned when Config.Portal is empty.
	ErrPortalRequired = errors.New("portal is required")

	// ErrSkipTLSOnlyInDev is returned when SkipTLSVerify is requested outside
	// a development environment.
	ErrSkipTLSOnlyInDev = errors.New("skipping TLS verification is only allowed in development mode")
)

// OAuthError represents an error response from the OAuth token endpoint,
// for example {"error":"invalid_grant","error_description":"..."}.
type OAuthError struct {
	Code        string `json:"error"             yaml:"error"`
	Description string `json:"error_description" yaml:"error_description"`
}

// Error implements the error interface.
func (e *OAuthError) Error() string {
	if e.Description == "" {
		return e.Code
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// CallError is the terminal failure of one logical REST call. It always
// carries the logical method name; StatusCode and Body are set when a final
// HTTP response was received.
type CallError struct {
	Method     string
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	msg := "calling " + e.Method

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}

	return msg
}

// Unwrap exposes the underlying error kind to errors.Is/As.
func (e *CallError) Unwrap() error {
	return e.Err
}

// AsCallError extracts a CallError from an error chain.
func AsCallError(err error) (*CallError, bool) {
	callErr := &CallError{}
	if errors.As(err, &callErr) {
		return callErr, true
	}

	return nil, false
}

// IsRateLimited checks if the error is a terminal rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnauthorized checks if the error is a terminal authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsMalformed checks if the error reports a non-JSON 200 response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrResponseMalformed)
}

// IsRemoteCallFailed checks if the error reports a non-200 final status that
// is neither a rate limit nor an authorization failure.
func IsRemoteCallFailed(err error) bool {
	return errors.Is(err, ErrRemoteCallFailed)
}
