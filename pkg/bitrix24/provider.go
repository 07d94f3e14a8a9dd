package bitrix24

import (
	"context"
	"sync"
)

// AuthorizationCodeProvider supplies OAuth authorization codes produced
// outside the client (browser consent, operator paste, a message queue).
// Returning an empty code with a nil error means "not ready yet"; the token
// manager polls again after its poll interval, indefinitely, until the
// context is cancelled. Errors are logged and treated the same way.
type AuthorizationCodeProvider interface {
	GetAuthorizationCode(ctx context.Context) (string, error)
}

// CodeProviderFunc adapts a function to AuthorizationCodeProvider.
type CodeProviderFunc func(ctx context.Context) (string, error)

// GetAuthorizationCode calls the function.
func (f CodeProviderFunc) GetAuthorizationCode(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticCodeProvider hands out a pre-obtained authorization code exactly
// once. Codes are single-use server-side, so later polls report not ready.
type StaticCodeProvider struct {
	mu   sync.Mutex
	code string
}

// NewStaticCodeProvider creates a provider around one authorization code.
func NewStaticCodeProvider(code string) *StaticCodeProvider {
	return &StaticCodeProvider{code: code}
}

// GetAuthorizationCode returns the code on the first call only.
func (p *StaticCodeProvider) GetAuthorizationCode(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	code := p.code
	p.code = ""

	return code, nil
}
