// Package auth owns the OAuth token lifecycle: producing a valid bearer
// token, refreshing it, running the full re-authorization flow, and
// coalescing concurrent refresh attempts into one.
package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// authenticateFlightKey is the singleflight key shared by every refresh and
// re-authorization attempt of one manager.
const authenticateFlightKey = "authenticate"

// Config wires the manager's collaborators.
type Config struct {
	// OAuth configures the token endpoint client.
	OAuth *OAuthConfig

	// Storage persists the token pair. Read failures mean "no token".
	Storage bitrix24.TokenStorage

	// Codes supplies authorization codes for full re-authorization. May be
	// nil when refresh tokens are provisioned out of band.
	Codes bitrix24.AuthorizationCodeProvider

	// PollInterval is the delay between empty authorization-code polls.
	PollInterval time.Duration

	// Logger receives warnings about degraded steps. Nil discards them.
	Logger bitrix24.Logger
}

// Manager owns the token state machine: Unset -> Valid -> (401) -> Unset.
// All methods are safe for concurrent use; at most one
// refresh/re-authorization sequence runs at a time.
type Manager struct {
	oauth        *OAuthClient
	storage      bitrix24.TokenStorage
	codes        bitrix24.AuthorizationCodeProvider
	pollInterval time.Duration
	logger       bitrix24.Logger

	store  *TokenStore
	flight singleflight.Group

	// lifetime outlives any single caller so that a coalesced refresh keeps
	// running for the other waiters when one of them cancels. Close cancels
	// it.
	lifetime context.Context
	cancel   context.CancelFunc
}

// NewManager creates a token lifecycle manager.
func NewManager(config *Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = bitrix24.NewNoopLogger()
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = constants.DefaultCodePollInterval
	}

	lifetime, cancel := context.WithCancel(context.Background())

	return &Manager{
		oauth:        NewOAuthClient(config.OAuth),
		storage:      config.Storage,
		codes:        config.Codes,
		pollInterval: pollInterval,
		logger:       logger,
		store:        NewTokenStore(),
		lifetime:     lifetime,
		cancel:       cancel,
	}
}

// SeedTokens installs pre-obtained tokens before the first call.
func (m *Manager) SeedTokens(ctx context.Context, access, refresh string) {
	if access != "" {
		m.store.Set(access)

		err := m.storage.StoreAccessToken(ctx, access)
		if err != nil {
			m.logger.Warn("storing seeded access token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if refresh != "" {
		err := m.storage.StoreRefreshToken(ctx, refresh)
		if err != nil {
			m.logger.Warn("storing seeded refresh token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// EnsureAuthorized returns a bearer token: the in-memory one when cached
// (fast path, no I/O), the stored one when present, a fresh one otherwise.
func (m *Manager) EnsureAuthorized(ctx context.Context) (string, error) {
	if token := m.store.Get(); token != "" {
		return token, nil
	}

	token, err := m.storage.GetAccessToken(ctx)
	if err == nil && token != "" {
		m.store.Set(token)

		return token, nil
	}

	return m.Authenticate(ctx)
}

// Authenticate runs the refresh-or-reauthorize chain and returns the new
// access token. Concurrent calls share one in-flight sequence; each caller
// still unblocks on its own context.
func (m *Manager) Authenticate(ctx context.Context) (string, error) {
	ch := m.flight.DoChan(authenticateFlightKey, func() (interface{}, error) {
		// The flight runs on the manager lifetime, not the first caller's
		// context: one waiter leaving must not abort the refresh the other
		// waiters share.
		return m.authenticate(m.lifetime)
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return "", result.Err
		}

		return result.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InvalidateOnUnauthorized reports that the portal rejected the given token
// with a 401. It drops the cached token and blocks until a replacement is
// available. When a concurrent refresh already installed a newer token, that
// token is returned without another refresh.
func (m *Manager) InvalidateOnUnauthorized(ctx context.Context, rejected string) (string, error) {
	if current := m.store.Get(); current != "" && current != rejected {
		return current, nil
	}

	m.store.ClearIf(rejected)

	return m.Authenticate(ctx)
}

// Close aborts any in-flight refresh or re-authorization wait.
func (m *Manager) Close() error {
	m.cancel()

	return nil
}

// authenticate is the flight body: drop the stored access token, try the
// refresh grant, fall back to full re-authorization.
func (m *Manager) authenticate(ctx context.Context) (string, error) {
	m.store.Clear()

	err := m.storage.RemoveAccessToken(ctx)
	if err != nil {
		m.logger.Warn("removing stored access token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	refresh, err := m.storage.GetRefreshToken(ctx)
	if err == nil && refresh != "" {
		token, refreshErr := m.oauth.RefreshToken(ctx, refresh)
		if refreshErr == nil {
			m.adopt(ctx, token)

			return token.AccessToken, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		m.logger.Warn("refresh token rejected, falling back to re-authorization",
			map[string]interface{}{"error": refreshErr.Error()})

		err = m.storage.RemoveRefreshToken(ctx)
		if err != nil {
			m.logger.Warn("removing stored refresh token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return m.reauthorize(ctx)
}

// reauthorize polls the code provider until a code appears, then exchanges
// it. The loop is intentionally unbounded: it waits for a human to complete
// the external consent flow, and only cancellation stops it.
func (m *Manager) reauthorize(ctx context.Context) (string, error) {
	if m.codes == nil {
		return "", bitrix24.ErrNoCodeProvider
	}

	for {
		code, err := m.codes.GetAuthorizationCode(ctx)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		switch {
		case err != nil:
			m.logger.Warn("authorization code provider failed", map[string]interface{}{
				"error": err.Error(),
			})
		case code != "":
			token, exchangeErr := m.oauth.ExchangeCode(ctx, code)
			if exchangeErr == nil {
				m.adopt(ctx, token)

				return token.AccessToken, nil
			}

			if ctx.Err() != nil {
				return "", ctx.Err()
			}

			m.logger.Warn("authorization code exchange failed", map[string]interface{}{
				"error": exchangeErr.Error(),
			})
		}

		select {
		case <-time.After(m.pollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// adopt caches the new access token and persists the pair.
func (m *Manager) adopt(ctx context.Context, token *Token) {
	m.store.Set(token.AccessToken)

	err := m.storage.StoreAccessToken(ctx, token.AccessToken)
	if err != nil {
		m.logger.Warn("storing access token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if token.RefreshToken == "" {
		return
	}

	err = m.storage.StoreRefreshToken(ctx, token.RefreshToken)
	if err != nil {
		m.logger.Warn("storing refresh token", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
