package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// Static errors for err113 compliance.
var (
	ErrNoAccessTokenInResponse = errors.New("token response has no access token")
	ErrTokenEndpointFailed     = errors.New("token endpoint request failed")
)

// OAuthConfig holds the token endpoint coordinates of one portal
// application.
type OAuthConfig struct {
	// TokenURL is the full token endpoint, e.g.
	// "https://example.bitrix24.com/oauth/token/".
	TokenURL string

	// ClientID identifies the OAuth application.
	ClientID string

	// ClientSecret authenticates the OAuth application.
	ClientSecret string

	// HTTPClient overrides the default client used for token requests.
	HTTPClient *http.Client
}

// OAuthClient exchanges authorization codes and refresh tokens for token
// pairs via form-encoded POSTs to the token endpoint.
type OAuthClient struct {
	config     *OAuthConfig
	httpClient *http.Client
}

// NewOAuthClient creates a token endpoint client.
func NewOAuthClient(config *OAuthConfig) *OAuthClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultOAuthTimeout}
	}

	return &OAuthClient{
		config:     config,
		httpClient: httpClient,
	}
}

// ExchangeCode trades a fresh authorization code for a token pair.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("code", code)

	return c.requestToken(ctx, form)
}

// RefreshToken trades a refresh token for a fresh token pair. Refresh
// tokens rotate: the response carries the replacement.
func (c *OAuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("refresh_token", refreshToken)

	return c.requestToken(ctx, form)
}

func (c *OAuthClient) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		oauthErr := &bitrix24.OAuthError{}
		if json.Unmarshal(body, oauthErr) == nil && oauthErr.Code != "" {
			return nil, fmt.Errorf("%w: %w", ErrTokenEndpointFailed, oauthErr)
		}

		return nil, fmt.Errorf("%w: status %d", ErrTokenEndpointFailed, resp.StatusCode)
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	if token.AccessToken == "" {
		return nil, ErrNoAccessTokenInResponse
	}

	return &token, nil
}
