// Package b24client provides the main entry point for creating Bitrix24 portal clients
package b24client

import (
	"context"
	"fmt"
	"os"

	"github.com/ainq-io/bitrix24-client/internal/client"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// New creates a new Bitrix24 portal client.
func New(ctx context.Context, config *bitrix24.Config) (bitrix24.Client, error) {
	if config == nil {
		return nil, bitrix24.ErrConfigRequired
	}

	// Only allow insecure TLS in explicit development environments
	if config.SkipTLSVerify && !isDevelopmentEnvironment() {
		return nil, fmt.Errorf("%w (set B24_DEV_MODE=true)", bitrix24.ErrSkipTLSOnlyInDev)
	}

	portalClient, err := client.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return portalClient, nil
}

// isDevelopmentEnvironment checks if we're in a development environment.
func isDevelopmentEnvironment() bool {
	devMode := os.Getenv("B24_DEV_MODE")

	return devMode == "true" || devMode == "1"
}

// NewWithToken creates a new client with a portal and an existing token pair.
// The refresh token may be empty when only short-lived access is needed.
func NewWithToken(ctx context.Context, portal, accessToken, refreshToken string) (bitrix24.Client, error) {
	return New(ctx, &bitrix24.Config{
		Portal:       portal,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// NewWithClientCredentials creates a new client using OAuth application
// credentials. Without seeded tokens the first call triggers the full
// authorization flow, so Config.AuthorizationCodes is usually wanted too.
func NewWithClientCredentials(ctx context.Context, portal, clientID, clientSecret string) (bitrix24.Client, error) {
	return New(ctx, &bitrix24.Config{
		Portal:       portal,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}
