package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/b24client"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// Common string constants used throughout the commands package.
const (
	// Output formats.
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"

	// Masked replaces secrets in rendered configuration.
	Masked = "***"
)

// resolvePortal returns the portal a command should act on: the --portal
// flag (or B24_PORTAL) wins, the configured current portal otherwise.
func resolvePortal(config *Config) string {
	if portal := viper.GetString("portal"); portal != "" {
		return portal
	}

	return config.CurrentPortal
}

// newPortalClient builds a full pipeline client for the effective portal,
// persisting tokens under the config directory. A nil codes provider falls
// back to the interactive console flow.
func newPortalClient(ctx context.Context, codes bitrix24.AuthorizationCodeProvider) (bitrix24.Client, string, error) {
	config := loadConfig()

	portal := resolvePortal(config)
	if portal == "" {
		return nil, "", constants.ErrNoPortalConfigured
	}

	portalConfig := config.Portals[portal]
	if portalConfig == nil {
		return nil, "", fmt.Errorf("portal %q: %w", portal, constants.ErrNotLoggedIn)
	}

	if codes == nil {
		codes = newConsoleCodeProvider(portal, portalConfig.ClientID)
	}

	tokenPath, err := tokenFilePath(portal)
	if err != nil {
		return nil, "", err
	}

	clientConfig := &bitrix24.Config{
		Portal:             portal,
		ClientID:           portalConfig.ClientID,
		ClientSecret:       portalConfig.ClientSecret,
		TokenURL:           portalConfig.TokenURL,
		Storage:            bitrix24.NewFileTokenStorage(tokenPath),
		AuthorizationCodes: codes,
	}

	if viper.GetBool("verbose") {
		clientConfig.Debug = true
		clientConfig.Logger = stderrLogger{}
	}

	client, err := b24client.New(ctx, clientConfig)
	if err != nil {
		return nil, "", err
	}

	return client, portal, nil
}

// stderrLogger writes pipeline logs to stderr for --verbose runs.
type stderrLogger struct{}

// Debug implements bitrix24.Logger.
func (stderrLogger) Debug(msg string, fields map[string]interface{}) { logLine("DEBUG", msg, fields) }

// Info implements bitrix24.Logger.
func (stderrLogger) Info(msg string, fields map[string]interface{}) { logLine("INFO", msg, fields) }

// Warn implements bitrix24.Logger.
func (stderrLogger) Warn(msg string, fields map[string]interface{}) { logLine("WARN", msg, fields) }

// Error implements bitrix24.Logger.
func (stderrLogger) Error(msg string, fields map[string]interface{}) { logLine("ERROR", msg, fields) }

func logLine(level, msg string, fields map[string]interface{}) {
	parts := make([]string, 0, len(fields))
	for _, key := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s=%v", key, fields[key]))
	}

	fmt.Fprintf(os.Stderr, "[%s] %s %s\n", level, msg, strings.Join(parts, " "))
}

// consoleCodeProvider walks an operator through the browser consent flow and
// reads the resulting authorization code from stdin.
type consoleCodeProvider struct {
	portal   string
	clientID string
	prompted bool
}

func newConsoleCodeProvider(portal, clientID string) *consoleCodeProvider {
	return &consoleCodeProvider{portal: portal, clientID: clientID}
}

// GetAuthorizationCode implements bitrix24.AuthorizationCodeProvider.
func (p *consoleCodeProvider) GetAuthorizationCode(ctx context.Context) (string, error) {
	if !p.prompted {
		fmt.Printf("Open the consent page to authorize this application:\n\n")
		fmt.Printf("    https://%s/oauth/authorize/?client_id=%s&response_type=code\n\n", p.portal, p.clientID)

		p.prompted = true
	}

	fmt.Print("Authorization code: ")

	reader := bufio.NewReader(os.Stdin)

	code, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading authorization code: %w", err)
	}

	return strings.TrimSpace(code), nil
}

// fetchProfile loads the current user profile, exercising the full token
// pipeline.
func fetchProfile(ctx context.Context, client bitrix24.Client) (bitrix24.Entity, error) {
	raw, err := client.Get(ctx, "profile")
	if err != nil {
		return nil, err
	}

	resp, err := bitrix24.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing profile response: %w", err)
	}

	var profile bitrix24.Entity
	if err := json.Unmarshal(resp.Result, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile response: %w", err)
	}

	return profile, nil
}

// profileName formats a display name from a profile record.
func profileName(profile bitrix24.Entity) string {
	name := strings.TrimSpace(profile.StringField("NAME") + " " + profile.StringField("LAST_NAME"))
	if name == "" {
		name = profile.StringField("EMAIL")
	}

	if name == "" {
		if id, ok := profile.ID(); ok {
			name = fmt.Sprintf("user %d", id)
		} else {
			name = "unknown user"
		}
	}

	return name
}

// renderJSON pretty-prints v to stdout.
func renderJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

// renderYAML prints v as YAML to stdout.
func renderYAML(v any) error {
	encoder := yaml.NewEncoder(os.Stdout)

	return encoder.Encode(v)
}

// sortedKeys returns map keys in sorted order for stable output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
