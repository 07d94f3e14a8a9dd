package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		authCode     string
	)

	cmd := &cobra.Command{
		Use:   "login [portal]",
		Short: "Log in to a Bitrix24 portal",
		Long: `Authorize against a portal's OAuth application and persist the token pair.

The portal and application credentials are stored in the CLI configuration;
tokens are kept in a separate file per portal under the config directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Get the portal
			portal := ""
			if len(args) > 0 {
				portal = args[0]
			}

			if portal == "" {
				portal = viper.GetString("portal")
			}

			if portal == "" {
				portal = promptLine("Portal (e.g. example.bitrix24.com): ")
			}

			portal = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(portal, "https://"), "/"))
			if portal == "" {
				return constants.ErrPortalRequired
			}

			config := loadConfig()
			existing := config.Portals[portal]

			// Reuse stored credentials unless overridden
			if clientID == "" && existing != nil {
				clientID = existing.ClientID
			}

			if clientID == "" {
				clientID = promptLine("Client ID: ")
			}

			if clientID == "" {
				return constants.ErrClientIDRequired
			}

			if clientSecret == "" && existing != nil {
				clientSecret = existing.ClientSecret
			}

			if clientSecret == "" {
				fmt.Print("Client secret: ")

				byteSecret, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read client secret: %w", err)
				}

				clientSecret = strings.TrimSpace(string(byteSecret))

				fmt.Println()
			}

			if clientSecret == "" {
				return constants.ErrClientSecretRequired
			}

			// Persist the portal configuration before authorizing
			portalConfig := &PortalConfig{Portal: portal, ClientID: clientID, ClientSecret: clientSecret}
			if existing != nil {
				portalConfig.TokenURL = existing.TokenURL
			}

			config.Portals[portal] = portalConfig
			config.CurrentPortal = portal

			err := saveConfigStruct(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			// A pasted --code short-circuits the interactive consent flow
			var codes bitrix24.AuthorizationCodeProvider
			if authCode != "" {
				codes = bitrix24.NewStaticCodeProvider(authCode)
			}

			client, _, err := newPortalClient(cmd.Context(), codes)
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			defer func() { _ = client.Close() }()

			// Verify by loading the profile through the full pipeline
			profile, err := fetchProfile(cmd.Context(), client)
			if err != nil {
				return fmt.Errorf("verifying login: %w", err)
			}

			fmt.Printf("Logged in to %s as %s\n", portal, profileName(profile))

			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth application client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth application client secret")
	cmd.Flags().StringVar(&authCode, "code", "", "authorization code obtained from the consent page")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of a Bitrix24 portal",
		Long:  "Remove the stored token pair for the effective portal; application credentials stay configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			portal := resolvePortal(config)
			if portal == "" {
				return constants.ErrNoPortalConfigured
			}

			tokenPath, err := tokenFilePath(portal)
			if err != nil {
				return err
			}

			err = os.Remove(tokenPath)
			if err != nil {
				if os.IsNotExist(err) {
					return constants.ErrNotLoggedIn
				}

				return fmt.Errorf("failed to remove token file: %w", err)
			}

			fmt.Printf("Logged out of %s\n", portal)

			return nil
		},
	}
}

// promptLine reads one trimmed line from stdin.
func promptLine(prompt string) string {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')

	return strings.TrimSpace(line)
}
