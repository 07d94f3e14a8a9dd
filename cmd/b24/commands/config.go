package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ainq-io/bitrix24-client/internal/constants"
)

// Config represents the CLI configuration.
type Config struct {
	// Portals maps a portal hostname to its OAuth application settings.
	Portals map[string]*PortalConfig `json:"portals,omitempty"        yaml:"portals,omitempty"`

	// CurrentPortal selects the default portal for commands.
	CurrentPortal string `json:"current_portal,omitempty" yaml:"current_portal,omitempty"`

	// Global settings
	Output string `json:"output,omitempty"         yaml:"output,omitempty"`
}

// PortalConfig represents the OAuth application settings of a single portal.
type PortalConfig struct {
	Portal       string `json:"portal"                  yaml:"portal"`
	ClientID     string `json:"client_id,omitempty"     yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	TokenURL     string `json:"token_url,omitempty"     yaml:"token_url,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage b24 CLI configuration including portals and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskedConfig(loadConfig())

			output := viper.GetString("output")
			switch output {
			case OutputFormatJSON:
				return renderJSON(config)
			case OutputFormatYAML:
				return renderYAML(config)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Key", "Value")
				_ = table.Append("current_portal", config.CurrentPortal)
				_ = table.Append("output", config.Output)

				for _, host := range sortedKeys(config.Portals) {
					portal := config.Portals[host]
					prefix := "portals." + host
					_ = table.Append(prefix+".client_id", portal.ClientID)
					_ = table.Append(prefix+".client_secret", portal.ClientSecret)

					if portal.TokenURL != "" {
						_ = table.Append(prefix+".token_url", portal.TokenURL)
					}
				}

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  "Set a configuration value, e.g. current_portal, output or portals.<host>.client_id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := applyConfigValue(config, args[0], args[1])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			fmt.Printf("Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value or a whole portal entry (portals.<host>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			err := unsetConfigValue(config, args[0])
			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			fmt.Printf("Unset %s\n", args[0])

			return nil
		},
	}
}

// applyConfigValue sets one configuration key.
func applyConfigValue(config *Config, key, value string) error {
	switch key {
	case "current_portal":
		config.CurrentPortal = value
	case "output":
		config.Output = value
	default:
		portal, field, ok := splitPortalKey(key)
		if !ok {
			return fmt.Errorf("%q: %w", key, constants.ErrConfigKeyUnknown)
		}

		return applyPortalValue(config, portal, field, value)
	}

	return nil
}

// unsetConfigValue clears one configuration key. Unsetting portals.<host>
// removes the whole portal entry.
func unsetConfigValue(config *Config, key string) error {
	parts := strings.Split(key, ".")
	if len(parts) >= 2 && parts[0] == "portals" {
		host := strings.Join(parts[1:], ".")
		if _, exists := config.Portals[host]; exists {
			delete(config.Portals, host)

			return nil
		}
	}

	return applyConfigValue(config, key, "")
}

// splitPortalKey parses keys of the form portals.<host>.<field>. Portal
// hostnames contain dots, so the field is always the last segment.
func splitPortalKey(key string) (portal, field string, ok bool) {
	parts := strings.Split(key, ".")
	if len(parts) < 3 || parts[0] != "portals" {
		return "", "", false
	}

	field = parts[len(parts)-1]
	portal = strings.Join(parts[1:len(parts)-1], ".")

	return portal, field, true
}

func applyPortalValue(config *Config, portal, field, value string) error {
	portalConfig := config.Portals[portal]
	if portalConfig == nil {
		portalConfig = &PortalConfig{Portal: portal}
		config.Portals[portal] = portalConfig
	}

	switch field {
	case "client_id":
		portalConfig.ClientID = value
	case "client_secret":
		portalConfig.ClientSecret = value
	case "token_url":
		portalConfig.TokenURL = value
	default:
		return fmt.Errorf("%q: %w", field, constants.ErrConfigKeyUnknown)
	}

	return nil
}

// maskedConfig returns a copy of the configuration with secrets masked for
// display.
func maskedConfig(config *Config) *Config {
	masked := &Config{
		Portals:       make(map[string]*PortalConfig, len(config.Portals)),
		CurrentPortal: config.CurrentPortal,
		Output:        config.Output,
	}

	for host, portal := range config.Portals {
		copied := *portal
		if copied.ClientSecret != "" {
			copied.ClientSecret = Masked
		}

		masked.Portals[host] = &copied
	}

	return masked
}

// loadConfig reads the CLI configuration through viper.
func loadConfig() *Config {
	config := &Config{
		Portals:       make(map[string]*PortalConfig),
		CurrentPortal: viper.GetString("current_portal"),
		Output:        viper.GetString("output"),
	}

	for host, raw := range viper.GetStringMap("portals") {
		if portalMap, ok := raw.(map[string]interface{}); ok {
			config.Portals[host] = parsePortalConfig(host, portalMap)
		}
	}

	return config
}

func parsePortalConfig(host string, values map[string]interface{}) *PortalConfig {
	portalConfig := &PortalConfig{Portal: host}

	if v, ok := values["portal"].(string); ok && v != "" {
		portalConfig.Portal = v
	}

	if v, ok := values["client_id"].(string); ok {
		portalConfig.ClientID = v
	}

	if v, ok := values["client_secret"].(string); ok {
		portalConfig.ClientSecret = v
	}

	if v, ok := values["token_url"].(string); ok {
		portalConfig.TokenURL = v
	}

	return portalConfig
}

// configDirPath returns the CLI configuration directory, creating it if
// needed.
func configDirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".b24")

	err = os.MkdirAll(dir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return dir, nil
}

// tokenFilePath returns the token storage file for one portal.
func tokenFilePath(portal string) (string, error) {
	dir, err := configDirPath()
	if err != nil {
		return "", err
	}

	tokensDir := filepath.Join(dir, "tokens")

	err = os.MkdirAll(tokensDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create tokens directory: %w", err)
	}

	return filepath.Join(tokensDir, portal+".json"), nil
}

// saveConfigStruct writes the configuration back to the config file.
func saveConfigStruct(config *Config) error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		dir, err := configDirPath()
		if err != nil {
			return err
		}

		configFile = filepath.Join(dir, "config.yml")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
