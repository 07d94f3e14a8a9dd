package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// NewCallCommand creates the call command
func NewCallCommand() *cobra.Command {
	var (
		data     string
		priority int
	)

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: "Call a raw REST method",
		Long: `Invoke any portal REST method by name, e.g. crm.lead.fields.

A JSON object passed with --data turns the call into a POST; without it the
method is issued as a GET.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.TrimSpace(args[0])
			if method == "" {
				return constants.ErrMethodRequired
			}

			var body any

			if data != "" {
				payload := map[string]any{}
				if err := json.Unmarshal([]byte(data), &payload); err != nil {
					return fmt.Errorf("%w: %w", constants.ErrInvalidDataArgument, err)
				}

				body = payload
			}

			client, _, err := newPortalClient(cmd.Context(), nil)
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			raw, err := client.Do(cmd.Context(), bitrix24.Request{Method: method, Body: body, Priority: priority})
			if err != nil {
				return err
			}

			resp, err := bitrix24.DecodeResponse(raw)
			if err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			var result any
			if len(resp.Result) > 0 {
				if err := json.Unmarshal(resp.Result, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
			}

			output := viper.GetString("output")
			if output == OutputFormatYAML {
				return renderYAML(result)
			}

			// Arbitrary result documents render as JSON
			return renderJSON(result)
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object to send as the request body")
	cmd.Flags().IntVar(&priority, "priority", 0, "dispatch priority when the dispatcher is enabled")

	return cmd
}
