package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// NewFieldsCommand creates the fields command
func NewFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <entity>",
		Short: "Show the field schema of a CRM entity",
		Long:  "Fetch the crm.{entity}.fields schema for lead, deal or contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newPortalClient(cmd.Context(), nil)
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			entityClient, err := entityClientFor(client, args[0])
			if err != nil {
				return err
			}

			fields, err := entityClient.Fields(cmd.Context())
			if err != nil {
				return err
			}

			output := viper.GetString("output")
			switch output {
			case OutputFormatJSON:
				return renderJSON(fields)
			case OutputFormatYAML:
				return renderYAML(fields)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Field", "Type", "Required", "Read only", "Multiple", "Title")

				for _, name := range sortedKeys(fields) {
					field := fields[name]
					_ = table.Append(name, field.Type, boolWord(field.IsRequired),
						boolWord(field.IsReadOnly), boolWord(field.IsMultiple), field.Title)
				}

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			}
		},
	}
}

// entityClientFor maps an entity name to its client.
func entityClientFor(client bitrix24.Client, entity string) (bitrix24.EntityClient, error) {
	switch strings.ToLower(strings.TrimSpace(entity)) {
	case "lead", "leads":
		return client.Leads(), nil
	case "deal", "deals":
		return client.Deals(), nil
	case "contact", "contacts":
		return client.Contacts(), nil
	case "":
		return nil, constants.ErrEntityRequired
	default:
		return nil, fmt.Errorf("%q: %w", entity, constants.ErrUnknownEntity)
	}
}

func boolWord(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
