package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ainq-io/bitrix24-client/internal/constants"
	"github.com/ainq-io/bitrix24-client/pkg/bitrix24"
)

// NewLeadsCommand creates the leads command group
func NewLeadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "leads",
		Aliases: []string{"lead"},
		Short:   "Work with CRM leads",
		Long:    "List and inspect CRM leads",
	}

	cmd.AddCommand(newLeadsListCommand())
	cmd.AddCommand(newLeadsGetCommand())

	return cmd
}

func newLeadsListCommand() *cobra.Command {
	var (
		filters      []string
		selectFields []string
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Long:  "List CRM leads, optionally filtered and narrowed to selected fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &bitrix24.ListOptions{Select: selectFields}

			if len(filters) > 0 {
				opts.Filter = make(map[string]any, len(filters))

				for _, filter := range filters {
					key, value, found := strings.Cut(filter, "=")
					if !found || key == "" {
						return fmt.Errorf("%q: %w", filter, constants.ErrInvalidFilterArgument)
					}

					opts.Filter[key] = value
				}
			}

			client, _, err := newPortalClient(cmd.Context(), nil)
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			var (
				leads   []bitrix24.Entity
				hasMore bool
			)

			if all {
				leads, err = client.Leads().ListAll(cmd.Context(), opts)
				if err != nil {
					return err
				}
			} else {
				page, err := client.Leads().List(cmd.Context(), opts)
				if err != nil {
					return err
				}

				leads = page.Items
				hasMore = page.HasMore
			}

			output := viper.GetString("output")
			switch output {
			case OutputFormatJSON:
				return renderJSON(leads)
			case OutputFormatYAML:
				return renderYAML(leads)
			default:
				if len(leads) == 0 {
					fmt.Println("No leads found")

					return nil
				}

				table := tablewriter.NewWriter(os.Stdout)
				table.Header("ID", "Title", "Status", "Created")

				for _, lead := range leads {
					_ = table.Append(lead.StringField("ID"), lead.StringField("TITLE"),
						lead.StringField("STATUS_ID"), lead.StringField("DATE_CREATE"))
				}

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				if hasMore {
					fmt.Println("More leads available, pass --all to fetch every page")
				}

				return nil
			}
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter as FIELD=VALUE (repeatable)")
	cmd.Flags().StringSliceVar(&selectFields, "select", nil, "fields to return")
	cmd.Flags().BoolVar(&all, "all", false, "follow paging to fetch every match")

	return cmd
}

func newLeadsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get one lead",
		Long:  "Fetch a single CRM lead by its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], constants.ErrInvalidLeadID)
			}

			client, _, err := newPortalClient(cmd.Context(), nil)
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			lead, err := client.Leads().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			output := viper.GetString("output")
			switch output {
			case OutputFormatJSON:
				return renderJSON(lead)
			case OutputFormatYAML:
				return renderYAML(lead)
			default:
				table := tablewriter.NewWriter(os.Stdout)
				table.Header("Field", "Value")

				for _, name := range sortedKeys(lead) {
					_ = table.Append(name, fmt.Sprintf("%v", lead[name]))
				}

				if err := table.Render(); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			}
		},
	}
}
