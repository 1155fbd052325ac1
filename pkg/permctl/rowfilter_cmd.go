package permctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRowFilterCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "row-filter",
		Short: "Manage attribute-based row filter policies",
	}
	cmd.AddCommand(
		newRowFilterGrantCmd(opts),
		newRowFilterRevokeCmd(opts),
		newRowFilterListCmd(opts),
	)
	return cmd
}

func rowFilterBody(subject subjectFlags, resource resourceFlags, attribute string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":        subject.User,
		"user_type":      subject.UserType,
		"resource":       resource,
		"attribute_name": attribute,
	}
}

func requireTable(resource resourceFlags) error {
	if resource.Catalog == "" || resource.Schema == "" || resource.Table == "" {
		return fmt.Errorf("--catalog, --schema, and --table are required")
	}
	return nil
}

func newRowFilterGrantCmd(opts *rootOptions) *cobra.Command {
	var (
		subject   subjectFlags
		resource  resourceFlags
		attribute string
		values    []string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant row-level visibility on an attribute",
		Example: `  permctl row-filter grant --user alice --catalog lakekeeper_demo \
    --schema finance --table user --attribute region --values north,south
  permctl row-filter grant --user bob --catalog lakekeeper_demo \
    --schema finance --table user --attribute region --values '*'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if err := requireTable(resource); err != nil {
				return err
			}
			if attribute == "" || len(values) == 0 {
				return fmt.Errorf("--attribute and --values are required")
			}

			body := rowFilterBody(subject, resource, attribute)
			body["allowed_values"] = values

			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/row-filter/grant", body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	cmd.Flags().StringVar(&attribute, "attribute", "", "row attribute the policy filters on")
	cmd.Flags().StringSliceVar(&values, "values", nil, "attribute values the subject may see ('*' for all)")
	return cmd
}

func newRowFilterRevokeCmd(opts *rootOptions) *cobra.Command {
	var (
		subject   subjectFlags
		resource  resourceFlags
		attribute string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a subject's row filter policy grant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if err := requireTable(resource); err != nil {
				return err
			}
			if attribute == "" {
				return fmt.Errorf("--attribute is required")
			}

			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/row-filter/revoke",
				rowFilterBody(subject, resource, attribute), &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	cmd.Flags().StringVar(&attribute, "attribute", "", "row attribute the policy filters on")
	return cmd
}

func newRowFilterListCmd(opts *rootOptions) *cobra.Command {
	var (
		subject  subjectFlags
		resource resourceFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the row filter policies visible to a subject on a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if err := requireTable(resource); err != nil {
				return err
			}

			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/row-filter/list",
				rowFilterBody(subject, resource, ""), &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	return cmd
}
