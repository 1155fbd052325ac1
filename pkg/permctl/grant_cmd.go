package permctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantCmd(opts *rootOptions) *cobra.Command {
	var (
		subject       subjectFlags
		resource      resourceFlags
		condAttribute string
		condValues    []string
	)

	cmd := &cobra.Command{
		Use:   "grant <relation>",
		Short: "Grant a permission relation on a resource",
		Long: `Grant a permission relation (select, describe, create, modify,
manage_grants, mask) to a user or userset on a resource.`,
		Example: `  permctl grant select --user alice --catalog prod --schema public --table orders
  permctl grant describe --user role:analyst#assignee --user-type userset --catalog prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := subject.validate(); err != nil {
				return err
			}

			body := map[string]interface{}{
				"user_id":   subject.User,
				"user_type": subject.UserType,
				"relation":  args[0],
				"resource":  resource,
			}
			if condAttribute != "" || len(condValues) > 0 {
				if condAttribute == "" || len(condValues) == 0 {
					return fmt.Errorf("--condition-attribute and --condition-values go together")
				}
				body["condition"] = map[string]interface{}{
					"attribute_name": condAttribute,
					"allowed_values": condValues,
				}
			}

			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/permissions/grant", body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	cmd.Flags().StringVar(&condAttribute, "condition-attribute", "", "attribute name for a conditioned grant")
	cmd.Flags().StringSliceVar(&condValues, "condition-values", nil, "allowed values for a conditioned grant")
	return cmd
}

func newRevokeCmd(opts *rootOptions) *cobra.Command {
	var (
		subject  subjectFlags
		resource resourceFlags
	)

	cmd := &cobra.Command{
		Use:     "revoke <relation>",
		Short:   "Revoke a permission relation on a resource",
		Example: `  permctl revoke select --user alice --catalog prod --schema public --table orders`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := subject.validate(); err != nil {
				return err
			}

			body := map[string]interface{}{
				"user_id":   subject.User,
				"user_type": subject.UserType,
				"relation":  args[0],
				"resource":  resource,
			}
			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/permissions/revoke", body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	return cmd
}
