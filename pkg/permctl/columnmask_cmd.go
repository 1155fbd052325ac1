package permctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newColumnMaskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column-mask",
		Short: "Manage column mask assignments",
	}
	cmd.AddCommand(
		newColumnMaskWriteCmd(opts, "grant", "Mask a column for a subject", "/api/v1/column-mask/grant"),
		newColumnMaskWriteCmd(opts, "revoke", "Unmask a column for a subject", "/api/v1/column-mask/revoke"),
		newColumnMaskListCmd(opts),
	)
	return cmd
}

func newColumnMaskWriteCmd(opts *rootOptions, use, short, path string) *cobra.Command {
	var (
		subject  subjectFlags
		resource resourceFlags
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: fmt.Sprintf(`  permctl column-mask %s --user alice --catalog lakekeeper_demo \
    --schema finance --table user --column email`, use),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if err := requireTable(resource); err != nil {
				return err
			}
			if resource.Column == "" {
				return fmt.Errorf("--column is required")
			}

			body := map[string]interface{}{
				"user_id":   subject.User,
				"user_type": subject.UserType,
				"resource":  resource,
			}
			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), path, body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	return cmd
}

func newColumnMaskListCmd(opts *rootOptions) *cobra.Command {
	var (
		subject  subjectFlags
		resource resourceFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a subject's masked columns on a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if err := requireTable(resource); err != nil {
				return err
			}

			body := map[string]interface{}{
				"user_id":   subject.User,
				"user_type": subject.UserType,
				"resource":  resource,
			}
			var result map[string]interface{}
			if err := opts.client().Post(cmd.Context(), "/api/v1/column-mask/list", body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	return cmd
}
