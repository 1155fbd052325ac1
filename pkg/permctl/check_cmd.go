package permctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		subject   subjectFlags
		resource  resourceFlags
		operation string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a subject may perform a Trino operation",
		Example: `  permctl check --user alice --operation SelectFromColumns \
    --catalog lakekeeper_demo --schema finance --table user`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := subject.validate(); err != nil {
				return err
			}
			if operation == "" {
				return fmt.Errorf("--operation is required")
			}

			body := map[string]interface{}{
				"user_id":   subject.User,
				"user_type": subject.UserType,
				"operation": operation,
				"resource":  resource,
			}
			var result struct {
				Allowed bool `json:"allowed"`
			}
			if err := opts.client().Post(cmd.Context(), "/api/v1/permissions/check", body, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	subject.register(cmd.Flags())
	resource.register(cmd.Flags())
	cmd.Flags().StringVar(&operation, "operation", "", "Trino operation name (e.g. SelectFromColumns)")
	return cmd
}
