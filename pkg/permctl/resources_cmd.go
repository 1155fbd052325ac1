package permctl

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newResourcesCmd(opts *rootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:     "resources <catalog>",
		Short:   "Show the catalog resource tree with a subject's permissions",
		Example: `  permctl resources lakekeeper_demo --user alice`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return fmt.Errorf("--user is required")
			}

			path := fmt.Sprintf("/api/v1/catalogs/%s/resources?user=%s",
				url.PathEscape(args[0]), url.QueryEscape(user))
			var result map[string]interface{}
			if err := opts.client().Get(cmd.Context(), path, &result); err != nil {
				return err
			}
			return PrintJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user to resolve permissions for")
	return cmd
}
