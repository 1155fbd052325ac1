package permctl

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// rootOptions carries the global flags down to the subcommands.
type rootOptions struct {
	host  string
	token string
}

func (o *rootOptions) client() *Client {
	return NewClient(o.host, o.token)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "permctl",
		Short:         "Manage Trino permissions, row filters, and column masks",
		Long:          "Command-line interface for the permission service administrative API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("PERMCTL_HOST"); v != "" {
					opts.host = v
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("PERMCTL_TOKEN"); v != "" {
					opts.token = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.host, "host", "http://localhost:8000", "API host URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Bearer token for the admin API")

	rootCmd.AddCommand(
		newCheckCmd(opts),
		newGrantCmd(opts),
		newRevokeCmd(opts),
		newRowFilterCmd(opts),
		newColumnMaskCmd(opts),
		newResourcesCmd(opts),
	)
	return rootCmd
}

// resourceFlags is the loose resource naming shared by most commands.
type resourceFlags struct {
	Role    string `json:"role_name,omitempty"`
	Project string `json:"project_name,omitempty"`
	Catalog string `json:"catalog_name,omitempty"`
	Schema  string `json:"schema_name,omitempty"`
	Table   string `json:"table_name,omitempty"`
	Column  string `json:"column_name,omitempty"`
}

func (f *resourceFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.Role, "role", "", "role name")
	flags.StringVar(&f.Project, "project", "", "project name")
	flags.StringVar(&f.Catalog, "catalog", "", "catalog name")
	flags.StringVar(&f.Schema, "schema", "", "schema name")
	flags.StringVar(&f.Table, "table", "", "table name")
	flags.StringVar(&f.Column, "column", "", "column name")
}

// subjectFlags is the user_id/user_type pair shared by most commands.
type subjectFlags struct {
	User     string
	UserType string
}

func (f *subjectFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.User, "user", "", "subject: a user name, or a userset like role:analyst#assignee")
	flags.StringVar(&f.UserType, "user-type", "user", "subject kind: user or userset")
}

func (f *subjectFlags) validate() error {
	if f.User == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}
