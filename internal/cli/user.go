package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/app"
	"github.com/roach88/tablesync/internal/store"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage sync users",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		database      string
		account       string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Add a user to an account, creating the account if needed",
		Example:       `  tablesync user add ann --account acme --password-stdin < pw.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return WrapExitError(ExitCommandError, "failed to read password from stdin", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return NewExitError(ExitCommandError, "a password is required (--password or --password-stdin)")
			}
			if account == "" {
				account = args[0]
			}

			path, err := databasePath(rootOpts, database)
			if err != nil {
				return err
			}
			st, err := store.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			id, err := app.AddUser(cmd.Context(), st, account, args[0], password)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to add user", err)
			}

			out := rootOpts.formatter(cmd)
			if out.Format == "json" {
				return out.Success(map[string]any{"user": args[0], "account": account, "account_id": int64(id)})
			}
			return out.Success(fmt.Sprintf("Added user %s to account %s (id %d)", args[0], account, id))
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&account, "account", "", "account name (defaults to the user name)")
	cmd.Flags().StringVar(&password, "password", "", "password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
