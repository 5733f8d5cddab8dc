package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Create or upgrade the database schema",
		Example:       `  tablesync migrate --db ./tablesync.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := databasePath(rootOpts, database)
			if err != nil {
				return err
			}

			st, err := store.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			version, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read schema version", err)
			}

			out := rootOpts.formatter(cmd)
			if out.Format == "json" {
				return out.Success(map[string]any{"database": path, "schema_version": version})
			}
			return out.Success(fmt.Sprintf("%s is at schema version %d", path, version))
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (overrides config)")
	return cmd
}

// databasePath returns the --db flag value, or the configured database.
func databasePath(rootOpts *RootOptions, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Database, nil
}
