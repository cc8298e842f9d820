package cli

import (
	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Create the SQLite database if it does not exist and bring its schema
up to date. Safe to run repeatedly.

Example:
  fitsync migrate --config ./fitsync.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, f, err := rootOpts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			path := a.Config.Database.Path
			return f.Result(map[string]string{"database": path, "status": "ready"}, "database ready: "+path)
		},
	}
}
