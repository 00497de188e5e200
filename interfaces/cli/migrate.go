package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diary-backend/infrastructure/di"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

// runMigrate relies on the store applying pending migrations when opened
func runMigrate(cmd *cobra.Command, args []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		version, err := c.DB.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", c.Config.DatabasePath, version)
		return nil
	})
}
