package cmd

import (
	"github.com/spf13/cobra"

	"echoframe/internal/config"
	"echoframe/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		return persistence.NewMigrationManager(db).Migrate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
