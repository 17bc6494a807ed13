package cmd

import (
	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/repositories"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.InitDB(cfg.DB, cfg.Debug)
		if err != nil {
			return err
		}
		if err := repositories.Migrate(db); err != nil {
			return err
		}
		logging.Info().Msg("schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
