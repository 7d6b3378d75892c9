package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := config.OpenDatabase(appCfg)
		if err != nil {
			return err
		}
		defer config.CloseDatabase(db)
		if err := config.Migrate(db); err != nil {
			return err
		}
		utils.Sugar.Info("migration complete")
		return nil
	},
}
