package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace all data with the demo users, posts and follow graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		// the demo follow graph is explicit, so no auto-friending here
		a, err := newApp(appCfg, 0)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := config.Migrate(a.db); err != nil {
			return err
		}
		sum, err := seed.Run(cmd.Context(), a.db, a.svc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", sum)
		return nil
	},
}
