package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild the follow adjacency cache from the follows table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appCfg, appCfg.BootstrapFriends)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.rc == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "redis disabled, nothing to rebuild")
			return nil
		}
		n, err := a.svc.Follow.RebuildAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rebuilt adjacency for %d users\n", n)
		return nil
	},
}
