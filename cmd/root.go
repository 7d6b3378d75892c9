// Package cmd holds the socialfeed command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/utils"
)

var (
	configPath string
	appCfg     config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "socialfeed",
	Short: "Social graph and feed GraphQL service",
	Long: `socialfeed serves a GraphQL API for users, posts, comments, likes and a
follow graph. Without a subcommand it runs the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appCfg = c
		return utils.InitLogger(appCfg)
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to the JSON config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, reconcileCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
