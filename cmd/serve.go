package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/routes"
	"github.com/cppla/socialfeed/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the schema and run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(appCfg, appCfg.BootstrapFriends)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			utils.Logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := config.Migrate(a.db); err != nil {
		return err
	}
	r, err := routes.SetupRouter(appCfg, a.svc, a.rc)
	if err != nil {
		return err
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", appCfg.AppPort)
	return utils.GraceServer(cmd.Context(), ":"+appCfg.AppPort, r, utils.ServerOptions{
		ShutdownTimeout: appCfg.ShutdownTimeout,
	})
}
