package cli

import (
	"github.com/legit-games/user-registry/server"
	"github.com/spf13/cobra"
)

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "usermgmt",
		Short:   "User registry with role-based access control",
		Version: version,
		Long: `usermgmt serves the user registry REST API: accounts, roles and grants,
application registration and bulk signup, with a gateway in front of registered applications.

Configuration is read from USERREG_ environment variables (USERREG_DATABASE__DSN, ...) and,
when APP_CONFIG_FILES=true, from config/config.yaml and config/config.<APP_ENV>.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	return cmd
}

// loadConfig returns a fresh configuration so each command sees the current environment.
func loadConfig() *server.AppConfig {
	return server.LoadConfig()
}
