package cli

import (
	"github.com/legit-games/user-registry/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var target int64
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status|version|up-to|down-to|redo|reset]",
		Short:     "Apply or inspect schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version", "up-to", "down-to", "redo", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			logger := cfg.NewLogger()
			if err := migrate.Run(migrate.Options{
				Driver:  cfg.Database.Driver,
				DSN:     cfg.Database.DSN,
				Command: command,
				Target:  target,
				Logger:  logger,
			}); err != nil {
				return err
			}
			logger.Info("migrate completed", "command", command)
			return nil
		},
	}
	cmd.Flags().Int64Var(&target, "target", 0, "version for up-to and down-to")
	return cmd
}
