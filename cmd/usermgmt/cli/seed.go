package cli

import (
	"fmt"

	"github.com/legit-games/user-registry/seed"
	"github.com/legit-games/user-registry/server"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin role and the administrator account",
		Long: `seed grants the admin role every permission on every protected route and makes sure the
account named by admin.username exists and holds it. admin.email and admin.password are
needed the first time. Running it again after an upgrade grants routes added since.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := cfg.NewLogger()
			d, err := openDeps(cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			// only the route table is needed here
			routes := server.NewGinEngine(server.NewServer(cfg, server.Options{Logger: logger}))
			u, err := seed.Run(cmd.Context(), d.users, d.acl, seed.Options{
				Username:  cfg.Admin.Username,
				Email:     cfg.Admin.Email,
				Password:  cfg.Admin.Password,
				Resources: server.ProtectedResources(routes),
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s) ready\n", u.Username, u.ID)
			return nil
		},
	}
}
