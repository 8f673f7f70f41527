package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/user-registry/migrate"
	"github.com/legit-games/user-registry/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr         string
		migrateFirst bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if migrateFirst {
				cfg.Migrate.OnStart = true
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func runServe(parent context.Context, cfg *server.AppConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Migrate.OnStart {
		if err := migrate.Run(migrate.Options{
			Driver: cfg.Database.Driver,
			DSN:    cfg.Database.DSN,
			Logger: logger.With("component", "migrate"),
		}); err != nil {
			return err
		}
	}

	d, err := openDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	srv, err := newServer(cfg, d, logger)
	if err != nil {
		return err
	}
	router := server.NewGinEngine(srv)
	go purgeTokens(ctx, d.tokens, time.Hour, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", "addr", cfg.HTTP.Addr, "env", cfg.Env, "acl", cfg.ACL.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
		return err
	}
	return nil
}
