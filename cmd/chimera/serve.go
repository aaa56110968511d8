package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chimera/internal/runtime"
	srv "github.com/mohammad-safakhou/chimera/internal/server"
)

const version = "0.1.0"

func serveCMD() *cobra.Command {
	var addr string
	var migrateOnStart bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := bootstrap(ctx, "chimera-api")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				a.Close(shutdownCtx)
			}()

			if migrateOnStart && a.cfg.Storage.Postgres.Configured() {
				if err := srv.Migrate("file://migrations", a.cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
					return err
				}
			}
			secret, err := runtime.LoadJWTSecret(a.cfg)
			if errors.Is(err, runtime.ErrNoJWTSecret) {
				a.logger.Printf("admin api disabled: %v", err)
			} else if err != nil {
				return err
			}

			e := srv.New(srv.Deps{
				Config:    a.cfg,
				Pipeline:  a.pipeline,
				Ingester:  a.ingester,
				Registry:  a.registry,
				Store:     a.store,
				Redis:     a.redis,
				Telemetry: a.telemetry,
				JWTSecret: secret,
			})
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			return srv.Run(ctx, e, addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	serve.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply database migrations before serving")
	return serve
}
