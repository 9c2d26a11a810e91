package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/scheduler"
	"github.com/rendis/erdstudio/internal/server"
	"github.com/rendis/erdstudio/internal/streaming"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web studio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :8080)")
	cmd.Flags().String("db-path", "", "activity database path")
	cmd.Flags().String("extract-mode", "", "how databases are summarized (ddl|names)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	st, rec, closeRec, err := c.openRecorder(ctx)
	if err != nil {
		return err
	}
	defer closeRec()

	stg, err := c.stages(nil)
	if err != nil {
		return err
	}

	hub := streaming.NewMemoryHub()
	sessions := pipeline.NewRegistry(func(id string) (*pipeline.Controller, error) {
		return stg.controller(id, rec, hub, c.logger)
	}, pipeline.DefaultMaxSessions)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sessions.Close(closeCtx)
	}()

	sched, err := scheduler.NewScheduler(c.cfg.Maintenance.Schedule,
		scheduler.MaintenanceJobs(st, c.cfg.Activity.Keep, c.logger), c.logger)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	secret := c.cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		c.logger.Warn("session_secret not set, generated one for this process; sessions end on restart")
	}

	srv, err := server.New(server.Config{
		Addr:          c.cfg.ListenAddr,
		SessionSecret: secret,
		SecureCookies: c.cfg.SecureCookies,
		Sessions:      sessions,
		Hub:           hub,
		Activity:      st,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	c.logger.Info("web studio ready", slog.String("url", "http://localhost"+c.cfg.ListenAddr))
	return srv.Serve(ctx)
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
