package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/pipeline"
	"github.com/rendis/erdstudio/internal/streaming"
	"github.com/rendis/erdstudio/internal/validation"
	erdmcp "github.com/rendis/erdstudio/pkg/mcp"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the diagram tools over MCP on stdio",
		Long: `mcp speaks the Model Context Protocol on stdin and stdout. Logs go to
stderr so they never mix with protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, rec, closeRec, err := c.openRecorder(ctx)
			if err != nil {
				return err
			}
			defer closeRec()

			stg, err := c.stages(nil)
			if err != nil {
				return err
			}
			v, err := validation.NewJSONSchemaValidator()
			if err != nil {
				return err
			}

			hub := streaming.NewMemoryHub()
			sessions := pipeline.NewRegistry(func(id string) (*pipeline.Controller, error) {
				return stg.controller(id, rec, hub, c.logger)
			}, pipeline.DefaultMaxSessions)
			defer sessions.Close(context.WithoutCancel(ctx))

			srv := erdmcp.NewErdServer(erdmcp.ErdServerDeps{
				Sessions:  sessions,
				Activity:  st,
				Hub:       hub,
				Validator: v,
				Version:   version,
				Logger:    c.logger,
			})
			c.logger.Info("mcp server ready", "transport", "stdio")
			return srv.Serve(ctx)
		},
	}
}
