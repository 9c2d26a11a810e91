package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/pkg/schema"
)

// cli carries what every subcommand needs once settings are loaded.
type cli struct {
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "erdstudio",
		Short: "Turn SQLite databases and plain descriptions into ER diagrams",
		Long: `erdstudio reads a SQLite database or a description of an application,
asks a generative model for a Mermaid erDiagram, renders it and exports SVG,
PNG or JPG. It also runs as a web studio (serve) or an MCP server (mcp).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "version", "lint", "completion", "__complete":
				return nil
			}
			return c.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "settings file (default: ~/.erdstudio/settings.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().String("log-format", "", "log format (text|json)")

	_ = root.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newVersionCmd(),
		newGenerateCmd(c),
		newScaffoldCmd(c),
		newRenderCmd(c),
		newLintCmd(),
		newWatchCmd(c),
		newServeCmd(c),
		newMCPCmd(c),
		newActivityCmd(c),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.cfgFile, cmd.Flags(), os.LookupEnv)
	if err != nil {
		return err
	}
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if cfg.File != "" {
		logger.Debug("settings loaded", slog.String("file", cfg.File))
	}
	c.cfg, c.logger = cfg, logger
	return nil
}

// describeError renders err for the terminal. Structured errors show their
// code and the short user message.
func describeError(err error) string {
	var erdErr *schema.ErdError
	if !errors.As(err, &erdErr) {
		return err.Error()
	}
	msg := erdErr.Code + ": " + schema.UserMessage(err)
	if erdErr.Message != "" && erdErr.Code != schema.ErrCodeInvalidSyntax {
		msg += "\n  " + erdErr.Message
	}
	if violations, ok := erdErr.Details["violations"].([]string); ok && len(violations) > 1 {
		for _, v := range violations {
			msg += "\n  - " + v
		}
	}
	return msg
}
