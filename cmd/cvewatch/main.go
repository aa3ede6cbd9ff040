package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"CVEWatch/internal/app"
	"CVEWatch/internal/config"
	"CVEWatch/internal/logging"
	"CVEWatch/internal/query"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cvewatch",
		Short:         "Watch the NVD feed and answer CVE questions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("CVEWATCH_CONFIG", configPath)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the poller, the Discord bot and the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "query <question>",
			Short: "Print the NVD query string compiled from a question",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Load()
				logger := logging.New(cfg.Logging.Level)
				compiler, err := app.NewQueryCompiler(cfg, logger)
				if err != nil {
					return err
				}
				spec, err := compiler.Compile(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), query.Build(spec))
				return err
			},
		},
		&cobra.Command{
			Use:   "register-commands",
			Short: "Register the cve-search slash command with Discord",
			RunE: func(cmd *cobra.Command, args []string) error {
				registered, err := app.RegisterCommands(config.Load())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered /%s (%s)\n", registered.Name, registered.ID)
				return err
			},
		},
	)

	return root
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("application stopped")
	return nil
}
