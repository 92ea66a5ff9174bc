package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/intakebot/internal/app"
	"github.com/dwizi/intakebot/internal/config"
	"github.com/dwizi/intakebot/internal/envsync"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "intakebot",
		Short:         "Intakebot turns Telegram conversations into Jira tickets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			result, err := envsync.Load(envFile)
			if err != nil {
				return err
			}
			if !result.Skipped {
				logger.Debug("env file applied", "path", result.EnvPath, "keys", len(result.AppliedKeys))
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "KEY=VALUE file applied before reading configuration")

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newRefreshCommand(logger))
	root.AddCommand(newStatesCommand(logger))
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram poller, wizard workers and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			runtime, err := app.New(cfg, version, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
