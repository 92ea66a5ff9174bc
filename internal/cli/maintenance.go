package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwizi/intakebot/internal/app"
	"github.com/dwizi/intakebot/internal/config"
)

func newRefreshCommand(logger *slog.Logger) *cobra.Command {
	var timeoutSec int
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reload boards, epics, contributors and links once",
		RunE: func(cmd *cobra.Command, args []string) error {
			maintenance, err := app.OpenMaintenance(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer maintenance.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), boundedTimeout(timeoutSec))
			defer cancel()
			result, err := maintenance.Refresh(ctx)
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"boards=%d epics=%d contributors=%d links=%d skipped_boards=%d\n",
				result.Boards, result.Epics, result.Contributors, result.Links, result.SkippedBoard,
			)
			return err
		},
	}
	cmd.Flags().IntVar(&timeoutSec, "timeout", 120, "refresh timeout in seconds")
	return cmd
}

func newStatesCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Inspect or clear stored wizard flows",
	}
	cmd.AddCommand(newStatesListCommand(logger))
	cmd.AddCommand(newStatesResetCommand(logger))
	return cmd
}

func newStatesListCommand(logger *slog.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active flows, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			maintenance, err := app.OpenMaintenance(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer maintenance.Close()

			flows, err := maintenance.ListFlows(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(flows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no active flows")
				return nil
			}
			writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(writer, "USER\tFLOW\tSTEP\tUPDATED")
			for _, flow := range flows {
				fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", flow.UserID, flow.Flow, flow.Step, time.Unix(flow.UpdatedAt, 0).UTC().Format(time.RFC3339))
			}
			return writer.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of flows to list")
	return cmd
}

func newStatesResetCommand(logger *slog.Logger) *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete flows without --yes")
			}
			maintenance, err := app.OpenMaintenance(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer maintenance.Close()

			removed, err := maintenance.ResetFlows(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d flows\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm deletion")
	return cmd
}

func boundedTimeout(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 120
	}
	if seconds > 900 {
		seconds = 900
	}
	return time.Duration(seconds) * time.Second
}
