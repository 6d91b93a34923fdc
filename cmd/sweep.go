package main

import (
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete rosters whose event is older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		ids, err := a.svc.SweepExpired(cmd.Context(), a.cfg.Engine.Retention())
		if err != nil {
			return printer.Error("Sweep failed", err.Error())
		}
		if len(ids) == 0 {
			printer.Info("No rosters older than %d days", a.cfg.Engine.RetentionDays)
			return nil
		}
		for _, id := range ids {
			printer.Info("  %s", id)
		}
		printer.Success("Removed %d expired rosters", len(ids))
		return nil
	},
}
