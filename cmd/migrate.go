package main

import (
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/guild-roster/internal/printer"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the roster store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		a := &app{cfg: cfg, log: log}
		defer a.close()

		printer.Step("Migrating %s store", cfg.Store.Driver)
		if err := openStore(cmd.Context(), a, true); err != nil {
			return err
		}
		printer.Success("Schema is up to date")
		return nil
	},
}
