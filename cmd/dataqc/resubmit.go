package main

import (
	"context"

	"github.com/spf13/cobra"
)

var resubmitCmd = &cobra.Command{
	Use:   "resubmit",
	Short: "Drain the anomaly spool into the ticket store and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.coordinator.Resubmit(context.Background())
		if err != nil {
			return err
		}
		a.logger.Info("resubmission complete", "submitted", n)
		return nil
	},
}
