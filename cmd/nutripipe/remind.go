package main

import (
	"fmt"

	"github.com/BTreeMap/NutriPipe/internal/api"
	"github.com/BTreeMap/NutriPipe/internal/lockfile"
	"github.com/BTreeMap/NutriPipe/internal/reminder"
	"github.com/spf13/cobra"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send the water reminder to every registered user once, then exit",
	Long: "remind runs a single reminder sweep. It takes the state directory lock, so while " +
		"`nutripipe run` is up use POST /api/reminders/sweep instead.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateTransport(); err != nil {
			return err
		}
		lock, err := lockfile.Acquire(cfg.StateDir, cfg.Transport)
		if err != nil {
			return err
		}
		defer lock.Release()

		st, err := api.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		tr, err := api.OpenTransport(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer tr.Close()

		tally, err := reminder.NewDispatcher(st, tr.Service, cfg.ReminderMessage).Sweep(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "sent=%d failed=%d\n", tally.Sent, tally.Failed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(remindCmd)
}
