package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chris/threadbot/internal/scheduler"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a scheduler sweep once, now",
	}
	cmd.AddCommand(
		sweepCmd(scheduler.Daily, "Apply today's scheduled prompts to their threads",
			(*scheduler.Scheduler).RunDailySweep),
		sweepCmd(scheduler.Reminders, "Fire the reminders due in the current five-minute slot",
			(*scheduler.Scheduler).RunReminderSweep),
	)
	return cmd
}

func sweepCmd(name, short string, sweep func(*scheduler.Scheduler, context.Context) scheduler.SweepStats) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats := sweep(a.scheduler(), cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: due %d, done %d, skipped %d, failed %d\n",
				name, stats.Due, stats.Done, stats.Skipped, stats.Failed)
			if stats.Failed > 0 {
				return fmt.Errorf("%d %s entries failed", stats.Failed, name)
			}
			return nil
		},
	}
}
