package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chris/threadbot/internal/schedule"
)

func newNextRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-run HH:mm [days...]",
		Short: "Show when a reminder set for HH:mm would fire next",
		Long: `Compute the next run the way !reminder does, in ` + schedule.Zone + ` time.
Days are tags such as mon or fri; "all" means business days. Without days the
reminder defaults apply: today if the time is still ahead, else the next business day.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printNextRun(cmd.OutOrStdout(), time.Now(), args[0], args[1:])
		},
	}
}

func printNextRun(w io.Writer, now time.Time, clock string, days []string) error {
	if _, _, err := schedule.ParseClock(clock); err != nil {
		return err
	}
	switch {
	case len(days) == 1 && strings.EqualFold(days[0], "all"):
		days = schedule.BusinessDays
	case len(days) == 0:
		days = schedule.DefaultDays(now, clock)
	}
	next, err := schedule.NextRun(now, clock, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%s, %s)\n",
		next.In(schedule.Location()).Format("Mon 2006-01-02 15:04 MST"),
		strings.Join(days, ","),
		humanize.RelTime(next, now, "ago", "from now"))
	return nil
}
