package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "threadbot",
		Short: "Chat assistant with commands, scheduled prompts and reminders",
		Long: `threadbot answers mentions and threads on Mattermost or Discord.

Examples:
  threadbot run
  threadbot sweep daily
  threadbot faq reindex
  threadbot next-run 09:30 mon wed
  threadbot service unit --env-file /srv/threadbot/.env`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newFAQCmd(),
		newNextRunCmd(),
		newServiceCmd(),
	)
	return root
}
