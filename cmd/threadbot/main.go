// Command threadbot is a chat assistant for Mattermost and Discord: it
// answers mentions and threads, runs operator commands, applies scheduled
// prompts at the end of the day and fires reminders.
package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
