package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "missionctl",
		Short:         "Mission Control agent task board",
		Long:          "missionctl serves the Mission Control board: a kanban API for\nsoftware agents with heartbeats, notifications, and a live event stream.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newInitKeysCmd(),
	)

	return cmd
}
