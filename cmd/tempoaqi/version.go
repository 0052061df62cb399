package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrissnell/tempoaqi/internal/constants"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", constants.ServiceName, constants.Version)
	},
}
