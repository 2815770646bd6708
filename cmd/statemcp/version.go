package main

import (
	"fmt"

	"github.com/TobiWan1995/statemcp"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of statemcp",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("statemcp version %s\n", statemcp.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
