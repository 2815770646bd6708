package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "statemcp",
	Short: "statemcp serves an MCP catalog gated by a finite automaton",
	Long: `statemcp runs an MCP server whose tools, resources and prompts are only
visible and callable in the workflow states that expose them. The bundled
demo walks a small dungeon: each session opens doors, takes paths and
concludes at the treasury.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
}
