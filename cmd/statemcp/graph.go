package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TobiWan1995/statemcp/internal/logging"
	"github.com/TobiWan1995/statemcp/internal/presentation/graph"
	"github.com/TobiWan1995/statemcp/pkg/dsl"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the automaton visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of an automaton's states and
transitions. Renders the bundled demo automaton, or a graph definition file
when --file is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			def, err := dsl.Load(file)
			if err != nil {
				fmt.Printf("Error loading graph definition: %v\n", err)
				os.Exit(1)
			}
			machine, err := def.Build()
			if err != nil {
				fmt.Printf("Error building automaton: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(graph.GenerateMermaid(machine, nil))
			return
		}

		srv := newDemoServer(logging.New(slog.LevelError), nil)
		if err := srv.Start(cmd.Context()); err != nil {
			fmt.Printf("Error building automaton: %v\n", err)
			os.Exit(1)
		}
		defer srv.Stop()

		fmt.Print(graph.GenerateMermaid(srv.Machine(), nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("file", "f", "", "Graph definition file (YAML or JSON)")
}
