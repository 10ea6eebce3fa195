// Command wg is the CLI front-end for mutating and inspecting a workgraph
// (§4.7, §5). Mutations go through the store directly under the graph
// lock; the daemon is notified via GraphChanged so it wakes for the next
// tick. Status and daemon-control operations go over the IPC socket.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	graphPath  string
	socketPath string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wg",
		Short: "Inspect and mutate a workgraph task graph",
	}
	cmd.PersistentFlags().StringVar(&graphPath, "graph", defaultGraphPath(), "path to graph.jsonl")
	cmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to the daemon's control socket")

	cmd.AddCommand(
		newAddCmd(),
		newDoneCmd(),
		newFailCmd(),
		newReadyCmd(),
		newStatusCmd(),
		newCheckCmd(),
		newMigrateCmd(),
		newDaemonCmd(),
		newKillCmd(),
	)
	return cmd
}

func defaultGraphPath() string {
	if v := os.Getenv("WORKGRAPH_GRAPH"); v != "" {
		return v
	}
	return "./graph.jsonl"
}

func defaultSocketPath() string {
	if v := os.Getenv("WORKGRAPH_SOCKET"); v != "" {
		return v
	}
	return "./.workgraph/wgd.sock"
}
