package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workgraph/workgraph/internal/ipc"
)

func newKillCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "kill <agent-id>",
		Short: "Signal a running agent's process group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ipc.NewClient(socketPath)
			resp, err := c.Call(ipc.Request{Type: ipc.ReqKill, AgentID: args[0], Force: force})
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("kill failed: %s", resp.Error)
			}
			fmt.Println(green("killed agent " + args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "send SIGKILL immediately instead of SIGTERM-then-grace")
	return cmd
}
