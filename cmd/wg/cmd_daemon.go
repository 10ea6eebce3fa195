package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/workgraph/workgraph/internal/ipc"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start or stop the coordinator daemon",
	}
	cmd.AddCommand(newDaemonStartCmd(), newDaemonStopCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch wgd detached, bound to this graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			wgd := filepath.Join(filepath.Dir(exe), "wgd")
			if _, err := os.Stat(wgd); err != nil {
				wgd = "wgd"
			}

			c := exec.Command(wgd, "--graph", graphPath, "--socket", socketPath, "--config", configPath)
			c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
			c.Stdout = nil
			c.Stderr = nil
			if err := c.Start(); err != nil {
				return fmt.Errorf("start wgd: %w", err)
			}
			fmt.Println(green(fmt.Sprintf("wgd started, pid=%d", c.Process.Pid)))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "./config.toml", "path to config.toml")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	var killAgents, force bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ipc.NewClient(socketPath)
			resp, err := c.Call(ipc.Request{Type: ipc.ReqStop, Force: force, KillAgents: killAgents})
			if err != nil {
				return fmt.Errorf("daemon not reachable: %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("stop failed: %s", resp.Error)
			}
			fmt.Println(green("daemon stopping"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&killAgents, "kill-agents", false, "also terminate running agent processes")
	cmd.Flags().BoolVar(&force, "force", false, "shut down without the short pre-shutdown wait, and SIGKILL agents immediately if --kill-agents is set")
	return cmd
}
