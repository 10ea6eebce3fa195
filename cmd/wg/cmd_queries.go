package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/integrity"
	"github.com/workgraph/workgraph/internal/ipc"
	"github.com/workgraph/workgraph/internal/query"
	"github.com/workgraph/workgraph/internal/store"
)

func newReadyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "List tasks whose prerequisites are satisfied",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(graphPath)
			g, err := st.Load()
			if err != nil {
				return err
			}
			analysis := cycle.Analyze(g)
			tasks := query.ReadyTasks(g, analysis)
			sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
			if len(tasks) == 0 {
				fmt.Println(gray("no ready tasks"))
				return nil
			}
			for _, t := range tasks {
				fmt.Printf("%s  %s\n", bold(t.ID), t.Title)
			}
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the graph for orphan references and cycle issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(graphPath)
			g, err := st.Load()
			if err != nil {
				return err
			}
			report := integrity.Check(g)
			for _, issue := range report.Issues {
				line := fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.Kind, issue.Message)
				if issue.Severity == integrity.SeverityError {
					fmt.Println(red(line))
				} else {
					fmt.Println(gray(line))
				}
			}
			if report.Ok {
				fmt.Println(green("graph is consistent"))
				return nil
			}
			return fmt.Errorf("graph has %d error(s)", countErrors(report))
		},
	}
}

func countErrors(r integrity.Report) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == integrity.SeverityError {
			n++
		}
	}
	return n
}

func newStatusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the coordinator's current status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ipc.NewClient(socketPath)
			if !watch {
				return printStatusOnce(c)
			}
			for {
				if err := printStatusOnce(c); err != nil {
					return err
				}
				time.Sleep(2 * time.Second)
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "poll and reprint status every 2s")
	return cmd
}

func printStatusOnce(c *ipc.Client) error {
	resp, err := c.Call(ipc.Request{Type: ipc.ReqStatus})
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	if !resp.OK || resp.Status == nil {
		return fmt.Errorf("daemon returned error: %s", resp.Error)
	}
	s := resp.Status
	state := green("running")
	if s.Paused {
		state = gray("paused")
	}
	fmt.Printf("%s  pid=%d  ticks=%d  ready=%d  open=%d  agents=%d  last_tick=%s\n",
		state, s.PID, s.TicksRun, s.ReadyTasks, s.OpenTasks, s.AgentsAlive, s.LastTick.Format(time.RFC3339))
	return nil
}
