package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/workgraph/workgraph/internal/cycle"
	"github.com/workgraph/workgraph/internal/graph"
	"github.com/workgraph/workgraph/internal/ipc"
	"github.com/workgraph/workgraph/internal/iterate"
	"github.com/workgraph/workgraph/internal/store"
)

func newAddCmd() *cobra.Command {
	var (
		title string
		after string
		prio  int
	)
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a new task to the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			st := store.New(graphPath)
			err := st.Lock(func(g *graph.WorkGraph) error {
				t := &graph.Task{
					ID:        id,
					Title:     title,
					Priority:  prio,
					CreatedAt: time.Now(),
				}
				if after != "" {
					t.After = strings.Split(after, ",")
				}
				return g.AddTask(t)
			})
			if err != nil {
				return err
			}
			notifyGraphChanged()
			fmt.Println(green("added task " + id))
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "human-readable title")
	cmd.Flags().StringVar(&after, "after", "", "comma-separated predecessor task ids")
	cmd.Flags().IntVar(&prio, "priority", 0, "scheduling priority (higher runs first)")
	return cmd
}

func newDoneCmd() *cobra.Command {
	var converged bool
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completeTask(args[0], graph.StatusDone, converged)
		},
	}
	cmd.Flags().BoolVar(&converged, "converged", false, "also mark this task's cycle as converged")
	return cmd
}

func newFailCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Mark a task failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.New(graphPath)
			err := st.Lock(func(g *graph.WorkGraph) error {
				t, ok := g.GetTask(args[0])
				if !ok {
					return graph.NewRejected("unknown task: " + args[0])
				}
				t.Status = graph.StatusFailed
				t.FailureReason = reason
				now := time.Now()
				t.CompletedAt = &now
				t.AppendLog(now, "", "Marked failed via CLI: "+reason)
				iterate.Evaluate(g, cycle.Analyze(g), t.ID)
				return nil
			})
			if err != nil {
				return err
			}
			notifyGraphChanged()
			fmt.Println(red("failed task " + args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "failure reason")
	return cmd
}

func completeTask(id string, status graph.Status, converged bool) error {
	st := store.New(graphPath)
	err := st.Lock(func(g *graph.WorkGraph) error {
		t, ok := g.GetTask(id)
		if !ok {
			return graph.NewRejected("unknown task: " + id)
		}
		t.Status = status
		now := time.Now()
		t.CompletedAt = &now
		t.AppendLog(now, "", "Marked "+string(status)+" via CLI")
		analysis := cycle.Analyze(g)
		if converged {
			if err := iterate.Converge(g, analysis, id); err != nil {
				t.AddTag("converged")
			}
		}
		iterate.Evaluate(g, analysis, id)
		return nil
	})
	if err != nil {
		return err
	}
	notifyGraphChanged()
	fmt.Println(green(string(status) + ": " + id))
	return nil
}

func notifyGraphChanged() {
	c := ipc.NewClient(socketPath)
	_, _ = c.Call(ipc.Request{Type: ipc.ReqGraphChanged})
}
