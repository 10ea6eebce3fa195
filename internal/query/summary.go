package query

import "github.com/workgraph/workgraph/internal/graph"

// Summary is the project_summary() result (§4.3).
type Summary struct {
	Open        int     `json:"open"`
	InProgress  int     `json:"in_progress"`
	Done        int     `json:"done"`
	Failed      int     `json:"failed"`
	Abandoned   int     `json:"abandoned"`
	Blocked     int     `json:"blocked"`
	Waiting     int     `json:"waiting"`
	TotalCost   float64 `json:"total_cost"`
	TotalHours  float64 `json:"total_hours"`
}

// ProjectSummary aggregates status counts and estimate totals. Waiting
// counts Open tasks with at least one non-terminal predecessor; Blocked
// (the manual-hold runtime status) is counted separately, not folded into
// Waiting.
func ProjectSummary(g *graph.WorkGraph) Summary {
	var s Summary
	for _, t := range g.Tasks() {
		switch t.Status {
		case graph.StatusOpen:
			s.Open++
			if len(PendingPredecessors(g, t.ID)) > 0 {
				s.Waiting++
			}
		case graph.StatusInProgress:
			s.InProgress++
		case graph.StatusDone:
			s.Done++
		case graph.StatusFailed:
			s.Failed++
		case graph.StatusAbandoned:
			s.Abandoned++
		case graph.StatusBlocked:
			s.Blocked++
		}
		if t.Estimate != nil {
			s.TotalCost += t.Estimate.Cost
			s.TotalHours += t.Estimate.Hours
		}
	}
	return s
}
