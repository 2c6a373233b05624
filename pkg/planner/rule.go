package planner

import (
	"context"
	"fmt"

	"github.com/Tarun553/study-coach/pkg/plan"
)

// RulePlanner applies the documented decision policy directly, without an
// LLM. It backs offline development and is the reference behavior a
// well-behaved LLM planner converges to.
type RulePlanner struct{}

// NewRulePlanner creates a rule-based planner.
func NewRulePlanner() *RulePlanner {
	return &RulePlanner{}
}

// PlanNextAction picks the next action from the snapshot counts and iteration.
func (p *RulePlanner) PlanNextAction(_ context.Context, rc RunContext) (*plan.Action, error) {
	switch {
	case rc.Snapshot.TasksCount == 0:
		return &plan.Action{
			Tool:    plan.ToolCreateTasks,
			Args:    &plan.Args{Tasks: defaultTasks(rc.Topic)},
			Message: fmt.Sprintf("Planned a first pass through %s.", rc.Topic),
		}, nil
	case rc.Snapshot.ResourcesCount == 0:
		return &plan.Action{
			Tool: plan.ToolAddResources,
			Args: &plan.Args{Resources: []plan.ResourceRef{
				{Title: "Go documentation", URL: "https://go.dev/doc/"},
				{Title: "Wikipedia: " + rc.Topic, URL: "https://en.wikipedia.org/wiki/Special:Search?search=" + rc.Topic},
			}},
			Message: "Added starting points to read.",
		}, nil
	case rc.Iteration < 2:
		return &plan.Action{
			Tool:    plan.ToolScheduleReminder,
			Args:    &plan.Args{Minutes: 60},
			Message: "Scheduled a check-in.",
		}, nil
	default:
		return &plan.Action{
			Tool:    plan.ToolFinish,
			Done:    true,
			Message: "The study plan is ready.",
		}, nil
	}
}

func defaultTasks(topic string) []string {
	return []string{
		fmt.Sprintf("Skim an overview of %s", topic),
		fmt.Sprintf("Work through one tutorial on %s", topic),
		fmt.Sprintf("Write summary notes on %s", topic),
	}
}
