package planner

import (
	"fmt"
	"strings"
)

// buildSections produces the prompt parts in order: role, tool vocabulary
// with the required output shapes, run context, data snapshot and decision
// rules.
func (rc RunContext) buildSections() []string {
	timeAvailable := "none"
	if rc.TimeAvailable != nil {
		timeAvailable = fmt.Sprintf("%d minutes", *rc.TimeAvailable)
	}

	return []string{
		`You are a Study Coach Agent.

Return ONLY valid JSON. No markdown.

You can choose one tool:
- create_tasks: { tasks: string[] }  (3-7 tasks max)
- add_resources: { resources: [{title, url}] } (1-4 items, real URLs starting with https://)
- schedule_reminder: { minutes: number } (like 60 or 1440)
- finish: {}

Output must match ONE of these shapes:

{"tool":"create_tasks","args":{"tasks":["..."]},"done":false,"message":"..."}
{"tool":"add_resources","args":{"resources":[{"title":"...","url":"https://..."}]},"done":false,"message":"..."}
{"tool":"schedule_reminder","args":{"minutes":1440},"done":false,"message":"..."}
{"tool":"finish","done":true,"message":"..."}`,
		fmt.Sprintf(`Run context:
topic: %s
goal: %s
timeAvailable: %s
currentIteration: %d`, rc.Topic, rc.Goal, timeAvailable, rc.Iteration),
		fmt.Sprintf(`Existing data:
tasksCount: %d
resourcesCount: %d`, rc.Snapshot.TasksCount, rc.Snapshot.ResourcesCount),
		`Decision rules:
- If tasksCount is 0 -> choose create_tasks
- Else if resourcesCount is 0 -> choose add_resources
- Else if currentIteration < 2 -> choose schedule_reminder
- Else -> choose finish`,
	}
}

// BuildPrompt renders the full planning prompt for a run context.
func BuildPrompt(rc RunContext) string {
	return strings.Join(rc.buildSections(), "\n\n")
}
