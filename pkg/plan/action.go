// Package plan defines the tagged action protocol between the planner and
// the run orchestrator, and the strict decode boundary for planner output.
package plan

// Tool identifies one of the four actions a planner may request.
type Tool string

const (
	ToolCreateTasks      Tool = "create_tasks"
	ToolAddResources     Tool = "add_resources"
	ToolScheduleReminder Tool = "schedule_reminder"
	ToolFinish           Tool = "finish"
)

// SecureScheme is the only URL scheme accepted for resources.
const SecureScheme = "https://"

// MaxTasks bounds a create_tasks batch.
const MaxTasks = 7

// MaxResources bounds an add_resources batch after filtering.
const MaxResources = 6

// ResourceRef is a {title, url} pair proposed by the planner.
type ResourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Args carries the tool-specific arguments of an action.
type Args struct {
	Tasks     []string      `json:"tasks,omitempty"`
	Resources []ResourceRef `json:"resources,omitempty"`
	Minutes   int           `json:"minutes,omitempty"`
}

// Action is one planner decision. Done is true only for finish; Message is
// optional human-readable commentary.
type Action struct {
	Tool    Tool   `json:"tool"`
	Args    *Args  `json:"args,omitempty"`
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`
}
