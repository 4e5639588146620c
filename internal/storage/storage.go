package storage

import (
	"time"

	"github.com/dehyl/missionctl/internal/core"
)

// TaskFilter narrows a task listing. Zero values mean "no filter".
type TaskFilter struct {
	Status          string
	Priority        string
	AssigneeSession string
	Limit           int
}

// TaskDetail is one task joined with its assignees and message thread.
type TaskDetail struct {
	Task      core.Task       `json:"task"`
	Assignees []core.Assignee `json:"assignees"`
	Messages  []core.Message  `json:"messages"`
}

// CreateTaskInput carries a new task plus the resolved agents involved.
// AssigneeID empty means unassigned; the caller decides the initial status.
type CreateTaskInput struct {
	Task       core.Task
	AssigneeID string
	CreatorID  string
}

// TaskUpdate applies a patch with attribution for the activity log and an
// optional comment appended in the same transaction.
type TaskUpdate struct {
	Patch     core.TaskPatch
	ActorID   string
	ActorName string
	Comment   string
}

// HeartbeatInput updates liveness for one agent. Status empty means
// unchanged; CurrentTaskID nil means unchanged, pointer-to-empty clears.
type HeartbeatInput struct {
	SessionKey    string
	Status        core.AgentStatus
	CurrentTaskID *string
}

// HeartbeatResult is everything a polling agent needs in one round trip.
type HeartbeatResult struct {
	Agent         core.Agent          `json:"agent"`
	Notifications []core.Notification `json:"notifications"`
	Tasks         []core.Task         `json:"tasks"`
}

// MessageInput carries a new task comment plus the mention handles
// (agent names or session keys) to notify.
type MessageInput struct {
	TaskID    string
	Content   string
	ActorID   string
	ActorName string
	Mentions  []string
}

// Store is the entity store behind the task and agent services. Multi-step
// mutations (create with side effects, delete cascade, heartbeat drain) are
// single transactions: a failure rolls the whole operation back.
type Store interface {
	UpsertAgent(agent core.Agent) (core.Agent, error)
	AgentBySession(sessionKey string) (core.Agent, error)
	ListAgents(status core.AgentStatus) ([]core.Agent, error)
	Heartbeat(in HeartbeatInput) (HeartbeatResult, error)
	MarkStaleAgentsOffline(staleBefore time.Time) ([]core.Agent, error)

	CreateTask(in CreateTaskInput) (core.Task, error)
	GetTask(id string) (TaskDetail, error)
	ListTasks(f TaskFilter) ([]core.Task, error)
	UpdateTask(id string, up TaskUpdate) (core.Task, error)
	DeleteTask(id string) error

	AddMessage(in MessageInput) (core.Message, []core.Agent, error)
	CreateNotification(n core.Notification) (core.Notification, error)
	PendingNotifications(sessionKey string, markDelivered bool) ([]core.Notification, error)

	RecentActivity(limit int) ([]core.Activity, error)
	Close() error
}
