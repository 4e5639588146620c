package core

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors mapped to HTTP status codes at the handler boundary.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

// AgentStatus is the closed three-value agent liveness enumeration.
type AgentStatus string

const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusActive  AgentStatus = "active"
	AgentStatusOffline AgentStatus = "offline"
)

// ValidAgentStatus reports whether s is one of the closed enum values.
func ValidAgentStatus(s AgentStatus) bool {
	switch s {
	case AgentStatusIdle, AgentStatusActive, AgentStatusOffline:
		return true
	}
	return false
}

// Agent represents a registered fleet member. Identity is SessionKey;
// ID is a server-assigned surrogate.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Role          string      `json:"role,omitempty"`
	SessionKey    string      `json:"session_key"`
	Status        AgentStatus `json:"status"`
	CurrentTaskID string      `json:"current_task_id,omitempty"`
	LastHeartbeat time.Time   `json:"last_heartbeat,omitzero"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TaskStatus is the closed six-value task lifecycle enumeration.
type TaskStatus string

const (
	TaskStatusInbox      TaskStatus = "inbox"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// ValidTaskStatus reports whether s is one of the closed enum values.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusInbox, TaskStatusAssigned, TaskStatusInProgress,
		TaskStatusReview, TaskStatusDone, TaskStatusBlocked:
		return true
	}
	return false
}

// Priority is the closed four-value task priority enumeration.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the closed enum values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// PriorityRank orders priorities for sorting, urgent first.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Task is a unit of work on the board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedBy   string     `json:"created_by,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Assignee is a task-to-agent assignment resolved to the agent's identity.
type Assignee struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	SessionKey string `json:"session_key"`
}

// Message is one comment in a task's thread. Append-only.
type Message struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	FromAgentID string    `json:"from_agent_id,omitempty"`
	FromName    string    `json:"from_name,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notification is created on @mention or explicit notify and consumed
// (marked delivered) on heartbeat or explicit fetch. Delivered transitions
// false to true exactly once.
type Notification struct {
	ID               string    `json:"id"`
	MentionedAgentID string    `json:"mentioned_agent_id"`
	FromAgentID      string    `json:"from_agent_id,omitempty"`
	FromName         string    `json:"from_name,omitempty"`
	TaskID           string    `json:"task_id,omitempty"`
	Content          string    `json:"content"`
	Delivered        bool      `json:"delivered"`
	CreatedAt        time.Time `json:"created_at"`
}

// Activity is an append-only audit record. TaskID is nulled, not cascaded,
// when the referenced task is deleted.
type Activity struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id,omitempty"`
	ActivityType string    `json:"activity_type"`
	Message      string    `json:"message"`
	TaskID       string    `json:"task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Activity types written by the services.
const (
	ActivityTaskCreated  = "task_created"
	ActivityTaskUpdated  = "task_updated"
	ActivityTaskDeleted  = "task_deleted"
	ActivityMessageAdded = "message_added"
	ActivityHeartbeat    = "heartbeat"
	ActivityAgentOffline = "agent_offline"
)

// TaskPatch is the subset of task fields an update may carry. Nil fields
// are left untouched; ClearDueDate nulls the due date explicitly.
type TaskPatch struct {
	Status       *TaskStatus
	Priority     *Priority
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Validate rejects unknown enum values before anything is written.
func (p TaskPatch) Validate() error {
	if p.Status != nil && !ValidTaskStatus(*p.Status) {
		return fmt.Errorf("%w: task status %q", ErrInvalid, *p.Status)
	}
	if p.Priority != nil && !ValidPriority(*p.Priority) {
		return fmt.Errorf("%w: priority %q", ErrInvalid, *p.Priority)
	}
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalid)
	}
	return nil
}

// Empty reports whether the patch touches no task fields.
func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.Priority == nil && p.Title == nil &&
		p.Description == nil && p.DueDate == nil && !p.ClearDueDate
}
