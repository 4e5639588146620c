// Package client provides a Go client for the Mission Control server: task
// and agent CRUD, heartbeats, notifications, and the kanban board state
// machine used by dashboard frontends.
package client

import "time"

// AgentStatus represents the liveness state of an agent.
type AgentStatus string

const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusActive  AgentStatus = "active"
	AgentStatusOffline AgentStatus = "offline"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	TaskStatusInbox      TaskStatus = "inbox"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// Priority represents task urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

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

type Assignee struct {
	AgentID    string `json:"agent_id"`
	Name       string `json:"name"`
	SessionKey string `json:"session_key"`
}

type Message struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	FromAgentID string    `json:"from_agent_id,omitempty"`
	FromName    string    `json:"from_name,omitempty"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

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

type Activity struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id,omitempty"`
	ActivityType string    `json:"activity_type"`
	Message      string    `json:"message"`
	TaskID       string    `json:"task_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskDetail is a task with its assignees and comment thread.
type TaskDetail struct {
	Task      Task       `json:"task"`
	Assignees []Assignee `json:"assignees"`
	Messages  []Message  `json:"messages"`
}

// HeartbeatResult is everything the server hands back on a check-in: the
// updated agent row, undelivered notifications, and the agent's open tasks.
type HeartbeatResult struct {
	Agent         Agent          `json:"agent"`
	Notifications []Notification `json:"notifications"`
	Tasks         []Task         `json:"tasks"`
}

// Health is the server's self-report.
type Health struct {
	Status string          `json:"status"`
	Config map[string]bool `json:"config"`
}
