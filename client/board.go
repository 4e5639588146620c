package client

import (
	"context"
	"strings"
	"time"
)

// Column identifies one lane of the kanban board.
type Column string

const (
	ColumnInbox      Column = "inbox"
	ColumnInProgress Column = "in_progress"
	ColumnReview     Column = "review"
	ColumnBlocked    Column = "blocked"
	ColumnDone       Column = "done"
)

// Columns lists the board lanes in display order.
var Columns = []Column{ColumnInbox, ColumnInProgress, ColumnReview, ColumnBlocked, ColumnDone}

// ColumnFor maps a task status to its lane. Inbox and assigned share a lane.
func ColumnFor(status TaskStatus) Column {
	switch status {
	case TaskStatusInbox, TaskStatusAssigned:
		return ColumnInbox
	case TaskStatusInProgress:
		return ColumnInProgress
	case TaskStatusReview:
		return ColumnReview
	case TaskStatusBlocked:
		return ColumnBlocked
	case TaskStatusDone:
		return ColumnDone
	}
	return ColumnInbox
}

// CanonicalStatus is the status a task takes when dropped into a column.
// The shared inbox lane resolves to inbox, never assigned.
func CanonicalStatus(col Column) TaskStatus {
	switch col {
	case ColumnInProgress:
		return TaskStatusInProgress
	case ColumnReview:
		return TaskStatusReview
	case ColumnBlocked:
		return TaskStatusBlocked
	case ColumnDone:
		return TaskStatusDone
	}
	return TaskStatusInbox
}

// Board holds the task list plus the active view filters. Filtering only
// affects which tasks the lanes show; Stats always covers every task.
type Board struct {
	Tasks []Task

	// Search matches case-insensitively against title and description.
	Search string
	// Priority is "all" (or empty) for no filter, otherwise one value.
	Priority string
}

func (b *Board) visible(t Task) bool {
	if b.Priority != "" && b.Priority != "all" && string(t.Priority) != b.Priority {
		return false
	}
	if b.Search == "" {
		return true
	}
	needle := strings.ToLower(b.Search)
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// Column returns the visible tasks in one lane, preserving list order.
func (b *Board) Column(col Column) []Task {
	var out []Task
	for _, t := range b.Tasks {
		if ColumnFor(t.Status) == col && b.visible(t) {
			out = append(out, t)
		}
	}
	return out
}

// ByColumn derives every lane at once.
func (b *Board) ByColumn() map[Column][]Task {
	out := make(map[Column][]Task, len(Columns))
	for _, col := range Columns {
		out[col] = b.Column(col)
	}
	return out
}

// Stats summarizes the whole board, ignoring filters.
type Stats struct {
	Total   int `json:"total"`
	Done    int `json:"done"`
	Blocked int `json:"blocked"`
	Urgent  int `json:"urgent"`
	Overdue int `json:"overdue"`
}

// Stats counts the board state at the given instant. A task is overdue when
// its due date has passed and it is not done.
func (b *Board) Stats(now time.Time) Stats {
	s := Stats{Total: len(b.Tasks)}
	for _, t := range b.Tasks {
		if t.Status == TaskStatusDone {
			s.Done++
		}
		if t.Status == TaskStatusBlocked {
			s.Blocked++
		}
		if t.Priority == PriorityUrgent {
			s.Urgent++
		}
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskStatusDone {
			s.Overdue++
		}
	}
	return s
}

// DropTarget is where a drag ended: a lane surface, or another task's card.
type DropTarget struct {
	Column Column
	TaskID string
}

// ResolveDrop maps a drop target to the status the dragged task should take.
// Dropping onto a card resolves to that card's lane. ok is false when the
// dragged task is unknown, the target cannot be resolved, or the status
// would not change.
func (b *Board) ResolveDrop(taskID string, target DropTarget) (TaskStatus, bool) {
	task, ok := b.find(taskID)
	if !ok {
		return "", false
	}

	col := target.Column
	if col == "" {
		over, ok := b.find(target.TaskID)
		if !ok {
			return "", false
		}
		col = ColumnFor(over.Status)
	}

	// Same lane means no move; this also covers assigned -> inbox, which
	// share a lane and must not be collapsed by a drag.
	if ColumnFor(task.Status) == col {
		return "", false
	}
	return CanonicalStatus(col), true
}

// TaskUpdater issues a single task edit. *Client satisfies it.
type TaskUpdater interface {
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error)
}

// DragEnd applies a finished drag: resolve the target, move the task
// locally, and issue exactly one update when the status actually changes.
// The server's response replaces the optimistic row; on error the move is
// rolled back.
func (b *Board) DragEnd(ctx context.Context, api TaskUpdater, taskID string, target DropTarget) error {
	next, ok := b.ResolveDrop(taskID, target)
	if !ok {
		return nil
	}

	prev, _ := b.find(taskID)
	optimistic := prev
	optimistic.Status = next
	b.Apply(optimistic)

	updated, err := api.UpdateTask(ctx, taskID, TaskUpdate{Status: &next})
	if err != nil {
		b.Apply(prev)
		return err
	}
	b.Apply(updated)
	return nil
}

// Apply replaces a task in place by id, or appends it when new.
func (b *Board) Apply(task Task) {
	for i, t := range b.Tasks {
		if t.ID == task.ID {
			b.Tasks[i] = task
			return
		}
	}
	b.Tasks = append(b.Tasks, task)
}

// Remove drops a task from the board.
func (b *Board) Remove(taskID string) {
	for i, t := range b.Tasks {
		if t.ID == taskID {
			b.Tasks = append(b.Tasks[:i], b.Tasks[i+1:]...)
			return
		}
	}
}

func (b *Board) find(taskID string) (Task, bool) {
	for _, t := range b.Tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return Task{}, false
}
