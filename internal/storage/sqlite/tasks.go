package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

const taskColumns = `id, title, description, status, priority, created_by, due_date, created_at, updated_at`

// activeStatuses are the task statuses returned to a heartbeating agent.
var activeStatuses = []core.TaskStatus{
	core.TaskStatusInbox, core.TaskStatusAssigned, core.TaskStatusInProgress, core.TaskStatusBlocked,
}

// priorityRankSQL orders tasks urgent-first in SQL, matching core.PriorityRank.
const priorityRankSQL = `CASE t.priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`

// CreateTask inserts the task and, in the same transaction, the assignee
// row, the assignee's notification, and the creation activity record.
// Nothing persists if any step fails.
func (s *Store) CreateTask(in storage.CreateTaskInput) (core.Task, error) {
	task := in.Task
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Priority == "" {
		task.Priority = core.PriorityMedium
	}
	if task.Status == "" {
		task.Status = core.TaskStatusInbox
	}

	err := s.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.Title, nullString(task.Description), string(task.Status), string(task.Priority),
			nullString(task.CreatedBy), nullTime(task.DueDate),
			formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if in.AssigneeID != "" {
			if _, err := tx.Exec(
				`INSERT INTO task_assignees (task_id, agent_id) VALUES (?, ?)`,
				task.ID, in.AssigneeID,
			); err != nil {
				return fmt.Errorf("insert assignee: %w", err)
			}
			if err := insertNotification(tx, core.Notification{
				MentionedAgentID: in.AssigneeID,
				FromAgentID:      in.CreatorID,
				TaskID:           task.ID,
				Content:          fmt.Sprintf("New task assigned: %q", task.Title),
			}); err != nil {
				return err
			}
		}

		return insertActivity(tx, core.Activity{
			AgentID:      in.CreatorID,
			ActivityType: core.ActivityTaskCreated,
			Message:      fmt.Sprintf("New task: %q", task.Title),
			TaskID:       task.ID,
		})
	})
	if err != nil {
		return core.Task{}, err
	}
	return task, nil
}

// GetTask fetches one task plus its assignees (resolved to agent identity)
// and its message thread, oldest message first.
func (s *Store) GetTask(id string) (storage.TaskDetail, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.TaskDetail{}, fmt.Errorf("task %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return storage.TaskDetail{}, err
	}

	assignees, err := taskAssignees(s.db, id)
	if err != nil {
		return storage.TaskDetail{}, err
	}
	messages, err := taskMessages(s.db, id)
	if err != nil {
		return storage.TaskDetail{}, err
	}
	return storage.TaskDetail{Task: task, Assignees: assignees, Messages: messages}, nil
}

// ListTasks returns tasks newest-first, capped at the filter limit. An
// assignee filter naming an unregistered session yields an empty list.
func (s *Store) ListTasks(f storage.TaskFilter) ([]core.Task, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + qualify(taskColumns, "t") + ` FROM tasks t`
	var where []string
	var args []any

	if f.AssigneeSession != "" {
		query += ` JOIN task_assignees ta ON ta.task_id = t.id
			JOIN agents a ON a.id = ta.agent_id`
		where = append(where, "a.session_key = ?")
		args = append(args, f.AssigneeSession)
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, f.Status)
	}
	if f.Priority != "" {
		where = append(where, "t.priority = ?")
		args = append(args, f.Priority)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the patch, skipping no-op fields, and in the same
// transaction appends one activity line summarizing every change and the
// optional comment as a message. Returns core.ErrNotFound when absent.
func (s *Store) UpdateTask(id string, up storage.TaskUpdate) (core.Task, error) {
	if err := up.Patch.Validate(); err != nil {
		return core.Task{}, err
	}

	var updated core.Task
	err := s.inTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
		current, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %q: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		updated = current
		var changes []string
		p := up.Patch
		if p.Status != nil && *p.Status != current.Status {
			changes = append(changes, fmt.Sprintf("status: %s → %s", current.Status, *p.Status))
			updated.Status = *p.Status
		}
		if p.Priority != nil && *p.Priority != current.Priority {
			changes = append(changes, fmt.Sprintf("priority: %s → %s", current.Priority, *p.Priority))
			updated.Priority = *p.Priority
		}
		if p.Title != nil && *p.Title != current.Title {
			changes = append(changes, fmt.Sprintf("title: %q → %q", current.Title, *p.Title))
			updated.Title = *p.Title
		}
		if p.Description != nil && *p.Description != current.Description {
			changes = append(changes, "description updated")
			updated.Description = *p.Description
		}
		if p.ClearDueDate && current.DueDate != nil {
			changes = append(changes, "due date cleared")
			updated.DueDate = nil
		} else if p.DueDate != nil && (current.DueDate == nil || !current.DueDate.Equal(*p.DueDate)) {
			changes = append(changes, fmt.Sprintf("due date: %s", p.DueDate.Format("2006-01-02")))
			due := p.DueDate.UTC()
			updated.DueDate = &due
		}

		if len(changes) > 0 {
			updated.UpdatedAt = time.Now().UTC()
			if _, err := tx.Exec(
				`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, due_date = ?, updated_at = ?
				 WHERE id = ?`,
				updated.Title, nullString(updated.Description), string(updated.Status), string(updated.Priority),
				nullTime(updated.DueDate), formatTime(updated.UpdatedAt), id,
			); err != nil {
				return fmt.Errorf("update task: %w", err)
			}

			actor := up.ActorName
			if actor == "" {
				actor = "System"
			}
			if err := insertActivity(tx, core.Activity{
				AgentID:      up.ActorID,
				ActivityType: core.ActivityTaskUpdated,
				Message:      fmt.Sprintf("%s updated %q: %s", actor, current.Title, strings.Join(changes, ", ")),
				TaskID:       id,
			}); err != nil {
				return err
			}
		}

		if up.Comment != "" {
			if _, err := insertMessage(tx, core.Message{
				TaskID:      id,
				FromAgentID: up.ActorID,
				Content:     up.Comment,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes the task with its messages, assignee rows, and
// notifications; activity rows survive with task_id nulled. The deletion
// activity record carries no task reference. One transaction.
func (s *Store) DeleteTask(id string) error {
	return s.inTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
		task, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %q: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM messages WHERE task_id = ?`,
			`DELETE FROM task_assignees WHERE task_id = ?`,
			`DELETE FROM notifications WHERE task_id = ?`,
			`UPDATE activity SET task_id = NULL WHERE task_id = ?`,
			`DELETE FROM tasks WHERE id = ?`,
		} {
			if _, err := tx.Exec(stmt, id); err != nil {
				return fmt.Errorf("delete task cascade: %w", err)
			}
		}

		return insertActivity(tx, core.Activity{
			ActivityType: core.ActivityTaskDeleted,
			Message:      fmt.Sprintf("Task deleted: %q", task.Title),
		})
	})
}

func activeTasksForAgentTx(tx *sql.Tx, agentID string) ([]core.Task, error) {
	placeholders := make([]string, len(activeStatuses))
	args := []any{agentID}
	for i, st := range activeStatuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	rows, err := tx.Query(
		`SELECT `+qualify(taskColumns, "t")+`
		 FROM tasks t JOIN task_assignees ta ON ta.task_id = t.id
		 WHERE ta.agent_id = ? AND t.status IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY `+priorityRankSQL+` ASC, t.created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("active tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func taskAssignees(q queryer, taskID string) ([]core.Assignee, error) {
	rows, err := q.Query(
		`SELECT a.id, a.name, a.session_key
		 FROM task_assignees ta JOIN agents a ON a.id = ta.agent_id
		 WHERE ta.task_id = ? ORDER BY a.name ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("task assignees: %w", err)
	}
	defer rows.Close()

	var out []core.Assignee
	for rows.Next() {
		var a core.Assignee
		if err := rows.Scan(&a.AgentID, &a.Name, &a.SessionKey); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func qualify(columns, alias string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

func scanTask(row scanner) (core.Task, error) {
	var t core.Task
	var description, createdBy, dueDate sql.NullString
	var status, priority, createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.Title, &description, &status, &priority, &createdBy, &dueDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Task{}, err
		}
		return core.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.Description = description.String
	t.Status = core.TaskStatus(status)
	t.Priority = core.Priority(priority)
	t.CreatedBy = createdBy.String
	if dueDate.Valid {
		due := parseTime(dueDate.String)
		t.DueDate = &due
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}
