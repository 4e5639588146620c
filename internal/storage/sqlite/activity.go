package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dehyl/missionctl/internal/core"
)

// RecentActivity returns the newest audit records first.
func (s *Store) RecentActivity(limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, agent_id, activity_type, message, task_id, created_at
		 FROM activity ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var out []core.Activity
	for rows.Next() {
		var a core.Activity
		var agentID, taskID sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &agentID, &a.ActivityType, &a.Message, &taskID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.AgentID = agentID.String
		a.TaskID = taskID.String
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func insertActivity(tx *sql.Tx, a core.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := tx.Exec(
		`INSERT INTO activity (id, agent_id, activity_type, message, task_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, nullString(a.AgentID), a.ActivityType, a.Message, nullString(a.TaskID),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
