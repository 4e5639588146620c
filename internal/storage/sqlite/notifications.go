package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dehyl/missionctl/internal/core"
)

const notificationSelect = `SELECT n.id, n.mentioned_agent_id, n.from_agent_id, a.name, n.task_id, n.content, n.delivered, n.created_at
	FROM notifications n LEFT JOIN agents a ON a.id = n.from_agent_id`

// CreateNotification writes one notification addressed to a registered agent.
func (s *Store) CreateNotification(n core.Notification) (core.Notification, error) {
	err := s.inTx(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM agents WHERE id = ?`, n.MentionedAgentID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("agent %q: %w", n.MentionedAgentID, core.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if n.TaskID != "" {
			err := tx.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, n.TaskID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("task %q: %w", n.TaskID, core.ErrNotFound)
			}
			if err != nil {
				return err
			}
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		n.Delivered = false
		n.CreatedAt = time.Now().UTC()
		_, err = tx.Exec(
			`INSERT INTO notifications (id, mentioned_agent_id, from_agent_id, task_id, content, delivered, created_at)
			 VALUES (?, ?, ?, ?, ?, 0, ?)`,
			n.ID, n.MentionedAgentID, nullString(n.FromAgentID), nullString(n.TaskID), n.Content, formatTime(n.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Notification{}, err
	}
	return n, nil
}

// PendingNotifications returns the undelivered notifications for one session,
// oldest first. When markDelivered is set the returned batch is flipped to
// delivered in the same transaction, so each notification is handed out at
// most once.
func (s *Store) PendingNotifications(sessionKey string, markDelivered bool) ([]core.Notification, error) {
	var out []core.Notification
	err := s.inTx(func(tx *sql.Tx) error {
		var agentID string
		err := tx.QueryRow(`SELECT id FROM agents WHERE session_key = ?`, sessionKey).Scan(&agentID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("agent %q: %w", sessionKey, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		out, err = pendingNotificationsTx(tx, agentID)
		if err != nil {
			return err
		}
		if markDelivered && len(out) > 0 {
			if _, err := tx.Exec(
				`UPDATE notifications SET delivered = 1 WHERE mentioned_agent_id = ? AND delivered = 0`,
				agentID,
			); err != nil {
				return fmt.Errorf("mark delivered: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func pendingNotificationsTx(tx *sql.Tx, agentID string) ([]core.Notification, error) {
	rows, err := tx.Query(
		notificationSelect+` WHERE n.mentioned_agent_id = ? AND n.delivered = 0 ORDER BY n.created_at ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("pending notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func insertNotification(tx *sql.Tx, n core.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := tx.Exec(
		`INSERT INTO notifications (id, mentioned_agent_id, from_agent_id, task_id, content, delivered, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.MentionedAgentID, nullString(n.FromAgentID), nullString(n.TaskID), n.Content,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func scanNotification(row scanner) (core.Notification, error) {
	var n core.Notification
	var fromID, fromName, taskID sql.NullString
	var delivered int
	var createdAt string
	err := row.Scan(&n.ID, &n.MentionedAgentID, &fromID, &fromName, &taskID, &n.Content, &delivered, &createdAt)
	if err != nil {
		return core.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	n.FromAgentID = fromID.String
	n.FromName = fromName.String
	n.TaskID = taskID.String
	n.Delivered = delivered != 0
	n.CreatedAt = parseTime(createdAt)
	return n, nil
}
