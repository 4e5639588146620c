package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

// AddMessage appends a message to the task's thread and, for every mention
// that resolves to a registered agent, writes a notification. The message,
// notifications, and activity record land in one transaction. The resolved
// mention targets are returned so callers can broadcast to them.
func (s *Store) AddMessage(in storage.MessageInput) (core.Message, []core.Agent, error) {
	if strings.TrimSpace(in.Content) == "" {
		return core.Message{}, nil, fmt.Errorf("%w: message content cannot be empty", core.ErrInvalid)
	}

	var msg core.Message
	var mentioned []core.Agent
	err := s.inTx(func(tx *sql.Tx) error {
		var title string
		err := tx.QueryRow(`SELECT title FROM tasks WHERE id = ?`, in.TaskID).Scan(&title)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %q: %w", in.TaskID, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		msg, err = insertMessage(tx, core.Message{
			TaskID:      in.TaskID,
			FromAgentID: in.ActorID,
			Content:     in.Content,
		})
		if err != nil {
			return err
		}
		msg.FromName = in.ActorName

		mentioned, err = resolveMentions(tx, in.Mentions)
		if err != nil {
			return err
		}
		for _, agent := range mentioned {
			if agent.ID == in.ActorID {
				continue
			}
			if err := insertNotification(tx, core.Notification{
				MentionedAgentID: agent.ID,
				FromAgentID:      in.ActorID,
				TaskID:           in.TaskID,
				Content:          fmt.Sprintf("%s mentioned you on %q: %s", in.ActorName, title, truncate(in.Content, 100)),
			}); err != nil {
				return err
			}
		}

		return insertActivity(tx, core.Activity{
			AgentID:      in.ActorID,
			ActivityType: core.ActivityMessageAdded,
			Message:      fmt.Sprintf("%s commented on %q", in.ActorName, title),
			TaskID:       in.TaskID,
		})
	})
	if err != nil {
		return core.Message{}, nil, err
	}
	return msg, mentioned, nil
}

func insertMessage(tx *sql.Tx, m core.Message) (core.Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()
	_, err := tx.Exec(
		`INSERT INTO messages (id, task_id, from_agent_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.TaskID, nullString(m.FromAgentID), m.Content, formatTime(m.CreatedAt),
	)
	if err != nil {
		return core.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// resolveMentions matches each token against agent names first, falling
// back to session keys. Unmatched tokens are silently dropped.
func resolveMentions(tx *sql.Tx, tokens []string) ([]core.Agent, error) {
	var out []core.Agent
	seen := make(map[string]bool)
	for _, token := range tokens {
		token = strings.TrimSpace(strings.TrimPrefix(token, "@"))
		if token == "" {
			continue
		}
		row := tx.QueryRow(
			`SELECT `+agentColumns+` FROM agents WHERE name = ? OR session_key = ? LIMIT 1`,
			token, token,
		)
		agent, err := scanAgent(row)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if seen[agent.ID] {
			continue
		}
		seen[agent.ID] = true
		out = append(out, agent)
	}
	return out, nil
}

// truncate cuts s to at most n bytes, backing off to a rune boundary so
// multi-byte characters are never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func taskMessages(q queryer, taskID string) ([]core.Message, error) {
	rows, err := q.Query(
		`SELECT m.id, m.task_id, m.from_agent_id, a.name, m.content, m.created_at
		 FROM messages m LEFT JOIN agents a ON a.id = m.from_agent_id
		 WHERE m.task_id = ? ORDER BY m.created_at ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("task messages: %w", err)
	}
	defer rows.Close()

	var out []core.Message
	for rows.Next() {
		var m core.Message
		var fromID, fromName sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TaskID, &fromID, &fromName, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FromAgentID = fromID.String
		m.FromName = fromName.String
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}
