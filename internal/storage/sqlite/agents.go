package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

const agentColumns = `id, name, role, session_key, status, current_task_id, last_heartbeat, created_at, updated_at`

// UpsertAgent creates or updates an agent keyed on session_key. The existing
// surrogate id and created_at survive an update.
func (s *Store) UpsertAgent(agent core.Agent) (core.Agent, error) {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now
	if agent.LastHeartbeat.IsZero() {
		agent.LastHeartbeat = now
	}
	if agent.Status == "" {
		agent.Status = core.AgentStatusIdle
	}

	err := RetryOnDBLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO agents (id, name, role, session_key, status, current_task_id, last_heartbeat, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(session_key) DO UPDATE SET
				name = excluded.name,
				role = excluded.role,
				status = excluded.status,
				last_heartbeat = excluded.last_heartbeat,
				updated_at = excluded.updated_at`,
			agent.ID, agent.Name, nullString(agent.Role), agent.SessionKey, string(agent.Status),
			nullString(agent.CurrentTaskID), formatTime(agent.LastHeartbeat),
			formatTime(agent.CreatedAt), formatTime(agent.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return core.Agent{}, fmt.Errorf("upsert agent: %w", err)
	}
	return s.AgentBySession(agent.SessionKey)
}

// AgentBySession fetches one agent by its session key.
func (s *Store) AgentBySession(sessionKey string) (core.Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE session_key = ?`, sessionKey)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Agent{}, fmt.Errorf("agent %q: %w", sessionKey, core.ErrNotFound)
	}
	return agent, err
}

// ListAgents returns all agents ordered by name, optionally filtered by status.
func (s *Store) ListAgents(status core.AgentStatus) ([]core.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []core.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// Heartbeat updates liveness for one agent and drains its inbox: undelivered
// notifications are fetched and marked delivered, and active assigned tasks
// are fetched, all in one transaction. Returns core.ErrNotFound without
// writing anything when the session key is unregistered.
func (s *Store) Heartbeat(in storage.HeartbeatInput) (storage.HeartbeatResult, error) {
	var out storage.HeartbeatResult
	err := s.inTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE session_key = ?`, in.SessionKey)
		agent, err := scanAgent(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("agent %q: %w", in.SessionKey, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		agent.LastHeartbeat = now
		agent.UpdatedAt = now
		if in.Status != "" {
			agent.Status = in.Status
		}
		if in.CurrentTaskID != nil {
			agent.CurrentTaskID = *in.CurrentTaskID
		}
		if _, err := tx.Exec(
			`UPDATE agents SET status = ?, current_task_id = ?, last_heartbeat = ?, updated_at = ? WHERE id = ?`,
			string(agent.Status), nullString(agent.CurrentTaskID), formatTime(now), formatTime(now), agent.ID,
		); err != nil {
			return fmt.Errorf("heartbeat update: %w", err)
		}

		if err := insertActivity(tx, core.Activity{
			AgentID:      agent.ID,
			ActivityType: core.ActivityHeartbeat,
			Message:      fmt.Sprintf("%s checked in (%s)", agent.Name, agent.Status),
		}); err != nil {
			return err
		}

		notifications, err := pendingNotificationsTx(tx, agent.ID)
		if err != nil {
			return err
		}
		if len(notifications) > 0 {
			if _, err := tx.Exec(
				`UPDATE notifications SET delivered = 1 WHERE mentioned_agent_id = ? AND delivered = 0`,
				agent.ID,
			); err != nil {
				return fmt.Errorf("mark delivered: %w", err)
			}
		}

		tasks, err := activeTasksForAgentTx(tx, agent.ID)
		if err != nil {
			return err
		}

		out = storage.HeartbeatResult{Agent: agent, Notifications: notifications, Tasks: tasks}
		return nil
	})
	if err != nil {
		return storage.HeartbeatResult{}, err
	}
	return out, nil
}

// MarkStaleAgentsOffline flips agents whose last heartbeat predates
// staleBefore to offline and records one activity entry per agent.
// Already-offline agents are left alone, so the flip happens exactly once.
func (s *Store) MarkStaleAgentsOffline(staleBefore time.Time) ([]core.Agent, error) {
	var flipped []core.Agent
	err := s.inTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(
			`SELECT `+agentColumns+` FROM agents
			 WHERE status != ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
			string(core.AgentStatusOffline), formatTime(staleBefore.UTC()),
		)
		if err != nil {
			return fmt.Errorf("stale agents: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			agent, err := scanAgent(rows)
			if err != nil {
				return err
			}
			flipped = append(flipped, agent)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		now := formatTime(time.Now().UTC())
		for i, agent := range flipped {
			if _, err := tx.Exec(
				`UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`,
				string(core.AgentStatusOffline), now, agent.ID,
			); err != nil {
				return fmt.Errorf("mark offline: %w", err)
			}
			flipped[i].Status = core.AgentStatusOffline
			if err := insertActivity(tx, core.Activity{
				AgentID:      agent.ID,
				ActivityType: core.ActivityAgentOffline,
				Message:      fmt.Sprintf("%s went offline (no heartbeat)", agent.Name),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flipped, nil
}

func scanAgent(row scanner) (core.Agent, error) {
	var a core.Agent
	var role, currentTask, lastHeartbeat sql.NullString
	var status, createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.Name, &role, &a.SessionKey, &status, &currentTask, &lastHeartbeat, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Agent{}, err
		}
		return core.Agent{}, fmt.Errorf("scan agent: %w", err)
	}
	a.Role = role.String
	a.CurrentTaskID = currentTask.String
	a.Status = core.AgentStatus(status)
	if lastHeartbeat.Valid {
		a.LastHeartbeat, _ = time.Parse(time.RFC3339Nano, lastHeartbeat.String)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return a, nil
}
