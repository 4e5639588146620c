package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskUsesDefaultSession(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tasks", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"task": Task{ID: "t1", Title: "demo", Status: TaskStatusInbox}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("secret"), WithSession("sess-1"))
	task, err := c.CreateTask(context.Background(), NewTask{Title: "demo"})
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "sess-1", got["created_by_session"])
}

func TestListTasksEncodesFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "blocked", q.Get("status"))
		assert.Equal(t, "urgent", q.Get("priority"))
		json.NewEncoder(w).Encode(map[string]any{"tasks": []Task{{ID: "t9"}}})
	}))
	defer srv.Close()

	tasks, err := New(srv.URL).ListTasks(context.Background(), TaskListOptions{
		Status:   TaskStatusBlocked,
		Priority: PriorityUrgent,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t9", tasks[0].ID)
}

func TestHeartbeatDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-1", body["session_key"])
		assert.Equal(t, "active", body["status"])
		json.NewEncoder(w).Encode(HeartbeatResult{
			Agent:         Agent{ID: "a1", Name: "scout", Status: AgentStatusActive},
			Notifications: []Notification{{ID: "n1", Content: "ping"}},
			Tasks:         []Task{{ID: "t1"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithSession("sess-1"))
	res, err := c.Heartbeat(context.Background(), "", HeartbeatOptions{Status: AgentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, "scout", res.Agent.Name)
	require.Len(t, res.Notifications, 1)
	require.Len(t, res.Tasks, 1)
}

func TestNotificationsMarkDeliveredFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sess-1", r.URL.Query().Get("session"))
		assert.Equal(t, "false", r.URL.Query().Get("mark_delivered"))
		json.NewEncoder(w).Encode(map[string]any{"notifications": []Notification{}})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Notifications(context.Background(), "sess-1", false)
	require.NoError(t, err)
}

func TestErrorEnvelopeSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "task not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Task(context.Background(), "nope")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "task not found")
}

func TestDeleteTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).DeleteTask(context.Background(), "t1"))
}

func TestGatewayProxyCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/gateway/config":
			if r.Method == http.MethodGet {
				json.NewEncoder(w).Encode(map[string]any{
					"config":  map[string]any{"agents": map[string]any{}},
					"version": "abc123",
				})
				return
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "restart", body["action"])
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case "/api/gateway/agents":
			assert.Equal(t, http.MethodPatch, r.Method)
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "scout", body["agent_id"])
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	cfg, err := c.GetGatewayConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Version)

	require.NoError(t, c.RestartGateway(context.Background(), "maintenance"))
	require.NoError(t, c.UpdateGatewayAgent(context.Background(), "scout", map[string]any{"workspace": "/tmp"}))
}
