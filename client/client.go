package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	APIKey  string
	Session string
}

type Option func(*Client)

// WithAPIKey sets the bearer key sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.APIKey = strings.TrimSpace(key)
	}
}

// WithSession sets a default agent session key, used as the actor on task
// updates and messages when the call does not name one.
func WithSession(session string) Option {
	return func(c *Client) {
		c.Session = strings.TrimSpace(session)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TaskListOptions filters ListTasks. Zero values mean no filter.
type TaskListOptions struct {
	Status          TaskStatus
	Priority        Priority
	AssigneeSession string
}

func (c *Client) ListTasks(ctx context.Context, opts TaskListOptions) ([]Task, error) {
	values := url.Values{}
	if opts.Status != "" {
		values.Set("status", string(opts.Status))
	}
	if opts.Priority != "" {
		values.Set("priority", string(opts.Priority))
	}
	if opts.AssigneeSession != "" {
		values.Set("assignee_session", opts.AssigneeSession)
	}
	endpoint := "/api/tasks"
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// NewTask is the payload for CreateTask. An AssigneeSession that resolves
// to a registered agent puts the task straight into assigned; otherwise it
// lands in the inbox.
type NewTask struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
	DueDate          string   `json:"due_date,omitempty"`
	AssigneeSession  string   `json:"assignee_session,omitempty"`
	CreatedBySession string   `json:"created_by_session,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, task NewTask) (Task, error) {
	if task.CreatedBySession == "" {
		task.CreatedBySession = c.Session
	}
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", task, &out); err != nil {
		return Task{}, err
	}
	return out.Task, nil
}

func (c *Client) Task(ctx context.Context, id string) (TaskDetail, error) {
	var out TaskDetail
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out); err != nil {
		return TaskDetail{}, err
	}
	return out, nil
}

// TaskUpdate is a partial task edit. Nil fields are left untouched; an
// empty DueDate string clears the due date. Message, when set, is added to
// the task's comment thread alongside the edit.
type TaskUpdate struct {
	Status       *TaskStatus `json:"status,omitempty"`
	Priority     *Priority   `json:"priority,omitempty"`
	Title        *string     `json:"title,omitempty"`
	Description  *string     `json:"description,omitempty"`
	DueDate      *string     `json:"due_date,omitempty"`
	AgentSession string      `json:"agent_session,omitempty"`
	Message      string      `json:"message,omitempty"`
}

func (c *Client) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (Task, error) {
	if upd.AgentSession == "" {
		upd.AgentSession = c.Session
	}
	var out struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), upd, &out); err != nil {
		return Task{}, err
	}
	return out.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Agents(ctx context.Context, status AgentStatus) ([]Agent, error) {
	endpoint := "/api/agents"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// Registration is the payload for RegisterAgent. Re-registering the same
// session key updates the existing agent in place.
type Registration struct {
	Name       string      `json:"name"`
	Role       string      `json:"role,omitempty"`
	SessionKey string      `json:"session_key"`
	Status     AgentStatus `json:"status,omitempty"`
}

func (c *Client) RegisterAgent(ctx context.Context, reg Registration) (Agent, error) {
	if reg.SessionKey == "" {
		reg.SessionKey = c.Session
	}
	var out struct {
		Agent Agent `json:"agent"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/agents", reg, &out); err != nil {
		return Agent{}, err
	}
	return out.Agent, nil
}

// HeartbeatOptions tunes a check-in. CurrentTaskID distinguishes unset
// (leave as is) from empty (clear).
type HeartbeatOptions struct {
	Status        AgentStatus `json:"status,omitempty"`
	CurrentTaskID *string     `json:"current_task_id,omitempty"`
}

func (c *Client) Heartbeat(ctx context.Context, sessionKey string, opts HeartbeatOptions) (HeartbeatResult, error) {
	if sessionKey == "" {
		sessionKey = c.Session
	}
	payload := struct {
		SessionKey string `json:"session_key"`
		HeartbeatOptions
	}{SessionKey: sessionKey, HeartbeatOptions: opts}
	var out HeartbeatResult
	if err := c.do(ctx, http.MethodPost, "/api/agents/heartbeat", payload, &out); err != nil {
		return HeartbeatResult{}, err
	}
	return out, nil
}

// NewMessage is the payload for AddMessage. Mentions name agents by display
// name or session key; resolved mentions get a notification.
type NewMessage struct {
	TaskID       string   `json:"task_id"`
	Content      string   `json:"content"`
	AgentSession string   `json:"agent_session,omitempty"`
	Mentions     []string `json:"mentions,omitempty"`
}

func (c *Client) AddMessage(ctx context.Context, msg NewMessage) (Message, error) {
	if msg.AgentSession == "" {
		msg.AgentSession = c.Session
	}
	var out struct {
		Message Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", msg, &out); err != nil {
		return Message{}, err
	}
	return out.Message, nil
}

// Notify sends a direct notification to the agent behind toSession.
func (c *Client) Notify(ctx context.Context, toSession, content string, taskID string) (Notification, error) {
	payload := map[string]string{
		"to_session":   toSession,
		"from_session": c.Session,
		"content":      content,
	}
	if taskID != "" {
		payload["task_id"] = taskID
	}
	var out struct {
		Notification Notification `json:"notification"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/notify", payload, &out); err != nil {
		return Notification{}, err
	}
	return out.Notification, nil
}

// Notifications fetches undelivered notifications for a session. Unless
// markDelivered is false, fetched notifications will not be returned again.
func (c *Client) Notifications(ctx context.Context, session string, markDelivered bool) ([]Notification, error) {
	if session == "" {
		session = c.Session
	}
	values := url.Values{}
	values.Set("session", session)
	if !markDelivered {
		values.Set("mark_delivered", "false")
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notify?"+values.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	endpoint := "/api/activity"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var out struct {
		Activity []Activity `json:"activity"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Activity, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

// GatewayConfig is one read of the proxied gateway configuration. Version
// identifies the exact document that was read.
type GatewayConfig struct {
	Config  json.RawMessage `json:"config"`
	Version string          `json:"version"`
}

func (c *Client) GetGatewayConfig(ctx context.Context) (GatewayConfig, error) {
	var out GatewayConfig
	if err := c.do(ctx, http.MethodGet, "/api/gateway/config", nil, &out); err != nil {
		return GatewayConfig{}, err
	}
	return out, nil
}

func (c *Client) PatchGatewayConfig(ctx context.Context, patch any) error {
	return c.do(ctx, http.MethodPost, "/api/gateway/config", map[string]any{
		"action": "patch",
		"patch":  patch,
	}, nil)
}

func (c *Client) RestartGateway(ctx context.Context, reason string) error {
	return c.do(ctx, http.MethodPost, "/api/gateway/config", map[string]any{
		"action": "restart",
		"reason": reason,
	}, nil)
}

func (c *Client) GatewayAgents(ctx context.Context) ([]map[string]any, error) {
	var out struct {
		Agents []map[string]any `json:"agents"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/gateway/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

func (c *Client) UpdateGatewayAgent(ctx context.Context, agentID string, updates map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/api/gateway/agents", map[string]any{
		"agent_id": agentID,
		"updates":  updates,
	}, nil)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
