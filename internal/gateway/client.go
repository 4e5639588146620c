// Package gateway is a client for the agent gateway's config API. The
// dashboard proxies config reads, patches, agent edits, and restarts
// through it.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dehyl/missionctl/internal/core"
)

var (
	// ErrDisabled is returned when no gateway URL/token is configured.
	ErrDisabled = errors.New("gateway not configured")
	// ErrConflict is returned when a guarded update loses the race with a
	// concurrent config change too many times.
	ErrConflict = errors.New("gateway config changed concurrently")
)

const (
	defaultTimeout = 10 * time.Second
	casRetries     = 3
)

// Client talks to the gateway's config endpoint. All gateway actions go
// through one POST route; the action field selects the operation.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a gateway client. An empty baseURL yields a disabled client
// whose every call returns ErrDisabled.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the client has a gateway to talk to.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type gatewayResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ConfigSnapshot is one read of the gateway config. Version is a digest of
// the raw config document; guarded writes compare it before patching.
type ConfigSnapshot struct {
	Raw     json.RawMessage
	Version string
}

// Config unmarshals the snapshot into a generic document.
func (s ConfigSnapshot) Config() (map[string]any, error) {
	var cfg map[string]any
	if err := json.Unmarshal(s.Raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse gateway config: %w", err)
	}
	return cfg, nil
}

// AgentList pulls agents.list out of the snapshot. Missing sections yield
// an empty list, matching how the gateway treats them.
func (s ConfigSnapshot) AgentList() ([]map[string]any, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	agents, _ := cfg["agents"].(map[string]any)
	rawList, _ := agents["list"].([]any)
	out := make([]map[string]any, 0, len(rawList))
	for _, entry := range rawList {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	var result json.RawMessage
	err = c.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/gateway/config", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("gateway request: %w", err)
		}
		defer resp.Body.Close()

		var gr gatewayResponse
		if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
		if !gr.OK {
			if gr.Error == "" {
				gr.Error = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
			}
			return fmt.Errorf("gateway: %s", gr.Error)
		}
		result = gr.Result
		return nil
	})
	return result, err
}

// GetConfig reads the current gateway configuration.
func (c *Client) GetConfig(ctx context.Context) (ConfigSnapshot, error) {
	result, err := c.call(ctx, map[string]any{"action": "config.get"})
	if err != nil {
		return ConfigSnapshot{}, err
	}
	var wrapper struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(result, &wrapper); err != nil {
		return ConfigSnapshot{}, fmt.Errorf("parse config.get result: %w", err)
	}
	sum := sha256.Sum256(wrapper.Config)
	return ConfigSnapshot{Raw: wrapper.Config, Version: hex.EncodeToString(sum[:])}, nil
}

// PatchConfig applies a partial config document. The gateway expects the
// patch as an embedded JSON string, not a nested object.
func (c *Client) PatchConfig(ctx context.Context, patch any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal config patch: %w", err)
	}
	_, err = c.call(ctx, map[string]any{
		"action": "config.patch",
		"raw":    string(raw),
	})
	return err
}

// Restart asks the gateway to restart itself.
func (c *Client) Restart(ctx context.Context, reason string) error {
	if reason == "" {
		reason = "missionctl agent management"
	}
	_, err := c.call(ctx, map[string]any{
		"action": "restart",
		"reason": reason,
	})
	return err
}

// Agents returns the agent entries from the gateway config.
func (c *Client) Agents(ctx context.Context) ([]map[string]any, error) {
	snap, err := c.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return snap.AgentList()
}

// UpdateAgent merges updates into one agent entry and writes the agents
// section back. The write is guarded: the config version read at the start
// must still match immediately before patching, otherwise the merge is
// redone from fresh state. After casRetries losses it gives up with
// ErrConflict.
func (c *Client) UpdateAgent(ctx context.Context, agentID string, updates map[string]any) error {
	if agentID == "" {
		return fmt.Errorf("%w: agent id required", core.ErrInvalid)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		snap, err := c.GetConfig(ctx)
		if err != nil {
			return err
		}
		cfg, err := snap.Config()
		if err != nil {
			return err
		}

		agents, _ := cfg["agents"].(map[string]any)
		if agents == nil {
			agents = map[string]any{}
		}
		rawList, _ := agents["list"].([]any)

		found := false
		for i, entry := range rawList {
			m, ok := entry.(map[string]any)
			if !ok || m["id"] != agentID {
				continue
			}
			merged := make(map[string]any, len(m)+len(updates))
			for k, v := range m {
				merged[k] = v
			}
			for k, v := range updates {
				merged[k] = v
			}
			rawList[i] = merged
			found = true
			break
		}
		if !found {
			return fmt.Errorf("gateway agent %q: %w", agentID, core.ErrNotFound)
		}
		agents["list"] = rawList

		// Re-read right before writing; a version moved under us means
		// someone else patched, so merge again from their state.
		check, err := c.GetConfig(ctx)
		if err != nil {
			return err
		}
		if check.Version != snap.Version {
			log.Debug().Str("agent", agentID).Int("attempt", attempt+1).Msg("gateway config moved, retrying update")
			continue
		}

		return c.PatchConfig(ctx, map[string]any{"agents": agents})
	}
	return fmt.Errorf("update agent %q: %w", agentID, ErrConflict)
}
