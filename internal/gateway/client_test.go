package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dehyl/missionctl/internal/core"
)

// fakeGateway implements the single-endpoint config API.
type fakeGateway struct {
	mu      sync.Mutex
	config  map[string]any
	patches []string
	restart []string
	// mutate runs under the lock before each config.get response.
	mutate func(cfg map[string]any)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		config: map[string]any{
			"agents": map[string]any{
				"defaults": map[string]any{"model": "standard"},
				"list": []any{
					map[string]any{"id": "scout", "workspace": "/srv/scout"},
					map[string]any{"id": "builder", "workspace": "/srv/builder"},
				},
			},
		},
	}
}

func (f *fakeGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		switch body["action"] {
		case "config.get":
			if f.mutate != nil {
				f.mutate(f.config)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"config": f.config},
			})
		case "config.patch":
			raw, _ := body["raw"].(string)
			f.patches = append(f.patches, raw)
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case "restart":
			reason, _ := body["reason"].(string)
			f.restart = append(f.restart, reason)
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown action"})
		}
	}
}

func newTestClient(t *testing.T, fake *fakeGateway) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token")
}

func TestGetConfigSnapshot(t *testing.T) {
	c := newTestClient(t, newFakeGateway())

	snap, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Version)

	agents, err := snap.AgentList()
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "scout", agents[0]["id"])

	// Same document, same version.
	again, err := c.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap.Version, again.Version)
}

func TestPatchConfigSendsEmbeddedJSON(t *testing.T) {
	fake := newFakeGateway()
	c := newTestClient(t, fake)

	err := c.PatchConfig(context.Background(), map[string]any{"logLevel": "debug"})
	require.NoError(t, err)

	require.Len(t, fake.patches, 1)
	var patch map[string]any
	require.NoError(t, json.Unmarshal([]byte(fake.patches[0]), &patch))
	assert.Equal(t, "debug", patch["logLevel"])
}

func TestRestartDefaultReason(t *testing.T) {
	fake := newFakeGateway()
	c := newTestClient(t, fake)

	require.NoError(t, c.Restart(context.Background(), ""))
	require.Len(t, fake.restart, 1)
	assert.Equal(t, "missionctl agent management", fake.restart[0])
}

func TestUpdateAgentMerges(t *testing.T) {
	fake := newFakeGateway()
	c := newTestClient(t, fake)

	err := c.UpdateAgent(context.Background(), "scout", map[string]any{"workspace": "/srv/scout-v2"})
	require.NoError(t, err)

	require.Len(t, fake.patches, 1)
	var patch struct {
		Agents struct {
			List []map[string]any `json:"list"`
		} `json:"agents"`
	}
	require.NoError(t, json.Unmarshal([]byte(fake.patches[0]), &patch))
	require.Len(t, patch.Agents.List, 2)
	assert.Equal(t, "/srv/scout-v2", patch.Agents.List[0]["workspace"])
	assert.Equal(t, "/srv/builder", patch.Agents.List[1]["workspace"])
}

func TestUpdateAgentUnknown(t *testing.T) {
	c := newTestClient(t, newFakeGateway())
	err := c.UpdateAgent(context.Background(), "ghost", map[string]any{"workspace": "/x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateAgentConflictAfterRetries(t *testing.T) {
	fake := newFakeGateway()
	// Every read sees a different document, so the pre-write check never
	// matches the first read.
	n := 0
	fake.mutate = func(cfg map[string]any) {
		n++
		cfg["rev"] = fmt.Sprintf("r%d", n)
	}
	c := newTestClient(t, fake)

	err := c.UpdateAgent(context.Background(), "scout", map[string]any{"workspace": "/x"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, fake.patches)
}

func TestDisabledClient(t *testing.T) {
	c := New("", "")
	_, err := c.GetConfig(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, c.Enabled())
}

func TestGatewayErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "boom"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.GetConfig(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", WithHTTPClient(&http.Client{Timeout: time.Second}))
	for i := 0; i < 5; i++ {
		_, err := c.GetConfig(context.Background())
		require.Error(t, err)
	}

	_, err := c.GetConfig(context.Background())
	assert.True(t, errors.Is(err, ErrCircuitOpen), "expected breaker open, got %v", err)
}
