package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dehyl/missionctl/internal/config"
	"github.com/dehyl/missionctl/internal/gateway"
	"github.com/dehyl/missionctl/internal/storage/sqlite"
)

// fakeGateway answers the single-endpoint config API.
type fakeGateway struct {
	mu      sync.Mutex
	config  map[string]any
	patches []string
	restart int
}

func newGatewayEnv(t *testing.T) (*testEnv, *fakeGateway) {
	t.Helper()
	fake := &fakeGateway{
		config: map[string]any{
			"agents": map[string]any{
				"list": []any{
					map[string]any{"id": "scout", "workspace": "/srv/scout"},
				},
			},
		},
	}
	gwSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		fake.mu.Lock()
		defer fake.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch body["action"] {
		case "config.get":
			json.NewEncoder(w).Encode(map[string]any{
				"ok": true, "result": map[string]any{"config": fake.config},
			})
		case "config.patch":
			raw, _ := body["raw"].(string)
			fake.patches = append(fake.patches, raw)
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		case "restart":
			fake.restart++
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "unknown action"})
		}
	}))
	t.Cleanup(gwSrv.Close)

	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewService(st).
		WithGateway(gateway.New(gwSrv.URL, "tok")).
		WithConfig(&config.Config{GatewayURL: gwSrv.URL, GatewayToken: "tok"})
	srv := httptest.NewServer(NewRouter(svc, nil, nil, nil))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, svc: svc}, fake
}

func TestProxyGetConfig(t *testing.T) {
	env, _ := newGatewayEnv(t)

	resp := env.get(t, "/api/gateway/config")
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[struct {
		Config  map[string]any `json:"config"`
		Version string         `json:"version"`
	}](t, resp)
	if body.Version == "" {
		t.Fatal("expected version token")
	}
	if _, ok := body.Config["agents"]; !ok {
		t.Fatalf("expected config document, got %+v", body.Config)
	}
}

func TestProxyPatchAndRestart(t *testing.T) {
	env, fake := newGatewayEnv(t)

	resp := env.post(t, "/api/gateway/config", map[string]any{
		"action": "patch",
		"patch":  map[string]any{"logLevel": "debug"},
	})
	requireStatus(t, resp, http.StatusOK)
	if len(fake.patches) != 1 {
		t.Fatalf("expected 1 patch forwarded, got %d", len(fake.patches))
	}

	resp = env.post(t, "/api/gateway/config", map[string]any{"action": "restart"})
	requireStatus(t, resp, http.StatusOK)
	if fake.restart != 1 {
		t.Fatalf("expected restart forwarded")
	}

	requireStatus(t, env.post(t, "/api/gateway/config", map[string]any{"action": "reboot"}), http.StatusBadRequest)
	requireStatus(t, env.post(t, "/api/gateway/config", map[string]any{"action": "patch"}), http.StatusBadRequest)
}

func TestProxyAgents(t *testing.T) {
	env, fake := newGatewayEnv(t)

	resp := env.get(t, "/api/gateway/agents")
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[struct {
		Agents []map[string]any `json:"agents"`
	}](t, resp)
	if len(body.Agents) != 1 || body.Agents[0]["id"] != "scout" {
		t.Fatalf("expected scout listed, got %+v", body.Agents)
	}

	resp = env.patch(t, "/api/gateway/agents", map[string]any{
		"agent_id": "scout",
		"updates":  map[string]any{"workspace": "/srv/scout-v2"},
	})
	requireStatus(t, resp, http.StatusOK)
	if len(fake.patches) != 1 {
		t.Fatalf("expected merged patch forwarded, got %d", len(fake.patches))
	}

	requireStatus(t, env.patch(t, "/api/gateway/agents", map[string]any{
		"updates": map[string]any{"x": 1},
	}), http.StatusBadRequest)
	requireStatus(t, env.patch(t, "/api/gateway/agents", map[string]any{
		"agent_id": "ghost",
	}), http.StatusNotFound)
}

func TestGatewayDisabled(t *testing.T) {
	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := NewService(st).WithGateway(gateway.New("", "")).WithConfig(&config.Config{})
	srv := httptest.NewServer(NewRouter(svc, nil, nil, nil))
	t.Cleanup(srv.Close)
	env := &testEnv{srv: srv, svc: svc}

	requireStatus(t, env.get(t, "/api/gateway/config"), http.StatusServiceUnavailable)
	requireStatus(t, env.get(t, "/api/gateway/agents"), http.StatusServiceUnavailable)
}

func TestHealthReportsConfig(t *testing.T) {
	env, _ := newGatewayEnv(t)
	body := decodeJSON[struct {
		Status string          `json:"status"`
		Config map[string]bool `json:"config"`
	}](t, env.get(t, "/api/health"))
	if body.Status != "ok" {
		t.Fatalf("expected ok, got %s", body.Status)
	}
	if !body.Config["gateway_url"] || !body.Config["gateway_token"] || !body.Config["database"] {
		t.Fatalf("expected all flags set, got %+v", body.Config)
	}
}

func TestHealthMissingConfig(t *testing.T) {
	st, err := sqlite.NewInMemory()
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	svc := NewService(st).WithConfig(&config.Config{})
	srv := httptest.NewServer(NewRouter(svc, nil, nil, nil))
	t.Cleanup(srv.Close)
	env := &testEnv{srv: srv, svc: svc}

	body := decodeJSON[struct {
		Status string          `json:"status"`
		Config map[string]bool `json:"config"`
	}](t, env.get(t, "/api/health"))
	if body.Status != "missing_config" {
		t.Fatalf("expected missing_config, got %s", body.Status)
	}
	if body.Config["gateway_url"] {
		t.Fatalf("expected gateway_url flag false, got %+v", body.Config)
	}
}
