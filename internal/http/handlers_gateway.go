package httpapi

import (
	"encoding/json"
	"net/http"
)

func (s *Service) handleGatewayConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.gatewayGetConfig(w, r)
	case http.MethodPost:
		s.gatewayPostConfig(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) gatewayGetConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := s.gw.GetConfig(r.Context())
	if err != nil {
		s.recordGateway("config.get", err)
		writeError(w, err)
		return
	}
	s.recordGateway("config.get", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"config":  json.RawMessage(snap.Raw),
		"version": snap.Version,
	})
}

type gatewayConfigRequest struct {
	Action string          `json:"action"`
	Patch  json.RawMessage `json:"patch"`
	Reason string          `json:"reason"`
}

func (s *Service) gatewayPostConfig(w http.ResponseWriter, r *http.Request) {
	var req gatewayConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch req.Action {
	case "restart":
		if err := s.gw.Restart(r.Context(), req.Reason); err != nil {
			s.recordGateway("restart", err)
			writeError(w, err)
			return
		}
		s.recordGateway("restart", nil)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "patch":
		if len(req.Patch) == 0 {
			writeErrorMsg(w, http.StatusBadRequest, "patch required")
			return
		}
		if err := s.gw.PatchConfig(r.Context(), req.Patch); err != nil {
			s.recordGateway("config.patch", err)
			writeError(w, err)
			return
		}
		s.recordGateway("config.patch", nil)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeErrorMsg(w, http.StatusBadRequest, "invalid action, use 'restart' or 'patch'")
	}
}

func (s *Service) handleGatewayAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.gatewayListAgents(w, r)
	case http.MethodPatch:
		s.gatewayUpdateAgent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) gatewayListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.gw.Agents(r.Context())
	if err != nil {
		s.recordGateway("agents.list", err)
		writeError(w, err)
		return
	}
	s.recordGateway("agents.list", nil)
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

type gatewayAgentUpdateRequest struct {
	AgentID string         `json:"agent_id"`
	Updates map[string]any `json:"updates"`
}

func (s *Service) gatewayUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var req gatewayAgentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AgentID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	if err := s.gw.UpdateAgent(r.Context(), req.AgentID, req.Updates); err != nil {
		s.recordGateway("agents.update", err)
		writeError(w, err)
		return
	}
	s.recordGateway("agents.update", nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Service) recordGateway(action string, err error) {
	if s.met == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.met.RecordGatewayCall(action, result)
}
