package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

type registerAgentRequest struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	SessionKey string `json:"session_key"`
	Status     string `json:"status"`
}

func (s *Service) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAgents(w, r)
	case http.MethodPost:
		s.registerAgent(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) listAgents(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !core.ValidAgentStatus(core.AgentStatus(status)) {
		writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", status))
		return
	}

	agents, err := s.store.ListAgents(core.AgentStatus(status))
	if err != nil {
		writeError(w, err)
		return
	}
	if agents == nil {
		agents = []core.Agent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Service) registerAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.SessionKey) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name and session_key are required")
		return
	}
	status := core.AgentStatusIdle
	if req.Status != "" {
		status = core.AgentStatus(req.Status)
		if !core.ValidAgentStatus(status) {
			writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", req.Status))
			return
		}
	}

	agent, err := s.store.UpsertAgent(core.Agent{
		Name:       strings.TrimSpace(req.Name),
		Role:       req.Role,
		SessionKey: strings.TrimSpace(req.SessionKey),
		Status:     status,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcast(map[string]any{"type": "agent_registered", "agent": agent})
	writeJSON(w, http.StatusCreated, map[string]any{"agent": agent})
}

type heartbeatRequest struct {
	SessionKey    string  `json:"session_key"`
	Status        string  `json:"status"`
	CurrentTaskID *string `json:"current_task_id"`
}

func (s *Service) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.SessionKey) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "session_key required")
		return
	}
	if req.Status != "" && !core.ValidAgentStatus(core.AgentStatus(req.Status)) {
		writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", req.Status))
		return
	}

	result, err := s.store.Heartbeat(storage.HeartbeatInput{
		SessionKey:    strings.TrimSpace(req.SessionKey),
		Status:        core.AgentStatus(req.Status),
		CurrentTaskID: req.CurrentTaskID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if result.Notifications == nil {
		result.Notifications = []core.Notification{}
	}
	if result.Tasks == nil {
		result.Tasks = []core.Task{}
	}

	if s.met != nil {
		s.met.HeartbeatsTotal.Inc()
		if agents, err := s.store.ListAgents(""); err == nil {
			online := 0
			for _, a := range agents {
				if a.Status != core.AgentStatusOffline {
					online++
				}
			}
			s.met.AgentsOnline.Set(float64(online))
		}
	}

	s.broadcast(map[string]any{"type": "agent_heartbeat", "agent": result.Agent})
	writeJSON(w, http.StatusOK, result)
}
