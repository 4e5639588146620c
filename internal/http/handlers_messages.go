package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

type addMessageRequest struct {
	TaskID       string   `json:"task_id"`
	Content      string   `json:"content"`
	AgentSession string   `json:"agent_session"`
	Mentions     []string `json:"mentions"`
}

func (s *Service) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TaskID == "" || strings.TrimSpace(req.Content) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "task_id and content required")
		return
	}

	actorID, actorName := s.resolveActor(req.AgentSession, "Anonymous")

	msg, mentioned, err := s.store.AddMessage(storage.MessageInput{
		TaskID:    req.TaskID,
		Content:   req.Content,
		ActorID:   actorID,
		ActorName: actorName,
		Mentions:  req.Mentions,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	event := map[string]any{"type": "message_added", "message": msg}
	if len(mentioned) > 0 {
		names := make([]string, len(mentioned))
		for i, a := range mentioned {
			names[i] = a.Name
		}
		event["mentioned"] = names
	}
	s.broadcast(event)
	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

type notifyRequest struct {
	ToSession   string `json:"to_session"`
	FromSession string `json:"from_session"`
	TaskID      string `json:"task_id"`
	Content     string `json:"content"`
}

func (s *Service) handleNotify(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.sendNotification(w, r)
	case http.MethodGet:
		s.pendingNotifications(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ToSession == "" || strings.TrimSpace(req.Content) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "to_session and content required")
		return
	}

	target, err := s.store.AgentBySession(req.ToSession)
	if err != nil {
		writeError(w, err)
		return
	}
	fromID, _ := s.resolveActor(req.FromSession, "")

	notification, err := s.store.CreateNotification(core.Notification{
		MentionedAgentID: target.ID,
		FromAgentID:      fromID,
		TaskID:           req.TaskID,
		Content:          req.Content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"notification": notification,
		"sent_to":      target.Name,
	})
}

func (s *Service) pendingNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session := q.Get("session")
	if session == "" {
		writeErrorMsg(w, http.StatusBadRequest, "session required")
		return
	}
	markDelivered := q.Get("mark_delivered") != "false"

	notifications, err := s.store.PendingNotifications(session, markDelivered)
	if err != nil {
		writeError(w, err)
		return
	}
	if notifications == nil {
		notifications = []core.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Service) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeErrorMsg(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	activity, err := s.store.RecentActivity(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if activity == nil {
		activity = []core.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}
