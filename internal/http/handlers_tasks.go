package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/storage"
)

type createTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	DueDate          string `json:"due_date"`
	AssigneeSession  string `json:"assignee_session"`
	CreatedBySession string `json:"created_by_session"`
}

func (s *Service) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTasks(w, r)
	case http.MethodPost:
		s.createTask(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	id = strings.Trim(id, "/")
	if id == "" {
		writeErrorMsg(w, http.StatusBadRequest, "task id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getTask(w, r, id)
	case http.MethodPatch:
		s.updateTask(w, r, id)
	case http.MethodDelete:
		s.deleteTask(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	priority := q.Get("priority")
	if status != "" && !core.ValidTaskStatus(core.TaskStatus(status)) {
		writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", status))
		return
	}
	if priority != "" && !core.ValidPriority(core.Priority(priority)) {
		writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", priority))
		return
	}

	tasks, err := s.store.ListTasks(storage.TaskFilter{
		Status:          status,
		Priority:        priority,
		AssigneeSession: q.Get("assignee_session"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []core.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Service) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "title required")
		return
	}
	priority := core.PriorityMedium
	if req.Priority != "" {
		priority = core.Priority(req.Priority)
		if !core.ValidPriority(priority) {
			writeErrorMsg(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", req.Priority))
			return
		}
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := parseDueDate(req.DueDate)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, err.Error())
			return
		}
		dueDate = &parsed
	}

	var creatorID string
	if req.CreatedBySession != "" {
		if creator, err := s.store.AgentBySession(req.CreatedBySession); err == nil {
			creatorID = creator.ID
		}
	}

	// Status is assigned only when the session actually resolves; a bogus
	// assignee leaves the task in the inbox.
	status := core.TaskStatusInbox
	var assigneeID string
	if req.AssigneeSession != "" {
		if assignee, err := s.store.AgentBySession(req.AssigneeSession); err == nil {
			assigneeID = assignee.ID
			status = core.TaskStatusAssigned
		}
	}

	task, err := s.store.CreateTask(storage.CreateTaskInput{
		Task: core.Task{
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Status:      status,
			Priority:    priority,
			CreatedBy:   creatorID,
			DueDate:     dueDate,
		},
		AssigneeID: assigneeID,
		CreatorID:  creatorID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcast(map[string]any{"type": "task_created", "task": task})
	writeJSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (s *Service) getTask(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := s.store.GetTask(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if detail.Assignees == nil {
		detail.Assignees = []core.Assignee{}
	}
	if detail.Messages == nil {
		detail.Messages = []core.Message{}
	}
	writeJSON(w, http.StatusOK, detail)
}

type updateTaskRequest struct {
	Status       *string `json:"status"`
	Priority     *string `json:"priority"`
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	DueDate      *string `json:"due_date"`
	AgentSession string  `json:"agent_session"`
	Message      string  `json:"message"`
}

func (s *Service) updateTask(w http.ResponseWriter, r *http.Request, id string) {
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}

	patch := core.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		st := core.TaskStatus(*req.Status)
		patch.Status = &st
	}
	if req.Priority != nil {
		p := core.Priority(*req.Priority)
		patch.Priority = &p
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			patch.ClearDueDate = true
		} else {
			parsed, err := parseDueDate(*req.DueDate)
			if err != nil {
				writeErrorMsg(w, http.StatusBadRequest, err.Error())
				return
			}
			patch.DueDate = &parsed
		}
	}

	actorID, actorName := s.resolveActor(req.AgentSession, "System")

	task, err := s.store.UpdateTask(id, storage.TaskUpdate{
		Patch:     patch,
		ActorID:   actorID,
		ActorName: actorName,
		Comment:   req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.broadcast(map[string]any{"type": "task_updated", "task": task})
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Service) deleteTask(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.store.DeleteTask(id); err != nil {
		writeError(w, err)
		return
	}
	s.broadcast(map[string]any{"type": "task_deleted", "task_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// resolveActor maps an optional session key to agent identity, falling
// back to the given display name.
func (s *Service) resolveActor(session, fallback string) (id, name string) {
	name = fallback
	if session == "" {
		return "", name
	}
	agent, err := s.store.AgentBySession(session)
	if err != nil {
		return "", name
	}
	return agent.ID, agent.Name
}

func parseDueDate(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due_date %q", v)
}
