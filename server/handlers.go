package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/taskdeck/taskdeck/janitor"
	"github.com/taskdeck/taskdeck/summary"
	"github.com/taskdeck/taskdeck/task"
)

//go:embed templates/daily.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/daily.html"))

// submitRequest is the body of POST /submit.
type submitRequest struct {
	UserID    string        `json:"user_id"`
	TaskCount *int          `json:"task_count"`
	Tasks     []taskPayload `json:"tasks"`
}

type taskPayload struct {
	TaskName      string        `json:"taskName"`
	Priority      string        `json:"priority"`
	Description   string        `json:"description"`
	Dependencies  string        `json:"dependencies,omitempty"`
	EstimatedTime estimatedTime `json:"estimatedTime"`
}

type estimatedTime struct {
	Value json.Number `json:"value"`
	Unit  string      `json:"unit"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, httpStatus int, status, message string) {
	writeJSON(w, httpStatus, map[string]string{"status": status, "message": message})
}

// handleSubmit accepts a task batch, persists it, posts the summary to the
// channel, and schedules cleanup of older summaries for the same owner and
// date. Validation happens before any write; chat failures after the write
// are logged but do not fail the submission, and the stored batch is never
// rolled back.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, "error", "Invalid or missing JSON data")
		return
	}
	if req.UserID == "" {
		writeStatus(w, http.StatusBadRequest, "error", "Missing user_id")
		return
	}
	if req.TaskCount == nil || len(req.Tasks) != *req.TaskCount {
		writeStatus(w, http.StatusBadRequest, "error", "Task count mismatch")
		return
	}

	date := task.DisplayDate(s.now())
	batch := make([]*task.Task, 0, len(req.Tasks))
	for i, p := range req.Tasks {
		prio, err := task.ParsePriority(p.Priority)
		if err != nil {
			writeStatus(w, http.StatusBadRequest, "error",
				fmt.Sprintf("Task %d: %v", i+1, err))
			return
		}
		if p.TaskName == "" {
			writeStatus(w, http.StatusBadRequest, "error",
				fmt.Sprintf("Task %d: missing taskName", i+1))
			return
		}
		batch = append(batch, &task.Task{
			Owner:         req.UserID,
			Date:          date,
			Name:          p.TaskName,
			Priority:      prio,
			Description:   p.Description,
			DependsOn:     p.Dependencies,
			EstimatedTime: fmt.Sprintf("%s %s", p.EstimatedTime.Value, p.EstimatedTime.Unit),
		})
	}

	ctx := r.Context()
	if err := s.store.InsertTasks(ctx, batch); err != nil {
		s.logger.Error("store task batch", "owner", req.UserID, "error", err)
		writeStatus(w, http.StatusInternalServerError, "error", "Failed to store tasks")
		return
	}

	s.postSummary(ctx, req.UserID, date)
	writeStatus(w, http.StatusOK, "success", "Tasks submitted successfully!")
}

// postSummary renders and posts a fresh summary, records the message
// reference, and enqueues cleanup of the superseded ones. All failures are
// logged and swallowed; the task records already written stand either way.
func (s *Server) postSummary(ctx context.Context, owner, date string) {
	tasks, err := s.store.ListTasks(ctx, owner, date)
	if err != nil {
		s.logger.Error("list tasks for summary", "owner", owner, "error", err)
		return
	}
	messageID, err := s.chat.ExecuteWebhook(ctx, summary.Message(owner, date, tasks))
	if err != nil {
		s.logger.Error("post summary", "owner", owner, "error", err)
		return
	}
	if err := s.store.InsertSummaryRef(ctx, &task.SummaryRef{
		Owner: owner, Date: date, MessageID: messageID,
	}); err != nil {
		s.logger.Error("record summary message", "owner", owner, "messageId", messageID, "error", err)
		return
	}
	s.cleaner.Enqueue(janitor.Job{Owner: owner, Date: date, KeepMessageID: messageID})
}

// handleForm serves the task submission page, passing the owner id through
// for the subsequent POST. With form signing enabled the id comes from the
// signed token instead of the query string.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if s.cfg.Auth.FormSecret != "" {
		id, err := verifyFormToken(s.cfg.Auth.FormSecret, r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid or expired form link", http.StatusForbidden)
			return
		}
		userID = id
	}
	if userID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formTemplate.Execute(w, map[string]string{"UserID": userID}); err != nil {
		s.logger.Error("render form", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}
