package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ducphamhoang/momentum-sync/internal/core"
	"github.com/ducphamhoang/momentum-sync/internal/storage"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.GetTasks(r.Context(), userID(r))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []core.Task{}
	}
	s.respondJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Importance  string     `json:"importance"`
		DueDate     *time.Time `json:"due_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	importance := core.Importance(input.Importance)
	if input.Importance != "" && !importance.Valid() {
		s.respondError(w, http.StatusBadRequest, "importance must be low, medium, or high")
		return
	}

	task, err := s.tasks.CreateTask(r.Context(), userID(r), storage.TaskInput{
		Title:       input.Title,
		Description: input.Description,
		Importance:  importance,
		DueDate:     input.DueDate,
	})
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	task, err := s.tasks.GetByID(r.Context(), userID(r), id)
	if errors.Is(err, core.ErrTaskNotFound) {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	var input struct {
		Title        *string    `json:"title"`
		Description  *string    `json:"description"`
		IsCompleted  *bool      `json:"is_completed"`
		Importance   *string    `json:"importance"`
		DueDate      *time.Time `json:"due_date"`
		ClearDueDate bool       `json:"clear_due_date"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if input.ClearDueDate && input.DueDate != nil {
		s.respondError(w, http.StatusBadRequest, "due_date and clear_due_date are mutually exclusive")
		return
	}

	patch := storage.TaskPatch{
		Title:        input.Title,
		Description:  input.Description,
		IsCompleted:  input.IsCompleted,
		DueDate:      input.DueDate,
		ClearDueDate: input.ClearDueDate,
	}
	if input.Importance != nil {
		importance := core.Importance(*input.Importance)
		if !importance.Valid() {
			s.respondError(w, http.StatusBadRequest, "importance must be low, medium, or high")
			return
		}
		patch.Importance = &importance
	}

	// A user edit bumps the local-edit stamp so the next sync pushes it
	now := time.Now().UTC()
	patch.UpdatedAt = &now

	task, err := s.tasks.UpdateTask(r.Context(), userID(r), id, patch)
	if errors.Is(err, core.ErrTaskNotFound) {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	if err := s.tasks.DeleteTask(r.Context(), userID(r), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id := core.TaskID(chi.URLParam(r, "taskID"))

	completed := true
	now := time.Now().UTC()
	task, err := s.tasks.UpdateTask(r.Context(), userID(r), id, storage.TaskPatch{
		IsCompleted: &completed,
		UpdatedAt:   &now,
	})
	if errors.Is(err, core.ErrTaskNotFound) {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}
