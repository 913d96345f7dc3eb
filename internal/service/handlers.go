package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ujjawalkaushik1110/comet-agentic-browser/api/schemas"
)

// Indirection for deterministic IDs in tests.
var uuidNewString = uuid.NewString

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := cacheJSON.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Response encoding failed.", zap.Error(err))
	}
}

func (s *Server) errorJSON(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeBrowseRequest parses, normalizes and validates the request body.
// A false return means the error response has already been written.
func (s *Server) decodeBrowseRequest(w http.ResponseWriter, r *http.Request) (schemas.BrowseRequest, bool) {
	var req schemas.BrowseRequest
	if err := cacheJSON.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorJSON(w, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.errorJSON(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// -- Health --

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         s.version,
		"uptime":          time.Since(s.startedAt).Seconds(),
		"redis_connected": s.cache.Connected(r.Context()),
		"active_tasks":    s.activeTasks.Load(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// -- Browse --

// handleBrowse accepts a goal, answers immediately with a task ID and runs
// the agent in the background. A cache hit short-circuits to a completed
// task with the stored report attached.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBrowseRequest(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	task := schemas.Task{
		ID:        uuidNewString(),
		Goal:      req.Goal,
		Status:    schemas.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if report, hit := s.cache.Get(r.Context(), req); hit {
		s.metrics.cacheHits.Inc()
		task.Status = schemas.TaskCompleted
		task.Report = report
		task.Cached = true
		if err := s.store.Create(r.Context(), task); err != nil {
			s.errorJSON(w, http.StatusInternalServerError, "Failed to record task")
			return
		}
		s.writeJSON(w, http.StatusOK, task)
		return
	}
	if s.cache.Enabled() {
		s.metrics.cacheMisses.Inc()
	}

	if err := s.store.Create(r.Context(), task); err != nil {
		s.errorJSON(w, http.StatusInternalServerError, "Failed to record task")
		return
	}

	s.background.Add(1)
	s.trackTask(1)
	// The run must outlive the request; only its values (trace IDs etc.)
	// carry over, not its cancellation.
	runCtx := context.WithoutCancel(r.Context())
	go func() {
		defer s.background.Done()
		defer s.trackTask(-1)
		s.executeTask(runCtx, task, req)
	}()

	s.writeJSON(w, http.StatusAccepted, task)
}

// handleBrowseSync runs the agent inline and answers with the outcome.
func (s *Server) handleBrowseSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeBrowseRequest(w, r)
	if !ok {
		return
	}

	if report, hit := s.cache.Get(r.Context(), req); hit {
		s.metrics.cacheHits.Inc()
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":    string(schemas.TaskCompleted),
			"result":    report.Result,
			"cached":    true,
			"duration":  0.0,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if s.cache.Enabled() {
		s.metrics.cacheMisses.Inc()
	}

	ctx, cancel := context.WithTimeout(r.Context(), req.Timeout())
	defer cancel()

	s.trackTask(1)
	start := time.Now()
	report, err := s.runner.Run(ctx, req)
	duration := time.Since(start)
	s.trackTask(-1)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.errorJSON(w, http.StatusRequestTimeout, "Browse request timed out")
		return
	}
	if err != nil {
		s.errorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.FinalState == schemas.RunStateFailed {
		s.errorJSON(w, http.StatusInternalServerError, report.Result)
		return
	}

	if report.FinalState == schemas.RunStateCompleted {
		s.cache.Set(r.Context(), req, report)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    string(schemas.TaskCompleted),
		"result":    report.Result,
		"cached":    false,
		"duration":  duration.Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// executeTask drives one background browse run through the task lifecycle.
func (s *Server) executeTask(ctx context.Context, task schemas.Task, req schemas.BrowseRequest) {
	log := s.log.With(zap.String("task_id", task.ID))

	task.Status = schemas.TaskRunning
	task.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, task); err != nil {
		log.Error("Task status update failed.", zap.Error(err))
	}

	start := time.Now()
	report, err := s.runner.Run(ctx, req)
	task.Duration = time.Since(start).Seconds()
	task.UpdatedAt = time.Now().UTC()

	switch {
	case err != nil:
		task.Status = schemas.TaskFailed
		task.Error = err.Error()
	case report.FinalState == schemas.RunStateFailed:
		task.Status = schemas.TaskFailed
		task.Report = report
		task.Error = report.Result
	default:
		task.Status = schemas.TaskCompleted
		task.Report = report
		if report.FinalState == schemas.RunStateCompleted {
			s.cache.Set(ctx, req, report)
		}
	}

	if err := s.store.Update(ctx, task); err != nil {
		log.Error("Task result update failed.", zap.Error(err))
		return
	}
	log.Info("Background task finished.",
		zap.String("status", string(task.Status)),
		zap.Float64("duration", task.Duration))
}

func (s *Server) trackTask(delta int64) {
	s.metrics.activeTasks.Add(float64(delta))
	s.activeTasks.Add(delta)
}

// -- Tasks --

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, schemas.ErrTaskNotFound) {
		s.errorJSON(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		s.errorJSON(w, http.StatusInternalServerError, "Failed to load task")
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := schemas.TaskFilter{Status: schemas.TaskStatus(r.URL.Query().Get("status"))}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 50); err != nil {
		s.errorJSON(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.errorJSON(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	list, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.errorJSON(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, schemas.ErrTaskNotFound) {
		s.errorJSON(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		s.errorJSON(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted", "task_id": id})
}

// -- Cache --

func (s *Server) handleFlushCache(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Enabled() {
		s.errorJSON(w, http.StatusServiceUnavailable, "Cache is not enabled")
		return
	}
	if err := s.cache.Flush(r.Context()); err != nil {
		s.errorJSON(w, http.StatusInternalServerError, "Failed to flush cache")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Cache flushed"})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
