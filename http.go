package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// --- HTTP API ---

// apiServer exposes the task operations over REST for dashboards and
// local tooling. It shares the TaskService and scheduler with the bot,
// so actions taken here keep the timers consistent.
type apiServer struct {
	tasks *TaskService
	sched *ReminderScheduler
	zone  *time.Location
	nowFn func() time.Time
}

func newAPIServer(tasks *TaskService, sched *ReminderScheduler, zone *time.Location, nowFn func() time.Time) *apiServer {
	return &apiServer{tasks: tasks, sched: sched, zone: zone, nowFn: nowFn}
}

func (a *apiServer) handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogging)

	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", a.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", a.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}/complete", a.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}/dismiss", a.handleDismiss).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}/snooze", a.handleSnooze).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}", a.handleDelete).Methods(http.MethodDelete)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logDebug("http request", "method", r.Method, "path", r.URL.Path, "durationMs", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logWarn("http encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func ownerParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("owner"))
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"timers": a.sched.PendingCount(),
	})
}

func (a *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter required")
		return
	}
	tasks, err := a.tasks.Pending(owner)
	if err != nil {
		logError("http list tasks failed", "owner", owner, "error", err)
		writeError(w, http.StatusInternalServerError, "listing tasks failed")
		return
	}
	if tasks == nil {
		tasks = []Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Time     string `json:"time"`
	Category string `json:"category,omitempty"`
	Urgency  string `json:"urgency,omitempty"`
}

func (a *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Owner == "" || req.Name == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "owner, name and time are required")
		return
	}
	now := a.nowFn().In(a.zone)
	at, ok := parseTimeExpr(req.Time, now)
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognized time expression")
		return
	}
	task, err := a.tasks.Create(req.Owner, req.Name, parseCategory(req.Category), parseUrgency(req.Urgency), at)
	if err != nil {
		logError("http create task failed", "owner", req.Owner, "error", err)
		writeError(w, http.StatusInternalServerError, "creating task failed")
		return
	}
	a.sched.Schedule(task.Owner, task.ID, task.ScheduledAt, renderReminder(task))
	writeJSON(w, http.StatusCreated, task)
}

func (a *apiServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	a.finish(w, r, a.tasks.Complete)
}

func (a *apiServer) handleDismiss(w http.ResponseWriter, r *http.Request) {
	a.finish(w, r, a.tasks.Dismiss)
}

func (a *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	a.finish(w, r, a.tasks.Dismiss)
}

// finish applies a terminal transition and drops the pending timer.
func (a *apiServer) finish(w http.ResponseWriter, r *http.Request, op func(owner, id string) (bool, error)) {
	owner := ownerParam(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter required")
		return
	}
	id := mux.Vars(r)["id"]
	ok, err := op(owner, id)
	if err != nil {
		logError("http task transition failed", "owner", owner, "taskId", id, "error", err)
		writeError(w, http.StatusInternalServerError, "updating task failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no scheduled task with that id")
		return
	}
	a.sched.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

func (a *apiServer) handleSnooze(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter required")
		return
	}
	id := mux.Vars(r)["id"]

	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be a positive integer")
		return
	}
	at := a.nowFn().In(a.zone).Add(time.Duration(req.Minutes) * time.Minute)
	ok, err := a.tasks.Retime(owner, id, at)
	if err != nil {
		logError("http snooze failed", "owner", owner, "taskId", id, "error", err)
		writeError(w, http.StatusInternalServerError, "snoozing task failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no scheduled task with that id")
		return
	}
	task, found, err := a.tasks.store.GetTask(owner, id)
	if err != nil || !found {
		writeError(w, http.StatusInternalServerError, "reloading task failed")
		return
	}
	a.sched.Schedule(owner, id, at, renderReminder(task))
	writeJSON(w, http.StatusOK, task)
}
