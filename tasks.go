package main

import (
	"fmt"
	"strings"
	"time"
)

// --- Task Lifecycle ---

// TaskService is the lifecycle state machine over a TaskStore:
// Scheduled → Completed | Dismissed, with Scheduled-only edits. Guarded
// transitions report applied=false for an unknown or already-terminal task;
// callers translate that into user-facing text, it is never an error here.
type TaskService struct {
	store TaskStore
	nowFn func() time.Time
}

func newTaskService(store TaskStore, nowFn func() time.Time) *TaskService {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &TaskService{store: store, nowFn: nowFn}
}

// Create persists a new Scheduled task. There is no uniqueness constraint on
// name or time; creation always succeeds short of a storage fault.
func (ts *TaskService) Create(owner, name string, category TaskCategory, urgency TaskUrgency, scheduledAt time.Time) (Task, error) {
	t := newTask(owner, name, category, urgency, scheduledAt, ts.nowFn())
	if err := ts.store.CreateTask(t); err != nil {
		return Task{}, err
	}
	ts.audit(owner, t.ID, "created", fmt.Sprintf("task created: %s", name))
	logInfo("task created", "id", t.ID, "owner", owner, "name", name, "at", scheduledAt.Format(time.RFC3339))
	return t, nil
}

// Complete moves a Scheduled task to Completed and stamps the completion
// time. Safe to call twice: the second call reports applied=false.
func (ts *TaskService) Complete(owner, id string) (bool, error) {
	applied, err := ts.store.UpdateStatus(owner, id, StatusCompleted, ts.nowFn())
	if err != nil {
		return false, err
	}
	if applied {
		ts.audit(owner, id, "completed", "task marked as completed")
		logInfo("task completed", "id", id, "owner", owner)
	}
	return applied, nil
}

// Dismiss moves a Scheduled task to Dismissed. Same guard shape as Complete.
func (ts *TaskService) Dismiss(owner, id string) (bool, error) {
	applied, err := ts.store.UpdateStatus(owner, id, StatusDismissed, ts.nowFn())
	if err != nil {
		return false, err
	}
	if applied {
		ts.audit(owner, id, "dismissed", "task dismissed by user")
		logInfo("task dismissed", "id", id, "owner", owner)
	}
	return applied, nil
}

// Retime updates the scheduled time of a still-Scheduled task.
func (ts *TaskService) Retime(owner, id string, at time.Time) (bool, error) {
	applied, err := ts.store.UpdateTime(owner, id, at)
	if err != nil {
		return false, err
	}
	if applied {
		ts.audit(owner, id, "time_updated", fmt.Sprintf("time updated to %s", at.Format(time.RFC3339)))
		logInfo("task retimed", "id", id, "owner", owner, "at", at.Format(time.RFC3339))
	}
	return applied, nil
}

// Rename updates the name of a still-Scheduled task.
func (ts *TaskService) Rename(owner, id, name string) (bool, error) {
	applied, err := ts.store.UpdateName(owner, id, name)
	if err != nil {
		return false, err
	}
	if applied {
		ts.audit(owner, id, "name_updated", fmt.Sprintf("name updated to %s", name))
		logInfo("task renamed", "id", id, "owner", owner, "name", name)
	}
	return applied, nil
}

// Pending returns the owner's Scheduled tasks ordered by scheduled time.
func (ts *TaskService) Pending(owner string) ([]Task, error) {
	return ts.store.ListByStatus(owner, StatusScheduled)
}

// FindByName resolves a name fragment to one Scheduled task. An exact
// case-insensitive match wins over a substring match; among substring
// matches the earliest-scheduled task is returned.
func (ts *TaskService) FindByName(owner, fragment string) (Task, bool, error) {
	pending, err := ts.Pending(owner)
	if err != nil {
		return Task{}, false, err
	}
	needle := strings.ToLower(strings.TrimSpace(fragment))
	for _, t := range pending {
		if strings.ToLower(t.Name) == needle {
			return t, true, nil
		}
	}
	for _, t := range pending {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			return t, true, nil
		}
	}
	return Task{}, false, nil
}

// CancelByName dismisses every Scheduled task whose name contains the
// fragment, case-insensitively, and returns the tasks affected so the caller
// can drop their timers. Zero matches is a valid outcome, not an error.
// Fan-out across unrelated tasks sharing a substring is deliberate; there is
// no disambiguation prompt.
func (ts *TaskService) CancelByName(owner, fragment string) ([]Task, error) {
	pending, err := ts.Pending(owner)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(fragment))
	var cancelled []Task
	for _, t := range pending {
		if !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		applied, err := ts.store.UpdateStatus(owner, t.ID, StatusDismissed, ts.nowFn())
		if err != nil {
			return cancelled, err
		}
		if applied {
			ts.audit(owner, t.ID, "cancelled", "task cancelled by user request")
			cancelled = append(cancelled, t)
		}
	}
	logInfo("tasks cancelled by name", "owner", owner, "fragment", fragment, "count", len(cancelled))
	return cancelled, nil
}

// audit appends a lifecycle record. Audit failures never block a transition.
func (ts *TaskService) audit(owner, id, action, detail string) {
	rec := AuditRecord{Owner: owner, TaskID: id, Action: action, At: ts.nowFn().UTC(), Detail: detail}
	if err := ts.store.AppendAudit(rec); err != nil {
		logWarn("audit append failed", "action", action, "taskId", id, "error", err)
	}
}
