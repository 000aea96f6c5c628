package main

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// --- Task Store ---

// AuditRecord is one append-only lifecycle log entry. The audit trail is
// written on every transition and never read back by the engine.
type AuditRecord struct {
	Owner  string    `json:"owner"`
	TaskID string    `json:"taskId"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail"`
}

// TaskStore is the persistence boundary for tasks. All operations are scoped
// by owner, and every mutating operation except CreateTask applies only while
// the task is still Scheduled, reporting whether a row was changed.
type TaskStore interface {
	CreateTask(t Task) error
	GetTask(owner, id string) (Task, bool, error)
	// ListByStatus returns the owner's tasks in that status, ordered by
	// scheduled time ascending.
	ListByStatus(owner string, status TaskStatus) ([]Task, error)
	// ListAllScheduled returns every Scheduled task across owners, used to
	// re-arm timers at startup.
	ListAllScheduled() ([]Task, error)
	UpdateStatus(owner, id string, status TaskStatus, completedAt time.Time) (bool, error)
	UpdateTime(owner, id string, scheduledAt time.Time) (bool, error)
	UpdateName(owner, id, name string) (bool, error)
	AppendAudit(rec AuditRecord) error
	Close() error
}

// --- In-Memory Store ---

// memoryStore keeps tasks in a map guarded by one mutex. It is the default
// backend and the one the tests run against.
type memoryStore struct {
	mu    sync.Mutex
	tasks map[string]Task
	audit []AuditRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tasks: make(map[string]Task)}
}

func (s *memoryStore) CreateTask(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *memoryStore) GetTask(owner, id string) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Owner != owner {
		return Task{}, false, nil
	}
	return t, true, nil
}

func (s *memoryStore) ListByStatus(owner string, status TaskStatus) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Owner == owner && t.Status == status {
			out = append(out, t)
		}
	}
	sortTasksByTime(out)
	return out, nil
}

func (s *memoryStore) ListAllScheduled() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status == StatusScheduled {
			out = append(out, t)
		}
	}
	sortTasksByTime(out)
	return out, nil
}

func (s *memoryStore) UpdateStatus(owner, id string, status TaskStatus, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.scheduledLocked(owner, id)
	if !ok {
		return false, nil
	}
	t.Status = status
	t.CompletedAt = completedAt.UTC()
	s.tasks[id] = t
	return true, nil
}

func (s *memoryStore) UpdateTime(owner, id string, scheduledAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.scheduledLocked(owner, id)
	if !ok {
		return false, nil
	}
	t.ScheduledAt = scheduledAt
	s.tasks[id] = t
	return true, nil
}

func (s *memoryStore) UpdateName(owner, id, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.scheduledLocked(owner, id)
	if !ok {
		return false, nil
	}
	t.Name = name
	s.tasks[id] = t
	return true, nil
}

func (s *memoryStore) AppendAudit(rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
	return nil
}

func (s *memoryStore) Close() error { return nil }

// scheduledLocked fetches a still-Scheduled task owned by owner. Caller holds mu.
func (s *memoryStore) scheduledLocked(owner, id string) (Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.Owner != owner || t.Status != StatusScheduled {
		return Task{}, false
	}
	return t, true
}

func sortTasksByTime(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].ScheduledAt.Equal(tasks[j].ScheduledAt) {
			return strings.Compare(tasks[i].ID, tasks[j].ID) < 0
		}
		return tasks[i].ScheduledAt.Before(tasks[j].ScheduledAt)
	})
}
