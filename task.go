package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- Task Model ---

// TaskStatus is the lifecycle state of a task.
// Scheduled is the only live state; Completed and Dismissed are terminal.
type TaskStatus string

const (
	StatusScheduled TaskStatus = "scheduled"
	StatusCompleted TaskStatus = "completed"
	StatusDismissed TaskStatus = "dismissed"
)

// TaskCategory groups tasks for rendering. Unrecognized values fall back to Other.
type TaskCategory string

const (
	CategoryMedication  TaskCategory = "Medication"
	CategoryExercise    TaskCategory = "Exercise"
	CategoryAppointment TaskCategory = "Appointment"
	CategoryOther       TaskCategory = "Other"
)

// TaskUrgency is the reminder's urgency level. Unrecognized values fall back to General.
type TaskUrgency string

const (
	UrgencyRelaxed TaskUrgency = "Relaxed"
	UrgencyGeneral TaskUrgency = "General"
	UrgencyUrgent  TaskUrgency = "Urgent"
)

// parseCategory normalizes a free-text category field.
func parseCategory(s string) TaskCategory {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "medication":
		return CategoryMedication
	case "exercise":
		return CategoryExercise
	case "appointment":
		return CategoryAppointment
	default:
		return CategoryOther
	}
}

// parseUrgency normalizes a free-text urgency field.
func parseUrgency(s string) TaskUrgency {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relaxed":
		return UrgencyRelaxed
	case "urgent":
		return UrgencyUrgent
	default:
		return UrgencyGeneral
	}
}

// Task is one reminder instance. Tasks are plain values: all mutation goes
// through the TaskStore, never through shared references.
type Task struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Name        string       `json:"name"`
	Category    TaskCategory `json:"category"`
	Urgency     TaskUrgency  `json:"urgency"`
	ScheduledAt time.Time    `json:"scheduledAt"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt time.Time    `json:"completedAt,omitzero"` // set on completion or dismissal
}

// newTask builds a Scheduled task with a fresh id.
func newTask(owner, name string, category TaskCategory, urgency TaskUrgency, scheduledAt, now time.Time) Task {
	return Task{
		ID:          uuid.NewString(),
		Owner:       owner,
		Name:        name,
		Category:    category,
		Urgency:     urgency,
		ScheduledAt: scheduledAt,
		Status:      StatusScheduled,
		CreatedAt:   now.UTC(),
	}
}

// TaskProposal is a candidate reminder extracted from the generative
// backend's response, prior to persistence.
type TaskProposal struct {
	Name        string
	RawTime     string
	ScheduledAt time.Time
	Category    TaskCategory
	Urgency     TaskUrgency
}
