package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// --- Reminder Rendering & Fallback Delivery ---

func urgencyMarker(u TaskUrgency) string {
	switch u {
	case UrgencyUrgent:
		return "🚨"
	case UrgencyRelaxed:
		return "🔔"
	default:
		return "⏰"
	}
}

func categoryMarker(c TaskCategory) string {
	switch c {
	case CategoryMedication:
		return "💊"
	case CategoryExercise:
		return "🏃"
	case CategoryAppointment:
		return "📅"
	default:
		return "📋"
	}
}

// renderReminder builds the delivery payload for a task. Rendering happens
// at schedule time; the transport sends it verbatim when the timer fires.
func renderReminder(t Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s REMINDER\n\n", urgencyMarker(t.Urgency), strings.ToUpper(string(t.Urgency)))
	fmt.Fprintf(&sb, "%s %s\n\n", categoryMarker(t.Category), t.Name)
	fmt.Fprintf(&sb, "Category: %s\n", t.Category)
	sb.WriteString("\nWhat would you like to do?")
	return sb.String()
}

// renderTaskList formats the owner's pending tasks for a status reply.
func renderTaskList(tasks []Task, now time.Time) string {
	if len(tasks) == 0 {
		return "✅ No pending reminders! You're all set."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Your upcoming reminders (%d):\n\n", len(tasks))
	for i, t := range tasks {
		fmt.Fprintf(&sb, "%d. %s %s\n   %s %s\n", i+1,
			urgencyMarker(t.Urgency), t.Name,
			categoryMarker(t.Category), formatLocalTime(t.ScheduledAt, now.Location()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatLocalTime renders an instant in the reference zone the way users
// see it everywhere: "08:00 AM on March 3, 2026".
func formatLocalTime(t time.Time, zone *time.Location) string {
	return t.In(zone).Format("03:04 PM on January 2, 2006")
}

// logDeliverer is the fallback Deliverer when no transport is configured:
// reminders surface in the log only. Useful for the HTTP-API-only mode.
type logDeliverer struct{}

func (logDeliverer) Deliver(_ context.Context, owner, taskID, content string) error {
	logInfo("reminder (no transport configured)", "owner", owner, "taskId", taskID,
		"content", strings.ReplaceAll(content, "\n", " "))
	return nil
}
