package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// --- Callback Actions ---

// CallbackKind tags an action taken from a fired reminder's buttons.
type CallbackKind int

const (
	CallbackComplete CallbackKind = iota
	CallbackDismiss
	CallbackSnooze
)

// CallbackAction is the decoded form of a reminder button press. The raw
// wire string is decoded exactly once at the transport boundary; everything
// past that point operates on this variant, never on strings.
type CallbackAction struct {
	Kind    CallbackKind
	TaskID  string
	Minutes int // snooze only
}

// encodeCallback renders an action as Telegram callback data.
func encodeCallback(a CallbackAction) string {
	switch a.Kind {
	case CallbackDismiss:
		return "dismiss_" + a.TaskID
	case CallbackSnooze:
		return fmt.Sprintf("snooze_%d_%s", a.Minutes, a.TaskID)
	default:
		return "complete_" + a.TaskID
	}
}

// decodeCallback parses Telegram callback data back into an action.
func decodeCallback(data string) (CallbackAction, bool) {
	switch {
	case strings.HasPrefix(data, "complete_"):
		return CallbackAction{Kind: CallbackComplete, TaskID: strings.TrimPrefix(data, "complete_")}, true
	case strings.HasPrefix(data, "dismiss_"):
		return CallbackAction{Kind: CallbackDismiss, TaskID: strings.TrimPrefix(data, "dismiss_")}, true
	case strings.HasPrefix(data, "snooze_"):
		parts := strings.SplitN(strings.TrimPrefix(data, "snooze_"), "_", 2)
		if len(parts) != 2 {
			return CallbackAction{}, false
		}
		minutes, err := strconv.Atoi(parts[0])
		if err != nil || minutes <= 0 {
			return CallbackAction{}, false
		}
		return CallbackAction{Kind: CallbackSnooze, TaskID: parts[1], Minutes: minutes}, true
	default:
		return CallbackAction{}, false
	}
}

// --- Conversation Orchestrator ---

// Dispatcher routes one utterance through classify → handle and wires the
// lifecycle service to the scheduler. It owns no state beyond its
// collaborators; all task state lives behind the store.
type Dispatcher struct {
	tasks       *TaskService
	sched       *ReminderScheduler
	extractor   Extractor
	converser   Converser
	zone        *time.Location
	callTimeout time.Duration
	nowFn       func() time.Time
}

func newDispatcher(tasks *TaskService, sched *ReminderScheduler, extractor Extractor, converser Converser, zone *time.Location, callTimeout time.Duration, nowFn func() time.Time) *Dispatcher {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Dispatcher{
		tasks:       tasks,
		sched:       sched,
		extractor:   extractor,
		converser:   converser,
		zone:        zone,
		callTimeout: callTimeout,
		nowFn:       nowFn,
	}
}

// now returns the current instant in the reference zone.
func (d *Dispatcher) now() time.Time {
	return d.nowFn().In(d.zone)
}

// Rearm re-registers timers for every Scheduled task in the store. Called
// once at startup so reminders survive a restart.
func (d *Dispatcher) Rearm(store TaskStore) {
	tasks, err := store.ListAllScheduled()
	if err != nil {
		logError("rearm: list scheduled tasks failed", "error", err)
		return
	}
	for _, t := range tasks {
		d.sched.Schedule(t.Owner, t.ID, t.ScheduledAt, renderReminder(t))
	}
	if len(tasks) > 0 {
		logInfo("rearmed pending reminders", "count", len(tasks))
	}
}

// HandleMessage processes one free-text utterance and returns the reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, owner, userName, text string) string {
	intent := classifyIntent(text)
	logInfo("utterance classified", "owner", owner, "intent", intent.String())

	switch intent {
	case IntentTaskCreation:
		return d.handleCreation(ctx, owner, text)
	case IntentCancel:
		return d.handleCancel(owner, text)
	case IntentEdit:
		return d.handleEdit(owner, text)
	case IntentStatus:
		return d.handleStatus(owner)
	case IntentGreeting:
		if userName == "" {
			userName = "there"
		}
		return fmt.Sprintf("Hello %s! 😊 How can I help you with your reminders today?", userName)
	default:
		return d.handleConversation(ctx, text, userName)
	}
}

// HandleCallback applies a decoded reminder-button action.
func (d *Dispatcher) HandleCallback(owner string, act CallbackAction) string {
	switch act.Kind {
	case CallbackComplete:
		applied, err := d.tasks.Complete(owner, act.TaskID)
		if err != nil {
			logError("complete failed", "taskId", act.TaskID, "error", err)
			return "❌ Something went wrong. Please try again."
		}
		if !applied {
			return "❌ Couldn't find that task — it may already be done."
		}
		d.sched.Cancel(act.TaskID)
		return "✅ Task completed! Great job! 🎉"

	case CallbackDismiss:
		applied, err := d.tasks.Dismiss(owner, act.TaskID)
		if err != nil {
			logError("dismiss failed", "taskId", act.TaskID, "error", err)
			return "❌ Something went wrong. Please try again."
		}
		if !applied {
			return "❌ Couldn't find that task — it may already be done."
		}
		d.sched.Cancel(act.TaskID)
		return "❌ Task dismissed — no problem, maybe next time!"

	case CallbackSnooze:
		return d.snooze(owner, act.TaskID, act.Minutes)

	default:
		return "❌ Unknown action."
	}
}

// snooze is retime + schedule with now+minutes; it is not a lifecycle state.
func (d *Dispatcher) snooze(owner, taskID string, minutes int) string {
	newAt := d.now().Add(time.Duration(minutes) * time.Minute)
	applied, err := d.tasks.Retime(owner, taskID, newAt)
	if err != nil {
		logError("snooze retime failed", "taskId", taskID, "error", err)
		return "❌ Something went wrong. Please try again."
	}
	if !applied {
		return "❌ Couldn't find that task — it may already be done."
	}
	t, ok, err := d.tasks.store.GetTask(owner, taskID)
	if err != nil || !ok {
		return "❌ Couldn't find that task — it may already be done."
	}
	d.sched.Schedule(owner, taskID, newAt, renderReminder(t))
	return fmt.Sprintf("⏰ Snoozed for %d minutes.\nNext reminder: %s 😴", minutes, newAt.Format("03:04 PM"))
}

// --- Creation ---

func (d *Dispatcher) handleCreation(ctx context.Context, owner, text string) string {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	blob, err := d.extractor.Extract(callCtx, text)
	if err != nil {
		// Backend unreachable or timed out: degrade to guidance, never crash
		// and never create a half-parsed task.
		logWarn("task extraction failed", "owner", owner, "error", err)
		blob = noTasksSentinel
	}

	now := d.now()
	proposals := parseExtractionResponse(blob, now)
	if len(proposals) == 0 {
		return "I couldn't find any reminders to schedule. Try saying something like:\n" +
			"• \"Remind me to take pills at 8am\"\n" +
			"• \"Remind me to stretch at 13:05\"\n" +
			"• \"Set reminder for exercise in 30 minutes\""
	}

	var lines []string
	scheduled := 0
	for _, p := range proposals {
		t, err := d.tasks.Create(owner, p.Name, p.Category, p.Urgency, p.ScheduledAt)
		if err != nil {
			logError("task create failed", "owner", owner, "name", p.Name, "error", err)
			lines = append(lines, fmt.Sprintf("❌ Failed to schedule: %s", p.Name))
			continue
		}
		d.sched.Schedule(owner, t.ID, t.ScheduledAt, renderReminder(t))
		lines = append(lines, fmt.Sprintf("✅ %s — %s", t.Name, formatLocalTime(t.ScheduledAt, d.zone)))
		scheduled++
	}
	return fmt.Sprintf("🔔 Scheduled %d reminder(s):\n\n%s", scheduled, strings.Join(lines, "\n"))
}

// --- Cancellation ---

var reCancelFragment = regexp.MustCompile(`\b(?:cancel|delete|remove|stop)\b\s+(.+)$`)

// cancelFragment pulls the task-name fragment out of a cancel utterance.
// Leading articles and reminder framing are stripped so "cancel my reminder
// to take pills" matches a task named "take pills".
func cancelFragment(text string) string {
	m := reCancelFragment.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	frag := strings.TrimSpace(m[1])
	for _, p := range []string{"my ", "the ", "a "} {
		frag = strings.TrimPrefix(frag, p)
	}
	for _, p := range []string{"reminder to ", "reminder for ", "reminder about ", "reminding me to ", "task to "} {
		frag = strings.TrimPrefix(frag, p)
	}
	for _, s := range []string{" reminder", " task"} {
		frag = strings.TrimSuffix(frag, s)
	}
	return strings.TrimSpace(frag)
}

func (d *Dispatcher) handleCancel(owner, text string) string {
	fragment := cancelFragment(text)
	if fragment == "" {
		return "Please tell me which reminder to cancel. For example:\n" +
			"• \"Cancel take pills\"\n" +
			"• \"Delete exercise reminder\""
	}

	cancelled, err := d.tasks.CancelByName(owner, fragment)
	if err != nil {
		logError("cancel by name failed", "owner", owner, "error", err)
		return "❌ Something went wrong cancelling that. Please try again."
	}
	if len(cancelled) == 0 {
		return fmt.Sprintf("❌ Couldn't find a reminder matching %q. Say \"show my tasks\" to see what's scheduled.", fragment)
	}
	for _, t := range cancelled {
		d.sched.Cancel(t.ID)
	}
	return fmt.Sprintf("❌ Cancelled %d reminder(s) matching %q.", len(cancelled), fragment)
}

// --- Editing ---

var (
	reEditTime = regexp.MustCompile(`(?:edit|change|modify|update)\s+time\s+of\s+(.+?)\s+to\s+(.+)`)
	reEditName = regexp.MustCompile(`(?:edit|change|modify|update)\s+name\s+of\s+(.+?)\s+to\s+(.+)`)
	reRename   = regexp.MustCompile(`rename\s+(.+?)\s+to\s+(.+)`)
)

func (d *Dispatcher) handleEdit(owner, text string) string {
	lower := strings.ToLower(text)

	if m := reEditTime.FindStringSubmatch(lower); m != nil {
		return d.editTime(owner, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	if m := reEditName.FindStringSubmatch(lower); m != nil {
		return d.editName(owner, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	if m := reRename.FindStringSubmatch(lower); m != nil {
		return d.editName(owner, strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	return "Please tell me what to edit:\n" +
		"• \"Edit time of [task name] to [new time]\"\n" +
		"• \"Edit name of [task name] to [new name]\""
}

func (d *Dispatcher) editTime(owner, fragment, timeExpr string) string {
	task, found, err := d.tasks.FindByName(owner, fragment)
	if err != nil {
		logError("find task failed", "owner", owner, "error", err)
		return "❌ Something went wrong. Please try again."
	}
	if !found {
		return fmt.Sprintf("❌ Couldn't find a task matching %q. Say \"show my tasks\" to see what's scheduled.", fragment)
	}

	newAt, ok := parseTimeExpr(timeExpr, d.now())
	if !ok {
		return fmt.Sprintf("❌ I couldn't understand the time %q. Try formats like \"2pm\", \"14:30\", or \"in 30 minutes\".", timeExpr)
	}

	applied, err := d.tasks.Retime(owner, task.ID, newAt)
	if err != nil || !applied {
		return "❌ Failed to update the task time. Please try again."
	}
	task.ScheduledAt = newAt
	d.sched.Schedule(owner, task.ID, newAt, renderReminder(task))
	return fmt.Sprintf("✅ Time updated!\n\n📝 Task: %s\n🕐 New time: %s", task.Name, formatLocalTime(newAt, d.zone))
}

func (d *Dispatcher) editName(owner, fragment, newName string) string {
	task, found, err := d.tasks.FindByName(owner, fragment)
	if err != nil {
		logError("find task failed", "owner", owner, "error", err)
		return "❌ Something went wrong. Please try again."
	}
	if !found {
		return fmt.Sprintf("❌ Couldn't find a task matching %q. Say \"show my tasks\" to see what's scheduled.", fragment)
	}

	applied, err := d.tasks.Rename(owner, task.ID, newName)
	if err != nil || !applied {
		return "❌ Failed to update the task name. Please try again."
	}
	return fmt.Sprintf("✅ Name updated!\n\n📝 Old name: %s\n📝 New name: %s\n🕐 Scheduled: %s",
		task.Name, newName, formatLocalTime(task.ScheduledAt, d.zone))
}

// --- Status ---

func (d *Dispatcher) handleStatus(owner string) string {
	pending, err := d.tasks.Pending(owner)
	if err != nil {
		logError("list pending failed", "owner", owner, "error", err)
		return "❌ Couldn't fetch your tasks right now. Please try again."
	}
	return renderTaskList(pending, d.now())
}

// --- General Conversation ---

// fallbackReply keeps the bot useful with the conversational backend offline.
const fallbackReply = "I'm having trouble reaching my conversational side right now, " +
	"but reminders still work! Try saying \"Remind me to take pills at 8am\" 😊"

func (d *Dispatcher) handleConversation(ctx context.Context, text, userName string) string {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	reply, err := d.converser.Converse(callCtx, text, userName)
	if err != nil || reply == "" {
		logWarn("conversational backend unavailable", "error", err)
		return fallbackReply
	}
	return reply
}
