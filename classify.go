package main

import (
	"regexp"
	"strings"
)

// --- Intent Classification ---

// Intent is the coarse category assigned to an utterance. It decides which
// workflow handles the message.
type Intent int

const (
	IntentCancel Intent = iota
	IntentEdit
	IntentTaskCreation
	IntentStatus
	IntentGreeting
	IntentGeneral
)

// String returns the human-readable name of the intent.
func (i Intent) String() string {
	switch i {
	case IntentCancel:
		return "cancel"
	case IntentEdit:
		return "edit"
	case IntentTaskCreation:
		return "task_creation"
	case IntentStatus:
		return "status"
	case IntentGreeting:
		return "greeting"
	default:
		return "general_conversation"
	}
}

// Pattern groups, evaluated in order. The order is load-bearing: cancel and
// edit phrasings routinely contain "reminder" or "remind", so the narrower
// groups must win before the creation group is consulted at all.
// "cancel my reminder to take pills" is a cancellation, not a new task.
var cancelPatterns = compileGroup(
	`\b(cancel|delete|remove|stop)\b.*\b(reminders?|tasks?|alarms?)\b`,
	`\b(cancel|delete|remove|stop)\b.*\b(take|taking|do|doing)\b`,
	`\b(don't|dont|do not)\b.*\b(remind|need|want)\b`,
	`\b(forget|ignore|skip)\b.*\b(reminders?|tasks?|that)\b`,
	`\b(cancel|delete|remove|clear)\b`,
	`\b(nevermind|never mind|no longer|not anymore)\b`,
)

var editPatterns = compileGroup(
	`\b(edit|change|modify|update)\b.*\btime of\b`,
	`\b(edit|change|modify|update)\b.*\bname of\b`,
	`\brename\b`,
	`\b(edit|change|modify|update)\b.*\breminder\b`,
)

var creationPatterns = compileGroup(
	`\b(remind me|set reminder|schedule.*reminder)\b`,
	`\b(reminder.*for|reminder.*at|reminder.*in)\b`,
	`\b(remind.*to|remind.*about)\b`,
	`\b(set.*tasks?|schedule.*tasks?)\b`,
	`\b(alert me|notify me)\b.*\b(at|in|for)\b`,
	`\b(remember to|don't forget|dont forget)\b`,
	`\b(wake me|call me)\b.*\b(at|in)\b`,
)

// The task/reminder nouns accept an optional plural: "show my tasks" is the
// phrasing the bot itself suggests.
var statusPatterns = compileGroup(
	`\b(show|list|what|view|see|check)\b.*\b(tasks?|reminders?|schedule|upcoming)\b`,
	`\b(my tasks?|my reminders?|what tasks?|what reminders?)\b`,
	`\b(pending|scheduled|upcoming|active)\b.*\b(tasks?|reminders?)\b`,
)

// Greeting patterns are anchored at the start of the utterance so that a
// sentence merely mentioning "good morning" mid-text is not a greeting.
var greetingPatterns = compileGroup(
	`^(hello|hi|hey|good morning|good afternoon|good evening|start|begin)\b`,
	`^(what's up|wassup|how are you|how's it going)\b`,
)

func compileGroup(exprs ...string) []*regexp.Regexp {
	group := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		group = append(group, regexp.MustCompile(e))
	}
	return group
}

func groupMatches(group []*regexp.Regexp, text string) bool {
	for _, re := range group {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var reWhitespace = regexp.MustCompile(`\s+`)

// classifyIntent maps an utterance to its Intent. Pure function: lowercases,
// collapses whitespace, then walks the pattern groups top to bottom; the
// first group with a match wins and no later group is consulted.
func classifyIntent(text string) Intent {
	text = reWhitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")

	switch {
	case groupMatches(cancelPatterns, text):
		return IntentCancel
	case groupMatches(editPatterns, text):
		return IntentEdit
	case groupMatches(creationPatterns, text):
		return IntentTaskCreation
	case groupMatches(statusPatterns, text):
		return IntentStatus
	case groupMatches(greetingPatterns, text):
		return IntentGreeting
	default:
		return IntentGeneral
	}
}
