package main

import (
	"regexp"
	"strings"
	"time"
)

// --- Extraction Response Parser ---
//
// The generative backend answers a task-extraction prompt with zero or more
// delimited blocks:
//
//	TASK_START
//	Task: take pills
//	Time: 8am
//	Urgency: General
//	Category: Medication
//	TASK_END
//
// or the sentinel NO_TASKS_FOUND when the utterance requests nothing.

const noTasksSentinel = "NO_TASKS_FOUND"

var reTaskBlock = regexp.MustCompile(`(?s)TASK_START(.*?)TASK_END`)

// parseExtractionResponse turns a response blob into task proposals, in the
// order the blocks appear. The sentinel anywhere in the blob short-circuits
// to an empty result regardless of any blocks around it. A block without
// both a task and a parseable time is an upstream extraction miss and is
// dropped silently, not reported.
func parseExtractionResponse(blob string, now time.Time) []TaskProposal {
	if strings.Contains(blob, noTasksSentinel) {
		return nil
	}

	var proposals []TaskProposal
	for _, m := range reTaskBlock.FindAllStringSubmatch(blob, -1) {
		fields := parseBlockFields(m[1])
		name, hasName := fields["task"]
		rawTime, hasTime := fields["time"]
		if !hasName || !hasTime {
			logDebug("extraction block missing required fields", "fields", len(fields))
			continue
		}
		at, ok := parseTimeExpr(rawTime, now)
		if !ok {
			logDebug("extraction block time unparseable", "time", rawTime)
			continue
		}
		proposals = append(proposals, TaskProposal{
			Name:        name,
			RawTime:     rawTime,
			ScheduledAt: at,
			Category:    parseCategory(fields["category"]),
			Urgency:     parseUrgency(fields["urgency"]),
		})
	}
	return proposals
}

// parseBlockFields splits each block line on the first colon into a
// lowercased field name and a trimmed value. Lines without a colon are
// ignored; a repeated field keeps the last value.
func parseBlockFields(block string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "" {
			continue
		}
		fields[k] = strings.TrimSpace(value)
	}
	return fields
}
