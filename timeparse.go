package main

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// --- Time Expression Parser ---
//
// Resolves a free-text time phrase ("8am", "13:05", "in 30 minutes") to an
// absolute instant in the reference zone carried by now. Deterministic given
// now; an unparseable phrase is a recoverable miss, never an error.

var (
	reParenthetical = regexp.MustCompile(`\s*\(.*?\)\s*`)
	reAssumingTail  = regexp.MustCompile(`\bassuming.*$`)
	reBareToday     = regexp.MustCompile(`\btoday\b`)
	reFirstInt      = regexp.MustCompile(`(\d+)`)
	reClock24       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	reClock12Min    = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*([ap])\.?m`)
	reClock12Bare   = regexp.MustCompile(`(\d{1,2})\s*([ap])\.?m`)
	reBareHour      = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// preprocessTimeExpr lowercases the phrase and strips decorations the
// generative backend tends to leave in: parenthetical asides, trailing
// "assuming ..." explanations, and a bare "today".
func preprocessTimeExpr(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = reParenthetical.ReplaceAllString(s, " ")
	s = reAssumingTail.ReplaceAllString(s, "")
	s = reBareToday.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// parseTimeExpr resolves a time phrase against now. The rules are tried in a
// fixed order and the first structural match is authoritative:
//
//  1. "in N minutes"           → now + N minutes
//  2. "in N hours"             → now + N hours
//  3. "H:MM" 24-hour clock     → today at H:MM, next day if already passed
//  4. "H[:MM] am/pm"           → 12-hour clock, same next-day rule
//  5. bare hour 1..24          → hour on a 24-hour clock (24 clamps to 23)
//
// The next-day rule advances by exactly one calendar day and applies only to
// the clock rules; relative rules are future-facing already.
func parseTimeExpr(text string, now time.Time) (time.Time, bool) {
	expr := preprocessTimeExpr(text)
	if expr == "" {
		return time.Time{}, false
	}

	// Relative: "in 30 minutes", "in 2 mins", "in 1 hour".
	if strings.Contains(expr, "in") {
		if strings.Contains(expr, "minute") || strings.Contains(expr, "min") {
			if m := reFirstInt.FindStringSubmatch(expr); m != nil {
				n, _ := strconv.Atoi(m[1])
				return now.Add(time.Duration(n) * time.Minute), true
			}
		} else if strings.Contains(expr, "hour") {
			if m := reFirstInt.FindStringSubmatch(expr); m != nil {
				n, _ := strconv.Atoi(m[1])
				return now.Add(time.Duration(n) * time.Hour), true
			}
		}
	}

	hasMeridiem := strings.Contains(expr, "am") || strings.Contains(expr, "pm") ||
		strings.Contains(expr, "a.m") || strings.Contains(expr, "p.m")

	// 24-hour clock: "13:05", "8:30". A meridiem marker anywhere in the
	// phrase routes "10:30 pm" to the 12-hour rule instead.
	if m := reClock24.FindStringSubmatch(expr); m != nil && !hasMeridiem {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return atClock(now, hour, minute), true
		}
	}

	// 12-hour clock: "8am", "10:30 pm", "7 a.m".
	if hasMeridiem {
		hour, minute, ok := parseMeridiemClock(expr)
		if ok {
			return atClock(now, hour, minute), true
		}
	}

	// Bare hour fallback: "8", "at 14". 24 is ambiguous; clamp it to 23
	// rather than reject (kept as-is from the original behavior).
	if m := reBareHour.FindStringSubmatch(expr); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour >= 1 && hour <= 24 {
			if hour == 24 {
				hour = 23
			}
			return atClock(now, hour, 0), true
		}
	}

	logDebug("time expression miss", "expr", text)
	return time.Time{}, false
}

// parseMeridiemClock extracts an hour/minute pair from a 12-hour phrase and
// converts it to 24-hour: 12pm stays 12, 12am becomes 0, other pm hours +12.
func parseMeridiemClock(expr string) (int, int, bool) {
	var hour, minute int
	var meridiem string
	if m := reClock12Min.FindStringSubmatch(expr); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		meridiem = m[3]
	} else if m := reClock12Bare.FindStringSubmatch(expr); m != nil {
		hour, _ = strconv.Atoi(m[1])
		meridiem = m[2]
	} else {
		return 0, 0, false
	}
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, false
	}
	if meridiem == "p" && hour != 12 {
		hour += 12
	} else if meridiem == "a" && hour == 12 {
		hour = 0
	}
	return hour, minute, true
}

// atClock places hour:minute on now's calendar day in now's zone, advancing
// by exactly one day when the result is not strictly in the future.
func atClock(now time.Time, hour, minute int) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
