package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Extractor derives tool arguments from a matched utterance.
type Extractor func(m Match) (map[string]any, error)

func NoArgs(Match) (map[string]any, error) { return map[string]any{}, nil }

// Fixed always yields a copy of args.
func Fixed(args map[string]any) Extractor {
	return func(Match) (map[string]any, error) {
		out := make(map[string]any, len(args))
		for k, v := range args {
			out[k] = v
		}
		return out, nil
	}
}

// Utterance stores the whole utterance under param.
func Utterance(param string) Extractor {
	return func(m Match) (map[string]any, error) {
		return map[string]any{param: m.Utterance}, nil
	}
}

var leadingFillers = []string{"for", "about", "on", "of", "me", "the", "to", "up"}

// Remainder stores the text following the trigger under param, without
// leading filler words. Nothing is stored when the remainder is empty.
func Remainder(param string) Extractor {
	return func(m Match) (map[string]any, error) {
		text := trimFillers(m.Rest)
		if text == "" {
			return map[string]any{}, nil
		}
		return map[string]any{param: text}, nil
	}
}

var cityMarkers = []string{" in ", " for ", " at ", " of "}

// City stores the place named after the first "in", "for", "at" or "of",
// title-cased. Trailing time words ("for tomorrow", "today") are dropped.
// fallback is used when the utterance names no place.
func City(param, fallback string) Extractor {
	return func(m Match) (map[string]any, error) {
		city := ""
		padded := " " + m.Lower + " "
		first := -1
		for _, marker := range cityMarkers {
			if idx := strings.Index(padded, marker); idx >= 0 && (first < 0 || idx < first) {
				first = idx
				city = padded[idx+len(marker):]
			}
		}
		city = trimPlace(city)
		if city == "" {
			city = fallback
		}
		if city == "" {
			return map[string]any{}, nil
		}
		return map[string]any{param: cases.Title(language.English).String(city)}, nil
	}
}

var timeWords = []string{"right now", "tomorrow", "tonight", "today", "this week", "this weekend", "now", "please"}

func trimPlace(s string) string {
	s = strings.TrimSpace(strings.Trim(s, " ?.!,"))
	// a later "for"/"at" starts a time phrase, not part of the place
	for _, marker := range []string{" for ", " at "} {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
		}
	}
	for trimmed := true; trimmed; {
		trimmed = false
		for _, w := range timeWords {
			if s == w {
				return ""
			}
			if strings.HasSuffix(s, " "+w) {
				s = strings.TrimSpace(strings.TrimSuffix(s, w))
				trimmed = true
			}
		}
	}
	if s == "weather" || s == "the weather" {
		return ""
	}
	return strings.TrimSpace(s)
}

func trimFillers(s string) string {
	s = strings.TrimSpace(strings.Trim(s, " ?.!,"))
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, f := range leadingFillers {
			if strings.HasPrefix(lower, f+" ") {
				s = strings.TrimSpace(s[len(f)+1:])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

var (
	clockRe  = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	clockAny = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?(?:\s|$|[,.!?])`)
)

// ParseClock reads "15:30", "3:30 PM", "3:30pm" or "3 pm" as a 24h time.
func ParseClock(s string) (int, int, error) {
	in := s
	s = normalizeMeridiem(strings.ToLower(strings.TrimSpace(s)))
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, &ArgumentParseError{Param: "time", Input: in, Reason: "expected a time like 3:30 PM"}
	}
	if m[2] == "" && m[3] == "" {
		return 0, 0, &ArgumentParseError{Param: "time", Input: in, Reason: "expected a time like 3:30 PM"}
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return 0, 0, &ArgumentParseError{Param: "time", Input: in, Reason: "minute out of range"}
	}
	switch m[3] {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, &ArgumentParseError{Param: "time", Input: in, Reason: "hour out of range"}
		}
		hour %= 12
		if m[3] == "pm" {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, &ArgumentParseError{Param: "time", Input: in, Reason: "hour out of range"}
		}
	}
	return hour, minute, nil
}

func normalizeMeridiem(s string) string {
	r := strings.NewReplacer("a.m.", "am", "p.m.", "pm", "a.m", "am", "p.m", "pm")
	return r.Replace(s)
}

// Reminder extracts hour, minute and task from phrases such as
// "set a reminder for 3:30 PM to call John" or "remind me to stretch at 5pm".
func Reminder() Extractor {
	return func(m Match) (map[string]any, error) {
		lower := normalizeMeridiem(m.Lower)
		loc := clockAny.FindStringSubmatchIndex(lower)
		var clock string
		for loc != nil {
			candidate := strings.TrimSpace(lower[loc[0]:loc[1]])
			candidate = strings.TrimRight(candidate, ",.!?")
			// a bare number is only a time with a colon or a meridiem
			if loc[4] >= 0 || loc[6] >= 0 {
				clock = candidate
				break
			}
			next := clockAny.FindStringSubmatchIndex(lower[loc[1]:])
			if next == nil {
				loc = nil
				break
			}
			for i := range next {
				if next[i] >= 0 {
					next[i] += loc[1]
				}
			}
			loc = next
		}
		if clock == "" {
			return map[string]any{}, &ArgumentParseError{Param: "time", Input: m.Utterance, Reason: "no time found, try 'set a reminder for 3:30 PM to call John'"}
		}
		hour, minute, err := ParseClock(clock)
		if err != nil {
			return map[string]any{}, err
		}
		args := map[string]any{"hour": hour, "minute": minute}
		if task := reminderTask(m.Utterance, lower, loc[0], loc[1]); task != "" {
			args["task"] = task
		}
		return args, nil
	}
}

// reminderTask prefers "to <task>" after the time; otherwise it takes the
// "to <task>" before the time and drops the joining preposition.
func reminderTask(text, lower string, clockStart, clockEnd int) string {
	src := text
	if len(text) != len(lower) {
		src = lower
	}
	var start, end int
	if p := strings.Index(" "+lower[clockEnd:], " to "); p >= 0 {
		start, end = clockEnd+p+3, len(lower)
	} else if p := strings.Index(lower[:clockStart], " to "); p >= 0 {
		start, end = p+4, clockStart
	} else {
		return ""
	}
	if start >= end {
		return ""
	}
	task := strings.TrimSpace(src[start:end])
	if end == clockStart {
		lowerTask := strings.ToLower(task)
		for _, prep := range []string{" at", " for", " by"} {
			if strings.HasSuffix(lowerTask, prep) {
				task = strings.TrimSpace(task[:len(task)-len(prep)])
				break
			}
		}
	}
	return strings.Trim(task, " .!?,")
}

// IntArg reads an integer argument that may arrive as int, float64 or string.
func IntArg(args map[string]any, name string) (int, error) {
	return cast.ToIntE(args[name])
}
