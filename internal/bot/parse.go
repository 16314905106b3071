package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"todo-planner/internal/model"
	"todo-planner/internal/planner"
	"todo-planner/internal/service"
)

var deadlineLayouts = []string{"2006-01-02 15:04", "02.01.2006 15:04", "2006-01-02", "02.01.2006"}

// parseDeadline reads a deadline in loc. A date without a time means the
// end of that day.
func parseDeadline(text string, loc *time.Location) (time.Time, error) {
	text = strings.Join(strings.Fields(text), " ")
	for _, layout := range deadlineLayouts {
		t, err := time.ParseInLocation(layout, text, loc)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "15") {
			t = t.Add(23*time.Hour + 59*time.Minute)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", text)
}

func parseDay(text string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(text), loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", text)
}

// parseTag accepts a display label or the tag code in any case.
func parseTag(text string) (model.Tag, bool) {
	value := strings.TrimSpace(stripIcon(text))
	for _, tag := range model.Tags {
		if strings.EqualFold(value, string(tag)) || strings.EqualFold(value, service.TagLabel(tag)) {
			return tag, true
		}
	}
	return "", false
}

var priorityLabels = map[model.Priority]string{
	model.PriorityHigh:   "🔴 Высокий",
	model.PriorityMedium: "🟡 Средний",
	model.PriorityLow:    "🟢 Низкий",
}

func parsePriority(text string) (model.Priority, bool) {
	value := strings.TrimSpace(stripIcon(text))
	for _, p := range model.Priorities {
		if strings.EqualFold(value, string(p)) || strings.EqualFold(value, stripIcon(priorityLabels[p])) {
			return p, true
		}
	}
	return "", false
}

var recurrenceLabels = []struct {
	label string
	value *model.Recurrence
}{
	{"Не повторять", nil},
	{"Каждый день", recurrencePtr(model.RecurrenceDaily)},
	{"Каждую неделю", recurrencePtr(model.RecurrenceWeekly)},
	{"Каждый месяц", recurrencePtr(model.RecurrenceMonthly)},
	{"Каждый год", recurrencePtr(model.RecurrenceYearly)},
}

func recurrencePtr(r model.Recurrence) *model.Recurrence {
	return &r
}

// parseRecurrence returns the chosen pattern, nil for a one-off task.
func parseRecurrence(text string) (*model.Recurrence, bool) {
	value := strings.TrimSpace(text)
	for _, opt := range recurrenceLabels {
		if strings.EqualFold(value, opt.label) {
			return opt.value, true
		}
		if opt.value != nil && strings.EqualFold(value, string(*opt.value)) {
			return opt.value, true
		}
	}
	if isSkipInput(value) || strings.EqualFold(value, "нет") {
		return nil, true
	}
	return nil, false
}

// parseFilterArgs reads "/filter" arguments such as
// "tag=work,home priority=high from=2024-01-01 to=2024-01-31 open".
func parseFilterArgs(args string, loc *time.Location) (planner.FilterSpec, error) {
	var spec planner.FilterSpec
	var from, to time.Time

	for _, field := range strings.Fields(args) {
		key, value, hasValue := strings.Cut(field, "=")
		key = strings.ToLower(key)
		if !hasValue {
			switch key {
			case "open", "hide", "открытые":
				spec.HideCompleted = true
				continue
			}
			return spec, fmt.Errorf("unknown option %q", field)
		}
		switch key {
		case "tag", "tags":
			for _, raw := range strings.Split(value, ",") {
				tag, ok := parseTag(raw)
				if !ok {
					return spec, fmt.Errorf("unknown tag %q", raw)
				}
				spec.Tags = append(spec.Tags, tag)
			}
		case "priority", "prio":
			for _, raw := range strings.Split(value, ",") {
				p, ok := parsePriority(raw)
				if !ok {
					return spec, fmt.Errorf("unknown priority %q", raw)
				}
				spec.Priorities = append(spec.Priorities, p)
			}
		case "from":
			t, err := parseDay(value, loc)
			if err != nil {
				return spec, err
			}
			from = t
		case "to":
			t, err := parseDay(value, loc)
			if err != nil {
				return spec, err
			}
			to = t
		default:
			return spec, fmt.Errorf("unknown option %q", key)
		}
	}

	if from.IsZero() != to.IsZero() {
		return spec, fmt.Errorf("from and to must be given together")
	}
	if !from.IsZero() {
		if to.Before(from) {
			return spec, fmt.Errorf("to is before from")
		}
		spec.DateRange = &planner.DateRange{Start: from, End: to}
	}
	return spec, nil
}

// splitRef separates the leading task reference from the rest of args.
func splitRef(args string) (ref, rest string) {
	args = strings.TrimSpace(args)
	ref, rest, _ = strings.Cut(args, " ")
	return ref, strings.TrimSpace(rest)
}

// stripIcon drops a leading emoji and the space after it.
func stripIcon(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return text[i:]
		}
	}
	return text
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
