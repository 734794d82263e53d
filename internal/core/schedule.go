package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// Frequency is the closed set of schedule kinds a task may use.
type Frequency string

const (
	FreqDaily         Frequency = "daily"
	FreqWeekdays      Frequency = "weekdays"
	FreqMWF           Frequency = "mwf"
	FreqWeekly        Frequency = "weekly"
	FreqHourly        Frequency = "hourly"
	FreqEveryNMinutes Frequency = "every_n_minutes"
	FreqCron          Frequency = "cron"
)

// ScheduledTask is one recurring job. Assistant tasks invoke the AI
// assistant with Prompt; non-assistant tasks are internal maintenance and
// always run before assistant tasks when both are due.
type ScheduledTask struct {
	Name      string
	Frequency Frequency
	At        string        // "HH:MM", for daily, weekdays, mwf, weekly
	Weekday   time.Weekday  // for weekly
	EveryN    int           // minutes, for every_n_minutes
	CronExpr  string        // for cron
	Assistant bool
	Prompt    string
	Timeout   time.Duration // caps one run; zero means the global default
	Disabled  bool          // parked without being removed from the registry
}

// DefaultSchedule is the built-in task registry.
func DefaultSchedule() []ScheduledTask {
	return []ScheduledTask{
		{
			Name: "morning_briefing", Frequency: FreqWeekdays, At: "08:00",
			Assistant: true,
			Prompt:    "Review Needs_Action and Plans, then write today's briefing into the dashboard.",
		},
		{
			Name: "inbox_triage", Frequency: FreqHourly,
			Assistant: true,
			Prompt:    "Triage new items in Needs_Action: classify, prioritize, and draft plans for anything actionable.",
		},
		{
			Name: "linkedin_draft", Frequency: FreqMWF, At: "09:30",
			Assistant: true,
			Prompt:    "Draft one LinkedIn post from recent Done items and file it as an approval request.",
		},
		{
			Name: "weekly_review", Frequency: FreqWeekly, Weekday: time.Friday, At: "16:00",
			Assistant: true,
			Prompt:    "Summarize the week: what shipped, what is stuck in Pending_Approval, what to carry over.",
		},
		{Name: "dashboard_refresh", Frequency: FreqEveryNMinutes, EveryN: 15},
		{Name: "archive_done", Frequency: FreqWeekly, Weekday: time.Sunday, At: "03:00"},
	}
}

// atTime parses an "HH:MM" clock time.
func atTime(s string) (hour, min int, err error) {
	if _, err := time.Parse("15:04", s); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	fmt.Sscanf(s, "%d:%d", &hour, &min)
	return hour, min, nil
}

// dueAtClock reports whether a clock-time task should fire: the clock time
// has passed today and the task has not run since that moment.
func dueAtClock(at string, now, lastRun time.Time) (bool, error) {
	hour, min, err := atTime(at)
	if err != nil {
		return false, err
	}
	fireAt := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if now.Before(fireAt) {
		return false, nil
	}
	return lastRun.Before(fireAt), nil
}

// IsDue reports whether a task should run at now, given when it last ran.
// A zero lastRun means it has never run.
func (t ScheduledTask) IsDue(now, lastRun time.Time) (bool, error) {
	switch t.Frequency {
	case FreqDaily:
		return dueAtClock(t.At, now, lastRun)
	case FreqWeekdays:
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false, nil
		}
		return dueAtClock(t.At, now, lastRun)
	case FreqMWF:
		switch now.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			return dueAtClock(t.At, now, lastRun)
		}
		return false, nil
	case FreqWeekly:
		if now.Weekday() != t.Weekday {
			return false, nil
		}
		return dueAtClock(t.At, now, lastRun)
	case FreqHourly:
		return lastRun.IsZero() || now.Sub(lastRun) >= time.Hour, nil
	case FreqEveryNMinutes:
		if t.EveryN <= 0 {
			return false, fmt.Errorf("task %s: every_n_minutes requires a positive interval", t.Name)
		}
		return lastRun.IsZero() || now.Sub(lastRun) >= time.Duration(t.EveryN)*time.Minute, nil
	case FreqCron:
		sched, err := cron.ParseStandard(t.CronExpr)
		if err != nil {
			return false, fmt.Errorf("task %s: invalid cron expression %q: %w", t.Name, t.CronExpr, err)
		}
		from := lastRun
		if from.IsZero() {
			from = now.Add(-24 * time.Hour)
		}
		return !sched.Next(from).After(now), nil
	default:
		return false, fmt.Errorf("task %s: unknown frequency %q", t.Name, t.Frequency)
	}
}

// ScheduleState tracks when each task last ran, keyed by task name, in
// RFC3339 UTC.
type ScheduleState struct {
	LastRuns map[string]string `json:"last_runs"`
}

// LastRun returns the recorded last run of a task, zero if never run or
// unparseable.
func (s *ScheduleState) LastRun(name string) time.Time {
	if s.LastRuns == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.LastRuns[name])
	if err != nil {
		return time.Time{}
	}
	return t
}

// MarkRun records that a task ran at t.
func (s *ScheduleState) MarkRun(name string, t time.Time) {
	if s.LastRuns == nil {
		s.LastRuns = make(map[string]string)
	}
	s.LastRuns[name] = t.UTC().Format(time.RFC3339)
}

// DueTasks returns the tasks due at now in execution order: internal
// maintenance tasks before assistant tasks, alphabetical within each
// group. Disabled tasks and tasks with a broken schedule are skipped,
// never fatal.
func DueTasks(tasks []ScheduledTask, state *ScheduleState, now time.Time) []ScheduledTask {
	var due []ScheduledTask
	for _, t := range tasks {
		if t.Disabled {
			continue
		}
		ok, err := t.IsDue(now, state.LastRun(t.Name))
		if err != nil || !ok {
			continue
		}
		due = append(due, t)
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Assistant != due[j].Assistant {
			return !due[i].Assistant
		}
		return due[i].Name < due[j].Name
	})
	return due
}
