package scheduler

import (
	"fmt"
	"time"
)

// Window is a job's configured cadence. Start == End means once a day at Start;
// otherwise the job fires every Interval from Start through End inclusive.
type Window struct {
	Start    Clock
	End      Clock
	Interval time.Duration
}

// ParseWindow builds a Window from configuration strings.
func ParseWindow(start, end string, intervalMinutes int) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	return Window{Start: s, End: e, Interval: time.Duration(intervalMinutes) * time.Minute}, nil
}

type TriggerKind int

const (
	Daily TriggerKind = iota + 1
	Recurring
)

// Trigger is a planned firing rule. It implements cron.Schedule.
type Trigger struct {
	Kind  TriggerKind
	Start Clock
	End   Clock
	Every int // minutes, Recurring only
}

// Plan turns a window into a trigger.
func Plan(w Window) (Trigger, error) {
	if w.Start == w.End {
		return Trigger{Kind: Daily, Start: w.Start, End: w.End}, nil
	}
	if w.End < w.Start {
		return Trigger{}, fmt.Errorf("window %s-%s crosses midnight", w.Start, w.End)
	}
	every := int(w.Interval / time.Minute)
	if every <= 0 {
		return Trigger{}, fmt.Errorf("window %s-%s needs an interval of at least one minute", w.Start, w.End)
	}
	return Trigger{Kind: Recurring, Start: w.Start, End: w.End, Every: every}, nil
}

// DailyAt fires once a day at c.
func DailyAt(c Clock) Trigger {
	return Trigger{Kind: Daily, Start: c, End: c}
}

// Times lists the firing times of one day in order.
func (t Trigger) Times() []Clock {
	if t.Kind != Recurring {
		return []Clock{t.Start}
	}
	var out []Clock
	for c := t.Start; c <= t.End; c += Clock(t.Every) {
		out = append(out, c)
	}
	return out
}

// Next returns the first firing strictly after now, in now's location.
func (t Trigger) Next(now time.Time) time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	times := t.Times()
	for day := 0; day <= 1; day++ {
		for _, c := range times {
			at := time.Date(y, m, d+day, c.Hour(), c.Minute(), 0, 0, loc)
			if at.After(now) {
				return at
			}
		}
	}
	// not reached: Times always has at least one entry
	return time.Date(y, m, d+2, t.Start.Hour(), t.Start.Minute(), 0, 0, loc)
}

func (t Trigger) String() string {
	if t.Kind != Recurring {
		return "daily at " + t.Start.String()
	}
	return fmt.Sprintf("every %dm from %s to %s", t.Every, t.Start, t.End)
}
