package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Fluent frequency helpers. Each is a deterministic rewrite of expression
// fields by position: 1 is the legacy leading slot, 2 minute, 3 hour,
// 4 day-of-month, 5 month, 6 day-of-week.

// Cron replaces the whole trigger expression.
func (e *Event) Cron(expression string) *Event {
	e.expression = e.expression.Replace(expression)
	return e
}

// Timezone evaluates the trigger expression in the given location instead
// of the pass's wall clock zone.
func (e *Event) Timezone(loc *time.Location) *Event {
	e.location = loc
	return e
}

// EveryMinute runs the event every minute.
func (e *Event) EveryMinute() *Event {
	return e.splice(2, "*")
}

// EveryMinutes runs the event every n minutes.
func (e *Event) EveryMinutes(n int) *Event {
	return e.splice(2, fmt.Sprintf("*/%d", n))
}

// Hourly runs the event at minute zero of every hour.
func (e *Event) Hourly() *Event {
	return e.splice(2, "0")
}

// Daily runs the event at midnight.
func (e *Event) Daily() *Event {
	return e.splice(2, "0").splice(3, "0")
}

// DailyAt runs the event at the given "HH:MM" time. A bare hour ("13")
// means minute zero.
func (e *Event) DailyAt(at string) *Event {
	hour, minute := splitTime(at)
	return e.splice(2, minute).splice(3, hour)
}

// TwiceDaily runs the event at minute zero of the two given hours.
func (e *Event) TwiceDaily(first, second int) *Event {
	return e.splice(2, "0").splice(3, fmt.Sprintf("%d,%d", first, second))
}

// Weekly runs the event at midnight on Sunday.
func (e *Event) Weekly() *Event {
	return e.splice(2, "0").splice(3, "0").splice(6, "0")
}

// WeeklyOn runs the event on the given weekday at the given "HH:MM" time.
func (e *Event) WeeklyOn(day time.Weekday, at string) *Event {
	return e.DailyAt(at).Days(day)
}

// Monthly runs the event at midnight on the first of the month.
func (e *Event) Monthly() *Event {
	return e.splice(2, "0").splice(3, "0").splice(4, "1")
}

// Yearly runs the event at midnight on January 1st.
func (e *Event) Yearly() *Event {
	return e.splice(2, "0").splice(3, "0").splice(4, "1").splice(5, "1")
}

// Weekdays restricts the event to Monday through Friday.
func (e *Event) Weekdays() *Event {
	return e.splice(6, "1-5")
}

// Days restricts the event to the given weekdays.
func (e *Event) Days(days ...time.Weekday) *Event {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%d", int(d))
	}
	return e.splice(6, strings.Join(parts, ","))
}

// Sundays restricts the event to Sundays.
func (e *Event) Sundays() *Event { return e.Days(time.Sunday) }

// Mondays restricts the event to Mondays.
func (e *Event) Mondays() *Event { return e.Days(time.Monday) }

// Tuesdays restricts the event to Tuesdays.
func (e *Event) Tuesdays() *Event { return e.Days(time.Tuesday) }

// Wednesdays restricts the event to Wednesdays.
func (e *Event) Wednesdays() *Event { return e.Days(time.Wednesday) }

// Thursdays restricts the event to Thursdays.
func (e *Event) Thursdays() *Event { return e.Days(time.Thursday) }

// Fridays restricts the event to Fridays.
func (e *Event) Fridays() *Event { return e.Days(time.Friday) }

// Saturdays restricts the event to Saturdays.
func (e *Event) Saturdays() *Event { return e.Days(time.Saturday) }

func (e *Event) splice(position int, value string) *Event {
	e.expression = e.expression.Splice(position, value)
	return e
}

// splitTime parses "HH:MM" into hour and minute field values. A missing
// minute defaults to zero. Unparseable input passes through untouched and
// surfaces as an expression error at evaluation time, matching how all
// other malformed expressions are reported.
func splitTime(at string) (hour, minute string) {
	parts := strings.SplitN(at, ":", 2)
	hour = strings.TrimSpace(parts[0])
	minute = "0"
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
		minute = strings.TrimSpace(parts[1])
	}
	return hour, minute
}
