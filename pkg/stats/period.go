package stats

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod is returned when a period query names no usable day, week or month.
var ErrInvalidPeriod = errors.New("invalid period: specify a day, a month and year, or a week and year")

// PeriodKind is the granularity of a report.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// Valid reports whether k is a known kind.
func (k PeriodKind) Valid() bool {
	switch k {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// PeriodQuery selects a calendar period. Day takes precedence, then Month with
// Year, then Week with Year.
type PeriodQuery struct {
	Day   *time.Time
	Week  int
	Month int
	Year  int
}

// Range is a resolved period with inclusive millisecond bounds.
type Range struct {
	Kind  PeriodKind `json:"kind"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

const lastMillisecond = int(time.Second - time.Millisecond)

// Resolve turns the query into a Range in loc. A nil loc means UTC.
func (q PeriodQuery) Resolve(loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch {
	case q.Day != nil && !q.Day.IsZero():
		return DayRange(*q.Day, loc), nil
	case q.Month != 0 || (q.Week == 0 && q.Year != 0):
		if q.Month < 1 || q.Month > 12 || q.Year <= 0 {
			return Range{}, fmt.Errorf("%w: month %d of year %d", ErrInvalidPeriod, q.Month, q.Year)
		}
		return MonthRange(q.Year, time.Month(q.Month), loc), nil
	case q.Week != 0:
		if q.Year <= 0 {
			return Range{}, fmt.Errorf("%w: week %d without year", ErrInvalidPeriod, q.Week)
		}
		r, ok := WeekRange(q.Year, q.Week, loc)
		if !ok {
			return Range{}, fmt.Errorf("%w: year %d has no ISO week %d", ErrInvalidPeriod, q.Year, q.Week)
		}
		return r, nil
	default:
		return Range{}, ErrInvalidPeriod
	}
}

// DayRange covers the calendar date of t as seen in loc.
func DayRange(t time.Time, loc *time.Location) Range {
	d := t.In(loc)
	return Range{
		Kind:  PeriodDay,
		Start: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, lastMillisecond, loc),
	}
}

// MonthRange covers day 1 00:00:00.000 through the last day 23:59:59.999.
func MonthRange(year int, month time.Month, loc *time.Location) Range {
	return Range{
		Kind:  PeriodMonth,
		Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
		// day 0 of the next month normalizes to the last day of this one
		End: time.Date(year, month+1, 0, 23, 59, 59, lastMillisecond, loc),
	}
}

// WeekRange covers ISO week w of year, Monday through Sunday. It reports false
// when the year has no such week.
func WeekRange(year, week int, loc *time.Location) (Range, bool) {
	if week < 1 || week > 53 {
		return Range{}, false
	}
	monday := ISOWeekStart(year, week, loc)
	if y, w := monday.ISOWeek(); y != year || w != week {
		return Range{}, false
	}
	return Range{
		Kind:  PeriodWeek,
		Start: monday,
		End:   time.Date(monday.Year(), monday.Month(), monday.Day()+6, 23, 59, 59, lastMillisecond, loc),
	}, true
}

// ISOWeekStart returns Monday 00:00 of ISO week w. January 4th is always in week 1.
func ISOWeekStart(year, week int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	offset := (int(jan4.Weekday()) + 6) % 7
	return time.Date(year, time.January, 4-offset+(week-1)*7, 0, 0, 0, 0, loc)
}

// PeriodStartFor normalizes t to the first instant of the period of kind k containing it.
func PeriodStartFor(k PeriodKind, t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch k {
	case PeriodMonth:
		d := t.In(loc)
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc)
	case PeriodWeek:
		y, w := t.In(loc).ISOWeek()
		return ISOWeekStart(y, w, loc)
	default:
		return DayRange(t, loc).Start
	}
}

// Contains reports whether t lies within the inclusive bounds.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Label formats the range as 2024-05-31, 2024-05 or 2024-W22.
func (r Range) Label() string {
	switch r.Kind {
	case PeriodMonth:
		return r.Start.Format("2006-01")
	case PeriodWeek:
		y, w := r.Start.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	default:
		return r.Start.Format("2006-01-02")
	}
}
