package stats

import (
	"fmt"
	"iter"
	"time"
)

const dayLayout = "2006-01-02"

// DateRange is an inclusive range of UTC days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both ends to UTC days. End before Start is an
// error.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: utcDay(start), End: utcDay(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("range end %s is before start %s", r.End.Format(dayLayout), r.Start.Format(dayLayout))
	}
	return r, nil
}

// ParseDateRange parses YYYY-MM-DD bounds.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dayLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dayLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	return NewDateRange(s, e)
}

// LastDays returns the n days ending on the day of ref. n below 1 is
// treated as 1.
func LastDays(ref time.Time, n int) DateRange {
	end := utcDay(ref)
	return DateRange{Start: end.AddDate(0, 0, -(max(n, 1) - 1)), End: end}
}

// MonthRange returns the calendar month containing ref, offset by offset
// months, clipped to ref's day when it is the current month.
func MonthRange(ref time.Time, offset int) DateRange {
	ref = utcDay(ref)
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	end := start.AddDate(0, 1, -1)
	if end.After(ref) {
		end = ref
	}
	return DateRange{Start: start, End: end}
}

// Len returns the number of days in the range.
func (r DateRange) Len() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether t falls on a day of the range.
func (r DateRange) Contains(t time.Time) bool {
	d := utcDay(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days yields each day of the range in order. The sequence can be ranged
// over any number of times.
func (r DateRange) Days() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

// FormatPeriod returns a human-readable description of the range.
func (r DateRange) FormatPeriod() string {
	return fmt.Sprintf("%s to %s", r.Start.Format(dayLayout), r.End.Format(dayLayout))
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
