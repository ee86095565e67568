package analytics

import (
	"errors"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// DefaultRangeDays is the report window when no dates are given
	DefaultRangeDays = 30
	// MaxRangeDays bounds the zero-filled daily series
	MaxRangeDays = 366
)

// ErrInvalidRange is wrapped by every date range parsing failure
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive range of UTC calendar days
type DateRange struct {
	From time.Time
	To   time.Time
}

// Start returns the first instant covered by the range
func (r DateRange) Start() time.Time {
	return r.From
}

// End returns the first instant after the range
func (r DateRange) End() time.Time {
	return r.To.AddDate(0, 0, 1)
}

// Days returns the number of calendar days in the range
func (r DateRange) Days() int {
	return int(r.End().Sub(r.Start()).Hours()/24 + 0.5)
}

// Dates lists each day of the range formatted as YYYY-MM-DD
func (r DateRange) Dates() []string {
	dates := make([]string, 0, r.Days())
	for d := r.From; d.Before(r.End()); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}
	return dates
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDateRange parses start_date and end_date query values. Missing values
// default to the last DefaultRangeDays days ending today.
func ParseDateRange(startDate, endDate string, now time.Time) (DateRange, error) {
	today := startOfDay(now)
	r := DateRange{
		From: today.AddDate(0, 0, -(DefaultRangeDays - 1)),
		To:   today,
	}

	if endDate != "" {
		to, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		r.To = to
		if startDate == "" {
			r.From = to.AddDate(0, 0, -(DefaultRangeDays - 1))
		}
	}

	if startDate != "" {
		from, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRange)
		}
		r.From = from
	}

	if r.From.After(r.To) {
		return DateRange{}, fmt.Errorf("%w: start_date is after end_date", ErrInvalidRange)
	}
	if r.Days() > MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidRange, MaxRangeDays)
	}
	return r, nil
}
