package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat is the wire and storage representation of a calendar date.
// Dates never carry a time or zone component.
const DateFormat = "2006-01-02"

// Date is a calendar date with day granularity, anchored at midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month and day. Out-of-range values are
// normalized the way time.Date normalizes them.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses an ISO YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return Date{Time: t}, nil
}

// Day returns the day of the month.
func (d Date) Day() int { return d.Time.Day() }

// Month returns the month as an int in [1, 12].
func (d Date) Month() int { return int(d.Time.Month()) }

// Year returns the year.
func (d Date) Year() int { return d.Time.Year() }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }

// AddDays returns the date i days later (earlier for negative i).
func (d Date) AddDays(i int) Date {
	return Date{Time: d.Time.AddDate(0, 0, i)}
}

// AddMonths returns the date i months later, normalized by time.AddDate.
func (d Date) AddMonths(i int) Date {
	return Date{Time: d.Time.AddDate(0, i, 0)}
}

// AddYears returns the date i years later.
func (d Date) AddYears(i int) Date {
	return Date{Time: d.Time.AddDate(i, 0, 0)}
}

// Before reports whether d is strictly before x.
func (d Date) Before(x Date) bool { return d.Time.Before(x.Time) }

// After reports whether d is strictly after x.
func (d Date) After(x Date) bool { return d.Time.After(x.Time) }

func (d Date) String() string {
	return d.Time.Format(DateFormat)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return Validationf("date cannot be zero")
	}
	return nil
}
