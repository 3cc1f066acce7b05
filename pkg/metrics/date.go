// Package metrics defines the metric data model shared by collectors and
// the sync engine: date-keyed records, named per-category streams, and the
// merger that folds streams into unified rows.
package metrics

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for date keys throughout the system
const DateLayout = "2006-01-02"

// Define static errors
var (
	ErrInvalidDate = errors.New("invalid date key")
)

// Date is a calendar day, the row key of every destination table
type Date struct {
	t time.Time
}

// NewDate builds a Date from year/month/day
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in the given location
func DateOf(ts time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := ts.In(loc).Date()

	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD date key
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return Date{t: t}, nil
}

// String renders the date key in wire format
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Next returns the following calendar day
func (d Date) Next() Date {
	return Date{t: d.t.AddDate(0, 0, 1)}
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysSince returns the number of whole days from other to d
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t) / (24 * time.Hour))
}

// Before reports whether d falls before other
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d falls after other
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether both dates name the same day
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// Compare orders two dates: -1, 0, or +1
func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}

	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}
