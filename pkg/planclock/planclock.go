package planclock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidFrequency = errors.New("invalid frequency")

type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// ParseFrequency normalizes s and returns the matching Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q (expected weekly, monthly or yearly)", ErrInvalidFrequency, s)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Advance returns the occurrence following current for the given frequency.
//
// Month and year steps keep the day of month when the target month is long enough and
// otherwise clamp to its last day, so Jan 31 advances to Feb 28 (or 29) and Feb 29 to
// Feb 28 of the next year. The clamped day becomes the new anchor.
func Advance(current time.Time, f Frequency) (time.Time, error) {
	switch f {
	case Weekly:
		return current.AddDate(0, 0, 7), nil
	case Monthly:
		return addMonths(current, 1), nil
	case Yearly:
		return addMonths(current, 12), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, string(f))
}

func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// normalize via the first of the month so time.Date never rolls into the month after
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
