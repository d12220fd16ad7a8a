package planclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		current  time.Time
		freq     Frequency
		expected time.Time
	}{
		{"weekly adds seven days", date(2024, time.January, 15), Weekly, date(2024, time.January, 22)},
		{"weekly crosses month end", date(2024, time.January, 29), Weekly, date(2024, time.February, 5)},
		{"weekly crosses year end", date(2024, time.December, 28), Weekly, date(2025, time.January, 4)},
		{"monthly keeps day of month", date(2024, time.January, 15), Monthly, date(2024, time.February, 15)},
		{"monthly clamps to leap february", date(2024, time.January, 31), Monthly, date(2024, time.February, 29)},
		{"monthly clamps to february", date(2023, time.January, 31), Monthly, date(2023, time.February, 28)},
		{"monthly clamps to 30 day month", date(2024, time.March, 31), Monthly, date(2024, time.April, 30)},
		{"monthly crosses year end", date(2024, time.December, 31), Monthly, date(2025, time.January, 31)},
		{"yearly keeps date", date(2023, time.June, 1), Yearly, date(2024, time.June, 1)},
		{"yearly clamps leap day", date(2024, time.February, 29), Yearly, date(2025, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// when
			next, err := Advance(tt.current, tt.freq)

			// then
			require.NoError(t, err)
			assert.Equal(t, tt.expected, next)
		})
	}
}

func TestAdvance_ClampedDayBecomesAnchor(t *testing.T) {
	// given
	current := date(2024, time.January, 31)

	// when
	feb, err := Advance(current, Monthly)
	require.NoError(t, err)
	mar, err := Advance(feb, Monthly)
	require.NoError(t, err)

	// then
	assert.Equal(t, date(2024, time.February, 29), feb)
	assert.Equal(t, date(2024, time.March, 29), mar)
}

func TestAdvance_PreservesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*60*60+30*60)
	current := time.Date(2024, time.May, 31, 0, 0, 0, 0, loc)

	next, err := Advance(current, Monthly)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 30, 0, 0, 0, 0, loc), next)
	assert.Equal(t, loc, next.Location())
}

func TestAdvance_IsStrictlyIncreasing(t *testing.T) {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, freq := range []Frequency{Weekly, Monthly, Yearly} {
		for d := start; d.Before(start.AddDate(2, 0, 0)); d = d.AddDate(0, 0, 1) {
			next, err := Advance(d, freq)
			require.NoError(t, err)
			if !next.After(d) {
				t.Fatalf("Advance(%s, %s) = %s, not after input", d, freq, next)
			}
		}
	}
}

func TestAdvance_RejectsUnknownFrequency(t *testing.T) {
	_, err := Advance(date(2024, time.January, 1), Frequency("daily"))

	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestParseFrequency(t *testing.T) {
	t.Run("accepts known values case-insensitively", func(t *testing.T) {
		for input, expected := range map[string]Frequency{
			"weekly":    Weekly,
			"Monthly":   Monthly,
			" YEARLY ":  Yearly,
			"monthly\n": Monthly,
		} {
			f, err := ParseFrequency(input)
			require.NoError(t, err, input)
			assert.Equal(t, expected, f)
		}
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		for _, input := range []string{"", "daily", "bi-weekly", "month"} {
			_, err := ParseFrequency(input)
			assert.ErrorIs(t, err, ErrInvalidFrequency, input)
		}
	})
}
