package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseReferenceDate(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Time
		expectError bool
	}{
		{name: "empty is today", input: "", expected: day(2024, 3, 30)},
		{name: "today keyword", input: " Today ", expected: day(2024, 3, 30)},
		{name: "yesterday keyword", input: "yesterday", expected: day(2024, 3, 29)},
		{name: "calendar date", input: "2024-02-29", expected: day(2024, 2, 29)},
		{name: "rfc3339 keeps the date", input: "2024-03-01T23:30:00Z", expected: day(2024, 3, 1)},
		{name: "relative days", input: "10 DAYS AGO", expected: day(2024, 3, 20)},
		{name: "relative week", input: "1 week ago", expected: day(2024, 3, 23)},
		{name: "relative months", input: "2 months ago", expected: day(2024, 1, 30)},
		{name: "invalid date", input: "2024-02-30", expectError: true},
		{name: "missing ago", input: "3 days", expectError: true},
		{name: "unsupported unit", input: "4 hours ago", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReferenceDate(tt.input, fixedNow)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseIntervalDays(t *testing.T) {
	tests := []struct {
		input       string
		expected    int
		expectError bool
	}{
		{input: "7", expected: 7},
		{input: "30d", expected: 30},
		{input: "30 days", expected: 30},
		{input: "1 week", expected: 7},
		{input: "2w", expected: 14},
		{input: "3 Months", expected: 90},
		{input: "1 year", expected: 365},
		{input: "0 days", expectError: true},
		{input: "weekly", expectError: true},
		{input: "-3", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIntervalDays(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func FuzzParseReferenceDate(f *testing.F) {
	for _, seed := range []string{"", "today", "2024-01-01", "3 weeks ago", "2024-03-01T10:00:00+02:00", "garbage"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		got, err := ParseReferenceDate(s, fixedNow)
		if err != nil {
			return
		}
		if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
			t.Fatalf("reference date %v for %q is not a calendar day", got, s)
		}
	})
}
