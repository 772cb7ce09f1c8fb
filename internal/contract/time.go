package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sleepdata/cpapinsight/schema"
)

// Define the regular expression to capture "N [units] ago"
// e.g., "2 weeks ago", "3 months ago", "1 day ago".
var relativeDateRe = regexp.MustCompile(`^(\d+)\s+(year|month|week|day)s?\s+ago$`)

// ParseRelativeDate converts strings like "2 weeks ago" into a date in the past.
func ParseRelativeDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	matches := relativeDateRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return time.Time{}, fmt.Errorf("invalid relative date format: %s", s)
	}

	// 1: Value (e.g., "2")
	// 2: Unit (e.g., "week")
	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid relative date value: %s", matches[1])
	}

	switch matches[2] {
	case "year":
		return schema.Day(now.AddDate(-value, 0, 0)), nil
	case "month":
		return schema.Day(now.AddDate(0, -value, 0)), nil
	case "week":
		return schema.Day(now.AddDate(0, 0, -7*value)), nil
	default:
		return schema.Day(now.AddDate(0, 0, -value)), nil
	}
}

// ParseReferenceDate resolves a reference date. It accepts an empty string
// or "today" for now's date, a calendar date (2006-01-02), an RFC3339
// timestamp, or a relative date such as "3 days ago".
func ParseReferenceDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "today":
		return schema.Day(now), nil
	case "yesterday":
		return schema.Day(now.AddDate(0, 0, -1)), nil
	}
	if t, err := time.Parse(schema.DateFormat, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return schema.Day(t), nil
	}
	t, err := ParseRelativeDate(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, RFC3339 or 'N [units] ago', got %q", s)
	}
	return t, nil
}

// Define the regular expression to capture "N [units]".
var intervalRe = regexp.MustCompile(`^(\d+)\s*(year|month|week|day|d|w)?s?$`)

// ParseIntervalDays converts strings like "7", "2 weeks" or "30d" into whole days.
// Months count as 30 days and years as 365.
func ParseIntervalDays(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	matches := intervalRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid interval format: %s", s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid interval value: %s", matches[1])
	}

	var days int
	switch matches[2] {
	case "year":
		days = value * 365
	case "month":
		days = value * 30
	case "week", "w":
		days = value * 7
	default:
		days = value
	}
	if days == 0 {
		return 0, errors.New("zero interval is not useful")
	}
	return days, nil
}
