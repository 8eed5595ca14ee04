package dates

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	LongLayout  = "January 02, 2006"
	StampLayout = "2006-01-02 15:04:05"
	DayLayout   = "2006-01-02"
)

// Parse reads a date cell leniently. Anything it cannot read is reported as
// unknown rather than as an error. Bare numbers (phone numbers, epoch-like
// values) and dates without a year are unknown too.
func Parse(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "nat") || isNumber(s) {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil || t.Year() < 1 {
		return time.Time{}, false
	}
	return t, true
}

func isNumber(s string) bool {
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0:
			dot = true
		default:
			return false
		}
	}
	return true
}

// Long formats t as e.g. "January 05, 2024".
func Long(t time.Time) string {
	return t.Format(LongLayout)
}

// SameMonthDay compares month and day, ignoring the year.
func SameMonthDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}
