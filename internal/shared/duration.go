package shared

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	msSecond = 1000
	msMinute = msSecond * 60
	msHour   = msMinute * 60
	msDay    = msHour * 24
	msWeek   = msDay * 7
	msYear   = msDay * 365.25
)

var humanDuration = regexp.MustCompile(`(?i)^(-?(?:\d+)?\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)?$`)

// ParseMilliseconds converts a human readable duration such as "7d", "2 hours" or "500" (bare numbers are
// milliseconds) into milliseconds.
//
// The second return value is false for empty, over-long or unparseable input.
func ParseMilliseconds(value string) (float64, bool) {
	if value == "" || len(value) > 100 {
		return 0, false
	}

	match := humanDuration.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}

	n, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}

	switch strings.ToLower(match[2]) {
	case "years", "year", "yrs", "yr", "y":
		return n * msYear, true
	case "weeks", "week", "w":
		return n * msWeek, true
	case "days", "day", "d":
		return n * msDay, true
	case "hours", "hour", "hrs", "hr", "h":
		return n * msHour, true
	case "minutes", "minute", "mins", "min", "m":
		return n * msMinute, true
	case "seconds", "second", "secs", "sec", "s":
		return n * msSecond, true
	default:
		return n, true
	}
}

// ParseDuration is [ParseMilliseconds] expressed as a [time.Duration].
func ParseDuration(value string) (time.Duration, bool) {
	ms, ok := ParseMilliseconds(strings.TrimSpace(value))
	if !ok || math.IsInf(ms, 0) || math.IsNaN(ms) {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
