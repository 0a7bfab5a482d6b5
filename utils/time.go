// Package utils provides utility functions for the application.
package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// NumberToMs converts a finite unix timestamp to milliseconds. Values below
// MillisecondsThreshold are treated as seconds. Results outside the int64
// range saturate at its bounds.
func NumberToMs(n float64) int64 {
	ms := n
	if n < MillisecondsThreshold {
		ms = n * 1000
	}
	ms = math.Round(ms)
	switch {
	case ms >= math.MaxInt64:
		return math.MaxInt64
	case ms <= math.MinInt64:
		return math.MinInt64
	}
	return int64(ms)
}

// TimestampToMs normalizes a loosely typed timestamp to unix milliseconds.
// Anything that is not a finite number falls back to now().
func TimestampToMs(v any, now func() time.Time) int64 {
	if now == nil {
		now = time.Now
	}
	n, ok := toFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return now().UnixMilli()
	}
	return NumberToMs(n)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// MsToUnixSeconds converts unix milliseconds to whole seconds (floor)
func MsToUnixSeconds(ms int64) int64 {
	return int64(math.Floor(float64(ms) / 1000))
}

// MsToTime converts unix milliseconds to a UTC time
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
