// Package dateparse parses the relative and absolute time expressions accepted
// by time-window flags such as "journal --since".
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses input into the start of a look-back window ending now.
//
// Supported formats:
//   - Durations: "90s", "30m", "2h", "1h30m"
//   - Days and weeks: "3d", "2w"
//   - Keywords: "today", "yesterday" (local midnight)
//   - Exact dates: "2026-03-01" (local midnight)
//   - Timestamps: RFC 3339
func ParseSince(input string) (time.Time, error) {
	return ParseSinceFrom(input, time.Now())
}

// ParseSinceFrom is ParseSince relative to the given reference time.
func ParseSinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, fmt.Errorf("empty time input")
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}

	lower := strings.ToLower(input)
	switch lower {
	case "today":
		return midnight(now), nil
	case "yesterday":
		return midnight(now).AddDate(0, 0, -1), nil
	}

	// Day and week units are not understood by time.ParseDuration.
	if n := len(lower); n >= 2 && (lower[n-1] == 'd' || lower[n-1] == 'w') {
		if v, err := strconv.Atoi(lower[:n-1]); err == nil {
			if v < 0 {
				return time.Time{}, fmt.Errorf("negative window %q", input)
			}
			days := v
			if lower[n-1] == 'w' {
				days = v * 7
			}
			return now.AddDate(0, 0, -days), nil
		}
	}

	if d, err := time.ParseDuration(lower); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative window %q", input)
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %q", input)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
