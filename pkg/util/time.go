package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatSeconds converts seconds to ffmpeg timestamp format (HH:MM:SS.mmm)
func FormatSeconds(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	hours := int(seconds / 3600)
	minutes := int((seconds - float64(hours*3600)) / 60)
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm, MM:SS or SS.mmm)
// into seconds.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", s)
	}

	total := 0.0
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// ParseRange parses "START,END" where both bounds are timestamps.
func ParseRange(s string) (start, end float64, err error) {
	bounds := strings.Split(s, ",")
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("invalid range %q: want START,END", s)
	}
	if start, err = ParseTimestamp(bounds[0]); err != nil {
		return 0, 0, err
	}
	if end, err = ParseTimestamp(bounds[1]); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30000/1001")
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
