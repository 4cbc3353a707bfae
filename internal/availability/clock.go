package availability

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MinutesPerDay bounds every wall-clock value handled by the engine.
	MinutesPerDay = 24 * 60

	// TimeLayout is the canonical HH:MM representation.
	TimeLayout = "15:04"
)

// TimeToMinutes converts a wall-clock "HH:MM" string to minutes since midnight.
// "H:MM" and "HH:MM:00" (the shape of a SQL TIME column) are accepted as well;
// any other shape is rejected.
func TimeToMinutes(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, invalid("time", s, "expected HH:MM")
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, invalid("time", s, "seconds must be 00")
	}

	hh, mm := parts[0], parts[1]
	if len(hh) < 1 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return 0, invalid("time", s, "expected HH:MM")
	}

	hours, _ := strconv.Atoi(hh)
	minutes, _ := strconv.Atoi(mm)
	if hours > 23 {
		return 0, invalid("time", s, "hour must be between 0 and 23")
	}
	if minutes > 59 {
		return 0, invalid("time", s, "minute must be between 0 and 59")
	}
	return hours*60 + minutes, nil
}

// MinutesToTime converts minutes since midnight back to zero-padded "HH:MM".
func MinutesToTime(m int) (string, error) {
	if m < 0 || m >= MinutesPerDay {
		return "", invalid("minutes", strconv.Itoa(m), "must be within [0, 1440)")
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}

// NormalizeTime round-trips s through minutes so stored values are always "HH:MM".
func NormalizeTime(s string) (string, error) {
	m, err := TimeToMinutes(s)
	if err != nil {
		return "", err
	}
	return MinutesToTime(m)
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
