package models

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeInterval converts a human interval ("4h", "1d", "15min") into the
// exchange code: minutes as digits, D for day, W for week, M for month.
// Codes that are already normalised pass through unchanged.
func NormalizeInterval(interval string) (string, error) {
	switch strings.TrimSpace(interval) {
	case "1", "3", "5", "15", "30", "60", "120", "240", "360", "720", "D", "W", "M":
		return interval, nil
	case "1m", "1min":
		return "1", nil
	case "3m", "3min":
		return "3", nil
	case "5m", "5min":
		return "5", nil
	case "15m", "15min":
		return "15", nil
	case "30m", "30min":
		return "30", nil
	case "1h":
		return "60", nil
	case "2h":
		return "120", nil
	case "4h":
		return "240", nil
	case "6h":
		return "360", nil
	case "12h":
		return "720", nil
	case "1d", "1day":
		return "D", nil
	case "1w", "1week":
		return "W", nil
	case "1M", "1month":
		return "M", nil
	}
	return "", fmt.Errorf("unsupported interval %q", interval)
}

// IntervalDuration returns the bar length of a normalised interval code
func IntervalDuration(code string) time.Duration {
	switch code {
	case "D":
		return 24 * time.Hour
	case "W":
		return 7 * 24 * time.Hour
	case "M":
		return 30 * 24 * time.Hour
	}
	var minutes int
	if _, err := fmt.Sscanf(code, "%d", &minutes); err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

// CandlesForDays returns how many bars of the given interval cover days, with a 10% buffer
func CandlesForDays(code string, days int) int {
	d := IntervalDuration(code)
	if d == 0 || days <= 0 {
		return 0
	}
	return int(float64(time.Duration(days)*24*time.Hour/d) * 1.1)
}
