package cloudsync

import (
	"fmt"
	"strings"
)

// Interval is an automatic backup cadence.
type Interval string

const (
	IntervalNone      Interval = "none"
	IntervalImmediate Interval = "immediate"
	IntervalHourly    Interval = "hourly"
	IntervalDaily     Interval = "daily"
	IntervalWeekly    Interval = "weekly"
)

// ParseInterval validates a configured cadence; "" means none.
func ParseInterval(s string) (Interval, error) {
	switch iv := Interval(strings.ToLower(strings.TrimSpace(s))); iv {
	case "":
		return IntervalNone, nil
	case IntervalNone, IntervalImmediate, IntervalHourly, IntervalDaily, IntervalWeekly:
		return iv, nil
	default:
		return "", fmt.Errorf("unknown backup interval %q", s)
	}
}

// cronSpec returns the cron descriptor for periodic cadences.
func (iv Interval) cronSpec() (string, bool) {
	switch iv {
	case IntervalHourly:
		return "@hourly", true
	case IntervalDaily:
		return "@daily", true
	case IntervalWeekly:
		return "@weekly", true
	default:
		return "", false
	}
}
