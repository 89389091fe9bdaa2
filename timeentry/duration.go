package timeentry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts the loose duration formats people type into a time
// tracker: "1h30m", "90m", "1.5h", or a bare number of minutes like "45".
// The parsed duration must come out positive.
func ParseDuration(input string) (time.Duration, error) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty duration")
	}

	// bare number means minutes
	if minutes, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		d := time.Duration(minutes) * time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", input)
		}
		return d, nil
	}

	// decimal hours like "1.5h"
	if strings.HasSuffix(trimmed, "h") && strings.Contains(trimmed, ".") {
		hours, err := strconv.ParseFloat(strings.TrimSuffix(trimmed, "h"), 64)
		if err == nil {
			d := time.Duration(hours * float64(time.Hour))
			if d <= 0 {
				return 0, fmt.Errorf("duration must be positive: %q", input)
			}
			return d.Round(time.Minute), nil
		}
	}

	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("unrecognized duration %q", input)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", input)
	}
	return d, nil
}
