package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseAge parses a retention age or interval. It accepts everything time.ParseDuration
// accepts plus a whole or fractional day suffix ("7d", "1.5d"). A bare "0" is zero.
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if s == "0" {
		return 0, nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q: %w", s, err)
		}
		if days < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
