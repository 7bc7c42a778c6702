package describe

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDimension evaluates a dimension token in shop notation: a decimal
// ("0.25", ".25"), a fraction ("3/8"), or a mixed number ("1-1/2", parsed
// as 1 + 1/2). Empty input is an error; callers decide the status code.
func ParseDimension(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("describe.ParseDimension: empty dimension")
	}
	total := 0.0
	for _, part := range strings.Split(strings.ReplaceAll(s, "-", "+"), "+") {
		if part == "" {
			return 0, fmt.Errorf("describe.ParseDimension: malformed dimension %q", s)
		}
		if num, den, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("describe.ParseDimension: %q: %w", s, err)
			}
			d, err := strconv.ParseFloat(den, 64)
			if err != nil {
				return 0, fmt.Errorf("describe.ParseDimension: %q: %w", s, err)
			}
			if d == 0 {
				return 0, fmt.Errorf("describe.ParseDimension: %q: zero denominator", s)
			}
			total += n / d
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("describe.ParseDimension: %q: %w", s, err)
		}
		total += v
	}
	return total, nil
}

// ConeHeight computes the axial height of the cone a diameter forms at the
// given included angle. A 90 degree angle uses the 45 degree half-angle;
// anything else uses the complement of the half-angle.
func ConeHeight(angle, dia float64) float64 {
	if angle == 90.0 {
		angle = 45.0
	} else {
		angle = 90.0 - angle/2.0
	}
	return tanDeg(angle) * (dia / 2.0)
}
