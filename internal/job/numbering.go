package job

import (
	"fmt"
	"regexp"
	"strconv"
)

// Work-order numbers look like WO-2026-0042: a 4-digit year and a 4-digit
// zero-padded sequence that is scoped per calendar year.

// jobNumberPattern matches a well-formed work-order number
var jobNumberPattern = regexp.MustCompile(`^WO-(\d{4})-(\d{4,})$`)

// NumberPrefix returns the work-order number prefix for a year ("WO-2026-")
func NumberPrefix(year int) string {
	return fmt.Sprintf("WO-%04d-", year)
}

// FormatNumber renders a work-order number for a year and sequence value
func FormatNumber(year, sequence int) string {
	return fmt.Sprintf("WO-%04d-%04d", year, sequence)
}

// NextNumber computes the work-order number following the latest existing
// number for a year. An empty latest starts the year's sequence at 0001.
func NextNumber(year int, latest string) (string, error) {
	if latest == "" {
		return FormatNumber(year, 1), nil
	}
	m := jobNumberPattern.FindStringSubmatch(latest)
	if m == nil {
		return "", fmt.Errorf("malformed job number %q", latest)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return "", fmt.Errorf("malformed job number sequence %q: %w", latest, err)
	}
	return FormatNumber(year, seq+1), nil
}
