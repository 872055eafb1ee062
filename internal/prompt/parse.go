package prompt

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/leasetrace/internal/correlate"
)

// ErrInvalidInput marks an answer that is asked again.
var ErrInvalidInput = correlate.ErrInvalidInput

// ParseIPv4 accepts a dotted quad.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidInput, s)
	}
	return addr, nil
}

// ParseCutoff builds a UTC cutoff from month, day, year and "hh:mm". The
// result must be a real calendar date no later than now.
func ParseCutoff(month, day, year, clock string, now time.Time) (time.Time, error) {
	m, err := parseField("month", month, 2, 1, 12)
	if err != nil {
		return time.Time{}, err
	}
	d, err := parseField("day", day, 2, 1, 31)
	if err != nil {
		return time.Time{}, err
	}
	y, err := parseField("year", year, 4, 1970, 9999)
	if err != nil {
		return time.Time{}, err
	}
	if len(strings.TrimSpace(year)) != 4 {
		return time.Time{}, fmt.Errorf("%w: year %q must have four digits", ErrInvalidInput, year)
	}

	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: time %q must be hh:mm", ErrInvalidInput, clock)
	}
	h, err := parseField("hour", hh, 2, 0, 23)
	if err != nil {
		return time.Time{}, err
	}
	mi, err := parseField("minute", mm, 2, 0, 59)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(y, time.Month(m), d, h, mi, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d is not a calendar date", ErrInvalidInput, y, m, d)
	}
	if t.After(now.UTC()) {
		return time.Time{}, fmt.Errorf("%w: %s is in the future", ErrInvalidInput, t.Format(time.RFC3339))
	}
	return t, nil
}

func parseField(name, s string, maxLen, lo, hi int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxLen {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidInput, name, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s %q not in %d..%d", ErrInvalidInput, name, s, lo, hi)
	}
	return n, nil
}

// ParseYesNo accepts y, yes, n and no in any case.
func ParseYesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: answer y or n", ErrInvalidInput)
}

// ValidNetworkID reports whether id looks like a network ID.
func ValidNetworkID(id string) bool {
	return len(id) > 2 && (strings.HasPrefix(id, "L_") || strings.HasPrefix(id, "N_"))
}
