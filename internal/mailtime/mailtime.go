// Package mailtime converts RFC-2822-style Date header values into the
// canonical "YYYY-MM-DD HH:MM:SS" form used throughout the report store.
//
// The timezone offset is discarded: the store keeps naive local timestamps
// and the freshness gate compares them under a single timezone convention.
// Known limitation, kept on purpose.
package mailtime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTimestamp reports a Date header outside the supported grammar
// "[Weekday, ]D Mon YYYY HH:MM:SS [+ZZZZ]".
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Layout is the canonical timestamp layout.
const Layout = "2006-01-02 15:04:05"

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Convert turns a Date header like "Sat, 8 May 2021 10:23:44 +0800" into
// "2021-05-08 10:23:44". The optional weekday prefix before the comma is
// ignored, as is the trailing offset.
func Convert(header string) (string, error) {
	s := header
	if i := strings.Index(s, ","); i >= 0 {
		s = s[i+1:]
	}
	fields := strings.Fields(s)
	if len(fields) < 4 {
		return "", fmt.Errorf("%w: %q", ErrMalformedTimestamp, header)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil || day < 1 || day > 31 {
		return "", fmt.Errorf("%w: bad day in %q", ErrMalformedTimestamp, header)
	}
	month, ok := months[strings.ToUpper(fields[1])]
	if !ok {
		return "", fmt.Errorf("%w: bad month in %q", ErrMalformedTimestamp, header)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad year in %q", ErrMalformedTimestamp, header)
	}
	clock, err := time.Parse("15:04:05", fields[3])
	if err != nil {
		return "", fmt.Errorf("%w: bad time in %q", ErrMalformedTimestamp, header)
	}

	return fmt.Sprintf("%04d-%02d-%02d %s",
		year, int(month), day, clock.Format("15:04:05")), nil
}

// Parse reads a canonical timestamp back into a local time.Time for gate
// comparisons.
func Parse(canonical string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, canonical, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, canonical)
	}
	return t, nil
}
