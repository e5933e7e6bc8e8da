package postprocess

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reNumericDate = regexp.MustCompile(`^(\d{1,4})[/\-.](\d{1,2})[/\-.](\d{1,4})$`)
	reAbbrevDot   = regexp.MustCompile(`([A-Za-z])\.`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// layouts tried after the numeric day/month/year orders fail
var genericLayouts = []string{
	"2 Jan 2006",
	"2 Jan 06",
	"2 January 2006",
	"2 January 06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"Mon, 2 Jan 2006",
	"Monday, 2 January 2006",
	"20060102",
}

// ParseDate reads statement dates. Numeric dates are tried as DD/MM/YYYY,
// then MM/DD/YYYY, then YYYY/MM/DD; a day/month pair that is valid both ways
// always resolves day-first.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := reNumericDate.FindStringSubmatch(s); m != nil {
		a, b, c := m[1], m[2], m[3]
		if len(a) <= 2 && (len(c) == 2 || len(c) == 4) {
			if t, ok := civil(c, b, a); ok {
				return t, true
			}
			if t, ok := civil(c, a, b); ok {
				return t, true
			}
		}
		if (len(a) == 4 || len(a) == 2) && len(c) <= 2 {
			if t, ok := civil(a, b, c); ok {
				return t, true
			}
		}
		return time.Time{}, false
	}

	cleaned := reSpaces.ReplaceAllString(reAbbrevDot.ReplaceAllString(s, "$1"), " ")
	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeDate renders s as YYYY-MM-DD, or returns it unchanged.
func NormalizeDate(s string) string {
	if t, ok := ParseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

func civil(year, month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	if len(year) == 2 {
		if y < 50 {
			y += 2000
		} else {
			y += 1900
		}
	} else if len(year) != 4 {
		return time.Time{}, false
	}
	mo, err := strconv.Atoi(month)
	if err != nil || mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		// 31/04 rolls into May
		return time.Time{}, false
	}
	return t, true
}
