package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// JST is the fixed source-local zone for the scraped schedule sites.
var JST = time.FixedZone("JST", 9*60*60)

var (
	dateTextRegex = regexp.MustCompile(`^(?:(\d{4})/)?(\d{1,2})/(\d{1,2})\s*(?:[（(][^）)]*[）)])?$`)
	timeTextRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseKickoff interprets a site-local date/time pair and returns a UTC instant.
//
// Date text accepts "MM/DD", "M/D" and "YYYY/MM/DD", each with an optional
// trailing weekday in ASCII or fullwidth parentheses. When the year segment is
// absent the caller-provided season year is used.
//
// Time text is "HH:MM". Sites encode after-midnight kickoffs with hour >= 24:
// the hour is reduced by 24 and the calendar date advanced by one day before
// the pair is interpreted in loc. Anything outside the known patterns is an
// error, never a defaulted instant.
func ParseKickoff(dateText, timeText string, year int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = JST
	}

	dateParts := dateTextRegex.FindStringSubmatch(strings.TrimSpace(dateText))
	if dateParts == nil {
		return time.Time{}, fmt.Errorf("unrecognized date text %q", dateText)
	}
	timeParts := timeTextRegex.FindStringSubmatch(strings.TrimSpace(timeText))
	if timeParts == nil {
		return time.Time{}, fmt.Errorf("unrecognized time text %q", timeText)
	}

	if dateParts[1] != "" {
		parsed, err := strconv.Atoi(dateParts[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid year in %q: %w", dateText, err)
		}
		year = parsed
	}
	if year <= 0 {
		return time.Time{}, fmt.Errorf("season year is required for date text %q", dateText)
	}

	month, err := strconv.Atoi(dateParts[2])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month in %q", dateText)
	}
	day, err := strconv.Atoi(dateParts[3])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid day in %q", dateText)
	}

	hour, err := strconv.Atoi(timeParts[1])
	if err != nil || hour < 0 || hour >= 48 {
		return time.Time{}, fmt.Errorf("invalid hour in %q", timeText)
	}
	minute, err := strconv.Atoi(timeParts[2])
	if err != nil || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid minute in %q", timeText)
	}

	if hour >= 24 {
		hour -= 24
		day++
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc).UTC(), nil
}

// ParseInstant parses an ISO/RFC3339 instant and normalizes it to UTC.
func ParseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty instant")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized instant %q", value)
}
