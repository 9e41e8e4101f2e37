package catalog

import (
	"strings"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
)

// countdownLayouts are tried in order after "/" has been rewritten to "-".
// Every layout requires a four-digit year, so "26-02-15" never parses.
var countdownLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04",
	"2006-1-2",
}

// ParseConcertTime parses a concert display date in now's location.
// Date-only input is midnight.
func ParseConcertTime(dateText string, loc *time.Location) (time.Time, bool) {
	text := strings.TrimSpace(strings.ReplaceAll(dateText, "/", "-"))
	if text == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range countdownLayouts {
		t, err := time.ParseInLocation(layout, text, loc)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ComputeCountdown returns the days and hours left until dateText, a past
// marker, or nil when the date cannot be parsed. Hours are truncated, never rounded.
func ComputeCountdown(dateText string, now time.Time) *model.Countdown {
	at, ok := ParseConcertTime(dateText, now.Location())
	if !ok {
		return nil
	}
	if !at.After(now) {
		return &model.Countdown{Status: model.CountdownPast}
	}
	hours := int(at.Sub(now) / time.Hour)
	return &model.Countdown{
		Status: model.CountdownUpcoming,
		Days:   hours / 24,
		Hours:  hours % 24,
	}
}
