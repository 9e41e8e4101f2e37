package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/jmagar/gigs-cli/internal/model"
)

func status(w io.Writer, role Role, symbol, msg string) {
	fmt.Fprintf(w, "%s %s\n", Paint(role, symbol), msg)
}

// PrintSuccess prints a success message.
func PrintSuccess(msg string) { status(os.Stdout, RoleOK, SymbolCheck, msg) }

// PrintError prints an error message to stderr.
func PrintError(msg string) { status(os.Stderr, RoleError, SymbolCross, msg) }

// PrintInfo prints an info message.
func PrintInfo(msg string) { status(os.Stdout, RoleInfo, SymbolInfo, msg) }

// PrintWarning prints a warning message.
func PrintWarning(msg string) { status(os.Stdout, RoleWarn, SymbolWarning, msg) }

// WarningLine formats msg as a warning for callers writing elsewhere.
func WarningLine(msg string) string { return Paint(RoleWarn, SymbolWarning) + " " + msg }

// PrintMusic prints a concert-related message.
func PrintMusic(msg string) { status(os.Stdout, RoleOK, SymbolMusic, msg) }

// FormatCountdown renders a countdown as "12d 3h", "5h", "past", or unknown
// when the date could not be parsed.
func FormatCountdown(c *model.Countdown, unknown string) string {
	if c == nil {
		return unknown
	}
	switch c.Status {
	case model.CountdownPast:
		return Paint(RolePast, "past")
	case model.CountdownUpcoming:
		if c.Days == 0 {
			if c.Hours == 0 {
				return Paint(RoleError, "now")
			}
			return Paint(RoleWarn, fmt.Sprintf("%dh", c.Hours))
		}
		return Paint(RoleOK, fmt.Sprintf("%dd %dh", c.Days, c.Hours))
	}
	return unknown
}

// RatingStars renders a 1-5 rating as filled and empty stars.
func RatingStars(rating int) string {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	return Paint(RoleWarn, strings.Repeat(SymbolStar, rating)) + strings.Repeat(SymbolStarEmpty, 5-rating)
}

// FormatAverage summarizes a review list, e.g. "4.5 ★ (2 reviews)".
func FormatAverage(list model.ReviewList) string {
	if list.Len() == 0 {
		return "no reviews yet"
	}
	return fmt.Sprintf("%s %s (%s)", list.DisplayAverage(), SymbolStar, english.Plural(list.Len(), "review", ""))
}

// StatusMarks renders the follow and reminder flags of a concert. A pending
// optimistic change is shown with a trailing ellipsis.
func StatusMarks(followed, followPending, reminder, reminderPending bool) string {
	var b strings.Builder
	if followed {
		b.WriteString(Paint(RoleError, SymbolFollow))
	}
	if followPending {
		b.WriteString(SymbolPending)
	}
	if reminder {
		b.WriteString(SymbolReminder)
	}
	if reminderPending {
		b.WriteString(SymbolPending)
	}
	return b.String()
}

// FormatRefreshed renders how long ago the snapshot was taken.
func FormatRefreshed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// FormatCount renders n with thousands separators and a pluralized noun,
// e.g. "1,204 concerts".
func FormatCount(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, noun, "")
}

// FormatSize renders a byte count for status output.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// DescribeIdentity returns a human-readable identity status.
func DescribeIdentity(userID, token string) string {
	userID = strings.TrimSpace(userID)
	hasToken := strings.TrimSpace(token) != ""
	switch {
	case userID != "" && hasToken:
		return fmt.Sprintf("%s (token)", userID)
	case userID != "":
		return userID
	case hasToken:
		return "Anonymous (token)"
	default:
		return "Anonymous"
	}
}
