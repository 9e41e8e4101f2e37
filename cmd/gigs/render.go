package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/ui"
	"github.com/jmagar/gigs-cli/internal/viewmodel"
)

// concertJSON is the --json shape of one concert.
type concertJSON struct {
	model.Concert
	Countdown *model.Countdown `json:"countdown"`
	Followed  bool             `json:"followed"`
	Reminder  bool             `json:"reminder"`
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

func toJSON(views []viewmodel.ConcertView) []concertJSON {
	out := make([]concertJSON, 0, len(views))
	for _, v := range views {
		out = append(out, concertJSON{Concert: v.Concert, Countdown: v.Countdown, Followed: v.Followed, Reminder: v.Reminder})
	}
	return out
}

func (a *app) row(v viewmodel.ConcertView) ui.ConcertRow {
	return ui.ConcertRow{
		ID:        string(v.ID),
		Artist:    v.Artist,
		Time:      v.Time,
		Location:  v.Location,
		Countdown: ui.FormatCountdown(v.Countdown, a.cfg.Placeholders().Unknown),
		Marks:     ui.StatusMarks(v.Followed, v.FollowPending, v.Reminder, v.ReminderPending),
	}
}

func (a *app) views(concerts []model.Concert, now time.Time) []viewmodel.ConcertView {
	out := make([]viewmodel.ConcertView, 0, len(concerts))
	for _, c := range concerts {
		out = append(out, a.coord.View(c, now))
	}
	return out
}

// printConcerts renders views as a table or JSON, capped at limit when
// positive.
func (a *app) printConcerts(title string, views []viewmodel.ConcertView, limit int, empty string) error {
	total := len(views)
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	if a.jsonOut {
		return printJSON(toJSON(views))
	}
	ui.PrintHeader(title)
	rows := make([]ui.ConcertRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, a.row(v))
	}
	ui.PrintConcertTable(rows, empty)
	if len(views) < total {
		ui.PrintInfo(fmt.Sprintf("showing %d of %s", len(views), ui.FormatCount(total, "concert")))
	}
	a.printFooter()
	return nil
}

func (a *app) printFooter() {
	snap := a.coord.Snapshot(time.Now())
	source := "refreshed"
	if a.offline {
		source = "cached"
	}
	fmt.Printf("\n%s\n", ui.Paint(ui.RoleAccent, source+" "+ui.FormatRefreshed(snap.RefreshedAt)))
}

func (a *app) printReviews(list model.ReviewList) {
	ui.PrintSection("Reviews: " + ui.FormatAverage(list))
	for _, r := range list.Reviews {
		name := r.Username
		if name == "" {
			name = a.cfg.Placeholders().Unknown
		}
		fmt.Printf("  %s  %s\n", ui.RatingStars(r.Rating), ui.Paint(ui.RoleStrong, name))
		fmt.Printf("    %s\n", r.Comment)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
