package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmagar/gigs-cli/internal/cache"
	"github.com/jmagar/gigs-cli/internal/config"
	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/ui"
	"github.com/jmagar/gigs-cli/internal/viewmodel"
)

func (a *app) runList(ctx context.Context, cmd *config.ListCmd) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	a.coord.SetSearchQuery(cmd.Query)
	snap := a.coord.Snapshot(time.Now())
	title := "Concerts"
	if q := strings.TrimSpace(cmd.Query); q != "" {
		title = fmt.Sprintf("Concerts matching %q", q)
	}
	return a.printConcerts(title, snap.Concerts, cmd.Limit, "no concerts match")
}

func (a *app) runFollows(ctx context.Context, cmd *config.FollowsCmd) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.coord.SetTab(viewmodel.TabFollows); err != nil {
		return err
	}
	a.coord.SetSearchQuery(cmd.Query)
	snap := a.coord.Snapshot(time.Now())
	return a.printConcerts("Followed concerts", snap.Concerts, 0, "you are not following any concerts")
}

func (a *app) runArtists(ctx context.Context, cmd *config.ArtistsCmd) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	if err := a.coord.SetTab(viewmodel.TabArtist); err != nil {
		return err
	}
	if cmd.Artist != "" {
		if err := a.coord.SelectArtistGroup(cmd.Artist); err != nil {
			return err
		}
		snap := a.coord.Snapshot(time.Now())
		return a.printConcerts(snap.SelectedGroup, snap.Concerts, cmd.Limit, "no concerts for this artist")
	}

	a.coord.SetSearchQuery(cmd.Query)
	groups := a.coord.Snapshot(time.Now()).Groups
	total := len(groups)
	if cmd.Limit > 0 && len(groups) > cmd.Limit {
		groups = groups[:cmd.Limit]
	}
	if a.jsonOut {
		type groupJSON struct {
			Artist string `json:"artist"`
			Count  int    `json:"concert_count"`
		}
		out := make([]groupJSON, 0, len(groups))
		for _, g := range groups {
			out = append(out, groupJSON{Artist: g.CanonicalArtist, Count: g.Count})
		}
		return printJSON(out)
	}
	ui.PrintHeader("Artists")
	rows := make([]ui.GroupRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, ui.GroupRow{Artist: g.CanonicalArtist, Count: g.Count})
	}
	ui.PrintGroupTable(rows, "no artists match")
	if len(groups) < total {
		ui.PrintInfo(fmt.Sprintf("showing %d of %s", len(groups), ui.FormatCount(total, "artist")))
	}
	return nil
}

func (a *app) runShow(ctx context.Context, cmd *config.ShowCmd) error {
	if err := a.load(ctx); err != nil {
		return err
	}
	id := model.ConcertID(cmd.ID)
	var reviewErr error
	if a.offline {
		if _, err := a.coord.Concert(id); err != nil {
			return err
		}
		a.coord.SelectConcert(id)
	} else if _, err := a.coord.OpenConcert(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrValidation) {
			return err
		}
		reviewErr = err
	}
	defer a.coord.CloseConcert()

	snap := a.coord.Snapshot(time.Now())
	if snap.Detail == nil {
		return fmt.Errorf("concert %q: %w", id, model.ErrNotFound)
	}
	if a.jsonOut {
		return printJSON(struct {
			Concert concertJSON      `json:"concert"`
			Reviews model.ReviewList `json:"reviews"`
		}{toJSON([]viewmodel.ConcertView{*snap.Detail})[0], snap.Reviews})
	}

	d := *snap.Detail
	ui.PrintConcertDetail(a.row(d), [][2]string{
		{"Price", d.Price},
		{"Tickets", d.TicketURL},
		{"Source", d.SourceSite},
		{"Crawled", d.CrawledAt},
	})
	if reviewErr != nil {
		ui.PrintWarning(fmt.Sprintf("could not load reviews: %v", reviewErr))
		return nil
	}
	if !a.offline {
		a.printReviews(snap.Reviews)
	}
	return nil
}

// mutate loads current state, which a toggle needs to know which way to
// flip, and refuses to run offline.
func (a *app) mutate(ctx context.Context, source string) error {
	if a.offline {
		return errors.New("changes need the backend; drop --offline")
	}
	report, err := a.refresh(ctx)
	if err != nil && report.Failed(source) {
		return fmt.Errorf("failed to load current %s: %w", source, report.Failures[source])
	}
	return nil
}

func (a *app) runFollow(ctx context.Context, cmd *config.FollowCmd) error {
	if err := a.mutate(ctx, viewmodel.SourceFollows); err != nil {
		return err
	}
	id := model.ConcertID(cmd.ID)
	followed, err := a.coord.ToggleFollow(ctx, id)
	if err != nil {
		return err
	}
	a.persist(0)
	if a.jsonOut {
		return printJSON(map[string]any{"id": id, "followed": followed})
	}
	if followed {
		ui.PrintSuccess(fmt.Sprintf("Following %s", a.describe(id)))
	} else {
		ui.PrintSuccess(fmt.Sprintf("Unfollowed %s", a.describe(id)))
	}
	return nil
}

func (a *app) runRemind(ctx context.Context, cmd *config.RemindCmd) error {
	if err := a.mutate(ctx, viewmodel.SourceReminders); err != nil {
		return err
	}
	id := model.ConcertID(cmd.ID)
	enabled, err := a.coord.ToggleReminder(ctx, id)
	if err != nil {
		return err
	}
	a.persist(0)
	if a.jsonOut {
		return printJSON(map[string]any{"id": id, "reminder": enabled})
	}
	if enabled {
		ui.PrintSuccess(fmt.Sprintf("%s Reminder set for %s", ui.SymbolReminder, a.describe(id)))
	} else {
		ui.PrintSuccess(fmt.Sprintf("Reminder removed for %s", a.describe(id)))
	}
	return nil
}

func (a *app) runReview(ctx context.Context, cmd *config.ReviewCmd) error {
	if a.offline {
		return errors.New("changes need the backend; drop --offline")
	}
	id := model.ConcertID(cmd.ID)
	list, err := a.coord.SubmitReview(ctx, id, cmd.Rating, cmd.Comment)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return printJSON(list)
	}
	ui.PrintSuccess(fmt.Sprintf("Review posted for concert %s", id))
	a.printReviews(list)
	return nil
}

func (a *app) runSearch(ctx context.Context, cmd *config.SearchCmd) error {
	if a.offline {
		return errors.New("ai search needs the backend; drop --offline")
	}
	query := strings.Join(cmd.Query, " ")
	var results []model.Concert
	err := a.withSpinner("Searching...", func() error {
		var err error
		results, err = a.coord.PerformAiSearch(ctx, query)
		return err
	})
	if err != nil {
		return err
	}
	if cmd.Limit > 0 && len(results) > cmd.Limit {
		results = results[:cmd.Limit]
	}
	return a.printConcerts(fmt.Sprintf("AI results for %q", query), a.views(results, time.Now()), 0, "no results")
}

func (a *app) runRefresh(ctx context.Context) error {
	if a.offline {
		return errors.New("refresh needs the backend; drop --offline")
	}
	report, err := a.refresh(ctx)
	return a.printReport(report, err, 0)
}

func (a *app) runCrawl(ctx context.Context) error {
	if a.offline {
		return errors.New("crawl needs the backend; drop --offline")
	}
	var (
		n      int
		report viewmodel.RefreshReport
	)
	err := a.withSpinner("Crawling all sources...", func() error {
		var err error
		n, report, err = a.coord.TriggerCrawl(ctx)
		return err
	})
	if err != nil && report.Failures == nil {
		return err
	}
	if !report.Failed(viewmodel.SourceConcerts) {
		a.loaded = true
		a.persist(report.Duration)
	}
	return a.printReport(report, err, n)
}

func (a *app) printReport(report viewmodel.RefreshReport, err error, crawled int) error {
	if a.jsonOut {
		failures := make(map[string]string, len(report.Failures))
		for source, ferr := range report.Failures {
			failures[source] = ferr.Error()
		}
		if perr := printJSON(map[string]any{
			"crawled":   crawled,
			"concerts":  report.Concerts.Loaded,
			"skipped":   report.Concerts.Skipped,
			"follows":   report.Follows,
			"reminders": report.Reminders,
			"groups":    report.Groups,
			"failures":  failures,
			"duration":  report.Duration.String(),
		}); perr != nil {
			return perr
		}
		return err
	}
	if crawled > 0 {
		ui.PrintMusic(fmt.Sprintf("Crawl produced %s", ui.FormatCount(crawled, "concert")))
	}
	if !report.Failed(viewmodel.SourceConcerts) {
		msg := fmt.Sprintf("Loaded %s", ui.FormatCount(report.Concerts.Loaded, "concert"))
		if report.Concerts.Skipped > 0 {
			msg += fmt.Sprintf(" (%d malformed skipped)", report.Concerts.Skipped)
		}
		ui.PrintSuccess(msg)
	}
	if !report.Failed(viewmodel.SourceFollows) {
		ui.PrintSuccess(fmt.Sprintf("Loaded %s", ui.FormatCount(report.Follows, "follow")))
	}
	if !report.Failed(viewmodel.SourceReminders) {
		ui.PrintSuccess(fmt.Sprintf("Loaded %s", ui.FormatCount(report.Reminders, "reminder")))
	}
	if a.cfg.ServerGrouping() && !report.Failed(viewmodel.SourceGroups) {
		ui.PrintSuccess(fmt.Sprintf("Loaded %s", ui.FormatCount(report.Groups, "artist group")))
	}
	a.warnFailures(report)
	return err
}

func (a *app) runStatus(ctx context.Context) error {
	health, healthErr := a.client.Health(ctx)
	meta, metaErr := cache.ReadMeta()
	var snapshotSize int64
	if path, err := cache.SnapshotPath(); err == nil {
		if info, err := os.Stat(path); err == nil {
			snapshotSize = info.Size()
		}
	}
	counters, _ := a.metrics.Counters()

	if a.jsonOut {
		out := map[string]any{
			"backend":  a.client.BaseURL(),
			"healthy":  healthErr == nil,
			"circuit":  a.client.CircuitState(),
			"identity": ui.DescribeIdentity(a.cfg.UserID, a.cfg.Token),
			"snapshot": meta,
			"counters": counters,
		}
		if healthErr != nil {
			out["error"] = healthErr.Error()
		} else {
			out["serverTime"] = health.Timestamp
		}
		return printJSON(out)
	}

	ui.PrintHeader("gigs status")
	ui.PrintSection("Backend")
	ui.PrintKeyValue("URL", a.client.BaseURL(), ui.RolePlain)
	if healthErr != nil {
		ui.PrintKeyValue("Health", ui.SymbolCross+" "+healthErr.Error(), ui.RoleError)
	} else {
		ui.PrintKeyValue("Health", ui.SymbolCheck+" ok", ui.RoleOK)
		ui.PrintKeyValue("Server time", health.Timestamp, ui.RolePlain)
	}
	ui.PrintKeyValue("Circuit", a.client.CircuitState(), ui.RolePlain)
	ui.PrintKeyValue("Identity", ui.DescribeIdentity(a.cfg.UserID, a.cfg.Token), ui.RolePlain)
	ui.PrintKeyValue("Locale", a.cfg.Locale, ui.RolePlain)
	ui.PrintKeyValue("Grouping", a.cfg.ArtistGrouping, ui.RolePlain)

	ui.PrintSection("Snapshot")
	switch {
	case metaErr != nil:
		ui.PrintKeyValue("Status", metaErr.Error(), ui.RoleError)
	case meta == nil:
		ui.PrintKeyValue("Status", "none - run 'gigs refresh'", ui.RoleWarn)
	default:
		ui.PrintKeyValue("Updated", ui.FormatRefreshed(meta.LastUpdated), ui.RolePlain)
		ui.PrintKeyValue("Concerts", ui.FormatCount(meta.TotalConcerts, "concert"), ui.RolePlain)
		ui.PrintKeyValue("Follows", ui.FormatCount(meta.TotalFollows, "follow"), ui.RolePlain)
		ui.PrintKeyValue("Reminders", ui.FormatCount(meta.TotalReminders, "reminder"), ui.RolePlain)
		ui.PrintKeyValue("Size", ui.FormatSize(snapshotSize), ui.RolePlain)
		ui.PrintKeyValue("Took", meta.UpdateDuration, ui.RolePlain)
		ui.PrintKeyValue("Version", meta.CacheVersion, ui.RolePlain)
	}

	if len(counters) > 0 {
		ui.PrintSection("Counters")
		for _, key := range sortedKeys(counters) {
			ui.PrintKeyValue(key, fmt.Sprintf("%.0f", counters[key]), ui.RolePlain)
		}
	}
	return nil
}

func runConfig(cmd *config.ConfigCmd, jsonOut bool) error {
	cfg, err := config.ReadConfig()
	if err != nil {
		return err
	}
	if cmd.Set != nil {
		if err := cfg.Set(cmd.Set.Key, cmd.Set.Value); err != nil {
			return err
		}
		if err := config.WriteConfig(cfg); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Set %s in %s", cmd.Set.Key, config.LoadedConfigPath))
		return nil
	}

	entries := cfg.Entries()
	if jsonOut {
		out := make(map[string]string, len(entries))
		for _, e := range entries {
			out[e.Key] = e.Value
		}
		return printJSON(out)
	}
	path := config.LoadedConfigPath
	if path == "" {
		path = "(defaults; no config file found)"
	}
	ui.PrintHeader("gigs configuration")
	ui.PrintKeyValue("File", path, ui.RoleStrong)
	fmt.Println()
	for _, e := range entries {
		ui.PrintKeyValue(e.Key, e.Value, ui.RolePlain)
	}
	return nil
}

func (a *app) describe(id model.ConcertID) string {
	c, err := a.coord.Concert(id)
	if err != nil {
		return "concert " + string(id)
	}
	return fmt.Sprintf("%s (%s)", c.Artist, c.Time)
}
