package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/jmagar/gigs-cli/internal/api"
	"github.com/jmagar/gigs-cli/internal/cache"
	"github.com/jmagar/gigs-cli/internal/catalog"
	"github.com/jmagar/gigs-cli/internal/config"
	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/notify"
	"github.com/jmagar/gigs-cli/internal/ui"
	"github.com/jmagar/gigs-cli/internal/userstate"
	"github.com/jmagar/gigs-cli/internal/viewmodel"
)

// app is one CLI invocation: the resolved config and the engine built on it.
type app struct {
	cfg     *config.Config
	log     *logrus.Entry
	metrics *metrics.Metrics
	client  *api.Client
	coord   *viewmodel.Coordinator

	jsonOut bool
	offline bool
	// loaded is set once the engine holds a concert list, from the backend
	// or the snapshot; persisting before that would clobber the snapshot.
	loaded  bool
	closers []func() error
}

func newApp(cfg *config.Config, args *config.Args) (*app, error) {
	a := &app{
		cfg:     cfg,
		log:     logger.New("gigs", cfg.LogLevel, cfg.LogFormat),
		metrics: metrics.New(),
		jsonOut: args.JSON,
		offline: args.Offline,
	}

	var reqLog *logrus.Entry
	if path, err := cfg.ResolveAPILogPath(); err != nil {
		a.log.WithError(err).Warn("api request log disabled")
	} else if path != "" {
		entry, closeFn, err := api.OpenRequestLog(path)
		if err != nil {
			a.log.WithError(err).Warn("api request log disabled")
		} else {
			reqLog = entry
			a.closers = append(a.closers, closeFn)
		}
	}

	client, err := api.New(api.Options{
		BaseURL:    cfg.APIBaseURL,
		UserID:     cfg.UserID,
		Token:      cfg.Token,
		Timeout:    cfg.RequestTimeout.Duration,
		Log:        a.log.WithField("component", "api"),
		RequestLog: reqLog,
		Metrics:    a.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client

	opts := viewmodel.Options{
		Backend:        client,
		Catalog:        catalog.NewStore(a.log.WithField("component", "catalog"), a.metrics),
		User:           userstate.NewStore(a.log.WithField("component", "userstate"), a.metrics),
		Placeholders:   cfg.Placeholders(),
		ServerGrouping: cfg.ServerGrouping(),
		SearchLimit:    cfg.AISearchLimit,
		Log:            a.log.WithField("component", "viewmodel"),
		Metrics:        a.metrics,
	}
	if n := notify.New(cfg.GotifyURL, cfg.GotifyToken, cfg.GotifyPriority, a.log.WithField("component", "notify")); n != nil {
		opts.NotifyReminder = n.ReminderChanged
	}
	coord, err := viewmodel.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.coord = coord
	return a, nil
}

// Close releases the request log.
func (a *app) Close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.log.WithError(err).Debug("close failed")
		}
	}
	a.closers = nil
}

// seedFromCache loads the disk snapshot into the engine. It reports whether
// a snapshot existed.
func (a *app) seedFromCache() (bool, error) {
	snap, err := cache.ReadSnapshot()
	if errors.Is(err, cache.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	seed := viewmodel.Seed{
		Concerts:  snap.Concerts,
		Follows:   snap.Follows,
		Reminders: snap.Reminders,
	}
	if meta, err := cache.ReadMeta(); err == nil && meta != nil {
		seed.TakenAt = meta.LastUpdated
	}
	if a.cfg.ServerGrouping() {
		if groups, _, err := cache.ReadArtistGroupsCache(); err == nil {
			seed.Groups = groups
		}
	}
	res := a.coord.Bootstrap(seed)
	a.loaded = true
	a.log.WithFields(logrus.Fields{"concerts": res.Loaded, "taken_at": seed.TakenAt}).Debug("seeded from snapshot")
	return true, nil
}

// load makes the engine state current. With --offline only the snapshot is
// used. Otherwise the snapshot (when offlineStart is on) is shown first and
// then refreshed; per-source refresh failures are warnings as long as some
// concert data is available.
func (a *app) load(ctx context.Context) error {
	seeded := false
	if a.offline || a.cfg.OfflineStart {
		var err error
		seeded, err = a.seedFromCache()
		if err != nil {
			a.log.WithError(err).Warn("ignoring unreadable snapshot")
		}
	}
	if a.offline {
		if !seeded {
			return cache.ErrNoSnapshot
		}
		return nil
	}

	report, err := a.refresh(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if report.Failed(viewmodel.SourceConcerts) && !seeded {
		return fmt.Errorf("failed to load concerts: %w", report.Failures[viewmodel.SourceConcerts])
	}
	a.warnFailures(report)
	return nil
}

// refresh runs RefreshAll behind a spinner and persists the result when the
// concert list loaded.
func (a *app) refresh(ctx context.Context) (viewmodel.RefreshReport, error) {
	var report viewmodel.RefreshReport
	err := a.withSpinner("Refreshing concerts...", func() error {
		var err error
		report, err = a.coord.RefreshAll(ctx)
		return err
	})
	if !report.Failed(viewmodel.SourceConcerts) {
		a.loaded = true
		a.persist(report.Duration)
	}
	return report, err
}

func (a *app) persist(took time.Duration) {
	if !a.loaded {
		return
	}
	seed := a.coord.Export()
	snap := &cache.Snapshot{Concerts: seed.Concerts, Follows: seed.Follows, Reminders: seed.Reminders}
	if err := cache.WriteSnapshot(snap, a.client.BaseURL(), took); err != nil {
		a.log.WithError(err).Warn("failed to write snapshot")
	}
	if a.cfg.ServerGrouping() && seed.Groups != nil {
		if err := cache.WriteArtistGroupsCache(seed.Groups); err != nil {
			a.log.WithError(err).Warn("failed to write artist groups cache")
		}
	}
}

func (a *app) warnFailures(report viewmodel.RefreshReport) {
	if a.jsonOut {
		return
	}
	for _, source := range []string{viewmodel.SourceConcerts, viewmodel.SourceFollows, viewmodel.SourceReminders, viewmodel.SourceGroups} {
		if err, ok := report.Failures[source]; ok {
			ui.PrintWarning(fmt.Sprintf("could not refresh %s: %v", source, err))
		}
	}
}

// withSpinner runs fn while animating a loading line on interactive
// terminals.
func (a *app) withSpinner(label string, fn func() error) error {
	if a.jsonOut || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fn()
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			ui.RenderLoading(label, frame)
			select {
			case <-done:
				ui.RenderLoading("", 0)
				return
			case <-ticker.C:
			}
		}
	}()
	err := fn()
	close(done)
	<-stopped
	return err
}
