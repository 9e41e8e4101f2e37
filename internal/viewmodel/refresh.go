package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jmagar/gigs-cli/internal/catalog"
	"github.com/jmagar/gigs-cli/internal/model"
)

// RefreshReport describes one RefreshAll. Each source either loaded or has
// an entry in Failures; a failed source kept its previous state.
type RefreshReport struct {
	Concerts     catalog.LoadResult
	Follows      int
	Reminders    int
	Groups       int
	Failures     map[string]error
	DetailClosed bool
	GroupCleared bool
	Duration     time.Duration
}

// Failed reports whether source failed to load.
func (r RefreshReport) Failed(source string) bool {
	_, ok := r.Failures[source]
	return ok
}

// Err joins every failure, sorted by source, or returns nil.
func (r RefreshReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	sources := make([]string, 0, len(r.Failures))
	for s := range r.Failures {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	errs := make([]error, 0, len(sources))
	for _, s := range sources {
		errs = append(errs, fmt.Errorf("%s: %w", s, r.Failures[s]))
	}
	return errors.Join(errs...)
}

// RefreshAll reloads concerts, follows and reminders concurrently, plus the
// server artist grouping when configured. Each success is applied even when
// another source fails. Concurrent callers share a single refresh. The
// returned error is RefreshReport.Err.
func (c *Coordinator) RefreshAll(ctx context.Context) (RefreshReport, error) {
	v, _, _ := c.refreshes.Do("refresh", func() (any, error) {
		return c.refresh(ctx), nil
	})
	report := v.(RefreshReport)
	return report, report.Err()
}

func (c *Coordinator) refresh(ctx context.Context) RefreshReport {
	start := time.Now()
	c.mu.Lock()
	c.refreshing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	var (
		report   = RefreshReport{Failures: make(map[string]error)}
		reportMu sync.Mutex
		groups   []model.ArtistGroup
	)
	fail := func(source string, err error) {
		reportMu.Lock()
		report.Failures[source] = err
		reportMu.Unlock()
		c.setErr(source, err)
		c.metrics.RefreshFailures.WithLabelValues(source).Inc()
		c.log.WithError(err).WithField("source", source).Warn("refresh source failed")
	}

	// Sources never fail the group; a failure is recorded and the others
	// keep running.
	var g errgroup.Group
	g.Go(func() error {
		batch, err := c.backend.Concerts(ctx)
		if err != nil {
			fail(SourceConcerts, err)
			return nil
		}
		res := c.catalog.LoadBatch(batch)
		reportMu.Lock()
		report.Concerts = res
		reportMu.Unlock()
		c.setErr(SourceConcerts, nil)
		return nil
	})
	g.Go(func() error {
		ids, err := c.backend.Follows(ctx)
		if err != nil {
			fail(SourceFollows, err)
			return nil
		}
		c.user.LoadFollows(ids)
		reportMu.Lock()
		report.Follows = len(ids)
		reportMu.Unlock()
		c.setErr(SourceFollows, nil)
		return nil
	})
	g.Go(func() error {
		reminders, err := c.backend.Reminders(ctx)
		if err != nil {
			fail(SourceReminders, err)
			return nil
		}
		c.user.LoadReminders(reminders)
		reportMu.Lock()
		report.Reminders = len(reminders)
		reportMu.Unlock()
		c.setErr(SourceReminders, nil)
		return nil
	})
	if c.serverGrouping {
		g.Go(func() error {
			got, err := c.backend.ArtistGroups(ctx)
			if err != nil {
				fail(SourceGroups, err)
				return nil
			}
			reportMu.Lock()
			groups = got
			reportMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Load resets server groups, so they are installed after the concert
	// set has been replaced. Groups fetched alongside a failed concert list
	// would point at a set that was never installed; the prior groups stay.
	switch {
	case groups == nil:
	case report.Failed(SourceConcerts):
		c.log.WithField("groups", len(groups)).Warn("concert list failed, keeping previous server groups")
	default:
		c.catalog.LoadServerGroups(groups)
		report.Groups = len(groups)
		c.setErr(SourceGroups, nil)
	}

	report.DetailClosed, report.GroupCleared = c.reconcileSelection()
	report.Duration = time.Since(start)

	c.mu.Lock()
	if !report.Failed(SourceConcerts) {
		c.refreshedAt = time.Now()
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"concerts":  report.Concerts.Loaded,
		"skipped":   report.Concerts.Skipped,
		"follows":   report.Follows,
		"reminders": report.Reminders,
		"failures":  len(report.Failures),
		"duration":  report.Duration.Round(time.Millisecond).String(),
	}).Info("refresh complete")
	return report
}

// reconcileSelection closes the detail view and the artist drill-down when
// a refresh removed what they point at.
func (c *Coordinator) reconcileSelection() (detailClosed, groupCleared bool) {
	st := c.state()
	if st.selected != "" {
		if _, err := c.Concert(st.selected); errors.Is(err, model.ErrNotFound) {
			c.CloseConcert()
			detailClosed = true
			c.log.WithField("concert_id", st.selected).Info("selected concert removed by refresh")
		}
	}
	if st.selectedGroup != "" {
		if _, err := c.artistGroup(st.selectedGroup); err != nil {
			c.ClearArtistGroup()
			groupCleared = true
		}
	}
	return detailClosed, groupCleared
}

// TriggerCrawl asks the backend to re-crawl every source and then refreshes.
// It returns the number of concerts the crawl produced.
func (c *Coordinator) TriggerCrawl(ctx context.Context) (int, RefreshReport, error) {
	n, err := c.backend.GenerateAll(ctx)
	if err != nil {
		c.setErr(SourceCrawl, err)
		return 0, RefreshReport{}, fmt.Errorf("trigger crawl: %w", err)
	}
	c.setErr(SourceCrawl, nil)
	c.log.WithField("count", n).Info("crawl finished")
	report, err := c.RefreshAll(ctx)
	return n, report, err
}

// Seed is persisted engine state used to start without the backend.
type Seed struct {
	Concerts  []model.Concert
	Follows   []model.ConcertID
	Reminders map[model.ConcertID]model.Reminder
	Groups    []model.ArtistGroup
	TakenAt   time.Time
}

// Bootstrap loads a seed as if it had just been refreshed at seed.TakenAt.
func (c *Coordinator) Bootstrap(seed Seed) catalog.LoadResult {
	res := c.catalog.Load(seed.Concerts)
	if c.serverGrouping && seed.Groups != nil {
		c.catalog.LoadServerGroups(seed.Groups)
	}
	c.user.LoadFollows(seed.Follows)
	c.user.LoadReminders(seed.Reminders)
	c.mu.Lock()
	c.refreshedAt = seed.TakenAt
	c.mu.Unlock()
	return res
}

// Export captures the current state as a Seed for persistence.
func (c *Coordinator) Export() Seed {
	seed := Seed{
		Concerts:  c.catalog.All(),
		Follows:   c.user.Follows(),
		Reminders: c.user.Reminders(),
	}
	if c.serverGrouping {
		seed.Groups = c.catalog.ArtistGroups()
	}
	c.mu.Lock()
	seed.TakenAt = c.refreshedAt
	c.mu.Unlock()
	return seed
}
