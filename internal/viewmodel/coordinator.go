// Package viewmodel is the state machine between the CLI and the engine.
// It owns the tab, search and selection state, derives what should be shown
// from the catalog and user stores, and funnels every mutation and backend
// load through one place.
package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/jmagar/gigs-cli/internal/catalog"
	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/userstate"
)

// Backend is the subset of the API client the coordinator drives.
type Backend interface {
	Concerts(ctx context.Context) (model.ConcertBatch, error)
	Follows(ctx context.Context) ([]model.ConcertID, error)
	Reminders(ctx context.Context) (map[model.ConcertID]model.Reminder, error)
	ArtistGroups(ctx context.Context) ([]model.ArtistGroup, error)
	SetFollow(ctx context.Context, id model.ConcertID, follow bool) error
	SetReminder(ctx context.Context, id model.ConcertID, enable bool) error
	Reviews(ctx context.Context, id model.ConcertID) (model.ReviewList, error)
	SubmitReview(ctx context.Context, id model.ConcertID, form model.ReviewForm) error
	Search(ctx context.Context, query string, limit int) ([]model.Concert, error)
	GenerateAll(ctx context.Context) (int, error)
}

// Tab selects which derivation Visible applies.
type Tab string

const (
	TabAll      Tab = "all"
	TabFollows  Tab = "follows"
	TabArtist   Tab = "artist"
	TabAISearch Tab = "aiSearch"
)

// ParseTab maps user input to a Tab, case-insensitively.
func ParseTab(s string) (Tab, error) {
	for _, t := range []Tab{TabAll, TabFollows, TabArtist, TabAISearch} {
		if strings.EqualFold(strings.TrimSpace(s), string(t)) {
			return t, nil
		}
	}
	return "", &model.ValidationError{Field: "tab", Reason: fmt.Sprintf("unknown tab %q", s)}
}

// Error sources recorded in Snapshot.Errors.
const (
	SourceConcerts  = "concerts"
	SourceFollows   = "follows"
	SourceReminders = "reminders"
	SourceGroups    = "groups"
	SourceReviews   = "reviews"
	SourceAISearch  = "aiSearch"
	SourceFollow    = "follow"
	SourceReminder  = "reminder"
	SourceReview    = "review"
	SourceCrawl     = "crawl"
)

// ErrStale is returned when a response arrived for a selection or search
// that has since been replaced. The response was discarded.
var ErrStale = errors.New("stale response discarded")

// Options configures a Coordinator. Backend, Catalog and User are required.
type Options struct {
	Backend Backend
	Catalog *catalog.Store
	User    *userstate.Store

	Placeholders   model.Placeholders
	ServerGrouping bool
	SearchLimit    int

	// NotifyReminder, when set, is called after a reminder toggle commits.
	NotifyReminder func(ctx context.Context, c model.Concert, enabled bool) error

	Log     *logrus.Entry
	Metrics *metrics.Metrics
}

// Coordinator is safe for concurrent use. Backend calls are never made while
// its lock is held.
type Coordinator struct {
	backend        Backend
	catalog        *catalog.Store
	user           *userstate.Store
	placeholders   model.Placeholders
	serverGrouping bool
	searchLimit    int
	notifyReminder func(ctx context.Context, c model.Concert, enabled bool) error
	log            *logrus.Entry
	metrics        *metrics.Metrics

	refreshes singleflight.Group

	mu            sync.Mutex
	tab           Tab
	query         string
	selected      model.ConcertID
	selectedGroup string
	detailGen     uint64
	detailLoading bool
	aiGen         uint64
	aiLoading     bool
	aiQuery       string
	aiResults     []model.Concert
	refreshing    bool
	refreshedAt   time.Time
	errs          map[string]error
}

// New builds a coordinator on the tab "all" with nothing selected.
func New(opts Options) (*Coordinator, error) {
	if opts.Backend == nil || opts.Catalog == nil || opts.User == nil {
		return nil, errors.New("viewmodel: backend, catalog and user store are required")
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop()
	}
	if opts.Placeholders.Unknown == "" {
		opts.Placeholders.Unknown = "unknown"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	return &Coordinator{
		backend:        opts.Backend,
		catalog:        opts.Catalog,
		user:           opts.User,
		placeholders:   opts.Placeholders,
		serverGrouping: opts.ServerGrouping,
		searchLimit:    opts.SearchLimit,
		notifyReminder: opts.NotifyReminder,
		log:            opts.Log,
		metrics:        opts.Metrics,
		tab:            TabAll,
		errs:           make(map[string]error),
	}, nil
}

// SetTab switches the active tab. Leaving the artist tab keeps the selected
// group so returning to it restores the drill-down.
func (c *Coordinator) SetTab(tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	c.mu.Lock()
	c.tab = tab
	c.mu.Unlock()
	return nil
}

// Tab returns the active tab.
func (c *Coordinator) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SetSearchQuery sets the text filter used by the all, follows and artist tabs.
func (c *Coordinator) SetSearchQuery(q string) {
	c.mu.Lock()
	c.query = q
	c.mu.Unlock()
}

// SelectConcert marks id as the open concert without loading anything.
// Pending detail loads for a previous selection become stale.
func (c *Coordinator) SelectConcert(id model.ConcertID) {
	c.mu.Lock()
	prev := c.selected
	c.selected = id
	c.detailGen++
	c.detailLoading = false
	c.mu.Unlock()
	if prev != "" && prev != id {
		c.user.DropReviews(prev)
	}
}

// CloseConcert clears the selection and discards its review cache.
func (c *Coordinator) CloseConcert() {
	c.SelectConcert("")
}

// Selected returns the open concert ID, or "".
func (c *Coordinator) Selected() model.ConcertID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// SelectArtistGroup drills the artist tab into one group. The key must name
// a current group.
func (c *Coordinator) SelectArtistGroup(key string) error {
	g, err := c.artistGroup(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.selectedGroup = g.CanonicalArtist
	c.mu.Unlock()
	return nil
}

// ClearArtistGroup returns the artist tab to the group list.
func (c *Coordinator) ClearArtistGroup() {
	c.mu.Lock()
	c.selectedGroup = ""
	c.mu.Unlock()
}

// artistGroup finds a group by exact key, falling back to a
// case-insensitive match.
func (c *Coordinator) artistGroup(key string) (model.ArtistGroup, error) {
	if g, err := c.catalog.ArtistGroup(key); err == nil {
		return g, nil
	}
	for _, g := range c.catalog.ArtistGroups() {
		if strings.EqualFold(g.CanonicalArtist, strings.TrimSpace(key)) {
			return g, nil
		}
	}
	return model.ArtistGroup{}, fmt.Errorf("artist group %q: %w", key, model.ErrNotFound)
}

// Concert looks a concert up in the catalog, then in the last AI results.
func (c *Coordinator) Concert(id model.ConcertID) (model.Concert, error) {
	if concert, err := c.catalog.Get(id); err == nil {
		return concert, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, concert := range c.aiResults {
		if concert.ID == id {
			return concert, nil
		}
	}
	return model.Concert{}, fmt.Errorf("concert %q: %w", id, model.ErrNotFound)
}

func (c *Coordinator) setErr(source string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, source)
		return
	}
	c.errs[source] = err
}
