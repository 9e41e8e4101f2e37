package viewmodel

import (
	"strings"
	"time"

	"github.com/jmagar/gigs-cli/internal/catalog"
	"github.com/jmagar/gigs-cli/internal/model"
	"github.com/jmagar/gigs-cli/internal/userstate"
)

// Visible is what the active tab shows. The artist tab without a selected
// group fills Groups and leaves Concerts empty; every other state fills
// Concerts only.
type Visible struct {
	Concerts []model.Concert
	Groups   []model.ArtistGroup
}

// ConcertView is a concert ready for display: placeholders substituted and
// the user overlay resolved.
type ConcertView struct {
	model.Concert
	Countdown       *model.Countdown
	Followed        bool
	Reminder        bool
	FollowPending   bool
	ReminderPending bool
}

// Snapshot is a read-only copy of the coordinator state.
type Snapshot struct {
	Tab           Tab
	Query         string
	SelectedGroup string
	Concerts      []ConcertView
	Groups        []model.ArtistGroup

	Detail  *ConcertView
	Reviews model.ReviewList

	AIQuery       string
	Refreshing    bool
	AISearching   bool
	DetailLoading bool
	RefreshedAt   time.Time

	// Errors holds the last failure per source, cleared on the next success.
	Errors map[string]string
}

type uiState struct {
	tab           Tab
	query         string
	selected      model.ConcertID
	selectedGroup string
	aiResults     []model.Concert
}

func (c *Coordinator) state() uiState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uiState{
		tab:           c.tab,
		query:         c.query,
		selected:      c.selected,
		selectedGroup: c.selectedGroup,
		aiResults:     append([]model.Concert(nil), c.aiResults...),
	}
}

// Visible derives the current tab's content.
func (c *Coordinator) Visible() Visible {
	return c.visible(c.state())
}

// VisibleConcerts is Visible().Concerts.
func (c *Coordinator) VisibleConcerts() []model.Concert {
	return c.Visible().Concerts
}

func (c *Coordinator) visible(st uiState) Visible {
	switch st.tab {
	case TabFollows:
		var out []model.Concert
		for _, concert := range c.catalog.Search(st.query) {
			if c.user.IsFollowed(concert.ID) {
				out = append(out, concert)
			}
		}
		return Visible{Concerts: out}
	case TabArtist:
		if st.selectedGroup != "" {
			g, err := c.artistGroup(st.selectedGroup)
			if err != nil {
				return Visible{}
			}
			return Visible{Concerts: g.Concerts}
		}
		return Visible{Groups: filterGroups(c.catalog.ArtistGroups(), st.query)}
	case TabAISearch:
		return Visible{Concerts: st.aiResults}
	default:
		return Visible{Concerts: c.catalog.Search(st.query)}
	}
}

func filterGroups(groups []model.ArtistGroup, query string) []model.ArtistGroup {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return groups
	}
	out := make([]model.ArtistGroup, 0, len(groups))
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g.CanonicalArtist), q) {
			out = append(out, g)
		}
	}
	return out
}

// Snapshot copies everything a renderer needs, with countdowns computed
// against now.
func (c *Coordinator) Snapshot(now time.Time) Snapshot {
	st := c.state()
	vis := c.visible(st)

	snap := Snapshot{
		Tab:           st.tab,
		Query:         st.query,
		SelectedGroup: st.selectedGroup,
		Groups:        vis.Groups,
		Concerts:      make([]ConcertView, 0, len(vis.Concerts)),
	}
	for _, concert := range vis.Concerts {
		snap.Concerts = append(snap.Concerts, c.View(concert, now))
	}
	if st.selected != "" {
		if concert, err := c.Concert(st.selected); err == nil {
			v := c.View(concert, now)
			snap.Detail = &v
		}
		snap.Reviews = c.user.Reviews(st.selected)
	}

	c.mu.Lock()
	snap.AIQuery = c.aiQuery
	snap.Refreshing = c.refreshing
	snap.AISearching = c.aiLoading
	snap.DetailLoading = c.detailLoading
	snap.RefreshedAt = c.refreshedAt
	snap.Errors = make(map[string]string, len(c.errs))
	for source, err := range c.errs {
		snap.Errors[source] = err.Error()
	}
	c.mu.Unlock()
	return snap
}

// View resolves one concert for display.
func (c *Coordinator) View(concert model.Concert, now time.Time) ConcertView {
	cd := catalog.ComputeCountdown(concert.Time, now)
	if cd == nil && strings.TrimSpace(concert.Time) != "" {
		c.log.WithField("concert_id", concert.ID).WithField("time", concert.Time).Debug("unparseable concert date")
	}
	_, reminder := c.user.Reminder(concert.ID)
	return ConcertView{
		Concert:         c.withPlaceholders(concert),
		Countdown:       cd,
		Followed:        c.user.IsFollowed(concert.ID),
		Reminder:        reminder,
		FollowPending:   c.user.Pending(userstate.OpFollow, concert.ID) == userstate.OpPending,
		ReminderPending: c.user.Pending(userstate.OpReminder, concert.ID) == userstate.OpPending,
	}
}

func (c *Coordinator) withPlaceholders(concert model.Concert) model.Concert {
	unknown := c.placeholders.Unknown
	for _, field := range []*string{
		&concert.Artist, &concert.Time, &concert.Location, &concert.SourceSite,
		&concert.TicketURL, &concert.Price, &concert.CrawledAt,
	} {
		if v := strings.TrimSpace(*field); v == "" || v == model.PendingValue {
			*field = unknown
		}
	}
	return concert
}

// FollowedConcerts returns the followed concerts still in the catalog, in
// ID order. Follows pointing at concerts that disappeared are omitted.
func (c *Coordinator) FollowedConcerts() []model.Concert {
	ids := c.user.Follows()
	out := make([]model.Concert, 0, len(ids))
	for _, id := range ids {
		if concert, err := c.catalog.Get(id); err == nil {
			out = append(out, concert)
		}
	}
	return out
}
