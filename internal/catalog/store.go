// Package catalog holds the authoritative concert set and the pure helpers
// that derive grouping keys and countdowns from it.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
)

// LoadResult reports what a Load kept and dropped.
type LoadResult struct {
	Loaded  int
	Skipped int
}

// Store holds one snapshot of concerts plus its derived indexes.
// All methods are safe for concurrent use.
type Store struct {
	log     *logrus.Entry
	metrics *metrics.Metrics

	mu       sync.RWMutex
	concerts []model.Concert
	byID     map[model.ConcertID]int
	skipped  int

	groups       []model.ArtistGroup // nil until first ArtistGroups call after a load
	serverGroups []model.ArtistGroup
}

// NewStore creates an empty store. A nil logger or metrics is replaced by a
// discarding one.
func NewStore(log *logrus.Entry, m *metrics.Metrics) *Store {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Store{
		log:     log,
		metrics: m,
		byID:    make(map[model.ConcertID]int),
	}
}

// Load atomically replaces the concert set. Records without an ID, and
// repeats of an ID already seen in this batch, are dropped and counted.
func (s *Store) Load(concerts []model.Concert) LoadResult {
	return s.LoadBatch(model.ConcertBatch{Concerts: concerts})
}

// LoadBatch is Load for a decoded backend list; its undecodable records
// count as skipped alongside the ones Load drops itself.
func (s *Store) LoadBatch(batch model.ConcertBatch) LoadResult {
	kept := make([]model.Concert, 0, len(batch.Concerts))
	index := make(map[model.ConcertID]int, len(batch.Concerts))
	skipped := max(batch.Malformed, 0)
	for _, c := range batch.Concerts {
		if c.ID == "" {
			skipped++
			continue
		}
		if _, dup := index[c.ID]; dup {
			skipped++
			continue
		}
		index[c.ID] = len(kept)
		kept = append(kept, c)
	}

	s.mu.Lock()
	s.concerts = kept
	s.byID = index
	s.skipped = skipped
	s.groups = nil
	s.serverGroups = nil
	s.mu.Unlock()

	if skipped > 0 {
		s.metrics.ConcertsSkipped.Add(float64(skipped))
		s.log.WithFields(logrus.Fields{
			"loaded":  len(kept),
			"skipped": skipped,
		}).Warn("dropped malformed concert records")
	}
	return LoadResult{Loaded: len(kept), Skipped: skipped}
}

// LoadServerGroups installs a server-computed artist grouping. It replaces
// the locally derived groups until the next Load.
func (s *Store) LoadServerGroups(groups []model.ArtistGroup) {
	out := make([]model.ArtistGroup, 0, len(groups))
	for _, g := range groups {
		key := strings.TrimSpace(g.CanonicalArtist)
		if key == "" {
			key = UnknownArtist
		}
		concerts := append([]model.Concert(nil), g.Concerts...)
		out = append(out, model.ArtistGroup{
			CanonicalArtist: key,
			Concerts:        concerts,
			Count:           len(concerts),
		})
	}
	sortGroups(out)

	s.mu.Lock()
	s.serverGroups = out
	s.mu.Unlock()
}

// Skipped returns how many records the last Load dropped.
func (s *Store) Skipped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skipped
}

// Len returns the number of loaded concerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concerts)
}

// Get looks a concert up by ID.
func (s *Store) Get(id model.ConcertID) (model.Concert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Concert{}, fmt.Errorf("concert %q: %w", id, model.ErrNotFound)
	}
	return s.concerts[idx], nil
}

// Contains reports whether id is in the current snapshot.
func (s *Store) Contains(id model.ConcertID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// All returns every concert in source order.
func (s *Store) All() []model.Concert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Concert(nil), s.concerts...)
}

// Search matches query case-insensitively against artist or location text.
// A blank query returns the full set in source order.
func (s *Store) Search(query string) []model.Concert {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q == "" {
		return append([]model.Concert(nil), s.concerts...)
	}
	var out []model.Concert
	for _, c := range s.concerts {
		if strings.Contains(strings.ToLower(c.Artist), q) || strings.Contains(strings.ToLower(c.Location), q) {
			out = append(out, c)
		}
	}
	return out
}

// ArtistGroups returns concerts bucketed by canonical artist, largest group
// first and ties broken by key. The result is cached until the next load.
func (s *Store) ArtistGroups() []model.ArtistGroup {
	s.mu.RLock()
	if s.serverGroups != nil {
		defer s.mu.RUnlock()
		return cloneGroups(s.serverGroups)
	}
	if s.groups != nil {
		defer s.mu.RUnlock()
		return cloneGroups(s.groups)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups == nil {
		s.groups = buildGroups(s.concerts)
	}
	if s.serverGroups != nil {
		return cloneGroups(s.serverGroups)
	}
	return cloneGroups(s.groups)
}

// ArtistGroup returns the group for key.
func (s *Store) ArtistGroup(key string) (model.ArtistGroup, error) {
	for _, g := range s.ArtistGroups() {
		if g.CanonicalArtist == key {
			return g, nil
		}
	}
	return model.ArtistGroup{}, fmt.Errorf("artist group %q: %w", key, model.ErrNotFound)
}

func buildGroups(concerts []model.Concert) []model.ArtistGroup {
	order := make([]string, 0)
	byKey := make(map[string][]model.Concert)
	for _, c := range concerts {
		key := NormalizeArtist(c.Artist)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], c)
	}
	groups := make([]model.ArtistGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, model.ArtistGroup{
			CanonicalArtist: key,
			Concerts:        byKey[key],
			Count:           len(byKey[key]),
		})
	}
	sortGroups(groups)
	return groups
}

func sortGroups(groups []model.ArtistGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].CanonicalArtist < groups[j].CanonicalArtist
	})
}

func cloneGroups(groups []model.ArtistGroup) []model.ArtistGroup {
	out := make([]model.ArtistGroup, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Concerts = append([]model.Concert(nil), g.Concerts...)
	}
	return out
}
