package catalog

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
)

func concert(id, artist, location string) model.Concert {
	return model.Concert{
		ID:       model.ConcertID(id),
		Artist:   artist,
		Time:     "2026-02-15",
		Location: location,
	}
}

func sampleConcerts() []model.Concert {
	return []model.Concert{
		concert("1", "五月天 - 台北演唱會", "台北小巨蛋"),
		concert("2", "Coldplay", "台北南港展覽館"),
		concert("3", "五月天 - 高雄場", "高雄國家體育場"),
		concert("4", "Blackpink: Born Pink", "Kaohsiung"),
		concert("5", "Coldplay | Music of the Spheres", "Taipei Dome"),
		concert("6", "", "Legacy Taichung"),
	}
}

func TestStore_LoadAndGet(t *testing.T) {
	s := NewStore(nil, nil)
	res := s.Load(sampleConcerts())
	if res.Loaded != 6 || res.Skipped != 0 {
		t.Fatalf("Load() = %+v, want 6 loaded 0 skipped", res)
	}
	c, err := s.Get("3")
	if err != nil {
		t.Fatalf("Get(3) error = %v", err)
	}
	if c.Location != "高雄國家體育場" {
		t.Errorf("Get(3).Location = %q", c.Location)
	}
	if _, err := s.Get("missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_LoadSkipsMalformed(t *testing.T) {
	m := metrics.New()
	s := NewStore(nil, m)
	in := append(sampleConcerts(),
		model.Concert{Artist: "no id"},
		concert("1", "duplicate", "elsewhere"),
	)
	res := s.Load(in)
	if res.Skipped != 2 {
		t.Errorf("Load().Skipped = %d, want 2", res.Skipped)
	}
	if s.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", s.Skipped())
	}
	if s.Len() != 6 {
		t.Errorf("Len() = %d, want 6", s.Len())
	}
	c, _ := s.Get("1")
	if c.Artist != "五月天 - 台北演唱會" {
		t.Errorf("duplicate id replaced first record: %q", c.Artist)
	}
	if got := testutil.ToFloat64(m.ConcertsSkipped); got != 2 {
		t.Errorf("concerts_skipped_total = %v, want 2", got)
	}
}

func TestStore_LoadBatchCountsUndecodedRecords(t *testing.T) {
	m := metrics.New()
	s := NewStore(nil, m)
	res := s.LoadBatch(model.ConcertBatch{
		Concerts:  append(sampleConcerts(), model.Concert{Artist: "no id"}),
		Malformed: 3,
	})
	if res.Loaded != 6 || res.Skipped != 4 {
		t.Fatalf("LoadBatch() = %+v, want 6 loaded 4 skipped", res)
	}
	if s.Skipped() != 4 {
		t.Errorf("Skipped() = %d, want 4", s.Skipped())
	}
	if got := testutil.ToFloat64(m.ConcertsSkipped); got != 4 {
		t.Errorf("concerts_skipped_total = %v, want 4", got)
	}
}

func TestStore_LoadReplacesWholesale(t *testing.T) {
	s := NewStore(nil, nil)
	s.Load(sampleConcerts())
	_ = s.ArtistGroups()
	s.Load([]model.Concert{concert("9", "Sodagreen", "Taichung")})
	if s.Contains("1") {
		t.Error("old concert still present after reload")
	}
	groups := s.ArtistGroups()
	if len(groups) != 1 || groups[0].CanonicalArtist != "Sodagreen" {
		t.Errorf("ArtistGroups() after reload = %+v", groups)
	}
}

func TestStore_ArtistGroupsPartition(t *testing.T) {
	s := NewStore(nil, nil)
	s.Load(sampleConcerts())
	groups := s.ArtistGroups()

	total := 0
	seen := make(map[model.ConcertID]string)
	for _, g := range groups {
		if g.Count != len(g.Concerts) {
			t.Errorf("group %q Count=%d len=%d", g.CanonicalArtist, g.Count, len(g.Concerts))
		}
		total += g.Count
		for _, c := range g.Concerts {
			if prev, dup := seen[c.ID]; dup {
				t.Errorf("concert %s in both %q and %q", c.ID, prev, g.CanonicalArtist)
			}
			seen[c.ID] = g.CanonicalArtist
		}
	}
	if total != s.Len() {
		t.Errorf("sum of group counts = %d, want %d", total, s.Len())
	}

	wantOrder := []string{"Coldplay", "五月天", "Blackpink", UnknownArtist}
	if len(groups) != len(wantOrder) {
		t.Fatalf("got %d groups, want %d: %+v", len(groups), len(wantOrder), groups)
	}
	for i, key := range wantOrder {
		if groups[i].CanonicalArtist != key {
			t.Errorf("groups[%d] = %q, want %q", i, groups[i].CanonicalArtist, key)
		}
	}
	if groups[1].Concerts[0].ID != "1" || groups[1].Concerts[1].ID != "3" {
		t.Errorf("group concerts not in source order: %+v", groups[1].Concerts)
	}
}

func TestStore_ServerGroupsOverrideUntilLoad(t *testing.T) {
	s := NewStore(nil, nil)
	s.Load(sampleConcerts())
	s.LoadServerGroups([]model.ArtistGroup{
		{CanonicalArtist: "A", Concerts: []model.Concert{concert("1", "x", "")}},
		{CanonicalArtist: "B", Concerts: []model.Concert{concert("2", "y", ""), concert("3", "z", "")}},
		{CanonicalArtist: "  ", Concerts: nil},
	})
	groups := s.ArtistGroups()
	if len(groups) != 3 || groups[0].CanonicalArtist != "B" || groups[0].Count != 2 {
		t.Fatalf("server groups not sorted by count: %+v", groups)
	}
	if groups[2].CanonicalArtist != UnknownArtist && groups[1].CanonicalArtist != UnknownArtist {
		t.Errorf("blank server key not mapped to sentinel: %+v", groups)
	}
	s.Load(sampleConcerts())
	if got := s.ArtistGroups(); got[0].CanonicalArtist != "Coldplay" {
		t.Errorf("Load did not drop server groups: %+v", got[0])
	}
}

func TestStore_Search(t *testing.T) {
	s := NewStore(nil, nil)
	s.Load(sampleConcerts())

	if got := s.Search(""); len(got) != 6 || got[0].ID != "1" || got[5].ID != "6" {
		t.Errorf("Search(\"\") should return all in order, got %d", len(got))
	}
	if got := s.Search("   "); len(got) != 6 {
		t.Errorf("Search(blank) = %d, want 6", len(got))
	}
	if got := s.Search("COLDPLAY"); len(got) != 2 {
		t.Errorf("Search(COLDPLAY) = %d, want 2", len(got))
	}
	if got := s.Search("kaohsiung"); len(got) != 1 || got[0].ID != "4" {
		t.Errorf("Search(kaohsiung) matched %+v", got)
	}
	if got := s.Search("台北"); len(got) != 2 {
		t.Errorf("Search(台北) = %d, want 2 (artist or location)", len(got))
	}
	if got := s.Search("nothing matches"); len(got) != 0 {
		t.Errorf("Search(miss) = %d, want 0", len(got))
	}
}

func TestStore_ConcurrentReadsDuringLoad(t *testing.T) {
	s := NewStore(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			batch := make([]model.Concert, 0, 20)
			for j := 0; j < 20; j++ {
				batch = append(batch, concert(fmt.Sprintf("%d-%d", i, j), fmt.Sprintf("Artist %d", j%3), "Venue"))
			}
			s.Load(batch)
		}()
		go func() {
			defer wg.Done()
			groups := s.ArtistGroups()
			total := 0
			for _, g := range groups {
				total += g.Count
			}
			if total != 0 && total != 20 {
				t.Errorf("observed torn snapshot: %d concerts grouped", total)
			}
		}()
	}
	wg.Wait()
}
