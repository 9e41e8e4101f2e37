package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jmagar/gigs-cli/internal/model"
)

// Request is one call seen by the fake backend.
type Request struct {
	Route  string // "METHOD /pattern", e.g. "POST /api/follows/{id}"
	ID     string
	Header http.Header
	Body   []byte
}

type failure struct {
	status  int
	message string
	times   int // 0 = until cleared
}

// Backend is an in-process fake of the concert backend served over
// httptest. Its exported fields seed responses; guard them with Lock when
// mutating after the server has started.
type Backend struct {
	sync.Mutex

	Concerts      []map[string]any
	FollowIDs     map[string]bool
	RemindersByID map[string]model.Reminder
	ReviewsByID   map[string][]model.Review
	SearchResults []map[string]any
	Groups        []model.ArtistGroup
	GeneratedN    int

	failures map[string]*failure
	requests []Request
	server   *httptest.Server
}

// NewBackend starts a fake backend that is closed when t ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		FollowIDs:     make(map[string]bool),
		RemindersByID: make(map[string]model.Reminder),
		ReviewsByID:   make(map[string][]model.Review),
		failures:      make(map[string]*failure),
	}
	r := chi.NewRouter()
	b.route(r, http.MethodGet, "/api/health", b.health)
	b.route(r, http.MethodGet, "/api/concerts", b.listConcerts)
	b.route(r, http.MethodPost, "/api/concerts/search", b.search)
	b.route(r, http.MethodPost, "/api/concerts/generate-all", b.generate)
	b.route(r, http.MethodGet, "/api/concerts/by-artist/list", b.byArtist)
	b.route(r, http.MethodGet, "/api/follows", b.listFollows)
	b.route(r, http.MethodPost, "/api/follows/{id}", b.setFollow(true))
	b.route(r, http.MethodDelete, "/api/follows/{id}", b.setFollow(false))
	b.route(r, http.MethodGet, "/api/reminders", b.listReminders)
	b.route(r, http.MethodPost, "/api/reminders/{id}", b.setReminder(true))
	b.route(r, http.MethodDelete, "/api/reminders/{id}", b.setReminder(false))
	b.route(r, http.MethodGet, "/api/reviews/{id}", b.listReviews)
	b.route(r, http.MethodPost, "/api/reviews/{id}", b.createReview)
	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

// URL is the server root to pass as the client base URL.
func (b *Backend) URL() string { return b.server.URL }

// Fail makes route answer with status and message. A 200 status produces a
// non-success envelope. times limits how many calls fail; 0 means all.
func (b *Backend) Fail(route string, status int, message string, times int) {
	b.Lock()
	defer b.Unlock()
	b.failures[route] = &failure{status: status, message: message, times: times}
}

// Recover clears any failure configured for route.
func (b *Backend) Recover(route string) {
	b.Lock()
	defer b.Unlock()
	delete(b.failures, route)
}

// Requests returns every call seen so far, optionally filtered by route.
func (b *Backend) Requests(route string) []Request {
	b.Lock()
	defer b.Unlock()
	var out []Request
	for _, r := range b.requests {
		if route == "" || r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// Hits counts calls to route.
func (b *Backend) Hits(route string) int { return len(b.Requests(route)) }

func (b *Backend) route(r chi.Router, method, pattern string, h http.HandlerFunc) {
	key := method + " " + pattern
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		b.Lock()
		b.requests = append(b.requests, Request{Route: key, ID: chi.URLParam(req, "id"), Header: req.Header.Clone(), Body: body})
		f := b.failures[key]
		if f != nil && f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(b.failures, key)
			}
		}
		b.Unlock()
		if f != nil {
			writeJSON(w, f.status, map[string]any{"status": "error", "message": f.message})
			return
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		h(w, req)
	})
}

func (b *Backend) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "timestamp": "2026-02-10T12:00:00"})
}

func (b *Backend) listConcerts(w http.ResponseWriter, _ *http.Request) {
	b.Lock()
	defer b.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "total": len(b.Concerts), "concerts": nonNil(b.Concerts)})
}

func (b *Backend) search(w http.ResponseWriter, r *http.Request) {
	var req model.SearchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "query required"})
		return
	}
	b.Lock()
	defer b.Unlock()
	results := b.SearchResults
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "query": req.Query, "count": len(results), "concerts": nonNil(results)})
}

func (b *Backend) generate(w http.ResponseWriter, _ *http.Request) {
	b.Lock()
	defer b.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "count": b.GeneratedN})
}

func (b *Backend) byArtist(w http.ResponseWriter, _ *http.Request) {
	b.Lock()
	defer b.Unlock()
	groups := b.Groups
	if groups == nil {
		groups = []model.ArtistGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "total_artists": len(groups), "artist_list": groups})
}

func (b *Backend) listFollows(w http.ResponseWriter, _ *http.Request) {
	b.Lock()
	defer b.Unlock()
	ids := make([]string, 0, len(b.FollowIDs))
	for id := range b.FollowIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "total": len(out), "concerts": out})
}

func (b *Backend) setFollow(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b.Lock()
		if on {
			b.FollowIDs[id] = true
		} else {
			delete(b.FollowIDs, id)
		}
		b.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": fmt.Sprintf("follow %s = %t", id, on)})
	}
}

func (b *Backend) listReminders(w http.ResponseWriter, _ *http.Request) {
	b.Lock()
	defer b.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "reminders": b.RemindersByID})
}

func (b *Backend) setReminder(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req model.ReminderReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Type == "" {
			req.Type = model.ReminderTypeOnSale
		}
		b.Lock()
		if on {
			b.RemindersByID[id] = model.Reminder{Type: req.Type, Enabled: true}
		} else {
			delete(b.RemindersByID, id)
		}
		b.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
	}
}

func (b *Backend) listReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.Lock()
	defer b.Unlock()
	reviews := b.ReviewsByID[id]
	resp := map[string]any{"status": "success", "reviews": nonNilReviews(reviews)}
	if len(reviews) > 0 {
		sum := 0
		for _, rv := range reviews {
			sum += rv.Rating
		}
		resp["avg_rating"] = float64(sum) / float64(len(reviews))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) createReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req model.ReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rating < 1 || req.Rating > 5 || req.Comment == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "invalid review"})
		return
	}
	b.Lock()
	n := len(b.ReviewsByID[id]) + 1
	b.ReviewsByID[id] = append(b.ReviewsByID[id], model.Review{
		ID:        fmt.Sprintf("%s-%d", id, n),
		Username:  r.Header.Get("X-User-ID"),
		Rating:    req.Rating,
		Comment:   req.Comment,
		ConcertID: model.ConcertID(id),
	})
	b.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(v []map[string]any) []map[string]any {
	if v == nil {
		return []map[string]any{}
	}
	return v
}

func nonNilReviews(v []model.Review) []model.Review {
	if v == nil {
		return []model.Review{}
	}
	return v
}
