package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmagar/gigs-cli/internal/model"
)

// DefaultSearchLimit caps AI search results when the caller passes 0.
const DefaultSearchLimit = 20

// Concerts fetches the full concert list. Records that cannot be decoded
// are counted in Malformed instead of failing the list.
func (c *Client) Concerts(ctx context.Context) (model.ConcertBatch, error) {
	var resp model.ConcertsResp
	if err := c.do(ctx, call{label: "concerts.list", method: http.MethodGet, path: []string{"concerts"}, retry: true}, &resp); err != nil {
		return model.ConcertBatch{}, err
	}
	return c.decodeConcerts("concerts.list", resp.Concerts, false), nil
}

// Follows fetches the IDs the user follows.
func (c *Client) Follows(ctx context.Context) ([]model.ConcertID, error) {
	var resp model.FollowsResp
	if err := c.do(ctx, call{label: "follows.list", method: http.MethodGet, path: []string{"follows"}, retry: true}, &resp); err != nil {
		return nil, err
	}
	ids := make([]model.ConcertID, 0, len(resp.Concerts))
	for _, f := range resp.Concerts {
		if f.ID != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids, nil
}

// Reminders fetches the user's reminder map.
func (c *Client) Reminders(ctx context.Context) (map[model.ConcertID]model.Reminder, error) {
	var resp model.RemindersResp
	if err := c.do(ctx, call{label: "reminders.list", method: http.MethodGet, path: []string{"reminders"}, retry: true}, &resp); err != nil {
		return nil, err
	}
	if resp.Reminders == nil {
		return map[model.ConcertID]model.Reminder{}, nil
	}
	return resp.Reminders, nil
}

// SetFollow follows (POST) or unfollows (DELETE) id.
func (c *Client) SetFollow(ctx context.Context, id model.ConcertID, follow bool) error {
	cl := call{label: "follows.delete", method: http.MethodDelete, path: []string{"follows", string(id)}, retry: true}
	if follow {
		cl.label, cl.method = "follows.create", http.MethodPost
	}
	return c.do(ctx, cl, nil)
}

// SetReminder creates (POST) or removes (DELETE) the on-sale reminder.
func (c *Client) SetReminder(ctx context.Context, id model.ConcertID, enable bool) error {
	cl := call{
		label:  "reminders.delete",
		method: http.MethodDelete,
		path:   []string{"reminders", string(id)},
		body:   model.ReminderReq{Type: model.ReminderTypeOnSale},
		retry:  true,
	}
	if enable {
		cl.label, cl.method = "reminders.create", http.MethodPost
	}
	return c.do(ctx, cl, nil)
}

// Reviews fetches the review list of id.
func (c *Client) Reviews(ctx context.Context, id model.ConcertID) (model.ReviewList, error) {
	var resp model.ReviewsResp
	if err := c.do(ctx, call{label: "reviews.list", method: http.MethodGet, path: []string{"reviews", string(id)}, retry: true}, &resp); err != nil {
		return model.ReviewList{}, err
	}
	return model.NewReviewList(id, resp.Reviews, resp.AvgRating), nil
}

// SubmitReview posts a review. Never retried: a repeat would duplicate it.
func (c *Client) SubmitReview(ctx context.Context, id model.ConcertID, form model.ReviewForm) error {
	return c.do(ctx, call{
		label:  "reviews.create",
		method: http.MethodPost,
		path:   []string{"reviews", string(id)},
		body:   model.ReviewReq{Rating: form.Rating, Comment: form.Comment},
	}, nil)
}

// Search runs the AI-assisted free-text search. Results without an ID get
// a deterministic one derived from their content.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.Concert, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	var resp model.ConcertsResp
	err := c.do(ctx, call{
		label:  "concerts.search",
		method: http.MethodPost,
		path:   []string{"concerts", "search"},
		body:   model.SearchReq{Query: query, Limit: limit},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.decodeConcerts("concerts.search", resp.Concerts, true).Concerts, nil
}

// GenerateAll asks the backend to recrawl every source and returns how many
// concerts it now holds.
func (c *Client) GenerateAll(ctx context.Context) (int, error) {
	var resp model.GenerateResp
	if err := c.do(ctx, call{label: "concerts.generate", method: http.MethodPost, path: []string{"concerts", "generate-all"}}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ArtistGroups fetches the server-computed artist grouping.
func (c *Client) ArtistGroups(ctx context.Context) ([]model.ArtistGroup, error) {
	var resp model.ArtistListResp
	if err := c.do(ctx, call{label: "concerts.by_artist", method: http.MethodGet, path: []string{"concerts", "by-artist", "list"}, retry: true}, &resp); err != nil {
		return nil, err
	}
	return resp.ArtistList, nil
}

// Health pings the backend.
func (c *Client) Health(ctx context.Context) (model.HealthResp, error) {
	var resp model.HealthResp
	err := c.do(ctx, call{label: "health", method: http.MethodGet, path: []string{"health"}, retry: true}, &resp)
	return resp, err
}

// decodeConcerts decodes each record on its own so one bad entry cannot
// fail the list.
func (c *Client) decodeConcerts(label string, raw []model.RawConcert, assignIDs bool) model.ConcertBatch {
	batch := model.ConcertBatch{Concerts: make([]model.Concert, 0, len(raw))}
	for _, r := range raw {
		var concert model.Concert
		if err := json.Unmarshal(r, &concert); err != nil {
			batch.Malformed++
			continue
		}
		if concert.ID == "" && assignIDs {
			concert.ID = ContentID(concert)
		}
		batch.Concerts = append(batch.Concerts, concert)
	}
	if batch.Malformed > 0 {
		c.log.WithFields(logrus.Fields{"label": label, "dropped": batch.Malformed}).Warn("undecodable concert records")
	}
	return batch
}

// ContentID derives a stable name-based UUID from a concert's display fields.
func ContentID(c model.Concert) model.ConcertID {
	key := strings.Join([]string{c.Artist, c.Time, c.Location, c.TicketURL}, "\x1f")
	return model.ConcertID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String())
}
