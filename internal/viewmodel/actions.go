package viewmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmagar/gigs-cli/internal/model"
)

// OpenConcert selects id and loads its reviews. If the selection changes
// before the load returns, the result is discarded and ErrStale returned.
// On failure the previously cached reviews are kept.
func (c *Coordinator) OpenConcert(ctx context.Context, id model.ConcertID) (model.ReviewList, error) {
	if strings.TrimSpace(string(id)) == "" {
		return model.ReviewList{}, &model.ValidationError{Field: "concert id", Reason: "must not be empty"}
	}
	if _, err := c.Concert(id); err != nil {
		return model.ReviewList{}, err
	}

	c.SelectConcert(id)
	c.mu.Lock()
	gen := c.detailGen
	c.detailLoading = true
	c.mu.Unlock()

	list, err := c.backend.Reviews(ctx, id)

	c.mu.Lock()
	if gen != c.detailGen {
		c.mu.Unlock()
		c.log.WithField("concert_id", id).Debug("discarding reviews for closed concert")
		return model.ReviewList{ConcertID: id}, ErrStale
	}
	c.detailLoading = false
	c.mu.Unlock()

	if err != nil {
		c.setErr(SourceReviews, err)
		return c.user.Reviews(id), fmt.Errorf("load reviews %s: %w", id, err)
	}
	list.ConcertID = id
	c.user.PutReviews(list)
	c.setErr(SourceReviews, nil)
	return list, nil
}

// PerformAiSearch runs a backend free-text search and makes its results the
// aiSearch tab content. A failure keeps the previous results. When a newer
// search was started meanwhile, this one's outcome is discarded and
// ErrStale returned.
func (c *Coordinator) PerformAiSearch(ctx context.Context, query string) ([]model.Concert, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &model.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	c.mu.Lock()
	c.aiGen++
	gen := c.aiGen
	c.aiLoading = true
	c.mu.Unlock()

	results, err := c.backend.Search(ctx, query, c.searchLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.aiGen {
		c.log.WithField("query", query).Debug("discarding superseded ai search")
		return nil, ErrStale
	}
	c.aiLoading = false
	if err != nil {
		c.errs[SourceAISearch] = err
		return append([]model.Concert(nil), c.aiResults...), fmt.Errorf("ai search %q: %w", query, err)
	}
	delete(c.errs, SourceAISearch)
	c.aiQuery = query
	c.aiResults = append([]model.Concert(nil), results...)
	return append([]model.Concert(nil), results...), nil
}

// AIResults returns the last completed AI search.
func (c *Coordinator) AIResults() (string, []model.Concert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aiQuery, append([]model.Concert(nil), c.aiResults...)
}

// ToggleFollow flips follow membership of id and reports the resulting
// state. A backend failure rolls the change back.
func (c *Coordinator) ToggleFollow(ctx context.Context, id model.ConcertID) (bool, error) {
	_, err := c.user.ToggleFollow(ctx, id, c.backend.SetFollow)
	c.setErr(SourceFollow, err)
	return c.user.IsFollowed(id), err
}

// ToggleReminder flips the on-sale reminder of id and reports whether one is
// now set. A committed change is announced through NotifyReminder.
func (c *Coordinator) ToggleReminder(ctx context.Context, id model.ConcertID) (bool, error) {
	_, err := c.user.ToggleReminder(ctx, id, c.backend.SetReminder)
	c.setErr(SourceReminder, err)
	_, enabled := c.user.Reminder(id)
	if err != nil {
		return enabled, err
	}
	if c.notifyReminder != nil {
		if concert, lookupErr := c.Concert(id); lookupErr == nil {
			_ = c.notifyReminder(ctx, concert, enabled)
		}
	}
	return enabled, nil
}

// SubmitReview validates and posts a review for id, then reloads its
// reviews. Validation failures never reach the backend.
func (c *Coordinator) SubmitReview(ctx context.Context, id model.ConcertID, rating int, comment string) (model.ReviewList, error) {
	list, err := c.user.SubmitReview(ctx, id, rating, comment, c.backend.SubmitReview, c.backend.Reviews)
	c.setErr(SourceReview, err)
	return list, err
}
