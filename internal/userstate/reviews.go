package userstate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jmagar/gigs-cli/internal/model"
)

// Reviews returns the cached list for id, or an empty list.
func (s *Store) Reviews(id model.ConcertID) model.ReviewList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if list, ok := s.reviews[id]; ok {
		return list
	}
	return model.ReviewList{ConcertID: id}
}

// PutReviews caches list under its concert ID.
func (s *Store) PutReviews(list model.ReviewList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[list.ConcertID] = list
}

// DropReviews discards the cache for id.
func (s *Store) DropReviews(id model.ConcertID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reviews, id)
}

// LoadReviews fetches and caches the review list for id. On failure the
// previous cache entry is kept and returned alongside the error.
func (s *Store) LoadReviews(ctx context.Context, id model.ConcertID, load ReviewLoadCall) (model.ReviewList, error) {
	list, err := load(ctx, id)
	if err != nil {
		return s.Reviews(id), fmt.Errorf("load reviews %s: %w", id, err)
	}
	list.ConcertID = id
	s.PutReviews(list)
	return list, nil
}

// SubmitReview validates the form locally, posts it and then reloads the
// concert's reviews from the backend. Validation failures never reach the
// network. Submissions for the same concert are serialized.
func (s *Store) SubmitReview(ctx context.Context, id model.ConcertID, rating int, comment string, submit ReviewSubmitCall, load ReviewLoadCall) (model.ReviewList, error) {
	form := model.ReviewForm{Rating: rating, Comment: comment}
	form.Normalize()
	if err := form.Validate(); err != nil {
		return s.Reviews(id), err
	}
	if id == "" {
		return s.Reviews(id), &model.ValidationError{Field: "concert id", Reason: "must not be empty"}
	}

	release, err := s.guard.acquire(ctx, reviewKey(id))
	if err != nil {
		return s.Reviews(id), fmt.Errorf("submit review %s: %w", id, err)
	}
	defer release()

	op := s.ops.begin(OpReview, id, opBase{})
	log := s.log.WithFields(logrus.Fields{"op": op.ID.String(), "kind": OpReview, "concert_id": id, "rating": form.Rating})

	if err := submit(ctx, id, form); err != nil {
		s.ops.finish(op, OpRolledBack)
		log.WithError(err).Warn("review submission failed")
		return s.Reviews(id), fmt.Errorf("submit review %s: %w", id, err)
	}
	s.ops.finish(op, OpCommitted)
	log.Debug("review submitted")

	list, err := s.LoadReviews(ctx, id, load)
	if err != nil {
		return list, fmt.Errorf("review submitted, reload failed: %w", err)
	}
	return list, nil
}
