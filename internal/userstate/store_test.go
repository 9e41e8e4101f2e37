package userstate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
)

var errBackendDown = &model.NetworkError{Op: "follow", Err: errors.New("connection refused")}

// recorder collects backend calls in the order they were issued.
type recorder struct {
	mu    sync.Mutex
	calls []bool
}

func (r *recorder) add(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, v)
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.calls...)
}

func okFollow(rec *recorder) FollowCall {
	return func(_ context.Context, _ model.ConcertID, follow bool) error {
		rec.add(follow)
		return nil
	}
}

func queued(s *Store, key string) int {
	s.guard.mu.Lock()
	defer s.guard.mu.Unlock()
	return len(s.guard.queues[key])
}

func TestToggleFollow_TwiceRestoresMembership(t *testing.T) {
	s := NewStore(nil, nil)
	s.LoadFollows([]model.ConcertID{"7"})
	rec := &recorder{}
	ctx := context.Background()

	got, err := s.ToggleFollow(ctx, "42", okFollow(rec))
	require.NoError(t, err)
	assert.Equal(t, []model.ConcertID{"42", "7"}, got)

	got, err = s.ToggleFollow(ctx, "42", okFollow(rec))
	require.NoError(t, err)
	assert.Equal(t, []model.ConcertID{"7"}, got)
	assert.Equal(t, []bool{true, false}, rec.snapshot())
	assert.Equal(t, OpCommitted, s.Pending(OpFollow, "42"))
}

func TestToggleFollow_RollsBackOnFailure(t *testing.T) {
	m := metrics.New()
	s := NewStore(nil, m)
	s.LoadFollows([]model.ConcertID{"1"})

	var seenDuringCall bool
	got, err := s.ToggleFollow(context.Background(), "1", func(_ context.Context, id model.ConcertID, follow bool) error {
		seenDuringCall = s.IsFollowed(id)
		return errBackendDown
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNetwork))
	assert.False(t, seenDuringCall, "optimistic unfollow should be visible while the call is in flight")
	assert.Equal(t, []model.ConcertID{"1"}, got)
	assert.True(t, s.IsFollowed("1"))
	assert.Equal(t, OpRolledBack, s.Pending(OpFollow, "1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OptimisticRollback.WithLabelValues("follow")))
}

func TestToggleFollow_EmptyIDIsValidationError(t *testing.T) {
	s := NewStore(nil, nil)
	called := false
	_, err := s.ToggleFollow(context.Background(), "", func(context.Context, model.ConcertID, bool) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.False(t, called)
}

func TestToggleFollow_SameIDSerializedInArrivalOrder(t *testing.T) {
	s := NewStore(nil, nil)
	rec := &recorder{}
	entered := make(chan struct{})
	unblock := make(chan struct{})
	first := true
	var firstMu sync.Mutex

	call := func(_ context.Context, _ model.ConcertID, follow bool) error {
		rec.add(follow)
		firstMu.Lock()
		isFirst := first
		first = false
		firstMu.Unlock()
		if isFirst {
			close(entered)
			<-unblock
		}
		return nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_, err := s.ToggleFollow(ctx, "9", call)
		assert.NoError(t, err)
	}()
	<-entered

	go func() {
		defer wg.Done()
		_, err := s.ToggleFollow(ctx, "9", call)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return queued(s, followKey("9")) == 1 }, time.Second, time.Millisecond)

	go func() {
		defer wg.Done()
		_, err := s.ToggleFollow(ctx, "9", call)
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return queued(s, followKey("9")) == 2 }, time.Second, time.Millisecond)

	assert.Len(t, rec.snapshot(), 1, "queued toggles must not reach the backend early")
	close(unblock)
	wg.Wait()

	assert.Equal(t, []bool{true, false, true}, rec.snapshot())
	assert.True(t, s.IsFollowed("9"))
	assert.False(t, s.guard.held(followKey("9")))
}

func TestToggleFollow_DifferentIDsDoNotBlock(t *testing.T) {
	s := NewStore(nil, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = s.ToggleFollow(context.Background(), "a", func(context.Context, model.ConcertID, bool) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	got, err := s.ToggleFollow(context.Background(), "b", okFollow(&recorder{}))
	require.NoError(t, err)
	assert.Contains(t, got, model.ConcertID("b"))

	close(unblock)
	<-done
	assert.Equal(t, []model.ConcertID{"a", "b"}, s.Follows())
}

func TestToggleFollow_CancelledWhileQueued(t *testing.T) {
	s := NewStore(nil, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = s.ToggleFollow(context.Background(), "x", func(context.Context, model.ConcertID, bool) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	called := false
	go func() {
		_, err := s.ToggleFollow(ctx, "x", func(context.Context, model.ConcertID, bool) error {
			called = true
			return nil
		})
		errCh <- err
	}()
	require.Eventually(t, func() bool { return queued(s, followKey("x")) == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, 0, queued(s, followKey("x")))

	close(unblock)
	<-done
	assert.True(t, s.IsFollowed("x"))
	assert.False(t, s.guard.held(followKey("x")))
}

func TestLoadFollows_KeepsPendingOptimisticValue(t *testing.T) {
	s := NewStore(nil, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, err := s.ToggleFollow(context.Background(), "1", func(context.Context, model.ConcertID, bool) error {
			close(entered)
			<-unblock
			return nil
		})
		assert.NoError(t, err)
	}()
	<-entered
	assert.Equal(t, OpPending, s.Pending(OpFollow, "1"))

	s.LoadFollows([]model.ConcertID{"2"})
	assert.True(t, s.IsFollowed("1"), "pending follow must survive a reload")
	assert.True(t, s.IsFollowed("2"))

	close(unblock)
	<-done
	assert.Equal(t, []model.ConcertID{"1", "2"}, s.Follows())

	s.LoadFollows([]model.ConcertID{"2"})
	assert.Equal(t, []model.ConcertID{"2"}, s.Follows())
}

func TestToggleFollow_RollbackRestoresValueLoadedWhilePending(t *testing.T) {
	s := NewStore(nil, nil)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, err := s.ToggleFollow(context.Background(), "1", func(context.Context, model.ConcertID, bool) error {
			close(entered)
			<-unblock
			return errBackendDown
		})
		assert.Error(t, err)
	}()
	<-entered
	assert.True(t, s.IsFollowed("1"))

	// The server now reports "1" as followed, e.g. from another device.
	s.LoadFollows([]model.ConcertID{"1", "2"})

	close(unblock)
	<-done
	assert.True(t, s.IsFollowed("1"), "rollback must restore the reloaded value")
	assert.Equal(t, []model.ConcertID{"1", "2"}, s.Follows())
	assert.Equal(t, OpRolledBack, s.Pending(OpFollow, "1"))
}

func TestToggleReminder_RollbackRestoresValueLoadedWhilePending(t *testing.T) {
	s := NewStore(nil, nil)
	s.LoadReminders(map[model.ConcertID]model.Reminder{"5": {Type: model.ReminderTypeOnSale, Enabled: true}})
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, err := s.ToggleReminder(context.Background(), "5", func(context.Context, model.ConcertID, bool) error {
			close(entered)
			<-unblock
			return errBackendDown
		})
		assert.Error(t, err)
	}()
	<-entered
	_, ok := s.Reminder("5")
	assert.False(t, ok, "optimistic delete is visible while pending")

	// The reminder was removed server-side before the delete failed here.
	s.LoadReminders(map[model.ConcertID]model.Reminder{})
	_, ok = s.Reminder("5")
	assert.False(t, ok)

	close(unblock)
	<-done
	_, ok = s.Reminder("5")
	assert.False(t, ok, "rollback must not resurrect a reminder the reload removed")
	assert.Empty(t, s.Reminders())
}

func TestToggleReminder_ApplyAndRollback(t *testing.T) {
	s := NewStore(nil, nil)
	s.LoadReminders(map[model.ConcertID]model.Reminder{
		"5": {Type: model.ReminderTypeOnSale, Enabled: true},
		"6": {Type: model.ReminderTypeOnSale, Enabled: false},
	})
	_, ok := s.Reminder("6")
	assert.False(t, ok, "disabled reminders are not active")

	got, err := s.ToggleReminder(context.Background(), "3", func(_ context.Context, _ model.ConcertID, enable bool) error {
		assert.True(t, enable)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.Reminder{Type: model.ReminderTypeOnSale, Enabled: true}, got["3"])

	got, err = s.ToggleReminder(context.Background(), "5", func(_ context.Context, _ model.ConcertID, enable bool) error {
		assert.False(t, enable)
		return &model.BackendError{Op: "reminder", StatusCode: 200, Message: "reminder locked"}
	})
	assert.ErrorIs(t, err, model.ErrBackendRejected)
	assert.Contains(t, got, model.ConcertID("5"))
	assert.Equal(t, OpRolledBack, s.Pending(OpReminder, "5"))
	assert.Len(t, s.Reminders(), 2)
}

func TestSubmitReview_ValidationNeverCallsBackend(t *testing.T) {
	s := NewStore(nil, nil)
	calls := 0
	submit := func(context.Context, model.ConcertID, model.ReviewForm) error {
		calls++
		return nil
	}
	load := func(context.Context, model.ConcertID) (model.ReviewList, error) {
		calls++
		return model.ReviewList{}, nil
	}

	cases := []struct {
		name    string
		rating  int
		comment string
		field   string
	}{
		{"empty comment", 4, "", "comment"},
		{"whitespace comment", 4, "   \n\t", "comment"},
		{"too long", 4, strings.Repeat("好", model.MaxCommentLength+1), "comment"},
		{"rating low", 0, "great", "rating"},
		{"rating high", 6, "great", "rating"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.SubmitReview(context.Background(), "1", tc.rating, tc.comment, submit, load)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}
	assert.Zero(t, calls)
	assert.Equal(t, OpIdle, s.Pending(OpReview, "1"))
}

func TestSubmitReview_ReloadsFromBackend(t *testing.T) {
	s := NewStore(nil, nil)
	var posted model.ReviewForm
	submit := func(_ context.Context, _ model.ConcertID, form model.ReviewForm) error {
		posted = form
		return nil
	}
	avg := 4.5
	load := func(_ context.Context, id model.ConcertID) (model.ReviewList, error) {
		return model.NewReviewList(id, []model.Review{
			{ID: "r1", Username: "amy", Rating: 5, Comment: "loud", ConcertID: id},
			{ID: "r2", Username: "bo", Rating: 4, Comment: "  trimmed  ", ConcertID: id},
		}, &avg), nil
	}

	got, err := s.SubmitReview(context.Background(), "1", 4, "  trimmed  ", submit, load)
	require.NoError(t, err)
	assert.Equal(t, "trimmed", posted.Comment)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, "4.5", got.DisplayAverage())
	assert.Equal(t, got, s.Reviews("1"))
	assert.Equal(t, OpCommitted, s.Pending(OpReview, "1"))
}

func TestSubmitReview_BackendFailureKeepsCache(t *testing.T) {
	s := NewStore(nil, nil)
	prior := model.NewReviewList("1", []model.Review{{ID: "r1", Rating: 3, Comment: "ok"}}, nil)
	s.PutReviews(prior)
	reloaded := false

	_, err := s.SubmitReview(context.Background(), "1", 5, "encore",
		func(context.Context, model.ConcertID, model.ReviewForm) error { return errBackendDown },
		func(context.Context, model.ConcertID) (model.ReviewList, error) {
			reloaded = true
			return model.ReviewList{}, nil
		})
	assert.ErrorIs(t, err, model.ErrNetwork)
	assert.False(t, reloaded)
	assert.Equal(t, prior, s.Reviews("1"))
}

func TestLoadReviews_FailureKeepsPriorAndDropClears(t *testing.T) {
	s := NewStore(nil, nil)
	prior := model.NewReviewList("2", []model.Review{{ID: "r", Rating: 2, Comment: "meh"}}, nil)
	s.PutReviews(prior)

	got, err := s.LoadReviews(context.Background(), "2", func(context.Context, model.ConcertID) (model.ReviewList, error) {
		return model.ReviewList{}, errBackendDown
	})
	assert.Error(t, err)
	assert.Equal(t, prior, got)

	s.DropReviews("2")
	assert.Equal(t, model.ReviewList{ConcertID: "2"}, s.Reviews("2"))
}
