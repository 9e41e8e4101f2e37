// Package userstate holds the per-user overlays on top of the concert
// catalog: follows, reminders and the review cache of the open concert.
//
// Follow and reminder toggles are applied optimistically, sent to the
// backend through an injected call, and reverted if that call fails. Toggles
// on the same concert are serialized in arrival order.
package userstate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/metrics"
	"github.com/jmagar/gigs-cli/internal/model"
)

// FollowCall sends a follow (follow=true) or unfollow to the backend.
type FollowCall func(ctx context.Context, id model.ConcertID, follow bool) error

// ReminderCall creates (enable=true) or deletes the on-sale reminder.
type ReminderCall func(ctx context.Context, id model.ConcertID, enable bool) error

// ReviewSubmitCall posts a validated review form.
type ReviewSubmitCall func(ctx context.Context, id model.ConcertID, form model.ReviewForm) error

// ReviewLoadCall fetches the authoritative review list of one concert.
type ReviewLoadCall func(ctx context.Context, id model.ConcertID) (model.ReviewList, error)

// Store is the user state overlay. All methods are safe for concurrent use.
type Store struct {
	log     *logrus.Entry
	metrics *metrics.Metrics
	guard   *keyGuard
	ops     *opArena

	mu        sync.RWMutex
	follows   map[model.ConcertID]struct{}
	reminders map[model.ConcertID]model.Reminder
	reviews   map[model.ConcertID]model.ReviewList
}

// NewStore creates an empty overlay.
func NewStore(log *logrus.Entry, m *metrics.Metrics) *Store {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Store{
		log:       log,
		metrics:   m,
		guard:     newKeyGuard(),
		ops:       newOpArena(),
		follows:   make(map[model.ConcertID]struct{}),
		reminders: make(map[model.ConcertID]model.Reminder),
		reviews:   make(map[model.ConcertID]model.ReviewList),
	}
}

func followKey(id model.ConcertID) string   { return "follow:" + string(id) }
func reminderKey(id model.ConcertID) string { return "reminder:" + string(id) }
func reviewKey(id model.ConcertID) string   { return "review:" + string(id) }

// LoadFollows replaces the follow set. Concerts with a toggle still in
// flight keep their optimistic membership; the loaded value becomes what a
// failed toggle reverts to.
func (s *Store) LoadFollows(ids []model.ConcertID) {
	next := make(map[model.ConcertID]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ops.pending(OpFollow) {
		_, loaded := next[id]
		s.ops.rebase(OpFollow, id, opBase{present: loaded})
		if _, ok := s.follows[id]; ok {
			next[id] = struct{}{}
		} else {
			delete(next, id)
		}
	}
	s.follows = next
}

// LoadReminders replaces the reminder map. Disabled entries are dropped
// since presence means active. Pending toggles keep their optimistic value.
func (s *Store) LoadReminders(reminders map[model.ConcertID]model.Reminder) {
	next := make(map[model.ConcertID]model.Reminder, len(reminders))
	for id, r := range reminders {
		if id == "" || !r.Enabled {
			continue
		}
		if r.Type == "" {
			r.Type = model.ReminderTypeOnSale
		}
		next[id] = r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ops.pending(OpReminder) {
		loaded, present := next[id]
		s.ops.rebase(OpReminder, id, opBase{present: present, reminder: loaded})
		if r, ok := s.reminders[id]; ok {
			next[id] = r
		} else {
			delete(next, id)
		}
	}
	s.reminders = next
}

// IsFollowed reports local follow membership, including optimistic changes.
func (s *Store) IsFollowed(id model.ConcertID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[id]
	return ok
}

// Follows returns the follow set sorted ascending.
func (s *Store) Follows() []model.ConcertID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.followsLocked()
}

func (s *Store) followsLocked() []model.ConcertID {
	out := make([]model.ConcertID, 0, len(s.follows))
	for id := range s.follows {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reminder returns the active reminder for id, if any.
func (s *Store) Reminder(id model.ConcertID) (model.Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	return r, ok
}

// Reminders returns a copy of the reminder map.
func (s *Store) Reminders() map[model.ConcertID]model.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remindersLocked()
}

func (s *Store) remindersLocked() map[model.ConcertID]model.Reminder {
	out := make(map[model.ConcertID]model.Reminder, len(s.reminders))
	for id, r := range s.reminders {
		out[id] = r
	}
	return out
}

// Pending returns the state of the latest operation of kind on id.
func (s *Store) Pending(kind OpKind, id model.ConcertID) OpState {
	op, ok := s.ops.get(kind, id)
	if !ok {
		return OpIdle
	}
	return op.State
}

// LastOp returns the latest operation of kind on id.
func (s *Store) LastOp(kind OpKind, id model.ConcertID) (Op, bool) {
	return s.ops.get(kind, id)
}

// ToggleFollow flips follow membership for id, confirms it with call and
// reverts on failure. The returned set reflects the outcome either way.
func (s *Store) ToggleFollow(ctx context.Context, id model.ConcertID, call FollowCall) ([]model.ConcertID, error) {
	if id == "" {
		return s.Follows(), &model.ValidationError{Field: "concert id", Reason: "must not be empty"}
	}
	release, err := s.guard.acquire(ctx, followKey(id))
	if err != nil {
		return s.Follows(), fmt.Errorf("toggle follow %s: %w", id, err)
	}
	defer release()

	s.mu.Lock()
	_, was := s.follows[id]
	s.setFollowLocked(id, !was)
	op := s.ops.begin(OpFollow, id, opBase{present: was})
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"op": op.ID.String(), "kind": OpFollow, "concert_id": id, "follow": !was})
	log.Debug("optimistic follow applied")

	if err := call(ctx, id, !was); err != nil {
		s.mu.Lock()
		base, ok := s.ops.baseOf(op)
		if !ok {
			base = opBase{present: was}
		}
		s.setFollowLocked(id, base.present)
		s.ops.finish(op, OpRolledBack)
		snapshot := s.followsLocked()
		s.mu.Unlock()
		s.metrics.OptimisticRollback.WithLabelValues(string(OpFollow)).Inc()
		log.WithError(err).Warn("follow rolled back")
		return snapshot, fmt.Errorf("toggle follow %s: %w", id, err)
	}

	s.mu.Lock()
	s.ops.finish(op, OpCommitted)
	snapshot := s.followsLocked()
	s.mu.Unlock()
	log.Debug("follow committed")
	return snapshot, nil
}

func (s *Store) setFollowLocked(id model.ConcertID, on bool) {
	if on {
		s.follows[id] = struct{}{}
	} else {
		delete(s.follows, id)
	}
}

// ToggleReminder flips reminder presence for id with the same discipline as
// ToggleFollow.
func (s *Store) ToggleReminder(ctx context.Context, id model.ConcertID, call ReminderCall) (map[model.ConcertID]model.Reminder, error) {
	if id == "" {
		return s.Reminders(), &model.ValidationError{Field: "concert id", Reason: "must not be empty"}
	}
	release, err := s.guard.acquire(ctx, reminderKey(id))
	if err != nil {
		return s.Reminders(), fmt.Errorf("toggle reminder %s: %w", id, err)
	}
	defer release()

	s.mu.Lock()
	prev, was := s.reminders[id]
	if was {
		delete(s.reminders, id)
	} else {
		s.reminders[id] = model.Reminder{Type: model.ReminderTypeOnSale, Enabled: true}
	}
	op := s.ops.begin(OpReminder, id, opBase{present: was, reminder: prev})
	s.mu.Unlock()

	log := s.log.WithFields(logrus.Fields{"op": op.ID.String(), "kind": OpReminder, "concert_id": id, "enable": !was})
	log.Debug("optimistic reminder applied")

	if err := call(ctx, id, !was); err != nil {
		s.mu.Lock()
		base, ok := s.ops.baseOf(op)
		if !ok {
			base = opBase{present: was, reminder: prev}
		}
		if base.present {
			s.reminders[id] = base.reminder
		} else {
			delete(s.reminders, id)
		}
		s.ops.finish(op, OpRolledBack)
		snapshot := s.remindersLocked()
		s.mu.Unlock()
		s.metrics.OptimisticRollback.WithLabelValues(string(OpReminder)).Inc()
		log.WithError(err).Warn("reminder rolled back")
		return snapshot, fmt.Errorf("toggle reminder %s: %w", id, err)
	}

	s.mu.Lock()
	s.ops.finish(op, OpCommitted)
	snapshot := s.remindersLocked()
	s.mu.Unlock()
	log.Debug("reminder committed")
	return snapshot, nil
}
