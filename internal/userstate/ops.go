package userstate

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmagar/gigs-cli/internal/model"
)

// OpKind names the entity an optimistic operation touches.
type OpKind string

const (
	OpFollow   OpKind = "follow"
	OpReminder OpKind = "reminder"
	OpReview   OpKind = "review"
)

// OpState is the lifecycle of one optimistic operation:
// Idle -> Pending -> Committed | RolledBack.
type OpState int

const (
	OpIdle OpState = iota
	OpPending
	OpCommitted
	OpRolledBack
)

func (s OpState) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpCommitted:
		return "committed"
	case OpRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// Op is the latest operation recorded for one (kind, concert) pair.
type Op struct {
	ID        ulid.ULID
	Kind      OpKind
	ConcertID model.ConcertID
	State     OpState
	Started   time.Time
	Finished  time.Time

	// base is the value a rollback restores. It starts as the value seen
	// before the optimistic change and follows any authoritative load that
	// lands while the op is pending.
	base opBase
}

type opBase struct {
	present  bool
	reminder model.Reminder
}

type opKey struct {
	kind OpKind
	id   model.ConcertID
}

// opArena keeps the most recent Op per key.
type opArena struct {
	mu  sync.Mutex
	ops map[opKey]*Op
	now func() time.Time
}

func newOpArena() *opArena {
	return &opArena{ops: make(map[opKey]*Op), now: time.Now}
}

func (a *opArena) begin(kind OpKind, id model.ConcertID, base opBase) Op {
	a.mu.Lock()
	defer a.mu.Unlock()
	op := &Op{
		ID:        ulid.Make(),
		Kind:      kind,
		ConcertID: id,
		State:     OpPending,
		Started:   a.now(),
		base:      base,
	}
	a.ops[opKey{kind, id}] = op
	return *op
}

func (a *opArena) finish(op Op, state OpState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.ops[opKey{op.Kind, op.ConcertID}]
	if !ok || cur.ID != op.ID {
		return
	}
	cur.State = state
	cur.Finished = a.now()
}

// rebase records an authoritative value for a pending op.
func (a *opArena) rebase(kind OpKind, id model.ConcertID, base opBase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.ops[opKey{kind, id}]; ok && cur.State == OpPending {
		cur.base = base
	}
}

// baseOf returns the rollback value of op, or false if op was superseded.
func (a *opArena) baseOf(op Op) (opBase, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.ops[opKey{op.Kind, op.ConcertID}]
	if !ok || cur.ID != op.ID {
		return opBase{}, false
	}
	return cur.base, true
}

func (a *opArena) get(kind OpKind, id model.ConcertID) (Op, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	op, ok := a.ops[opKey{kind, id}]
	if !ok {
		return Op{}, false
	}
	return *op, true
}

func (a *opArena) pending(kind OpKind) map[model.ConcertID]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[model.ConcertID]struct{})
	for k, op := range a.ops {
		if k.kind == kind && op.State == OpPending {
			out[k.id] = struct{}{}
		}
	}
	return out
}
