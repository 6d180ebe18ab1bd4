// Package registry owns actor identity and the live actor table: a
// generational slot arena plus the per-actor mailbox state that the
// mailbox package operates on. A recycled slot bumps its generation,
// so an identifier minted for the old occupant never resolves again.
//
// Lock ordering: a caller that needs both the registry lock and an
// individual actor's lock must take the registry lock first.
package registry

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"libactor/internal/actorid"
	"libactor/internal/alloc"
	"libactor/internal/seqlist"
)

// Message is an envelope delivered through a mailbox. A message sent
// with no data (such as an exit notification) still carries a tracked
// Payload block, whose data is nil.
type Message struct {
	Type    int64
	Payload *alloc.Block
	Sender  actorid.ID
	Dest    actorid.ID
}

// Actor is the registry's live record for one actor: its mailbox and
// exit-trap bookkeeping. A per-actor sync.Mutex + sync.Cond pairing
// drives the blocking-receive wakeup.
type Actor struct {
	ID actorid.ID

	mu    sync.Mutex
	cond  *sync.Cond
	inbox seqlist.List[Message]

	trapExit   bool
	exitTarget actorid.ID
	closed     bool
}

func newActor(id actorid.ID) *Actor {
	a := &Actor{ID: id}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// Lock/Unlock expose the actor's own mutex to the mailbox package,
// which must hold it while touching inbox/cond state. Kept separate
// from the registry's lock per the mandated lock order: registry
// first, then a given actor.
func (a *Actor) Lock()   { a.mu.Lock() }
func (a *Actor) Unlock() { a.mu.Unlock() }

func (a *Actor) Cond() *sync.Cond { return a.cond }

// Inbox exposes the mailbox queue for direct manipulation by the
// mailbox package. Caller must hold a.Lock().
func (a *Actor) Inbox() *seqlist.List[Message] { return &a.inbox }

func (a *Actor) SetTrapExit(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trapExit = v
}

func (a *Actor) TrapExit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trapExit
}

func (a *Actor) SetExitTarget(id actorid.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exitTarget = id
}

func (a *Actor) ExitTarget() actorid.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitTarget
}

func (a *Actor) MarkClosed() {
	a.mu.Lock()
	a.closed = true
	a.cond.Broadcast()
	a.mu.Unlock()
}

func (a *Actor) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// ClosedLocked reports whether the actor is closed. Caller must
// already hold a.Lock().
func (a *Actor) ClosedLocked() bool { return a.closed }

type slot struct {
	actor      *Actor
	generation uint32
	occupied   bool
}

// Registry is the live actor table. The zero value is not usable; use
// New.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  seqlist.List[uint32]
	salt  uint64
}

// New returns a ready-to-use Registry with its own random salt: an ID
// minted by one registry instance is meaningless to another.
func New() *Registry {
	return &Registry{salt: newSalt()}
}

// newSalt folds a v4 UUID's 16 bytes down to a uint64; google/uuid has
// no native 64-bit generator.
func newSalt() uint64 {
	id := uuid.New()
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	return hi ^ lo
}

// RLock/RUnlock/Lock/Unlock expose the registry-wide lock to callers
// (lifecycle) that must hold it across a multi-step operation such as
// an exiting actor's close, allocation sweep and slot eviction.
func (r *Registry) RLock()   { r.mu.RLock() }
func (r *Registry) RUnlock() { r.mu.RUnlock() }
func (r *Registry) Lock()    { r.mu.Lock() }
func (r *Registry) Unlock()  { r.mu.Unlock() }

// Register allocates a new slot (reusing a freed one when available,
// bumping its generation so stale IDs pointing at the old occupant are
// rejected) and returns the freshly minted actor and its ID.
func (r *Registry) Register() (*Actor, actorid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if i, ok := r.free.PopFront(); ok {
		index = i
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}

	gen := r.slots[index].generation + 1
	id := actorid.New(index, gen, r.salt)
	act := newActor(id)
	r.slots[index] = slot{actor: act, generation: gen, occupied: true}
	return act, id
}

// Get looks up id, rejecting a stale generation or a wrong salt so a
// forged or recycled identifier never resolves.
func (r *Registry) Get(id actorid.ID) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

// GetLocked is Get for a caller that already holds the registry's
// lock (read or write) — used by the lifecycle package to resolve an
// id as one step of an already-locked multi-step sequence.
func (r *Registry) GetLocked(id actorid.ID) (*Actor, bool) {
	return r.getLocked(id)
}

func (r *Registry) getLocked(id actorid.ID) (*Actor, bool) {
	if id.Salt() != r.salt {
		return nil, false
	}
	idx := int(id.Index())
	if idx < 0 || idx >= len(r.slots) {
		return nil, false
	}
	s := r.slots[idx]
	if !s.occupied || s.generation != id.Generation() {
		return nil, false
	}
	return s.actor, true
}

// Remove evicts id's slot and pushes it onto the free stack for reuse.
// A no-op for an unknown or already-stale id.
func (r *Registry) Remove(id actorid.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RemoveLocked(id)
}

// RemoveLocked is Remove for a caller that already holds the
// registry's write lock (via Lock/Unlock) — used by the lifecycle
// package so a terminating actor's allocation sweep, mailbox close,
// and slot eviction happen as one atomic sequence rather than three
// separately-locked steps a concurrent Send could land in between.
func (r *Registry) RemoveLocked(id actorid.ID) {
	if _, ok := r.getLocked(id); !ok {
		return
	}
	idx := id.Index()
	r.slots[idx] = slot{generation: r.slots[idx].generation}
	r.free.Append(idx)
}

// WithActor looks up id and, while still holding the registry's read
// lock, invokes fn with the resolved actor. This lets a caller that
// needs to act on the actor — queuing a mailbox message, in
// particular — do so atomically with respect to a concurrent Remove:
// fn never runs against an actor whose slot is being evicted
// mid-call. Returns whether id resolved to a live actor; fn is not
// called otherwise. fn must not call back into the registry.
func (r *Registry) WithActor(id actorid.ID, fn func(*Actor)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	act, ok := r.getLocked(id)
	if !ok {
		return false
	}
	fn(act)
	return true
}

// Each visits every currently live actor. The callback must not
// register or remove actors; it runs under the registry's read lock.
func (r *Registry) Each(fn func(actorid.ID, *Actor)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, s := range r.slots {
		if s.occupied {
			fn(actorid.New(uint32(i), s.generation, r.salt), s.actor)
		}
	}
}

// Count returns the number of live actors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.slots {
		if s.occupied {
			n++
		}
	}
	return n
}
