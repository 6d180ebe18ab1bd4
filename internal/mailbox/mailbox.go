// Package mailbox implements message delivery over the registry's
// per-actor inboxes: copy-send, retain-send, broadcast and blocking
// receive. The registry lock is always acquired before any individual
// actor's lock, and an actor's lock always before the allocator's —
// the lock order mandated for the whole runtime.
package mailbox

import (
	"errors"
	"sync"
	"time"

	"libactor/internal/actorid"
	"libactor/internal/alloc"
	"libactor/internal/registry"
)

// ErrNoSuchActor is returned when dest does not name a live actor.
var ErrNoSuchActor = errors.New("mailbox: no such actor")

// ErrClosed is returned by Receive once an actor's inbox has been
// permanently closed and is empty (by the actor's exit cleanup or by
// a runtime shutdown).
var ErrClosed = errors.New("mailbox: actor closed")

// Send copies payload into a fresh block charged to dest and queues it
// on dest's inbox. This is the default "safe" send: sender and
// receiver never share underlying storage.
//
// The registry lock is held from locating dest through the mailbox
// append (via Registry.WithActor), never released and reacquired
// partway through: a concurrent exit cannot evict dest's slot between
// the lookup and the delivery, so a send can never charge an
// allocation handle to an actor whose handle sweep has already run.
func Send(reg *registry.Registry, al *alloc.Allocator, sender, dest actorid.ID, msgType int64, payload []byte) error {
	ok := reg.WithActor(dest, func(act *registry.Actor) {
		deliverLocked(act, func() registry.Message {
			block := al.Alloc(dest, payload)
			return registry.Message{Type: msgType, Payload: block, Sender: sender, Dest: dest}
		})
	})
	if !ok {
		return ErrNoSuchActor
	}
	return nil
}

// SendBlock delivers an already-allocated block without copying: it
// retains block on dest's behalf and queues it. The caller retains
// whatever ownership of block it already had; dropping the caller's
// own handle (if desired) is a separate Release call left to the
// caller ("retain before send, release after send"). Locking follows
// Send.
func SendBlock(reg *registry.Registry, al *alloc.Allocator, sender, dest actorid.ID, msgType int64, block *alloc.Block) error {
	ok := reg.WithActor(dest, func(act *registry.Actor) {
		deliverLocked(act, func() registry.Message {
			al.Retain(dest, block)
			return registry.Message{Type: msgType, Payload: block, Sender: sender, Dest: dest}
		})
	})
	if !ok {
		return ErrNoSuchActor
	}
	return nil
}

// Reply is Send with sender and dest swapped from the original
// message's point of view — a thin convenience, not a correlated
// request/reply protocol (messages carry no correlation id).
func Reply(reg *registry.Registry, al *alloc.Allocator, self actorid.ID, orig registry.Message, msgType int64, payload []byte) error {
	return Send(reg, al, self, orig.Sender, msgType, payload)
}

// Broadcast delivers one shared payload to every live actor, the
// sender included. The payload is allocated unowned, then retained
// and queued per recipient from inside Registry.Each's callback — so
// the whole walk runs under a single registry read-lock hold, with no
// window for a recipient to exit and run its handle sweep between
// being counted and being retained for — and finally its anonymous
// initial charge is released, so the block's refcount reaches zero
// only once every recipient has released its own handle: no leak and
// no use-after-free even if a recipient exits immediately after
// receiving it.
func Broadcast(reg *registry.Registry, al *alloc.Allocator, sender actorid.ID, msgType int64, payload []byte) int {
	block := al.Alloc(actorid.ID{}, payload)

	n := 0
	reg.Each(func(id actorid.ID, act *registry.Actor) {
		deliverLocked(act, func() registry.Message {
			al.Retain(id, block)
			return registry.Message{Type: msgType, Payload: block, Sender: sender, Dest: id}
		})
		n++
	})

	al.Release(actorid.ID{}, block)
	return n
}

// deliverLocked acquires act's own mailbox lock, then calls build to
// construct the message to queue — so any allocator call build makes
// happens while the mailbox lock is already held, per the runtime's
// registry -> mailbox -> allocator lock order — and appends the
// result unless act has already been force-closed.
func deliverLocked(act *registry.Actor, build func() registry.Message) {
	act.Lock()
	defer act.Unlock()
	if act.ClosedLocked() {
		return
	}
	act.Inbox().Append(build())
	act.Cond().Signal()
}

// Receive blocks until a message arrives, the actor is closed, or
// timeout elapses. timeout <= 0 blocks forever.
func Receive(act *registry.Actor, timeout time.Duration) (registry.Message, error) {
	act.Lock()
	defer act.Unlock()

	if timeout <= 0 {
		for act.Inbox().Len() == 0 && !act.ClosedLocked() {
			act.Cond().Wait()
		}
		return popLocked(act)
	}

	deadline := time.Now().Add(timeout)
	for act.Inbox().Len() == 0 && !act.ClosedLocked() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return registry.Message{}, ErrTimeout
		}
		timedWait(act, remaining)
	}
	if act.Inbox().Len() == 0 && !act.ClosedLocked() {
		return registry.Message{}, ErrTimeout
	}
	return popLocked(act)
}

// timedWait waits on act's condition variable for at most d, waking
// early if another goroutine signals it first. Caller must hold
// act.Lock(); the lock is released while waiting, same as Cond.Wait.
func timedWait(act *registry.Actor, d time.Duration) {
	var once sync.Once
	timer := time.AfterFunc(d, func() {
		once.Do(func() {
			// Taking the lock orders this wakeup after the Wait below
			// has registered, so it cannot be lost.
			act.Lock()
			act.Cond().Broadcast()
			act.Unlock()
		})
	})
	defer timer.Stop()
	act.Cond().Wait()
}

func popLocked(act *registry.Actor) (registry.Message, error) {
	msg, ok := act.Inbox().PopFront()
	if !ok {
		return registry.Message{}, ErrClosed
	}
	return msg, nil
}

// ErrTimeout is returned by Receive when no message arrived before the
// deadline elapsed.
var ErrTimeout = errors.New("mailbox: receive timeout")
