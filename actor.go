// Package actor is the public surface of the runtime: spawn actors,
// send and receive messages between them, and manage shared allocation
// lifetimes. Rather than looking up "the calling actor" through
// goroutine-local state (which Go has no portable way to do), every
// operation hangs off an explicit *Context handed to an actor's entry
// function.
package actor

import (
	"time"

	"libactor/internal/actorid"
	"libactor/internal/alloc"
	"libactor/internal/lifecycle"
	"libactor/internal/mailbox"
	"libactor/internal/registry"
)

// ID opaquely names a live (or once-live) actor.
type ID = actorid.ID

// Message is an envelope delivered to a Context's Receive.
type Message = registry.Message

// ExitSignal is the message Type an exit-trapping actor observes for
// a linked child's termination. The notification carries no payload;
// the terminated actor is the message's Sender.
const ExitSignal = lifecycle.ExitSignal

// Block is a tracked, reference-counted allocation.
type Block = alloc.Block

// ReadOnlyBytes is an immutable borrowed view of a Block's payload.
type ReadOnlyBytes = alloc.ReadOnlyBytes

// Errors surfaced by mailbox operations, re-exported so callers never
// need to import the internal mailbox package directly.
var (
	ErrNoSuchActor = mailbox.ErrNoSuchActor
	ErrClosed      = mailbox.ErrClosed
	ErrTimeout     = mailbox.ErrTimeout
)

// System is one isolated runtime instance: its own actor registry and
// allocator. Most programs need exactly one; tests may create several
// to run independent scenarios without cross-talk.
type System struct {
	rt *lifecycle.Runtime
}

// NewSystem returns a ready-to-use, empty System.
func NewSystem() *System {
	return &System{rt: lifecycle.New()}
}

// Options configures a spawned actor.
type Options struct {
	// ExitTarget, if non-zero, receives an ExitSignal message when
	// this actor terminates.
	ExitTarget ID
	// TrapExit marks this actor as trapping: children it spawns
	// while the flag is on adopt it as their ExitTarget.
	TrapExit bool
}

// Spawn starts a new actor running fn in its own goroutine and returns
// its ID immediately; fn receives a Context scoped to that actor.
func (s *System) Spawn(fn func(ctx *Context), opts Options) ID {
	return s.rt.Spawn(opts.ExitTarget, opts.TrapExit, func(self ID) {
		fn(&Context{sys: s, self: self})
	})
}

// WaitFinish blocks until every actor spawned on this system has
// exited.
func (s *System) WaitFinish() { s.rt.WaitFinish() }

// WaitFinishTimeout is WaitFinish bounded by d; it reports whether
// every actor finished before the deadline passed.
func (s *System) WaitFinishTimeout(d time.Duration) bool {
	return s.rt.WaitFinishTimeout(d)
}

// Shutdown force-closes any still-running actors' mailboxes and frees
// any allocation left outstanding, logging how many leaked. Call once,
// when the process is tearing down regardless of whether every actor
// finished naturally.
func (s *System) Shutdown() { s.rt.Shutdown() }

// Live returns the number of currently registered actors.
func (s *System) Live() int { return s.rt.Reg.Count() }

// LiveAllocations returns the number of currently tracked, unreleased
// blocks.
func (s *System) LiveAllocations() int { return s.rt.Alloc.Live() }

// Context is the capability an actor's entry function uses to act as
// itself: send, receive, allocate, and spawn children. Never shared
// across actors — each Context is scoped to exactly the actor it was
// created for.
type Context struct {
	sys  *System
	self ID
}

// Self returns this actor's own ID.
func (c *Context) Self() ID { return c.self }

// System returns the System this actor belongs to.
func (c *Context) System() *System { return c.sys }

// Spawn starts a child actor. If this actor has trap-exit enabled and
// opts names no explicit ExitTarget, the child is linked back to this
// actor — the trap flag is consulted once, here at spawn time, so a
// later TrapExit(false) never un-links children already running.
func (c *Context) Spawn(fn func(ctx *Context), opts Options) ID {
	if opts.ExitTarget.IsZero() {
		if act, ok := c.sys.rt.Reg.Get(c.self); ok && act.TrapExit() {
			opts.ExitTarget = c.self
		}
	}
	return c.sys.Spawn(fn, opts)
}

// Send copies payload into a new block charged to dest and delivers
// it as a message of the given type. Returns ErrNoSuchActor if dest
// does not name a live actor.
func (c *Context) Send(dest ID, msgType int64, payload []byte) error {
	return mailbox.Send(c.sys.rt.Reg, c.sys.rt.Alloc, c.self, dest, msgType, payload)
}

// SendBlock delivers an already-allocated Block to dest without
// copying its bytes: the block is retained on dest's behalf. The
// caller keeps whatever ownership of block it already had and should
// Release its own handle separately if it no longer needs the block.
func (c *Context) SendBlock(dest ID, msgType int64, block *Block) error {
	return mailbox.SendBlock(c.sys.rt.Reg, c.sys.rt.Alloc, c.self, dest, msgType, block)
}

// Reply sends payload back to orig's sender, copying it the same way
// Send does.
func (c *Context) Reply(orig Message, msgType int64, payload []byte) error {
	return mailbox.Reply(c.sys.rt.Reg, c.sys.rt.Alloc, c.self, orig, msgType, payload)
}

// Broadcast delivers one shared payload to every live actor — this
// one included, since it is registered like any other. Returns the
// number of actors the message was queued to.
func (c *Context) Broadcast(msgType int64, payload []byte) int {
	return mailbox.Broadcast(c.sys.rt.Reg, c.sys.rt.Alloc, c.self, msgType, payload)
}

// Receive blocks until a message arrives. It returns ErrClosed once
// this actor has been force-closed by System.Shutdown.
func (c *Context) Receive() (Message, error) {
	act, ok := c.sys.rt.Reg.Get(c.self)
	if !ok {
		return Message{}, ErrClosed
	}
	return mailbox.Receive(act, -1)
}

// ReceiveTimeout is Receive bounded by timeout; it returns ErrTimeout
// if no message arrives first. A timeout <= 0 blocks like Receive.
func (c *Context) ReceiveTimeout(timeout time.Duration) (Message, error) {
	act, ok := c.sys.rt.Reg.Get(c.self)
	if !ok {
		return Message{}, ErrClosed
	}
	return mailbox.Receive(act, timeout)
}

// TrapExit toggles whether children this actor subsequently spawns
// adopt it as their ExitTarget (and so notify it with an ExitSignal
// message when they terminate).
func (c *Context) TrapExit(trap bool) {
	if act, ok := c.sys.rt.Reg.Get(c.self); ok {
		act.SetTrapExit(trap)
	}
}

// Alloc allocates and copies payload into a new Block charged to this
// actor.
func (c *Context) Alloc(payload []byte) *Block {
	return c.sys.rt.Alloc.Alloc(c.self, payload)
}

// Retain increments b's refcount and charges it to this actor.
func (c *Context) Retain(b *Block) {
	c.sys.rt.Alloc.Retain(c.self, b)
}

// Release drops this actor's handle on b, decrementing its refcount
// and freeing it once no references remain. Matches the runtime-wide
// contract: calling Release more times than this actor retained b is
// a caller bug, not a runtime-detected error.
func (c *Context) Release(b *Block) {
	c.sys.rt.Alloc.Release(c.self, b)
}

// ReleasePayload releases msg.Payload on this actor's behalf — the
// common case of having finished processing a received message's
// block.
func (c *Context) ReleasePayload(msg Message) {
	c.Release(msg.Payload)
}

// Main is the canonical single-actor program entry point: it creates
// a System, runs entry as the one root actor, waits for the whole
// actor tree it spawns to finish, and then shuts the system down.
func Main(entry func(ctx *Context)) {
	sys := NewSystem()
	sys.Spawn(entry, Options{})
	sys.WaitFinish()
	sys.Shutdown()
}
