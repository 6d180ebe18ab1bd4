// Package lifecycle implements actor spawn/exit and the process-wide
// shutdown sweep: one goroutine per actor, exit-target notification,
// the exit-time release of everything the actor still owns, and the
// final leak audit.
package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"libactor/internal/actorid"
	"libactor/internal/alloc"
	"libactor/internal/mailbox"
	"libactor/internal/registry"
)

// ExitSignal is the message type used to notify an exit-trapping actor
// that one of its linked children has terminated. The notification
// carries no payload; the terminated actor is the message's Sender.
const ExitSignal int64 = -1

// Runtime bundles the registry and allocator a set of actors share,
// plus the bookkeeping needed to implement WaitFinish/Shutdown.
type Runtime struct {
	Reg   *registry.Registry
	Alloc *alloc.Allocator

	wg sync.WaitGroup
}

// New returns a ready-to-use Runtime.
func New() *Runtime {
	return &Runtime{Reg: registry.New(), Alloc: alloc.New()}
}

// Spawn registers a new actor, links it to exitTarget for exit
// notification (the zero ID means "no link"), and runs fn in its own
// goroutine. The actor's exit is logged with reason "normal" when fn
// returns; a panic inside fn is recovered and logged with reason
// "panic", so one actor's bug can never bring down the runtime.
func (rt *Runtime) Spawn(exitTarget actorid.ID, trapExit bool, fn func(self actorid.ID)) actorid.ID {
	act, id := rt.Reg.Register()
	act.SetExitTarget(exitTarget)
	act.SetTrapExit(trapExit)

	rt.wg.Add(1)
	go rt.run(act, id, fn)
	return id
}

func (rt *Runtime) run(act *registry.Actor, id actorid.ID, fn func(actorid.ID)) {
	reason := "normal"
	defer func() {
		if r := recover(); r != nil {
			reason = "panic"
			slog.Error("actor panicked", "actor", id.String(), "panic", r)
		}
		rt.cleanup(act, id, reason)
		rt.wg.Done()
	}()
	fn(id)
}

// cleanup runs the exit sequence: notify the exit target (if any and
// if it still exists), then atomically mark the
// mailbox closed, release every allocation still charged to this
// actor, and evict the registry slot. Those last three steps run
// under one held registry write lock — not three separately-locked
// calls — so a concurrent Send cannot resolve this actor's id in the
// window after its allocations were swept but before its slot is
// evicted, which would otherwise charge a handle to an id nothing
// will ever release again.
func (rt *Runtime) cleanup(act *registry.Actor, id actorid.ID, reason string) {
	target := act.ExitTarget()
	if !target.IsZero() {
		if err := mailbox.Send(rt.Reg, rt.Alloc, id, target, ExitSignal, nil); err != nil {
			// target itself already exited; the notification is simply dropped.
			slog.Debug("exit notification dropped", "actor", id.String(), "target", target.String())
		}
	}

	rt.Reg.Lock()
	act.MarkClosed()
	rt.Alloc.ReleaseOwner(id)
	rt.Reg.RemoveLocked(id)
	rt.Reg.Unlock()

	slog.Info("actor exited", "actor", id.String(), "reason", reason)
}

// WaitFinish blocks until every spawned actor has exited. Intended for
// a top-level driver (or test) that wants a deterministic join point.
func (rt *Runtime) WaitFinish() {
	rt.wg.Wait()
}

// WaitFinishTimeout is WaitFinish bounded by a timeout; it reports
// whether every actor finished before the deadline.
func (rt *Runtime) WaitFinishTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// Shutdown force-closes every still-live actor's mailbox (unblocking
// any pending Receive with mailbox.ErrClosed) and sweeps any
// allocation left untracked by a normal actor exit, logging the leak
// count. Intended for a process exiting before every actor has
// naturally finished.
func (rt *Runtime) Shutdown() {
	var ids []actorid.ID
	rt.Reg.Each(func(id actorid.ID, _ *registry.Actor) { ids = append(ids, id) })
	for _, id := range ids {
		rt.Reg.Lock()
		if act, ok := rt.Reg.GetLocked(id); ok {
			act.MarkClosed()
			rt.Alloc.ReleaseOwner(id)
			rt.Reg.RemoveLocked(id)
		}
		rt.Reg.Unlock()
	}

	if leaked := rt.Alloc.DrainLeaked(); leaked > 0 {
		slog.Warn("shutdown leak sweep", "leaked_blocks", leaked)
	}
}
