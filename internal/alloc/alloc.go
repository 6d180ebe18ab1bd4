// Package alloc implements the tracked, reference-counted allocator:
// every block's lifetime is governed by explicit retain/release calls,
// and each allocation is tagged with the actor currently charged for
// it so exit-time cleanup can release everything automatically. The
// global record list and per-owner handle lists are plain seqlist
// filters over Go structs rather than raw pointer-linked nodes.
package alloc

import (
	"sync"

	"libactor/internal/actorid"
	"libactor/internal/seqlist"
)

// Block is a tracked allocation. The zero value is not usable; only
// Allocator.Alloc produces one.
type Block struct {
	data []byte
}

// Data returns the block's bytes, writable. Intended for the actor
// that currently holds the block directly (e.g. via the public Alloc
// operation) before it is ever attached to a message as a payload.
func (b *Block) Data() []byte { return b.data }

// Bytes returns a read-only view of the block's payload: the view
// itself has no mutating method. A received Message's Payload is the
// *Block itself, so Data stays callable on it and read-only access to
// received payload bytes is not enforced by the type system.
func (b *Block) Bytes() ReadOnlyBytes { return ReadOnlyBytes{b: b.data} }

// ReadOnlyBytes is an immutable borrow of a block's payload.
type ReadOnlyBytes struct{ b []byte }

func (r ReadOnlyBytes) Len() int          { return len(r.b) }
func (r ReadOnlyBytes) At(i int) byte     { return r.b[i] }
func (r ReadOnlyBytes) String() string    { return string(r.b) }
func (r ReadOnlyBytes) IsNil() bool       { return r.b == nil }

// Clone returns an independent mutable copy of the payload.
func (r ReadOnlyBytes) Clone() []byte {
	if r.b == nil {
		return nil
	}
	out := make([]byte, len(r.b))
	copy(out, r.b)
	return out
}

type record struct {
	block    *Block
	refcount int
}

type handle struct {
	block *Block
}

// Allocator is the process-wide tracked-allocation registry. The zero
// value is ready to use.
type Allocator struct {
	mu      sync.Mutex
	records seqlist.List[*record]
	owners  map[actorid.ID]*seqlist.List[*handle]
}

// New returns a ready-to-use Allocator.
func New() *Allocator {
	return &Allocator{owners: make(map[actorid.ID]*seqlist.List[*handle])}
}

// Alloc allocates len(payload) bytes, copies payload in, creates a
// record with refcount 1, and — unless owner is the zero ID — charges
// the allocation to owner. A zero owner produces an "unowned" block
// (used by Broadcast for the one shared payload distributed to every
// recipient by retain).
func (a *Allocator) Alloc(owner actorid.ID, payload []byte) *Block {
	var data []byte
	if len(payload) > 0 {
		data = make([]byte, len(payload))
		copy(data, payload)
	}
	b := &Block{data: data}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.records.Append(&record{block: b, refcount: 1})
	if !owner.IsZero() {
		a.chargeLocked(owner, b)
	}
	return b
}

// Retain increments b's refcount and, unless owner is the zero ID,
// adds a per-owner handle for owner. A nil block or a block unknown
// to this allocator is a no-op.
func (a *Allocator) Retain(owner actorid.ID, b *Block) {
	if b == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records.Filter(func(r *record) bool { return r.block == b })
	if !ok {
		return
	}
	rec.refcount++
	if !owner.IsZero() {
		a.chargeLocked(owner, b)
	}
}

// Release removes one per-owner handle for owner (if any) and
// decrements b's refcount, freeing the block once the refcount hits
// zero. The refcount always decrements when the block is tracked,
// independent of whether owner happened to still hold a handle for
// it — double-release protection is a caller contract (one Release
// per successful Alloc/Retain), not a runtime-enforced guarantee. A
// nil block, or one this allocator never tracked, is a no-op.
func (a *Allocator) Release(owner actorid.ID, b *Block) {
	if b == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records.Filter(func(r *record) bool { return r.block == b })
	if !ok {
		return
	}
	rec.refcount--
	if rec.refcount <= 0 {
		a.records.Remove(func(r *record) bool { return r == rec })
	}

	if handles, ok := a.owners[owner]; ok {
		handles.Remove(func(h *handle) bool { return h.block == b })
		if handles.Len() == 0 {
			delete(a.owners, owner)
		}
	}
}

// ReleaseOwner releases every handle currently charged to owner, one
// Release call per handle — the exit-time sweep the lifecycle
// component runs over a terminating actor's allocations.
func (a *Allocator) ReleaseOwner(owner actorid.ID) {
	a.mu.Lock()
	handles, ok := a.owners[owner]
	if !ok {
		a.mu.Unlock()
		return
	}
	var blocks []*Block
	handles.Each(func(h *handle) { blocks = append(blocks, h.block) })
	delete(a.owners, owner)
	a.mu.Unlock()

	for _, b := range blocks {
		a.Release(owner, b)
	}
}

// Live returns the number of tracked allocations that have not yet
// been freed.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records.Len()
}

// DrainLeaked frees every still-registered block unconditionally and
// returns how many were leaked. Called once, at final shutdown.
func (a *Allocator) DrainLeaked() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.records.Len()
	a.records = seqlist.List[*record]{}
	a.owners = make(map[actorid.ID]*seqlist.List[*handle])
	return n
}

func (a *Allocator) chargeLocked(owner actorid.ID, b *Block) {
	if a.owners == nil {
		a.owners = make(map[actorid.ID]*seqlist.List[*handle])
	}
	handles, ok := a.owners[owner]
	if !ok {
		handles = &seqlist.List[*handle]{}
		a.owners[owner] = handles
	}
	handles.Append(&handle{block: b})
}
