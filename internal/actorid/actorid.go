// Package actorid defines the opaque actor identifier shared by every
// other runtime component. It carries no behavior of its own — the
// registry is the only package allowed to mint one.
package actorid

import "fmt"

// ID designates a live actor. The zero value means "no actor" (used as
// the "no exit target" and "no owner" sentinel throughout the runtime).
// Fields are unexported so application code can copy, compare and print
// an ID but can never construct or dereference one.
type ID struct {
	index      uint32
	generation uint32
	salt       uint64
}

// New mints an identifier. Only the registry package calls this.
func New(index, generation uint32, salt uint64) ID {
	return ID{index: index, generation: generation, salt: salt}
}

// Index and Generation expose the slot coordinates to the registry
// package (same package family, still an internal detail to everyone
// else) so it can validate a lookup without re-exporting the fields.
func (id ID) Index() uint32      { return id.index }
func (id ID) Generation() uint32 { return id.generation }
func (id ID) Salt() uint64       { return id.salt }

// IsZero reports whether id is the "no actor" sentinel.
func (id ID) IsZero() bool { return id == ID{} }

func (id ID) String() string {
	if id.IsZero() {
		return "actor<nil>"
	}
	return fmt.Sprintf("actor#%d.%d", id.index, id.generation)
}
