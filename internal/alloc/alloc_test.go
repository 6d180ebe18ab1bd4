package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"libactor/internal/actorid"
)

func TestAllocChargesOwner(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 7)

	b := a.Alloc(owner, []byte("hello"))
	require.Equal(t, "hello", string(b.Data()))
	require.Equal(t, 1, a.Live())
}

func TestRetainReleaseIsNetNoop(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 7)
	other := actorid.New(2, 1, 7)

	b := a.Alloc(owner, []byte("x"))
	a.Retain(other, b)
	require.Equal(t, 1, a.Live())

	a.Release(other, b)
	require.Equal(t, 1, a.Live(), "block still referenced by original owner")

	a.Release(owner, b)
	require.Equal(t, 0, a.Live(), "last release frees the block")
}

func TestReleaseAlwaysDecrementsEvenWithoutHandle(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 7)
	stranger := actorid.New(9, 1, 7)

	b := a.Alloc(owner, []byte("x"))

	// stranger never retained b, but Release still decrements the
	// global refcount; handle bookkeeping and the refcount are
	// deliberately separate ledgers.
	a.Release(stranger, b)
	require.Equal(t, 0, a.Live())
}

func TestReleaseOwnerSweepsAllHandles(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 7)

	b1 := a.Alloc(owner, []byte("a"))
	b2 := a.Alloc(owner, []byte("b"))
	require.Equal(t, 2, a.Live())

	a.ReleaseOwner(owner)
	require.Equal(t, 0, a.Live())

	// idempotent: owner has no more handles.
	a.ReleaseOwner(owner)
	require.Equal(t, 0, a.Live())
	_ = b1
	_ = b2
}

func TestBroadcastSharedPayloadOwnership(t *testing.T) {
	a := New()
	recipients := []actorid.ID{
		actorid.New(1, 1, 0),
		actorid.New(2, 1, 0),
		actorid.New(3, 1, 0),
	}

	shared := a.Alloc(actorid.ID{}, []byte("broadcast"))
	require.Equal(t, 1, a.Live())

	for _, r := range recipients {
		a.Retain(r, shared)
	}
	require.Equal(t, 1, a.Live(), "still one record, refcount bumped")

	// drop the anonymous initial charge once distribution is done.
	a.Release(actorid.ID{}, shared)
	require.Equal(t, 1, a.Live(), "recipients still hold it")

	for _, r := range recipients {
		a.ReleaseOwner(r)
	}
	require.Equal(t, 0, a.Live())
}

func TestReleaseUnknownBlockIsNoop(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 0)
	stray := &Block{data: []byte("not tracked")}
	require.NotPanics(t, func() { a.Release(owner, stray) })
	require.Equal(t, 0, a.Live())
}

func TestReleaseNilBlockIsNoop(t *testing.T) {
	a := New()
	require.NotPanics(t, func() { a.Release(actorid.New(1, 1, 0), nil) })
}

func TestReadOnlyBytesClone(t *testing.T) {
	a := New()
	b := a.Alloc(actorid.New(1, 1, 0), []byte("payload"))
	ro := b.Bytes()
	require.Equal(t, 7, ro.Len())
	require.Equal(t, "payload", ro.String())

	clone := ro.Clone()
	clone[0] = 'P'
	require.Equal(t, "payload", string(b.Data()), "clone must not alias the original")
}

func TestDrainLeakedReportsAndClears(t *testing.T) {
	a := New()
	owner := actorid.New(1, 1, 0)
	a.Alloc(owner, []byte("1"))
	a.Alloc(owner, []byte("2"))

	n := a.DrainLeaked()
	require.Equal(t, 2, n)
	require.Equal(t, 0, a.Live())
}

// This test mirrors the allocator against a plain int to check the
// "refcount > 0 iff not yet freed" invariant under arbitrary
// retain/release sequences from a single owner.
func TestRapidRetainReleaseRefcountInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := New()
		owner := actorid.New(1, 1, 0)
		b := a.Alloc(owner, []byte("seed"))
		refcount := 1

		ops := rapid.SliceOfN(rapid.SampledFrom([]string{"retain", "release"}), 1, 30).Draw(t, "ops")
		for _, op := range ops {
			if refcount == 0 {
				break
			}
			switch op {
			case "retain":
				a.Retain(owner, b)
				refcount++
			case "release":
				a.Release(owner, b)
				refcount--
			}
			if refcount > 0 {
				require.Equal(t, 1, a.Live(), "block must remain live while refcount > 0")
			} else {
				require.Equal(t, 0, a.Live(), "block must be freed once refcount hits 0")
			}
		}
	})
}
