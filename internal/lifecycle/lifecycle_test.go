package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"libactor/internal/actorid"
	"libactor/internal/mailbox"
)

func TestSpawnRunsAndExits(t *testing.T) {
	rt := New()
	done := make(chan struct{})
	rt.Spawn(actorid.ID{}, false, func(self actorid.ID) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actor never ran")
	}
	require.True(t, rt.WaitFinishTimeout(time.Second))
	require.Equal(t, 0, rt.Reg.Count())
}

func TestExitNotifiesTrappingParent(t *testing.T) {
	rt := New()
	received := make(chan int64, 1)

	var parentID actorid.ID
	parentDone := make(chan struct{})
	parentID = rt.Spawn(actorid.ID{}, true, func(self actorid.ID) {
		act, _ := rt.Reg.Get(self)
		msg, err := mailbox.Receive(act, time.Second)
		if err == nil {
			received <- msg.Type
		}
		close(parentDone)
	})

	rt.Spawn(parentID, false, func(self actorid.ID) {
		// exits immediately; normal exit notification to parent.
	})

	select {
	case typ := <-received:
		require.Equal(t, ExitSignal, typ)
	case <-time.After(time.Second):
		t.Fatal("parent never got exit notification")
	}
	<-parentDone
}

func TestPanicIsRecoveredAndReportedAsExit(t *testing.T) {
	rt := New()
	rt.Spawn(actorid.ID{}, false, func(self actorid.ID) {
		panic("boom")
	})
	require.True(t, rt.WaitFinishTimeout(time.Second), "a panicking actor must still be cleaned up")
}

func TestActorAllocationsReleasedOnExit(t *testing.T) {
	rt := New()
	rt.Spawn(actorid.ID{}, false, func(self actorid.ID) {
		rt.Alloc.Alloc(self, []byte("leaked if not cleaned"))
		rt.Alloc.Alloc(self, []byte("second"))
	})
	require.True(t, rt.WaitFinishTimeout(time.Second))
	require.Equal(t, 0, rt.Alloc.Live(), "exit must release every allocation the actor held")
}

func TestShutdownClosesLiveActorsAndSweepsLeaks(t *testing.T) {
	rt := New()
	blocked := make(chan struct{})
	exited := make(chan error, 1)

	rt.Spawn(actorid.ID{}, false, func(self actorid.ID) {
		act, _ := rt.Reg.Get(self)
		rt.Alloc.Alloc(self, []byte("held at shutdown"))
		close(blocked)
		_, err := mailbox.Receive(act, -1)
		exited <- err
	})

	<-blocked
	time.Sleep(10 * time.Millisecond)
	rt.Shutdown()
	require.Equal(t, 0, rt.Alloc.Live(), "shutdown must sweep the live actor's allocation")

	select {
	case err := <-exited:
		require.ErrorIs(t, err, mailbox.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked receiver was never woken by shutdown")
	}
}

func TestWaitFinishTimeoutFalseWhenActorNeverExits(t *testing.T) {
	rt := New()
	block := make(chan struct{})
	defer close(block)

	rt.Spawn(actorid.ID{}, false, func(self actorid.ID) {
		<-block
	})

	require.False(t, rt.WaitFinishTimeout(50*time.Millisecond))
}
