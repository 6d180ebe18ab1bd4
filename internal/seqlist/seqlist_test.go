package seqlist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListAppendAndPopFront(t *testing.T) {
	var l List[int]
	l.Append(1)
	l.Append(2)
	l.Append(3)
	require.Equal(t, 3, l.Len())

	v, ok := l.PopFront()
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 2, l.Len())
}

func TestListPopFrontEmpty(t *testing.T) {
	var l List[string]
	_, ok := l.PopFront()
	require.False(t, ok)
}

func TestListRemoveAbsentIsNoop(t *testing.T) {
	var l List[int]
	l.Append(1)
	removed := l.Remove(func(v int) bool { return v == 99 })
	require.False(t, removed)
	require.Equal(t, 1, l.Len())
}

func TestListRemoveByIdentity(t *testing.T) {
	type node struct{ id int }
	a := &node{id: 1}
	b := &node{id: 2}

	var l List[*node]
	l.Append(a)
	l.Append(b)

	removed := l.Remove(func(n *node) bool { return n == a })
	require.True(t, removed)
	require.Equal(t, 1, l.Len())

	got, ok := l.Filter(func(n *node) bool { return n.id == 2 })
	require.True(t, ok)
	require.Same(t, b, got)
}

func TestListFilterFirstMatch(t *testing.T) {
	var l List[int]
	for _, v := range []int{4, 8, 15, 16, 23, 42} {
		l.Append(v)
	}

	v, ok := l.Filter(func(v int) bool { return v > 10 })
	require.True(t, ok)
	require.Equal(t, 15, v)
}

func TestListEachPreservesOrder(t *testing.T) {
	var l List[int]
	for _, v := range []int{1, 2, 3} {
		l.Append(v)
	}
	var seen []int
	l.Each(func(v int) { seen = append(seen, v) })
	require.Equal(t, []int{1, 2, 3}, seen)
}
