package deque

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Userfrom1995/pgagroal/internal/value"
)

func TestDeque_AddPollFIFO(t *testing.T) {
	dq := New(false)
	require.NoError(t, dq.Add("", false, int32(-1), value.Int32))
	require.NoError(t, dq.Add("", false, true, value.Bool))
	require.NoError(t, dq.Add("", false, "value1", value.String))
	assert.Equal(t, 3, dq.Size())

	v, _, _, ok := dq.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(-1), v.Int64())

	v, _, _, ok = dq.Poll()
	require.True(t, ok)
	assert.Equal(t, int64(-1), v.Int64())
	assert.Equal(t, 2, dq.Size())

	v, _, _, ok = dq.Poll()
	require.True(t, ok)
	assert.True(t, v.Bool())

	v, _, _, ok = dq.Poll()
	require.True(t, ok)
	assert.Equal(t, "value1", v.String())
	assert.Equal(t, 0, dq.Size())

	_, _, _, ok = dq.Poll()
	assert.False(t, ok)
}

func TestDeque_AddPollLIFO(t *testing.T) {
	dq := New(false)
	require.NoError(t, dq.Add("", false, int32(0), value.Int32))
	require.NoError(t, dq.Add("", false, "value1", value.String))
	require.NoError(t, dq.Add("", false, true, value.Bool))

	v, _, _, ok := dq.PollLast()
	require.True(t, ok)
	assert.True(t, v.Bool())

	v, _, _, ok = dq.PollLast()
	require.True(t, ok)
	assert.Equal(t, "value1", v.String())
	assert.Equal(t, 1, dq.Size())
}

func TestDeque_RemoveByTag(t *testing.T) {
	dq := New(false)
	require.NoError(t, dq.Add("tag1", true, "value1", value.String))
	require.NoError(t, dq.Add("tag2", true, true, value.Bool))
	require.NoError(t, dq.Add("tag2", true, int32(-1), value.Int32))
	assert.Equal(t, 3, dq.Size())

	assert.Equal(t, 0, dq.Remove("tag3"))
	assert.Equal(t, 2, dq.Remove("tag2"))
	assert.Equal(t, 1, dq.Size())

	v, tag, _, ok := dq.Peek()
	require.True(t, ok)
	assert.Equal(t, "value1", v.String())
	assert.Equal(t, "tag1", tag)
}

func TestDeque_Sort(t *testing.T) {
	dq := New(false)
	for _, i := range []int32{2, 1, 3, 5, 4, 0} {
		require.NoError(t, dq.Add(string(rune('0'+i)), true, i, value.Int32))
	}
	dq.Sort()

	it, err := dq.Iterator()
	require.NoError(t, err)
	var want int32
	for it.HasNext() {
		v, tag, _, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, want, int32(v.Int64()))
		assert.Equal(t, string(rune('0'+want)), tag)
		want++
	}
}

func TestDeque_IteratorRemove(t *testing.T) {
	dq := New(false)
	require.NoError(t, dq.Add("1", true, int32(1), value.Int32))
	require.NoError(t, dq.Add("2", true, int32(2), value.Int32))
	require.NoError(t, dq.Add("3", true, int32(3), value.Int32))

	it, err := dq.Iterator()
	require.NoError(t, err)
	cnt := 0
	for it.HasNext() {
		_, _, _, ok := it.Next()
		require.True(t, ok)
		cnt++
		if cnt == 2 || cnt == 3 {
			it.Remove()
		}
	}
	it.Remove() // no-op

	assert.Equal(t, 1, dq.Size())
	v, _, _, ok := dq.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int64())
}

func TestDeque_ThreadSafeConcurrentAdds(t *testing.T) {
	dq := New(true)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = dq.Add("", false, int32(i*100+j), value.Int32)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 400, dq.Size())
}
