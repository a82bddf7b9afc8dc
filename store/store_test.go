package store

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/cqkv/clipring/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(tag byte, n int) []byte {
	return bytes.Repeat([]byte{tag}, n)
}

func collect(s *Store) (out [][]byte, descs []model.Packet) {
	idx, ok := s.OldestSyncFrameIndex()
	for ok {
		data, p := s.ReadPacket(idx)
		out = append(out, append([]byte(nil), data...))
		descs = append(descs, p)
		idx, ok = s.NextIndex(idx)
	}
	return out, descs
}

// checkInvariants verifies capacity and contiguity over the live range.
func checkInvariants(t *testing.T, s *Store) {
	t.Helper()
	var (
		sum   uint64
		n     int
		prev  *model.Packet
		capac = s.Capacity()
	)
	s.Walk(func(_ int, p model.Packet) bool {
		if prev != nil {
			assert.Equal(t, prev.End(capac), p.Offset, "packet %d is not contiguous", p.Seq)
			assert.Equal(t, prev.Seq+1, p.Seq)
		}
		cp := p
		prev = &cp
		sum += uint64(p.Length)
		n++
		return true
	})
	assert.LessOrEqual(t, sum, uint64(capac))
	assert.LessOrEqual(t, n, s.Slots()-1)
	assert.Equal(t, s.Len(), n)
	assert.Equal(t, s.Used(), sum)
	if prev != nil {
		assert.Equal(t, prev.End(capac), s.WriteOffset())
	}
}

func TestNew(t *testing.T) {
	s, err := New(1024, 16)
	assert.Nil(t, err)
	assert.NotNil(t, s)
	assert.True(t, s.IsEmpty())
	assert.Equal(t, uint32(1024), s.Capacity())
	assert.Equal(t, PolicyReject, s.Policy())

	_, err = New(0, 16)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = New(1024, 1)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestStore_RoundTrip(t *testing.T) {
	s, err := New(1024, 16)
	require.NoError(t, err)

	assert.True(t, s.TryAppend([]byte("p0-sync"), model.FlagSyncFrame, 0))
	assert.True(t, s.TryAppend([]byte("p1"), 0, 33_333))
	assert.True(t, s.TryAppend([]byte("p2"), 0, 66_666))
	checkInvariants(t, s)

	data, descs := collect(s)
	assert.Equal(t, [][]byte{[]byte("p0-sync"), []byte("p1"), []byte("p2")}, data)
	assert.Equal(t, model.FlagSyncFrame, descs[0].Flags)
	assert.Equal(t, model.Flags(0), descs[1].Flags)
	assert.Equal(t, int64(66_666), descs[2].TimestampUsec)
	assert.Equal(t, int64(66_666), s.BufferedSpanUsec())
}

func TestStore_SyncFrameScan(t *testing.T) {
	s, err := New(1024, 16)
	require.NoError(t, err)

	_, ok := s.OldestSyncFrameIndex()
	assert.False(t, ok)

	s.TryAppend([]byte("A"), 0, 0)
	_, ok = s.OldestSyncFrameIndex()
	assert.False(t, ok)

	s.TryAppend([]byte("B"), model.FlagSyncFrame, 1)
	s.TryAppend([]byte("C"), 0, 2)

	idx, ok := s.OldestSyncFrameIndex()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	data, _ := collect(s)
	assert.Equal(t, [][]byte{[]byte("B"), []byte("C")}, data)
}

func TestStore_RejectDoesNotCorrupt(t *testing.T) {
	s, err := New(10, 8)
	require.NoError(t, err)

	assert.True(t, s.TryAppend(payload('a', 6), model.FlagSyncFrame, 0))
	assert.True(t, s.TryAppend(payload('b', 3), 0, 1))

	head, off, used := s.Head(), s.WriteOffset(), s.Used()
	var before []model.Packet
	s.Walk(func(_ int, p model.Packet) bool {
		before = append(before, p)
		return true
	})

	// one byte left
	assert.False(t, s.TryAppend(payload('c', 2), 0, 2))
	assert.Equal(t, head, s.Head())
	assert.Equal(t, off, s.WriteOffset())
	assert.Equal(t, used, s.Used())
	var after []model.Packet
	s.Walk(func(_ int, p model.Packet) bool {
		after = append(after, p)
		return true
	})
	assert.Equal(t, before, after)

	assert.True(t, s.TryAppend(payload('d', 1), 0, 3))
	checkInvariants(t, s)
	assert.Equal(t, uint64(10), s.Used())
}

func TestStore_RejectWhenSlotsFull(t *testing.T) {
	s, err := New(1024, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, s.TryAppend([]byte{byte(i)}, 0, int64(i)))
	}
	// ring keeps one slot free for head
	assert.False(t, s.TryAppend([]byte{3}, 0, 3))
	assert.Equal(t, 3, s.Len())
	checkInvariants(t, s)
}

func TestStore_EnormousPacket(t *testing.T) {
	s, err := New(8, 4)
	require.NoError(t, err)
	assert.Panics(t, func() {
		s.TryAppend(payload('x', 9), 0, 0)
	})
	// exactly the arena size is fine when empty
	assert.True(t, s.TryAppend(payload('x', 8), model.FlagSyncFrame, 0))
	assert.Equal(t, uint32(0), s.WriteOffset())
}

func TestStore_WraparoundRead(t *testing.T) {
	s, err := New(10, 8, WithOverflowPolicy(PolicyEvictOldest))
	require.NoError(t, err)

	assert.True(t, s.TryAppend(payload('a', 4), model.FlagSyncFrame, 0))
	assert.True(t, s.TryAppend(payload('b', 4), model.FlagSyncFrame, 1))

	wrapped := []byte("0123")
	assert.True(t, s.TryAppend(wrapped, 0, 2))
	assert.Equal(t, uint64(1), s.Evicted())
	checkInvariants(t, s)

	var last int
	s.Walk(func(i int, _ model.Packet) bool {
		last = i
		return true
	})
	data, p := s.ReadPacket(last)
	assert.True(t, p.Wraps(s.Capacity()))
	assert.Equal(t, uint32(8), p.Offset)
	assert.Equal(t, wrapped, data)

	all, _ := collect(s)
	assert.Equal(t, [][]byte{payload('b', 4), wrapped}, all)
}

func TestStore_WraparoundAfterTruncate(t *testing.T) {
	s, err := New(10, 8)
	require.NoError(t, err)

	assert.NoError(t, s.TruncateTo(0, 7))
	assert.True(t, s.TryAppend([]byte("hello"), model.FlagSyncFrame, 0))
	data, p := s.ReadPacket(0)
	assert.True(t, p.Wraps(10))
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, uint32(2), s.WriteOffset())
}

func TestStore_ReadPacketIsView(t *testing.T) {
	s, err := New(64, 8)
	require.NoError(t, err)
	s.TryAppend([]byte("abc"), model.FlagSyncFrame, 0)

	data, _ := s.ReadPacket(0)
	assert.Equal(t, 3, cap(data))
	// appending to the view must not scribble over the arena
	_ = append(data, 'z')
	s.TryAppend([]byte("def"), 0, 1)
	next, _ := s.ReadPacket(1)
	assert.Equal(t, []byte("def"), next)
}

func TestStore_EvictKeepsWindowRolling(t *testing.T) {
	s, err := New(100, 16, WithOverflowPolicy(PolicyEvictOldest))
	require.NoError(t, err)

	// gop of 5, 10 bytes each
	for i := 0; i < 50; i++ {
		var flags model.Flags
		if i%5 == 0 {
			flags = model.FlagSyncFrame
		}
		assert.True(t, s.TryAppend(payload(byte(i), 10), flags, int64(i)*1000))
		checkInvariants(t, s)
	}
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, uint64(40), s.TailSeq())
	assert.Equal(t, 2, s.SyncFrames())
	assert.Equal(t, int64(9000), s.BufferedSpanUsec())

	_, descs := collect(s)
	assert.Equal(t, uint64(40), descs[0].Seq)
	assert.True(t, descs[0].Flags.IsSync())
}

func TestStore_EvictDropsStaleSyncFrames(t *testing.T) {
	s, err := New(30, 16, WithOverflowPolicy(PolicyEvictOldest))
	require.NoError(t, err)

	s.TryAppend(payload('k', 10), model.FlagSyncFrame, 0)
	s.TryAppend(payload('p', 10), 0, 1)
	s.TryAppend(payload('p', 10), 0, 2)
	s.TryAppend(payload('p', 10), 0, 3)

	// the only sync frame was evicted
	_, ok := s.OldestSyncFrameIndex()
	assert.False(t, ok)
	assert.Equal(t, 0, s.SyncFrames())
}

func TestStore_TruncateTo(t *testing.T) {
	s, err := New(100, 16)
	require.NoError(t, err)

	s.TryAppend(payload('a', 10), model.FlagSyncFrame, 0)
	s.TryAppend(payload('b', 10), 0, 1)
	mark := s.Mark()
	s.TryAppend(payload('c', 10), model.FlagSyncFrame, 2)
	s.TryAppend(payload('d', 10), 0, 3)
	assert.Equal(t, 2, s.SyncFrames())

	assert.NoError(t, s.TruncateTo(mark.PacketIndex, mark.ByteOffset))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, uint64(20), s.Used())
	assert.Equal(t, 1, s.SyncFrames())
	assert.Equal(t, mark, s.Mark())
	checkInvariants(t, s)

	// appends overwrite the dropped bytes
	s.TryAppend(payload('e', 5), 0, 4)
	data, _ := collect(s)
	assert.Equal(t, [][]byte{payload('a', 10), payload('b', 10), payload('e', 5)}, data)
}

func TestStore_TruncateToRejectsBadPoints(t *testing.T) {
	s, err := New(100, 16)
	require.NoError(t, err)
	s.TryAppend(payload('a', 10), model.FlagSyncFrame, 0)
	s.TryAppend(payload('b', 10), 0, 1)

	assert.ErrorIs(t, s.TruncateTo(-1, 0), ErrBadTruncate)
	assert.ErrorIs(t, s.TruncateTo(16, 0), ErrBadTruncate)
	// beyond head
	assert.ErrorIs(t, s.TruncateTo(5, 50), ErrBadTruncate)
	// not the end of packet 0
	assert.ErrorIs(t, s.TruncateTo(1, 11), ErrBadTruncate)
	assert.Equal(t, 2, s.Len())

	assert.NoError(t, s.TruncateTo(1, 10))
	assert.Equal(t, 1, s.Len())
}

func TestStore_TruncateToMarkStale(t *testing.T) {
	s, err := New(20, 16, WithOverflowPolicy(PolicyEvictOldest))
	require.NoError(t, err)

	mark := s.Mark()
	s.TryAppend(payload('a', 10), model.FlagSyncFrame, 0)
	s.TryAppend(payload('b', 10), 0, 1)
	s.TryAppend(payload('c', 10), 0, 2) // evicts 'a'

	assert.ErrorIs(t, s.TruncateToMark(mark), ErrStaleMark)

	future := s.Mark()
	future.Seq += 3
	assert.ErrorIs(t, s.TruncateToMark(future), ErrStaleMark)

	live := s.Mark()
	s.TryAppend(payload('d', 10), 0, 3)
	assert.NoError(t, s.TruncateToMark(live))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, live, s.Mark())
}

func TestStore_Reset(t *testing.T) {
	s, err := New(100, 16)
	require.NoError(t, err)
	s.TryAppend(payload('a', 10), model.FlagSyncFrame, 0)
	s.Reset()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, uint32(0), s.WriteOffset())
	assert.Equal(t, 0, s.SyncFrames())
	_, ok := s.OldestSyncFrameIndex()
	assert.False(t, ok)
	_, ok = s.Newest()
	assert.False(t, ok)
}

// Head wrapping back to slot 0 must not read as an empty store.
func TestStore_HeadWrapIsNotEmpty(t *testing.T) {
	s, err := New(1000, 4, WithOverflowPolicy(PolicyEvictOldest))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		s.TryAppend([]byte{byte(i)}, model.FlagSyncFrame, int64(i))
	}
	assert.Equal(t, 0, s.Head())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, int64(2), s.BufferedSpanUsec())

	newest, ok := s.Newest()
	assert.True(t, ok)
	assert.Equal(t, int64(3), newest.TimestampUsec)
}

func TestStore_NewestSyncFrameAtOrBefore(t *testing.T) {
	s, err := New(1000, 32)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		var flags model.Flags
		if i%4 == 0 {
			flags = model.FlagSyncFrame
		}
		s.TryAppend([]byte{byte(i)}, flags, int64(i)*100)
	}

	idx, ok := s.NewestSyncFrameAtOrBefore(700)
	assert.True(t, ok)
	assert.Equal(t, 4, idx)

	idx, ok = s.NewestSyncFrameAtOrBefore(100_000)
	assert.True(t, ok)
	assert.Equal(t, 8, idx)

	_, ok = s.NewestSyncFrameAtOrBefore(-1)
	assert.False(t, ok)
}

func TestStore_RandomAppendsKeepInvariants(t *testing.T) {
	for _, policy := range []OverflowPolicy{PolicyReject, PolicyEvictOldest} {
		t.Run(policy.String(), func(t *testing.T) {
			r := rand.New(rand.NewSource(7))
			s, err := New(997, 37, WithOverflowPolicy(policy))
			require.NoError(t, err)

			for i := 0; i < 2000; i++ {
				data := []byte(fmt.Sprintf("%d:%s", i, payload('x', r.Intn(120))))
				s.TryAppend(data, model.Flags(r.Intn(2)), int64(i))
				checkInvariants(t, s)
				if i%97 == 0 && s.Len() > 2 {
					// truncate somewhere in the middle
					var marks []model.Mark
					s.Walk(func(idx int, p model.Packet) bool {
						marks = append(marks, model.Mark{PacketIndex: idx, ByteOffset: p.Offset, Seq: p.Seq})
						return true
					})
					m := marks[len(marks)/2]
					require.NoError(t, s.TruncateToMark(m))
					checkInvariants(t, s)
				}
			}
		})
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	p, ok := ParseOverflowPolicy("evict")
	assert.True(t, ok)
	assert.Equal(t, PolicyEvictOldest, p)

	p, ok = ParseOverflowPolicy("")
	assert.True(t, ok)
	assert.Equal(t, PolicyReject, p)

	_, ok = ParseOverflowPolicy("drop-newest")
	assert.False(t, ok)
}
