package store

import (
	"fmt"

	"github.com/cqkv/clipring/keydir"
	"github.com/cqkv/clipring/model"
)

// Store holds encoded video in a pair of circular buffers: a byte arena for
// the payloads and a ring of packet descriptors.
//
// Data is added at head and removed from tail. Head points to an empty slot,
// so at most len(slots)-1 packets are live. Payloads are laid out back to back:
// a packet starts where the previous one ended, modulo the arena capacity.
//
// Not thread-safe.
type Store struct {
	arena []byte
	slots []model.Packet

	head  int // next free slot
	tail  int // oldest live packet
	count int // live packets

	writeOff uint32 // where the next payload goes
	used     uint64 // payload bytes held by live packets

	tailSeq uint64 // seq of the packet at tail
	nextSeq uint64 // seq the next admitted packet gets

	evicted uint64

	policy  OverflowPolicy
	syncDir keydir.Keydir
}

// New allocates the arena and the descriptor ring. Nothing is allocated
// after this on the append path.
func New(arenaCapacity uint32, maxPackets int, opts ...Option) (*Store, error) {
	if arenaCapacity == 0 || maxPackets < 2 {
		return nil, fmt.Errorf("%w: arena=%d slots=%d", ErrConfig, arenaCapacity, maxPackets)
	}

	o := &options{policy: PolicyReject}
	for _, opt := range opts {
		opt(o)
	}
	if o.syncDir == nil {
		o.syncDir = keydir.NewBTree(0)
	}

	return &Store{
		arena:   make([]byte, arenaCapacity),
		slots:   make([]model.Packet, maxPackets),
		policy:  o.policy,
		syncDir: o.syncDir,
	}, nil
}

// TryAppend copies data into the arena and records its descriptor.
// It returns false, without touching any state, when there is no room and the
// policy is PolicyReject. A packet bigger than the whole arena is a caller bug.
func (s *Store) TryAppend(data []byte, flags model.Flags, timestampUsec int64) bool {
	size := uint64(len(data))
	if size > uint64(len(s.arena)) {
		panic(fmt.Sprintf("enormous packet: %d vs. arena %d", size, len(s.arena)))
	}

	if !s.canAdd(size) {
		return false
	}

	off := s.writeOff
	// copy the data in, it may get split in half
	n := copy(s.arena[off:], data)
	if n < len(data) {
		copy(s.arena, data[n:])
	}

	s.slots[s.head] = model.Packet{
		Offset:        off,
		Length:        uint32(size),
		Flags:         flags,
		TimestampUsec: timestampUsec,
		Seq:           s.nextSeq,
	}
	if flags.IsSync() {
		s.syncDir.Put(keydir.Entry{Seq: s.nextSeq, Index: s.head, TimestampUsec: timestampUsec})
	}

	s.head = s.next(s.head)
	s.count++
	s.nextSeq++
	s.used += size
	s.writeOff = uint32((uint64(off) + size) % uint64(len(s.arena)))
	return true
}

// canAdd reports whether size bytes and one more descriptor fit without
// removing anything, evicting from the tail first if the policy allows it.
func (s *Store) canAdd(size uint64) bool {
	for {
		if s.count == 0 {
			return true
		}
		if s.count < len(s.slots)-1 && size <= s.free() {
			return true
		}
		if s.policy != PolicyEvictOldest {
			return false
		}
		s.evictOldest()
	}
}

func (s *Store) evictOldest() {
	p := &s.slots[s.tail]
	if p.Flags.IsSync() {
		s.syncDir.DeleteBelow(p.Seq + 1)
	}
	s.used -= uint64(p.Length)
	s.tail = s.next(s.tail)
	s.tailSeq++
	s.count--
	s.evicted++
}

func (s *Store) free() uint64 {
	return uint64(len(s.arena)) - s.used
}

// OldestSyncFrameIndex returns the slot of the oldest sync frame. Valid until
// the next append. The second result is false when no complete GOP is buffered.
func (s *Store) OldestSyncFrameIndex() (int, bool) {
	e, ok := s.syncDir.Min()
	if !ok {
		return -1, false
	}
	return e.Index, true
}

// NewestSyncFrameAtOrBefore returns the newest sync frame whose timestamp is
// not after timestampUsec.
func (s *Store) NewestSyncFrameAtOrBefore(timestampUsec int64) (int, bool) {
	if s.count == 0 {
		return -1, false
	}
	index, found := -1, false
	s.syncDir.DescendFrom(s.nextSeq-1, func(e keydir.Entry) bool {
		if e.TimestampUsec <= timestampUsec {
			index, found = e.Index, true
			return false
		}
		return true
	})
	return index, found
}

// Newest returns the descriptor of the most recently admitted packet.
func (s *Store) Newest() (model.Packet, bool) {
	if s.count == 0 {
		return model.Packet{}, false
	}
	return s.slots[s.prev(s.head)], true
}

// NextIndex returns the slot after index, or false at the end of the live range.
func (s *Store) NextIndex(index int) (int, bool) {
	next := s.next(index)
	if next == s.head {
		return -1, false
	}
	return next, true
}

// ReadPacket returns the payload and descriptor stored at index.
//
// When the packet does not wrap, the slice is a view into the arena and must
// be treated as read-only; it is invalidated by the next append. A wrapped
// packet is reassembled into a new buffer.
func (s *Store) ReadPacket(index int) ([]byte, model.Packet) {
	p := s.slots[index]
	if !p.Wraps(uint32(len(s.arena))) {
		end := p.Offset + p.Length
		return s.arena[p.Offset:end:end], p
	}

	buf := make([]byte, p.Length)
	n := copy(buf, s.arena[p.Offset:])
	copy(buf[n:], s.arena[:int(p.Length)-n])
	return buf, p
}

// BufferedSpanUsec is the time covered by the buffered packets, based on
// their presentation timestamps.
func (s *Store) BufferedSpanUsec() int64 {
	if s.count < 2 {
		return 0
	}
	newest := s.slots[s.prev(s.head)]
	oldest := s.slots[s.tail]
	return newest.TimestampUsec - oldest.TimestampUsec
}

// TruncateTo rolls head back to index and the write cursor back to byteOffset.
// index must lie in the live range (or equal head) and byteOffset must be the
// end of the packet before it. Bytes are not zeroed.
func (s *Store) TruncateTo(index int, byteOffset uint32) error {
	if index < 0 || index >= len(s.slots) {
		return fmt.Errorf("%w: index %d", ErrBadTruncate, index)
	}
	keep := (index - s.tail + len(s.slots)) % len(s.slots)
	if keep > s.count {
		return fmt.Errorf("%w: index %d outside live range", ErrBadTruncate, index)
	}
	if keep > 0 {
		if end := s.slots[s.prev(index)].End(uint32(len(s.arena))); end != byteOffset {
			return fmt.Errorf("%w: offset %d, packet ends at %d", ErrBadTruncate, byteOffset, end)
		}
	} else if byteOffset >= uint32(len(s.arena)) {
		return fmt.Errorf("%w: offset %d", ErrBadTruncate, byteOffset)
	}

	for i := index; i != s.head; i = s.next(i) {
		s.used -= uint64(s.slots[i].Length)
	}

	s.head = index
	s.count = keep
	s.nextSeq = s.tailSeq + uint64(keep)
	s.writeOff = byteOffset
	s.syncDir.DeleteFrom(s.nextSeq)
	return nil
}

// TruncateToMark is TruncateTo with a check that the mark still refers to
// buffered packets.
func (s *Store) TruncateToMark(m model.Mark) error {
	if m.Seq < s.tailSeq || m.Seq > s.nextSeq {
		return fmt.Errorf("%w: seq %d, live [%d,%d)", ErrStaleMark, m.Seq, s.tailSeq, s.nextSeq)
	}
	if want := (s.tail + int(m.Seq-s.tailSeq)) % len(s.slots); want != m.PacketIndex {
		return fmt.Errorf("%w: seq %d is in slot %d, mark says %d", ErrStaleMark, m.Seq, want, m.PacketIndex)
	}
	return s.TruncateTo(m.PacketIndex, m.ByteOffset)
}

// Reset drops every packet.
func (s *Store) Reset() {
	s.head, s.tail, s.count = 0, 0, 0
	s.writeOff, s.used = 0, 0
	s.tailSeq, s.nextSeq = 0, 0
	s.syncDir.Clear()
}

// Mark captures the current head, write cursor and sequence.
func (s *Store) Mark() model.Mark {
	return model.Mark{
		PacketIndex: s.head,
		ByteOffset:  s.writeOff,
		Seq:         s.nextSeq,
	}
}

// Walk calls fn for each live packet, oldest first, until fn returns false.
func (s *Store) Walk(fn func(index int, p model.Packet) bool) {
	for i, n := s.tail, 0; n < s.count; i, n = s.next(i), n+1 {
		if !fn(i, s.slots[i]) {
			return
		}
	}
}

func (s *Store) IsEmpty() bool          { return s.count == 0 }
func (s *Store) Len() int               { return s.count }
func (s *Store) Used() uint64           { return s.used }
func (s *Store) Capacity() uint32       { return uint32(len(s.arena)) }
func (s *Store) Slots() int             { return len(s.slots) }
func (s *Store) Head() int              { return s.head }
func (s *Store) Tail() int              { return s.tail }
func (s *Store) WriteOffset() uint32    { return s.writeOff }
func (s *Store) TailSeq() uint64        { return s.tailSeq }
func (s *Store) Evicted() uint64        { return s.evicted }
func (s *Store) SyncFrames() int        { return s.syncDir.Size() }
func (s *Store) Policy() OverflowPolicy { return s.policy }

func (s *Store) next(i int) int {
	return (i + 1) % len(s.slots)
}

func (s *Store) prev(i int) int {
	return (i + len(s.slots) - 1) % len(s.slots)
}
