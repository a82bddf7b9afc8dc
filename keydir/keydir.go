package keydir

// Entry locates one sync frame inside the packet ring.
type Entry struct {
	Seq           uint64 // packet admission sequence, the ordering key
	Index         int    // slot in the descriptor ring
	TimestampUsec int64
}

// Keydir is the directory of sync frames currently held by the store.
// you can use some other data structure once you implement this interface
type Keydir interface {
	Put(e Entry)
	Min() (Entry, bool)
	Max() (Entry, bool)
	// DescendFrom calls fn for entries with Seq <= seq, newest first, until fn returns false.
	DescendFrom(seq uint64, fn func(Entry) bool)
	// DeleteBelow drops every entry with Seq < seq.
	DeleteBelow(seq uint64) int
	// DeleteFrom drops every entry with Seq >= seq.
	DeleteFrom(seq uint64) int
	Size() int
	Clear()
}
