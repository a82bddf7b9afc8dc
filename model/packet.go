package model

// Flags mirrors the encoder buffer flags. Bit values match MediaCodec so
// encoder output can be stored without translation.
type Flags uint32

const (
	FlagSyncFrame   Flags = 1 << 0
	FlagCodecConfig Flags = 1 << 1
	FlagEndOfStream Flags = 1 << 2
)

func (f Flags) IsSync() bool {
	return f&FlagSyncFrame != 0
}

func (f Flags) IsCodecConfig() bool {
	return f&FlagCodecConfig != 0
}

func (f Flags) IsEndOfStream() bool {
	return f&FlagEndOfStream != 0
}

// Packet describes one encoded access unit held in the arena.
// The byte range [Offset, Offset+Length) may wrap through the end of the arena.
type Packet struct {
	Offset        uint32
	Length        uint32
	Flags         Flags
	TimestampUsec int64
	Seq           uint64 // admission order; truncation rewinds it
}

// End returns the arena offset right after the packet, modulo capacity.
func (p *Packet) End(capacity uint32) uint32 {
	return uint32((uint64(p.Offset) + uint64(p.Length)) % uint64(capacity))
}

// Wraps reports whether the packet crosses the arena boundary.
func (p *Packet) Wraps(capacity uint32) bool {
	return uint64(p.Offset)+uint64(p.Length) > uint64(capacity)
}
