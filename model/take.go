package model

// Mark is a position in the packet store. PacketIndex and ByteOffset point at
// the next free slot and the write cursor, so a mark taken at the end of a take
// is an exclusive bound.
type Mark struct {
	PacketIndex int
	ByteOffset  uint32
	Seq         uint64 // sequence the next admitted packet will get
	AuxIndex    int
	WallClockMs int64
}

// Take is one user recording segment (a "bar" on the progress view).
type Take struct {
	Start    Mark
	End      Mark
	Finished bool
}

func (t *Take) StartWallClockMs() int64 { return t.Start.WallClockMs }
func (t *Take) EndWallClockMs() int64   { return t.End.WallClockMs }
func (t *Take) StartPacketIndex() int   { return t.Start.PacketIndex }
func (t *Take) EndPacketIndex() int     { return t.End.PacketIndex }
func (t *Take) StartByteOffset() uint32 { return t.Start.ByteOffset }
func (t *Take) EndByteOffset() uint32   { return t.End.ByteOffset }
func (t *Take) StartAuxIndex() int      { return t.Start.AuxIndex }
func (t *Take) EndAuxIndex() int        { return t.End.AuxIndex }

// DurationMs is zero for a take that has not been finished yet.
func (t *Take) DurationMs() int64 {
	if !t.Finished {
		return 0
	}
	return t.End.WallClockMs - t.Start.WallClockMs
}

// Packets returns how many packets the take covers in the ring.
func (t *Take) Packets() uint64 {
	if !t.Finished {
		return 0
	}
	return t.End.Seq - t.Start.Seq
}
