package model

import "encoding/binary"

const (
	// crc(4) + track(1) + flags(uvarint) + timestamp(varint) + size(uvarint)
	MaxSampleHeaderSize = 4 + 1 + binary.MaxVarintLen32 + binary.MaxVarintLen64*2

	SampleFileSuffix = ".clp"
)

type SampleHeader struct {
	Crc           uint32
	TrackID       uint8
	Flags         Flags
	TimestampUsec int64
	Size          int64
}

// Sample is one access unit as stored in an exported file.
type Sample struct {
	SampleHeader
	Data []byte
}

// SamplePos locates a sample inside an exported file.
type SamplePos struct {
	Offset int64 // header position
	Size   int64 // header + payload
}
