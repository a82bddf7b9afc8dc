package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacket_End(t *testing.T) {
	p := &Packet{Offset: 90, Length: 10}
	assert.Equal(t, uint32(0), p.End(100))
	assert.False(t, p.Wraps(100))

	p = &Packet{Offset: 95, Length: 10}
	assert.Equal(t, uint32(5), p.End(100))
	assert.True(t, p.Wraps(100))
}

func TestFlags(t *testing.T) {
	f := FlagSyncFrame | FlagEndOfStream
	assert.True(t, f.IsSync())
	assert.False(t, f.IsCodecConfig())
	assert.True(t, f.IsEndOfStream())
}

func TestTake(t *testing.T) {
	take := &Take{
		Start: Mark{Seq: 4, WallClockMs: 1000},
		End:   Mark{Seq: 9, WallClockMs: 2500},
	}
	assert.Equal(t, int64(0), take.DurationMs())
	assert.Equal(t, uint64(0), take.Packets())

	take.Finished = true
	assert.Equal(t, int64(1500), take.DurationMs())
	assert.Equal(t, uint64(5), take.Packets())
}

func TestFormat_Clone(t *testing.T) {
	var nilFormat *Format
	assert.True(t, nilFormat.IsZero())
	assert.Nil(t, nilFormat.Clone())

	f := &Format{MimeType: MimeTypeAVC, Width: 2, CodecData: [][]byte{{1, 2}}}
	c := f.Clone()
	assert.Equal(t, f, c)
	c.CodecData[0][0] = 9
	assert.Equal(t, byte(1), f.CodecData[0][0])
	assert.False(t, f.IsZero())
}
