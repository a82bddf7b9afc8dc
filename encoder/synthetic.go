package encoder

import (
	"encoding/binary"
	"sync"

	"github.com/cqkv/clipring/model"
)

// every frame starts with its frame number
const minFrameSize = 8

var (
	// dummy parameter sets, enough for a decoder to recognise an AVC stream
	sps = []byte{0, 0, 0, 1, 0x67, 0x42, 0x80, 0x1f}
	pps = []byte{0, 0, 0, 1, 0x68, 0xce, 0x06, 0xe2}
)

// Synthetic produces an AVC-shaped stream without a real encoder: a format
// change, one codec-config buffer, then one access unit per Feed. Frames are
// sized so the stream averages the configured bit rate; sync frames are twice
// the average.
//
// Feed and Dequeue may be called from different goroutines.
type Synthetic struct {
	mu sync.Mutex

	format  model.Format
	gop     int
	avgSize int

	pending     []Result
	outstanding map[int]struct{}
	nextIndex   int
	frames      int64
	released    int64
	eos         bool
	closed      bool
}

// NewSynthetic builds a generator for format with a sync frame every
// keyframeIntervalSec seconds.
func NewSynthetic(format model.Format, keyframeIntervalSec int) *Synthetic {
	if format.FrameRate <= 0 {
		format.FrameRate = 15
	}
	if keyframeIntervalSec <= 0 {
		keyframeIntervalSec = 1
	}
	if format.MimeType == "" {
		format.MimeType = model.MimeTypeAVC
	}
	format.CodecData = [][]byte{sps, pps}

	avg := format.BitRate / 8 / format.FrameRate
	if avg < 16 {
		avg = 16
	}

	e := &Synthetic{
		format:      *format.Clone(),
		gop:         format.FrameRate * keyframeIntervalSec,
		avgSize:     avg,
		outstanding: make(map[int]struct{}),
	}
	f := format.Clone()
	e.pending = append(e.pending, Result{Kind: ResultFormatChanged, Index: -1, Format: f})

	config := make([]byte, 0, len(sps)+len(pps))
	config = append(config, sps...)
	config = append(config, pps...)
	e.queue(ResultData, config, model.FlagCodecConfig, 0)
	return e
}

// Feed encodes the next frame.
func (e *Synthetic) Feed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.eos {
		return ErrEndOfStream
	}

	n := e.frames
	e.frames++

	var flags model.Flags
	size := e.frameSize(n)
	if n%int64(e.gop) == 0 {
		flags = model.FlagSyncFrame
	}
	data := make([]byte, size)
	binary.BigEndian.PutUint64(data, uint64(n))
	for i := minFrameSize; i < size; i++ {
		data[i] = byte(n) + byte(i)
	}
	e.queue(ResultData, data, flags, e.ptsOf(n))
	return nil
}

// SignalEndOfStream queues an empty end-of-stream buffer. Later Feeds fail.
func (e *Synthetic) SignalEndOfStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.eos {
		return ErrEndOfStream
	}
	e.eos = true
	e.queue(ResultEndOfStream, nil, model.FlagEndOfStream, e.ptsOf(e.frames))
	return nil
}

func (e *Synthetic) Dequeue() (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, ErrClosed
	}
	if len(e.pending) == 0 {
		return Result{Kind: ResultNoData, Index: -1}, nil
	}
	r := e.pending[0]
	e.pending[0] = Result{}
	e.pending = e.pending[1:]
	if r.HasBuffer() {
		e.outstanding[r.Index] = struct{}{}
	}
	return r, nil
}

func (e *Synthetic) Release(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.outstanding[index]; !ok {
		return ErrUnknownBuffer
	}
	delete(e.outstanding, index)
	e.released++
	return nil
}

func (e *Synthetic) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.pending = nil
	return nil
}

// Outstanding is the number of dequeued buffers not yet released.
func (e *Synthetic) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outstanding)
}

// Released is the number of buffers handed back so far.
func (e *Synthetic) Released() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

// Frames is the number of access units fed so far.
func (e *Synthetic) Frames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Format returns a copy of the output format.
func (e *Synthetic) Format() model.Format {
	return *e.format.Clone()
}

// GOP is the distance in frames between sync frames.
func (e *Synthetic) GOP() int { return e.gop }

func (e *Synthetic) queue(kind ResultKind, data []byte, flags model.Flags, pts int64) {
	e.pending = append(e.pending, Result{
		Kind:    kind,
		Index:   e.nextIndex,
		Data:    data,
		Flags:   flags,
		PTSUsec: pts,
	})
	e.nextIndex++
}

func (e *Synthetic) frameSize(n int64) int {
	if e.gop == 1 {
		return e.avgSize
	}
	if n%int64(e.gop) == 0 {
		return 2 * e.avgSize
	}
	// the rest of the GOP budget is spread over the predicted frames
	size := e.avgSize * (e.gop - 2) / (e.gop - 1)
	if size < minFrameSize {
		size = minFrameSize
	}
	return size
}

func (e *Synthetic) ptsOf(n int64) int64 {
	return n * 1_000_000 / int64(e.format.FrameRate)
}
