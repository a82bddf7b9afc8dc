// Package encoder describes the hardware encoder the session drains and
// ships a deterministic software stand-in for it.
package encoder

import (
	"fmt"

	"github.com/cqkv/clipring/model"
)

var (
	ErrClosed        = addPrefix("encoder is closed")
	ErrEndOfStream   = addPrefix("encoder already signalled end of stream")
	ErrUnknownBuffer = addPrefix("buffer is not owned by the caller")
)

type ResultKind int

const (
	// ResultNoData means nothing is ready yet.
	ResultNoData ResultKind = iota
	// ResultFormatChanged carries the output format, no buffer.
	ResultFormatChanged
	// ResultData carries an encoded buffer that must be released.
	ResultData
	// ResultEndOfStream carries the last buffer, which must be released too.
	ResultEndOfStream
)

func (k ResultKind) String() string {
	switch k {
	case ResultNoData:
		return "no-data"
	case ResultFormatChanged:
		return "format-changed"
	case ResultData:
		return "data"
	case ResultEndOfStream:
		return "end-of-stream"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is one dequeue outcome. Data is owned by the encoder and is only
// valid until Release(Index).
type Result struct {
	Kind    ResultKind
	Index   int
	Format  *model.Format
	Data    []byte
	Flags   model.Flags
	PTSUsec int64
}

// HasBuffer reports whether the result must be handed back with Release.
func (r Result) HasBuffer() bool {
	return r.Kind == ResultData || r.Kind == ResultEndOfStream
}

// Encoder is the output side of a video encoder.
type Encoder interface {
	Dequeue() (Result, error)
	Release(index int) error
	Close() error
}

func addPrefix(errStr string) error {
	return fmt.Errorf("clipring err: %s", errStr)
}
