// Package container writes buffered access units to a playable file.
//
// Writer is the sink contract the export operation drives. FileWriter is the
// built-in sink: a framed elementary stream (".clp") with a format preamble
// followed by checksummed samples; Reader reads it back.
package container

import (
	"fmt"

	"github.com/cqkv/clipring/model"
)

var (
	ErrNotOpen      = addPrefix("container is not open")
	ErrNotStarted   = addPrefix("container is not started")
	ErrFinished     = addPrefix("container is finished")
	ErrUnknownTrack = addPrefix("unknown track")
	ErrCorrupted    = addPrefix("sample may be corrupted")
	ErrNoFormat     = addPrefix("format is required")
)

// Writer serializes a sequence of access units to a file.
type Writer interface {
	// Open creates the output and adds the single video track.
	Open(path string, format *model.Format) (trackID int, err error)
	Start() error
	WriteSample(trackID int, data []byte, flags model.Flags, timestampUsec int64) error
	// Finish flushes and releases the output. Safe to call more than once
	// and after a failed write.
	Finish() error
}

func addPrefix(errStr string) error {
	return fmt.Errorf("clipring err: %s", errStr)
}
