package container

import (
	"encoding/binary"

	"github.com/cqkv/clipring/codec"
	"github.com/cqkv/clipring/model"
	"github.com/pkg/errors"
)

const videoTrackID = 0

var ErrAlreadyOpen = addPrefix("container is already open")

var _ Writer = (*FileWriter)(nil)

// FileWriter writes a single video track. It is single use: once finished it
// cannot be opened again.
type FileWriter struct {
	options options

	file     *model.SampleFile
	format   *model.Format
	started  bool
	finished bool

	buf []byte // header + payload of the sample being written
}

func NewFileWriter(opts ...Option) *FileWriter {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &FileWriter{options: o}
}

func (w *FileWriter) Open(path string, format *model.Format) (int, error) {
	if w.finished {
		return 0, ErrFinished
	}
	if w.file != nil {
		return 0, ErrAlreadyOpen
	}
	if format.IsZero() {
		return 0, ErrNoFormat
	}

	ioManager, err := w.options.ioManagerCreator(path)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", path)
	}
	w.file = model.OpenSampleFile(path, ioManager)
	w.format = format.Clone()
	return videoTrackID, nil
}

// Start writes the format preamble.
func (w *FileWriter) Start() error {
	if w.finished {
		return ErrFinished
	}
	if w.file == nil {
		return ErrNotOpen
	}
	if w.started {
		return nil
	}

	data, err := w.options.codec.MarshalFormat(w.format)
	if err != nil {
		return err
	}
	if err = w.file.Write(data); err != nil {
		return errors.Wrap(err, "write format preamble")
	}
	w.started = true
	return nil
}

func (w *FileWriter) WriteSample(trackID int, data []byte, flags model.Flags, timestampUsec int64) error {
	switch {
	case w.finished:
		return ErrFinished
	case w.file == nil:
		return ErrNotOpen
	case !w.started:
		return ErrNotStarted
	case trackID != videoTrackID:
		return ErrUnknownTrack
	}

	header := &model.SampleHeader{
		TrackID:       uint8(trackID),
		Flags:         flags,
		TimestampUsec: timestampUsec,
		Size:          int64(len(data)),
	}
	headerData, _, err := w.options.codec.MarshalSampleHeader(header)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(headerData[:4], codec.SampleCrc(headerData, data))

	w.buf = append(w.buf[:0], headerData...)
	w.buf = append(w.buf, data...)
	if err = w.file.Write(w.buf); err != nil {
		return errors.Wrapf(err, "write sample at offset %d", w.file.WriteOffset)
	}
	w.file.Samples++
	return nil
}

func (w *FileWriter) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true
	if w.file == nil {
		return nil
	}

	var syncErr error
	if w.options.sync && w.started {
		syncErr = w.file.Sync()
	}
	closeErr := w.file.Close()
	if syncErr != nil {
		return errors.Wrap(syncErr, "sync container")
	}
	return errors.Wrap(closeErr, "close container")
}

// Written returns the number of samples and bytes written so far.
func (w *FileWriter) Written() (samples, bytes int64) {
	if w.file == nil {
		return 0, 0
	}
	return w.file.Samples, w.file.WriteOffset
}
