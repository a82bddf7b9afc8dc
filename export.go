package clipring

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cqkv/clipring/container"
	"github.com/cqkv/clipring/fio"
	"github.com/cqkv/clipring/model"
	"github.com/cqkv/clipring/store"
)

// Status is the outcome reported to the save-complete callback.
type Status int

const (
	// StatusRejected means the request never reached the buffer.
	StatusRejected Status = -1

	StatusOK          Status = 0
	StatusNoSyncFrame Status = 1
	StatusWriterIO    Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "rejected"
	case StatusOK:
		return "ok"
	case StatusNoSyncFrame:
		return "no-sync-frame"
	case StatusWriterIO:
		return "writer-io"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type ExportResult struct {
	Status Status
	Path   string
	Err    error

	Packets int
	Bytes   int64
	// Span is the time between the first and the last exported packet.
	Span time.Duration
}

type exportState int

const (
	stateLocateSync exportState = iota
	stateStream
	stateDone
	stateFailed
)

// exportOperation copies the buffered packets, from a sync frame to the
// newest one, into a container. The store is not modified.
type exportOperation struct {
	st     *store.Store
	format *model.Format
	writer func() container.Writer
	path   string
	// only the newest part of the buffer, zero for all of it
	last   time.Duration
	logger *logrus.Entry

	state  exportState
	start  int
	result ExportResult
}

func (op *exportOperation) run(ctx context.Context) ExportResult {
	op.result.Path = op.path
	for {
		switch op.state {
		case stateLocateSync:
			op.locateSync()
		case stateStream:
			op.stream(ctx)
		case stateDone, stateFailed:
			return op.result
		}
	}
}

func (op *exportOperation) locateSync() {
	var (
		index int
		ok    bool
	)
	if newest, have := op.st.Newest(); have && op.last > 0 {
		index, ok = op.st.NewestSyncFrameAtOrBefore(newest.TimestampUsec - op.last.Microseconds())
	}
	if !ok {
		index, ok = op.st.OldestSyncFrameIndex()
	}
	if !ok {
		op.logger.Warn("no sync frame found, nothing to save")
		op.fail(StatusNoSyncFrame, ErrNoSyncFrame)
		return
	}
	op.start = index
	op.state = stateStream
}

func (op *exportOperation) stream(ctx context.Context) {
	if op.format.IsZero() {
		op.ioFailed(ErrNoFormat)
		return
	}

	dir := filepath.Dir(op.path)
	lock := fio.NewFlock(dir)
	hold, err := lock.TryLock()
	if err != nil {
		op.ioFailed(fmt.Errorf("lock %s: %w", dir, err))
		return
	}
	if !hold {
		op.ioFailed(ErrExportDirLocked)
		return
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			op.logger.WithError(err).Warn("unlock export directory")
		}
	}()

	w := op.writer()
	track, err := w.Open(op.path, op.format)
	if err != nil {
		op.writerFailed(w, err)
		return
	}
	if err := w.Start(); err != nil {
		op.writerFailed(w, err)
		return
	}

	var first, lastTs int64
	for index, ok := op.start, true; ok; index, ok = op.st.NextIndex(index) {
		if err := ctx.Err(); err != nil {
			op.writerFailed(w, err)
			return
		}
		data, p := op.st.ReadPacket(index)
		if err := w.WriteSample(track, data, p.Flags, p.TimestampUsec); err != nil {
			op.writerFailed(w, err)
			return
		}
		if op.result.Packets == 0 {
			first = p.TimestampUsec
		}
		lastTs = p.TimestampUsec
		op.result.Packets++
		op.result.Bytes += int64(p.Length)
	}

	if err := w.Finish(); err != nil {
		op.writerFailed(w, err)
		return
	}
	op.result.Span = time.Duration(lastTs-first) * time.Microsecond
	op.result.Status = StatusOK
	op.state = stateDone
}

// writerFailed closes the sink and removes whatever was written.
func (op *exportOperation) writerFailed(w container.Writer, err error) {
	if ferr := w.Finish(); ferr != nil {
		op.logger.WithError(ferr).Debug("finish after failure")
	}
	if rerr := os.Remove(op.path); rerr != nil && !os.IsNotExist(rerr) {
		op.logger.WithError(rerr).Warn("remove partial output")
	}
	op.ioFailed(err)
}

// ioFailed reports err as a writer failure; both ErrWriterIO and err stay
// reachable through errors.Is.
func (op *exportOperation) ioFailed(err error) {
	op.fail(StatusWriterIO, fmt.Errorf("%w: %w", ErrWriterIO, err))
}

func (op *exportOperation) fail(status Status, err error) {
	op.result.Status = status
	op.result.Err = err
	op.state = stateFailed
}
