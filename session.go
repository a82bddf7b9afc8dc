// Package clipring keeps the last few seconds of encoded video in memory,
// tracks the takes recorded into it and saves the buffer to a file on demand.
//
// A Session owns one encoder and one buffer. All work on the buffer happens
// on a single goroutine, so draining, take bookkeeping and exports never
// interleave.
package clipring

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cqkv/clipring/clock"
	"github.com/cqkv/clipring/container"
	"github.com/cqkv/clipring/encoder"
	"github.com/cqkv/clipring/ledger"
	"github.com/cqkv/clipring/metrics"
	"github.com/cqkv/clipring/model"
	"github.com/cqkv/clipring/store"
)

const msgQueueSize = 64

type msgKind int

const (
	msgDrain msgKind = iota
	msgBeginTake
	msgEndTake
	msgRemoveLastTake
	msgExport
	msgTakes
	msgStats
)

type message struct {
	kind  msgKind
	ctx   context.Context
	path  string
	last  time.Duration
	reply chan reply
}

type reply struct {
	err    error
	export ExportResult
	takes  []model.Take
	stats  Stats
}

// Stats is a snapshot of the buffer.
type Stats struct {
	Packets      int
	UsedBytes    uint64
	Capacity     uint32
	BufferedSpan time.Duration
	SyncFrames   int
	Dropped      uint64
	Evicted      uint64
	Takes        int
	Recording    bool
}

type Session struct {
	id     string
	logger *logrus.Entry
	now    func() time.Time

	// owned by the worker goroutine
	enc       encoder.Encoder
	st        *store.Store
	ledger    *ledger.Ledger
	aux       ledger.AuxTrack
	pts       clock.Source
	encPTS    bool
	takeClock *clock.TakeClock
	format    *model.Format
	drained   uint64
	dropped   uint64

	outputDir        string
	maxRecord        time.Duration
	writerFactory    func() container.Writer
	statusFunc       func(spanUsec int64)
	saveCompleteFunc func(ExportResult)

	msgs    chan message
	quit    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
	closeErr  error

	exporting   atomic.Bool
	recordedMs  atomic.Int64
	takeStartMs atomic.Int64
}

// Open sizes the buffer from the config and starts draining enc.
func Open(enc encoder.Encoder, opts ...Option) (*Session, error) {
	if enc == nil {
		return nil, fmt.Errorf("%w: no encoder", ErrConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := cfg.Policy()
	if o.policy != nil {
		policy = *o.policy
	}
	storeOpts := []store.Option{store.WithOverflowPolicy(policy)}
	if o.syncDir != nil {
		storeOpts = append(storeOpts, store.WithKeydir(o.syncDir))
	}
	st, err := store.New(cfg.ArenaCapacity(), cfg.MetaSlots(), storeOpts...)
	if err != nil {
		return nil, err
	}

	id := o.sessionID
	if id == "" {
		id = uuid.NewString()
	}
	logger := o.logger
	if logger == nil {
		logger = logrus.WithField("component", "clipring")
	}
	logger = logger.WithField("session", id)

	maxRecord := cfg.MaxRecord()
	if o.maxRecord != nil {
		maxRecord = *o.maxRecord
	}
	aux := o.aux
	if aux == nil {
		aux = ledger.NopAux{}
	}

	s := &Session{
		id:               id,
		logger:           logger,
		now:              o.now,
		enc:              enc,
		st:               st,
		ledger:           ledger.New(st, aux),
		aux:              aux,
		pts:              o.ptsSource,
		encPTS:           o.encoderPTS,
		outputDir:        cfg.OutputDir,
		maxRecord:        maxRecord,
		writerFactory:    o.writerFactory,
		statusFunc:       o.statusFunc,
		saveCompleteFunc: o.saveCompleteFunc,
		msgs:             make(chan message, msgQueueSize),
		quit:             make(chan struct{}),
		stopped:          make(chan struct{}),
	}
	if s.pts == nil && !s.encPTS {
		s.takeClock = clock.New(clock.WithFrameInterval(cfg.FrameInterval()))
	}
	s.takeStartMs.Store(-1)

	metrics.Register(nil)
	logger.WithFields(logrus.Fields{
		"arena":  st.Capacity(),
		"slots":  st.Slots(),
		"policy": policy,
	}).Info("session opened")

	go s.loop()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// FrameAvailableSoon tells the session a frame went into the encoder. It
// never blocks. It returns false once the session is closed or the recording
// limit is reached; the caller should stop feeding frames then.
func (s *Session) FrameAvailableSoon() bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	if s.limitReached() {
		return false
	}
	select {
	case s.msgs <- message{kind: msgDrain}:
	default:
		// the queued drain will pick this frame up too
	}
	return true
}

// BeginTake starts a take at the current end of the buffer.
func (s *Session) BeginTake() error {
	return s.call(message{kind: msgBeginTake}).err
}

// EndTake closes the current take.
func (s *Session) EndTake() error {
	return s.call(message{kind: msgEndTake}).err
}

// RemoveLastTake drops the newest take from the buffer.
func (s *Session) RemoveLastTake() error {
	return s.call(message{kind: msgRemoveLastTake}).err
}

// TotalRecorded sums the finished takes.
func (s *Session) TotalRecorded() time.Duration {
	return time.Duration(s.recordedMs.Load()) * time.Millisecond
}

// Exporting reports whether an export is queued or running.
func (s *Session) Exporting() bool {
	return s.exporting.Load()
}

func (s *Session) Takes() ([]model.Take, error) {
	r := s.call(message{kind: msgTakes})
	return r.takes, r.err
}

func (s *Session) Stats() (Stats, error) {
	r := s.call(message{kind: msgStats})
	return r.stats, r.err
}

// SaveVideo exports the whole buffer, starting at the oldest sync frame.
// It is asynchronous; an empty path picks a fresh file in the output dir.
func (s *Session) SaveVideo(ctx context.Context, path string) <-chan ExportResult {
	return s.save(ctx, path, 0)
}

// SaveLast exports roughly the newest d of the buffer, starting at a sync
// frame at or before that point.
func (s *Session) SaveLast(ctx context.Context, path string, d time.Duration) <-chan ExportResult {
	return s.save(ctx, path, d)
}

// Export is SaveVideo that waits for the result.
func (s *Session) Export(ctx context.Context, path string) ExportResult {
	return <-s.SaveVideo(ctx, path)
}

func (s *Session) save(ctx context.Context, path string, last time.Duration) <-chan ExportResult {
	done := make(chan ExportResult, 1)
	if !s.exporting.CompareAndSwap(false, true) {
		done <- ExportResult{Status: StatusRejected, Path: path, Err: ErrExportInProgress}
		return done
	}
	go func() {
		r := s.call(message{kind: msgExport, ctx: ctx, path: path, last: last})
		if r.err != nil {
			s.exporting.Store(false)
			done <- ExportResult{Status: StatusRejected, Path: path, Err: r.err}
			return
		}
		done <- r.export
	}()
	return done
}

// Close stops the session goroutine and releases the encoder. Queued
// requests fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.stopped
		s.closeErr = s.enc.Close()
		metrics.Export()
		metrics.Forget(s.id)
		s.logger.Info("session closed")
	})
	return s.closeErr
}

func (s *Session) call(m message) reply {
	m.reply = make(chan reply, 1)
	select {
	case s.msgs <- m:
	case <-s.quit:
		return reply{err: ErrSessionClosed}
	}
	select {
	case r := <-m.reply:
		return r
	case <-s.stopped:
		select {
		case r := <-m.reply:
			return r
		default:
			return reply{err: ErrSessionClosed}
		}
	}
}

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			return
		case m := <-s.msgs:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m message) {
	var r reply
	switch m.kind {
	case msgDrain:
		s.drain()
		return
	case msgBeginTake:
		r.err = s.beginTake()
	case msgEndTake:
		r.err = s.endTake()
	case msgRemoveLastTake:
		r.err = s.removeLastTake()
	case msgExport:
		r.export = s.export(m.ctx, m.path, m.last)
	case msgTakes:
		r.takes = s.ledger.Takes()
	case msgStats:
		r.stats = s.stats()
	}
	m.reply <- r
}

func (s *Session) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *Session) beginTake() error {
	// frames already in the encoder belong before the take
	s.drain()
	now := s.nowMs()
	if err := s.ledger.BeginTake(now); err != nil {
		return err
	}
	if s.takeClock != nil {
		s.takeClock.Resume()
	}
	s.takeStartMs.Store(now)
	s.logger.WithField("take", s.ledger.Len()).Debug("take started")
	return nil
}

func (s *Session) endTake() error {
	s.drain()
	if err := s.ledger.EndTake(s.nowMs(), s.aux.Len()); err != nil {
		return err
	}
	if s.takeClock != nil {
		s.takeClock.Pause()
	}
	s.takeStartMs.Store(-1)
	s.recordedMs.Store(s.ledger.TotalRecordedMs())

	take, _ := s.ledger.Last()
	s.logger.WithFields(logrus.Fields{
		"take":    s.ledger.Len(),
		"packets": take.Packets(),
		"ms":      take.DurationMs(),
	}).Debug("take finished")
	return nil
}

func (s *Session) removeLastTake() error {
	n := s.ledger.Len()
	if err := s.ledger.RemoveLastTake(); err != nil {
		return err
	}
	s.recordedMs.Store(s.ledger.TotalRecordedMs())
	if s.takeClock != nil {
		if newest, ok := s.st.Newest(); ok {
			s.takeClock.RewindTo(newest.TimestampUsec)
		} else {
			s.takeClock.Reset()
		}
	}
	s.logger.WithField("take", n).Info("take removed")
	return nil
}

func (s *Session) export(ctx context.Context, path string, last time.Duration) ExportResult {
	defer s.exporting.Store(false)
	if ctx == nil {
		ctx = context.Background()
	}
	if path == "" {
		path = filepath.Join(s.outputDir, uuid.NewString()+model.SampleFileSuffix)
	}

	s.drain()
	logger := s.logger.WithField("path", path)
	op := &exportOperation{
		st:     s.st,
		format: s.format,
		writer: s.writerFactory,
		path:   path,
		last:   last,
		logger: logger,
	}
	res := op.run(ctx)

	metrics.ExportFinished(s.id, res.Status.String(), res.Bytes)
	entry := logger.WithField("status", res.Status)
	if res.Err != nil {
		entry.WithError(res.Err).Warn("save video failed")
	} else {
		entry.WithFields(logrus.Fields{
			"packets": res.Packets,
			"span":    res.Span,
		}).Info("video saved")
	}
	if s.saveCompleteFunc != nil {
		s.saveCompleteFunc(res)
	}
	return res
}

func (s *Session) stats() Stats {
	return Stats{
		Packets:      s.st.Len(),
		UsedBytes:    s.st.Used(),
		Capacity:     s.st.Capacity(),
		BufferedSpan: time.Duration(s.st.BufferedSpanUsec()) * time.Microsecond,
		SyncFrames:   s.st.SyncFrames(),
		Dropped:      s.dropped,
		Evicted:      s.st.Evicted(),
		Takes:        s.ledger.Len(),
		Recording:    s.ledger.Recording(),
	}
}

func (s *Session) limitReached() bool {
	if s.maxRecord <= 0 {
		return false
	}
	recorded := s.recordedMs.Load()
	if start := s.takeStartMs.Load(); start >= 0 {
		recorded += s.nowMs() - start
	}
	return time.Duration(recorded)*time.Millisecond >= s.maxRecord
}
