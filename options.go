package clipring

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cqkv/clipring/clock"
	"github.com/cqkv/clipring/container"
	"github.com/cqkv/clipring/keydir"
	"github.com/cqkv/clipring/ledger"
	"github.com/cqkv/clipring/store"
)

type options struct {
	config    Config
	policy    *store.OverflowPolicy
	maxRecord *time.Duration

	logger    *logrus.Entry
	sessionID string
	now       func() time.Time

	writerFactory func() container.Writer
	ptsSource     clock.Source
	encoderPTS    bool
	aux           ledger.AuxTrack
	syncDir       keydir.Keydir

	statusFunc       func(spanUsec int64)
	saveCompleteFunc func(ExportResult)
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		config: DefaultConfig(),
		now:    time.Now,
		writerFactory: func() container.Writer {
			return container.NewFileWriter()
		},
	}
}

// WithConfig replaces the default sizing.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithOverflowPolicy overrides the policy named in the config.
func WithOverflowPolicy(p store.OverflowPolicy) Option {
	return func(o *options) {
		o.policy = &p
	}
}

// WithMaxRecordDuration caps the total recorded time; zero disables the cap.
func WithMaxRecordDuration(d time.Duration) Option {
	return func(o *options) {
		o.maxRecord = &d
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithSessionID(id string) Option {
	return func(o *options) {
		o.sessionID = id
	}
}

// WithNow replaces the wall clock used for take bounds and the record limit.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithWriterFactory(fn func() container.Writer) Option {
	return func(o *options) {
		o.writerFactory = fn
	}
}

// WithPTSSource stamps packets with src, read when each packet is drained,
// instead of the encoder timestamps mapped through the take clock.
func WithPTSSource(src clock.Source) Option {
	return func(o *options) {
		o.ptsSource = src
	}
}

// WithEncoderTimestamps keeps the encoder's presentation times as they are,
// pauses between takes included.
func WithEncoderTimestamps() Option {
	return func(o *options) {
		o.encoderPTS = true
	}
}

// WithAux registers the track recorded alongside video, so removing a take
// trims both.
func WithAux(aux ledger.AuxTrack) Option {
	return func(o *options) {
		o.aux = aux
	}
}

func WithKeydir(kd keydir.Keydir) Option {
	return func(o *options) {
		o.syncDir = kd
	}
}

// WithStatusFunc is called from the session goroutine every few frames with
// the buffered span.
func WithStatusFunc(fn func(spanUsec int64)) Option {
	return func(o *options) {
		o.statusFunc = fn
	}
}

// WithSaveCompleteFunc is called from the session goroutine after each export.
func WithSaveCompleteFunc(fn func(ExportResult)) Option {
	return func(o *options) {
		o.saveCompleteFunc = fn
	}
}
