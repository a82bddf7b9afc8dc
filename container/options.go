package container

import (
	"github.com/cqkv/clipring/codec"
	"github.com/cqkv/clipring/fio"
)

type options struct {
	ioManagerCreator func(path string) (fio.IOManager, error)
	codec            codec.Codec
	sync             bool
}

type Option func(*options)

var defaultIOManagerCreator = func(path string) (fio.IOManager, error) {
	return fio.NewFileIO(path)
}

var defaultOptions = options{
	ioManagerCreator: defaultIOManagerCreator,
	codec:            codec.NewCodecImpl(),
	sync:             true,
}

func WithIOManagerCreator(fn func(path string) (fio.IOManager, error)) Option {
	return func(o *options) {
		o.ioManagerCreator = fn
	}
}

func WithCodec(codec codec.Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// WithSync controls whether Finish fsyncs the file before closing it.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}
