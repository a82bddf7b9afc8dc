package container

import (
	"io"

	"github.com/cqkv/clipring/codec"
	"github.com/cqkv/clipring/fio"
	"github.com/cqkv/clipring/model"
	"github.com/pkg/errors"
)

// Reader walks the samples of a file produced by FileWriter.
type Reader struct {
	file   *model.SampleFile
	codec  codec.Codec
	size   int64
	offset int64

	Format model.Format
}

func OpenReader(path string, opts ...Option) (*Reader, error) {
	o := defaultOptions
	for _, opt := range opts {
		opt(&o)
	}

	ioManager, err := fio.OpenFileIO(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		file:  model.OpenSampleFile(path, ioManager),
		codec: o.codec,
	}
	if err = r.readPreamble(); err != nil {
		_ = ioManager.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readPreamble() error {
	size, err := r.file.Size()
	if err != nil {
		return err
	}
	r.size = size
	if size < int64(codec.PreambleSize()) {
		return errors.Wrap(io.ErrUnexpectedEOF, "read preamble")
	}

	fixed, err := r.file.ReadAt(0, int64(codec.PreambleSize()))
	if err != nil {
		return errors.Wrap(err, "read preamble")
	}
	blockSize, err := codec.PreambleBlockSize(fixed)
	if err != nil {
		return err
	}
	total := int64(codec.PreambleSize() + blockSize)
	if total > size {
		return errors.Wrap(io.ErrUnexpectedEOF, "read format block")
	}
	data, err := r.file.ReadAt(0, total)
	if err != nil {
		return errors.Wrap(err, "read format block")
	}
	n, err := r.codec.UnmarshalFormat(data, &r.Format)
	if err != nil {
		return err
	}
	r.offset = n
	return nil
}

// Next returns the next sample, or io.EOF after the last one.
func (r *Reader) Next() (*model.Sample, model.SamplePos, error) {
	pos := model.SamplePos{Offset: r.offset}
	if r.offset >= r.size {
		return nil, pos, io.EOF
	}

	headerData, err := r.file.ReadSampleHeader(r.offset)
	if err != nil {
		return nil, pos, err
	}
	sample := &model.Sample{}
	headerSize, err := r.codec.UnmarshalSampleHeader(headerData, &sample.SampleHeader)
	if err != nil {
		return nil, pos, errors.Wrapf(ErrCorrupted, "header at offset %d", r.offset)
	}
	if sample.Size < 0 || r.offset+headerSize+sample.Size > r.size {
		return nil, pos, errors.Wrapf(ErrCorrupted, "sample at offset %d overruns the file", r.offset)
	}

	sample.Data, err = r.file.ReadAt(r.offset+headerSize, sample.Size)
	if err != nil {
		return nil, pos, err
	}
	if codec.SampleCrc(headerData[:headerSize], sample.Data) != sample.Crc {
		return nil, pos, errors.Wrapf(ErrCorrupted, "crc mismatch at offset %d", r.offset)
	}

	pos.Size = headerSize + sample.Size
	r.offset += pos.Size
	return sample, pos, nil
}

// ReadAll returns every remaining sample.
func (r *Reader) ReadAll() ([]*model.Sample, error) {
	var samples []*model.Sample
	for {
		sample, _, err := r.Next()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
}

func (r *Reader) Close() error {
	return r.file.Close()
}
