package codec

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/cqkv/clipring/model"
	"github.com/cqkv/clipring/utils"
)

var (
	ErrBadMagic     = errors.New("clipring err: not a clipring file")
	ErrBadVersion   = errors.New("clipring err: unsupported file version")
	ErrCorruptBlock = errors.New("clipring err: format block may be corrupted")
)

var magic = [4]byte{'C', 'L', 'P', 'R'}

const (
	version = 1

	// magic(4) + version(1) + block size(4) + crc(4)
	preambleSize = 13
)

var _ Codec = (*CodecImpl)(nil)

type CodecImpl struct{}

func NewCodecImpl() *CodecImpl {
	return &CodecImpl{}
}

/*
default codec:
	- sample header: crc(4) + track(1) + flags(uvarint) + timestamp(varint) + size(uvarint)
	  crc covers the header bytes after it and the payload
	- file preamble: magic(4) + version(1) + block size(4) + crc(4) + format block
	  format block: mime | width | height | frame rate | bit rate | csd count | csd...
	  strings and csd buffers are uvarint length prefixed
*/

// MarshalSampleHeader return header data and data size, crc is left to the caller
func (cl *CodecImpl) MarshalSampleHeader(header *model.SampleHeader) ([]byte, int64, error) {
	data := make([]byte, model.MaxSampleHeaderSize)

	binary.BigEndian.PutUint32(data[:4], header.Crc)
	data[4] = header.TrackID

	idx := 5
	idx += binary.PutUvarint(data[idx:], uint64(header.Flags))
	idx += binary.PutVarint(data[idx:], header.TimestampUsec)
	idx += binary.PutUvarint(data[idx:], uint64(header.Size))

	return data[:idx], int64(idx), nil
}

func (cl *CodecImpl) UnmarshalSampleHeader(headerData []byte, header *model.SampleHeader) (int64, error) {
	if len(headerData) < 5 {
		return 0, io.EOF
	}

	header.Crc = binary.BigEndian.Uint32(headerData[:4])
	header.TrackID = headerData[4]

	idx := 5
	flags, n := binary.Uvarint(headerData[idx:])
	if n <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	idx += n

	ts, n := binary.Varint(headerData[idx:])
	if n <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	idx += n

	size, n := binary.Uvarint(headerData[idx:])
	if n <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	idx += n

	header.Flags = model.Flags(flags)
	header.TimestampUsec = ts
	header.Size = int64(size)

	return int64(idx), nil
}

// SampleCrc is the checksum stored in a sample header. header must be the
// marshaled header, the crc field itself is skipped.
func SampleCrc(header, payload []byte) uint32 {
	return utils.GenerateCrc(header[4:], payload)
}

func (cl *CodecImpl) MarshalFormat(format *model.Format) ([]byte, error) {
	block := make([]byte, 0, 64)
	block = appendBytes(block, []byte(format.MimeType))
	block = binary.AppendUvarint(block, uint64(format.Width))
	block = binary.AppendUvarint(block, uint64(format.Height))
	block = binary.AppendUvarint(block, uint64(format.FrameRate))
	block = binary.AppendUvarint(block, uint64(format.BitRate))
	block = binary.AppendUvarint(block, uint64(len(format.CodecData)))
	for _, csd := range format.CodecData {
		block = appendBytes(block, csd)
	}

	data := make([]byte, preambleSize, preambleSize+len(block))
	copy(data[:4], magic[:])
	data[4] = version
	binary.BigEndian.PutUint32(data[5:9], uint32(len(block)))
	binary.BigEndian.PutUint32(data[9:13], utils.GenerateCrc(block))
	return append(data, block...), nil
}

func (cl *CodecImpl) UnmarshalFormat(data []byte, format *model.Format) (int64, error) {
	if len(data) < preambleSize {
		return 0, io.ErrUnexpectedEOF
	}
	if [4]byte(data[:4]) != magic {
		return 0, ErrBadMagic
	}
	if data[4] != version {
		return 0, ErrBadVersion
	}
	blockSize := int(binary.BigEndian.Uint32(data[5:9]))
	crc := binary.BigEndian.Uint32(data[9:13])
	if len(data) < preambleSize+blockSize {
		return 0, io.ErrUnexpectedEOF
	}
	block := data[preambleSize : preambleSize+blockSize]
	if !utils.CheckCrc(crc, block) {
		return 0, ErrCorruptBlock
	}

	r := &blockReader{buf: block}
	format.MimeType = string(r.bytes())
	format.Width = int(r.uvarint())
	format.Height = int(r.uvarint())
	format.FrameRate = int(r.uvarint())
	format.BitRate = int(r.uvarint())
	count := r.uvarint()
	format.CodecData = nil
	for i := uint64(0); i < count && r.err == nil; i++ {
		format.CodecData = append(format.CodecData, append([]byte(nil), r.bytes()...))
	}
	if r.err != nil {
		return 0, ErrCorruptBlock
	}

	return int64(preambleSize + blockSize), nil
}

// PreambleSize returns how many bytes must be read to learn the full
// preamble length.
func PreambleSize() int {
	return preambleSize
}

// PreambleBlockSize reads the block size out of the fixed part of the preamble.
func PreambleBlockSize(fixed []byte) (int, error) {
	if len(fixed) < preambleSize {
		return 0, io.ErrUnexpectedEOF
	}
	if [4]byte(fixed[:4]) != magic {
		return 0, ErrBadMagic
	}
	return int(binary.BigEndian.Uint32(fixed[5:9])), nil
}

func appendBytes(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

type blockReader struct {
	buf []byte
	err error
}

func (r *blockReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.err = io.ErrUnexpectedEOF
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *blockReader) bytes() []byte {
	n := r.uvarint()
	if r.err != nil {
		return nil
	}
	if uint64(len(r.buf)) < n {
		r.err = io.ErrUnexpectedEOF
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}
