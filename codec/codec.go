package codec

import "github.com/cqkv/clipring/model"

type Codec interface {
	// MarshalSampleHeader return header data and data size
	MarshalSampleHeader(*model.SampleHeader) ([]byte, int64, error)

	UnmarshalSampleHeader([]byte, *model.SampleHeader) (int64, error)

	// MarshalFormat return the file preamble describing the track
	MarshalFormat(*model.Format) ([]byte, error)

	// UnmarshalFormat return the preamble size
	UnmarshalFormat([]byte, *model.Format) (int64, error)
}
