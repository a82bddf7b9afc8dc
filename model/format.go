package model

const MimeTypeAVC = "video/avc"

// Format is the track description captured from the encoder's format-changed
// event. CodecData holds the codec specific buffers (csd-0, csd-1, ...).
type Format struct {
	MimeType  string
	Width     int
	Height    int
	FrameRate int
	BitRate   int
	CodecData [][]byte
}

func (f *Format) IsZero() bool {
	return f == nil || f.MimeType == ""
}

func (f *Format) Clone() *Format {
	if f == nil {
		return nil
	}
	c := *f
	c.CodecData = make([][]byte, len(f.CodecData))
	for i, csd := range f.CodecData {
		c.CodecData[i] = append([]byte(nil), csd...)
	}
	return &c
}
