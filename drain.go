package clipring

import (
	"github.com/cqkv/clipring/encoder"
	"github.com/cqkv/clipring/metrics"
	"github.com/cqkv/clipring/model"
)

// report the buffered span every this many drained packets
const bufferStatusEvery = 10

// drain moves everything the encoder has ready into the store. Every buffer
// the encoder hands out is released exactly once, whether or not it fit.
func (s *Session) drain() {
	for {
		res, err := s.enc.Dequeue()
		if err != nil {
			s.logger.WithError(err).Error("dequeue encoder output")
			return
		}

		switch res.Kind {
		case encoder.ResultNoData:
			return
		case encoder.ResultFormatChanged:
			if s.format != nil {
				s.logger.Warn("encoder format changed twice")
			}
			s.format = res.Format.Clone()
			s.logger.WithField("mime", s.format.MimeType).Info("encoder output format")
		case encoder.ResultData:
			s.admit(res)
		case encoder.ResultEndOfStream:
			s.admit(res)
			s.logger.Warn("reached end of stream unexpectedly")
			return
		default:
			s.logger.Warnf("unexpected dequeue result %s", res.Kind)
		}
	}
}

func (s *Session) admit(res encoder.Result) {
	defer func() {
		if err := s.enc.Release(res.Index); err != nil {
			s.logger.WithError(err).Warnf("release buffer %d", res.Index)
		}
	}()

	// codec config goes in the container header, not the stream
	if res.Flags.IsCodecConfig() || len(res.Data) == 0 {
		return
	}
	defer s.packetDrained()
	if uint64(len(res.Data)) > uint64(s.st.Capacity()) {
		s.dropped++
		metrics.PacketDropped(s.id)
		s.logger.Warnf("packet of %d bytes is bigger than the buffer", len(res.Data))
		return
	}
	flags := res.Flags &^ (model.FlagCodecConfig | model.FlagEndOfStream)
	var ts int64
	switch {
	case s.pts != nil:
		ts = s.pts.PTSUsec()
	case s.encPTS:
		ts = res.PTSUsec
	default:
		ts = s.takeClock.Map(res.PTSUsec)
	}
	if !s.st.TryAppend(res.Data, flags, ts) {
		s.dropped++
		metrics.PacketDropped(s.id)
		s.logger.Debugf("buffer full, dropped %d bytes", len(res.Data))
		return
	}
	metrics.PacketAppended(s.id)
}

// packetDrained runs once per media packet taken from the encoder, whether
// or not the store kept it.
func (s *Session) packetDrained() {
	s.drained++
	if s.drained%bufferStatusEvery != 0 {
		return
	}
	span := s.st.BufferedSpanUsec()
	metrics.BufferStatus(s.id, span, s.st.Used())
	if s.statusFunc != nil {
		s.statusFunc(span)
	}
}
