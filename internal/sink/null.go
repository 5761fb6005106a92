package sink

import "wmadec.click/internal/audio"

// NullSink discards audio while counting it
type NullSink struct {
	format  audio.OutputFormat
	active  bool
	Frames  int
	Empty   int
	Bytes   int64
	Formats int
}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (s *NullSink) SetOutputFormat(format audio.OutputFormat) error {
	s.format = format
	s.active = true
	s.Formats++
	return nil
}

func (s *NullSink) HasCurrentFormat() bool {
	return s.active
}

func (s *NullSink) FinishFrame(pcm []byte) error {
	if pcm == nil {
		s.Empty++
		return nil
	}
	s.Frames++
	s.Bytes += int64(len(pcm))
	return nil
}

func (s *NullSink) Close() error {
	s.active = false
	return nil
}
