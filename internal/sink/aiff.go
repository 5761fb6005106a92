package sink

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"wmadec.click/internal/audio"
)

// WriteSeekCloser is what the AIFF encoder needs to patch its header
type WriteSeekCloser interface {
	io.WriteSeeker
	io.Closer
}

// AiffSink streams PCM into an AIFF file through the go-audio encoder
type AiffSink struct {
	fixedFormat
	w   WriteSeekCloser
	enc *aiff.Encoder
	buf *goaudio.IntBuffer
}

func NewAiffSink(w WriteSeekCloser) *AiffSink {
	return &AiffSink{w: w}
}

func (s *AiffSink) SetOutputFormat(format audio.OutputFormat) error {
	if err := s.set(format); err != nil {
		return err
	}
	if s.enc == nil {
		s.enc = aiff.NewEncoder(s.w, format.SampleRate, 16, format.Channels)
		s.buf = &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: 16,
		}
		slog.Debug("aiff encoder created", "sample_rate", format.SampleRate, "channels", format.Channels)
	}
	return nil
}

func (s *AiffSink) FinishFrame(pcm []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}

	s.buf.Data = s16ToInts(s.buf.Data[:0], pcm)
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("failed to encode aiff frame: %w", err)
	}
	return nil
}

func (s *AiffSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.w.Close()

	if s.enc == nil {
		slog.Warn("closing aiff sink without audio")
		return nil
	}
	if err := s.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize aiff file: %w", err)
	}

	slog.Info("aiff file written", "sample_rate", s.format.SampleRate, "channels", s.format.Channels)
	return nil
}
