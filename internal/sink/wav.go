package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/youpy/go-wav"

	"wmadec.click/internal/audio"
)

var ErrWavTooLarge = errors.New("wav data would exceed 4 GiB")

// Offsets of the size fields in the canonical header go-wav writes
const (
	wavRiffSizeOffset = 4
	wavDataSizeOffset = 40
	wavHeaderSize     = 44
)

// WavSink streams PCM into a RIFF/WAVE file. The header is written with
// zero sizes when the format is announced and patched on Close.
type WavSink struct {
	fixedFormat
	w       WriteSeekCloser
	out     *countingWriter
	writer  *wav.Writer
	scratch []byte
}

func NewWavSink(w WriteSeekCloser) *WavSink {
	return &WavSink{w: w, out: &countingWriter{w: w}}
}

func (s *WavSink) SetOutputFormat(format audio.OutputFormat) error {
	if err := s.set(format); err != nil {
		return err
	}
	if s.writer == nil {
		s.writer = wav.NewWriter(s.out, 0, uint16(format.Channels), uint32(format.SampleRate), 16)
		if s.out.err != nil {
			return fmt.Errorf("failed to write wav header: %w", s.out.err)
		}
		slog.Debug("wav header written", "sample_rate", format.SampleRate, "channels", format.Channels)
	}
	return nil
}

func (s *WavSink) FinishFrame(pcm []byte) error {
	if err := s.ready(); err != nil {
		return err
	}

	whole := len(pcm) - len(pcm)%s.format.FrameBytes()
	if whole == 0 {
		return nil
	}
	if s.out.n-wavHeaderSize+int64(whole) > math.MaxUint32-(wavHeaderSize-8) {
		return ErrWavTooLarge
	}

	s.scratch = s16ToLittleEndian(s.scratch[:0], pcm[:whole])
	if _, err := s.writer.Write(s.scratch); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

func (s *WavSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.w.Close()

	if s.writer == nil {
		slog.Warn("closing wav sink without audio")
		return nil
	}

	dataBytes := uint32(s.out.n - wavHeaderSize)
	if err := patchUint32(s.w, wavRiffSizeOffset, dataBytes+wavHeaderSize-8); err != nil {
		return fmt.Errorf("failed to patch wav header: %w", err)
	}
	if err := patchUint32(s.w, wavDataSizeOffset, dataBytes); err != nil {
		return fmt.Errorf("failed to patch wav header: %w", err)
	}

	slog.Info("wav file written",
		"frames", int(dataBytes)/s.format.FrameBytes(),
		"sample_rate", s.format.SampleRate,
		"channels", s.format.Channels)
	return nil
}

func patchUint32(w io.WriteSeeker, offset int64, v uint32) error {
	if _, err := w.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return err
	}
	_, err := w.Seek(0, io.SeekEnd)
	return err
}

// countingWriter counts written bytes and keeps the first error, which the
// go-wav header writer drops
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
