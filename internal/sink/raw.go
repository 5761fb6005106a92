package sink

import (
	"fmt"
	"io"

	"golang.org/x/term"

	"wmadec.click/internal/audio"
)

// RawSink writes headerless PCM to a stream
type RawSink struct {
	fixedFormat
	w       io.Writer
	written int64
}

// NewRawSink refuses interactive terminals so PCM never lands on a tty
func NewRawSink(w io.Writer) (*RawSink, error) {
	if isTerminal(w) {
		return nil, ErrTerminalOutput
	}
	return &RawSink{w: w}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetOutputFormat accepts format changes; the stream carries no header
func (s *RawSink) SetOutputFormat(format audio.OutputFormat) error {
	if s.closed {
		return ErrClosed
	}
	s.active = false
	return s.set(format)
}

func (s *RawSink) FinishFrame(pcm []byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	n, err := s.w.Write(pcm)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write pcm: %w", err)
	}
	return nil
}

// Written reports PCM bytes delivered
func (s *RawSink) Written() int64 {
	return s.written
}

func (s *RawSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
