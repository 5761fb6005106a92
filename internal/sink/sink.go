// Package sink provides downstream consumers for decoded PCM: files, raw
// streams and the playback device.
package sink

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"

	"wmadec.click/internal/audio"
)

var (
	ErrFormatChange      = errors.New("output format cannot change mid-stream")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrNoFormat          = errors.New("no output format announced")
	ErrClosed            = errors.New("sink is closed")
	ErrTerminalOutput    = errors.New("refusing to write raw PCM to a terminal")
	ErrUnknownSink       = errors.New("unknown sink")
	ErrPathRequired      = errors.New("output path required")
)

// Sink is an audio.Sink that must be closed to flush its output
type Sink interface {
	audio.Sink
	Close() error
}

// fixedFormat tracks the single format a container sink accepts
type fixedFormat struct {
	format audio.OutputFormat
	active bool
	closed bool
}

func (f *fixedFormat) set(format audio.OutputFormat) error {
	if f.closed {
		return ErrClosed
	}
	if format.Format != malgo.FormatS16 || format.Layout != audio.LayoutInterleaved {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if f.active && format != f.format {
		slog.Error("output format change rejected", "current", f.format.String(), "requested", format.String())
		return fmt.Errorf("%w: %s -> %s", ErrFormatChange, f.format, format)
	}
	f.format = format
	f.active = true
	return nil
}

func (f *fixedFormat) HasCurrentFormat() bool {
	return f.active && !f.closed
}

// ready reports whether a frame may be accepted
func (f *fixedFormat) ready() error {
	if f.closed {
		return ErrClosed
	}
	if !f.active {
		return ErrNoFormat
	}
	return nil
}

// Format returns the announced format, if any
func (f *fixedFormat) Format() (audio.OutputFormat, bool) {
	return f.format, f.active
}
