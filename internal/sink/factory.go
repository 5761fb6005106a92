package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// Sink kinds selectable from configuration
const (
	KindWav    = "wav"
	KindAiff   = "aiff"
	KindRaw    = "raw"
	KindDevice = "device"
	KindNull   = "null"
)

// Kinds lists every sink the factory can build
func Kinds() []string {
	return []string{KindWav, KindAiff, KindRaw, KindDevice, KindNull}
}

// Factory builds sinks over a filesystem so tests can use memory files
type Factory struct {
	fs     afero.Fs
	stdout io.Writer
	volume float32
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithStdout sets the stream used by raw sinks with no path
func WithStdout(w io.Writer) FactoryOption {
	return func(f *Factory) {
		f.stdout = w
	}
}

// WithVolume sets the device sink volume
func WithVolume(volume float32) FactoryOption {
	return func(f *Factory) {
		f.volume = volume
	}
}

func NewFactory(fs afero.Fs, opts ...FactoryOption) *Factory {
	f := &Factory{fs: fs, stdout: os.Stdout, volume: 1.0}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New creates a sink of the given kind. File sinks write to path; a raw
// sink writes to stdout when path is empty or "-".
func (f *Factory) New(kind, path string) (Sink, error) {
	slog.Debug("creating sink", "kind", kind, "path", path)

	switch strings.ToLower(kind) {
	case KindWav:
		file, err := f.create(path)
		if err != nil {
			return nil, err
		}
		return NewWavSink(file), nil

	case KindAiff:
		file, err := f.create(path)
		if err != nil {
			return nil, err
		}
		return NewAiffSink(file), nil

	case KindRaw:
		if path == "" || path == "-" {
			return NewRawSink(nopCloser{f.stdout})
		}
		file, err := f.create(path)
		if err != nil {
			return nil, err
		}
		return NewRawSink(file)

	case KindDevice:
		return NewDeviceSink(f.volume)

	case KindNull:
		return NewNullSink(), nil

	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownSink, kind, strings.Join(Kinds(), ", "))
	}
}

func (f *Factory) create(path string) (afero.File, error) {
	if path == "" || path == "-" {
		return nil, ErrPathRequired
	}
	file, err := f.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}

// nopCloser keeps stdout open when a raw sink closes, and keeps its Fd
// visible to the terminal check
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func (n nopCloser) Fd() uintptr {
	if f, ok := n.Writer.(interface{ Fd() uintptr }); ok {
		return f.Fd()
	}
	return ^uintptr(0)
}
