// Package demux extracts WMA superframes and their stream descriptor from
// ASF containers.
package demux

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// MimeASF is the container type WMA streams are carried in
const MimeASF = "video/x-ms-asf"

var (
	ErrNotASF       = errors.New("input is not an ASF container")
	ErrNoAudio      = errors.New("no audio stream found")
	ErrNotWMA       = errors.New("audio stream is not WMA version 1 or 2")
	ErrDemuxerState = errors.New("demuxer is closed")
)

// Probe sniffs the file header and reports whether it is an ASF container
func Probe(fs afero.Fs, path string) (string, error) {
	slog.Debug("probing input", "path", path)

	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to detect input type: %w", err)
	}

	if !mtype.Is(MimeASF) {
		slog.Debug("input rejected", "path", path, "detected", mtype.String())
		return mtype.String(), fmt.Errorf("%w: detected %s", ErrNotASF, mtype.String())
	}

	slog.Debug("input is ASF", "path", path, "extension", mtype.Extension())
	return mtype.String(), nil
}
