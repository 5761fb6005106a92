//go:build !cgo

package demux

import (
	"errors"

	"github.com/spf13/afero"

	"wmadec.click/internal/audio"
)

var errCGORequired = errors.New("ASF demuxing requires CGO and the libavformat development libraries")

// Demuxer is unavailable without cgo
type Demuxer struct{}

func Open(fs afero.Fs, path string) (*Demuxer, error) {
	return nil, errCGORequired
}

func (d *Demuxer) Descriptor() *audio.Descriptor {
	return nil
}

func (d *Demuxer) Next() ([]byte, error) {
	return nil, errCGORequired
}

func (d *Demuxer) Close() error {
	return nil
}
