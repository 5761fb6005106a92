//go:build !cgo

package sink

import (
	"errors"

	"wmadec.click/internal/audio"
)

var errCGORequired = errors.New("device playback requires CGO support")

// DeviceSink is unavailable without cgo
type DeviceSink struct{}

func NewDeviceSink(volume float32) (*DeviceSink, error) {
	return nil, errCGORequired
}

func (s *DeviceSink) SetOutputFormat(format audio.OutputFormat) error { return errCGORequired }
func (s *DeviceSink) HasCurrentFormat() bool                        { return false }
func (s *DeviceSink) FinishFrame(pcm []byte) error                  { return errCGORequired }
func (s *DeviceSink) Close() error                                  { return nil }
