//go:build cgo

package sink

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/malgo"

	"wmadec.click/internal/audio"
)

// drainPoll is how often Close and a full queue re-check the device
const drainPoll = 5 * time.Millisecond

// DeviceSink plays PCM on the default output device through miniaudio.
// The device is reopened whenever the announced format changes.
type DeviceSink struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	queue  *pcmQueue
	format audio.OutputFormat
	active bool
	closed bool
	volume float32
}

func NewDeviceSink(volume float32) (*DeviceSink, error) {
	slog.Debug("initializing playback context")
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &DeviceSink{ctx: ctx, volume: volume}, nil
}

func (s *DeviceSink) SetOutputFormat(format audio.OutputFormat) error {
	if s.closed {
		return ErrClosed
	}
	if format.Format != malgo.FormatS16 || format.Layout != audio.LayoutInterleaved {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if s.active && s.format == format {
		return nil
	}

	if s.device != nil {
		slog.Info("output format changed, reopening device", "from", s.format.String(), "to", format.String())
		s.drain()
		s.closeDevice()
	}

	// 500ms of audio
	s.queue = newPCMQueue(format.SampleRate * format.FrameBytes() / 2)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format.Format
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	queue := s.queue
	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		queue.pull(pOutputSample)
	}

	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		s.active = false
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		s.active = false
		return fmt.Errorf("failed to start playback: %w", err)
	}

	s.device = device
	s.format = format
	s.active = true
	slog.Info("playback device started", "format", format.String())
	return nil
}

func (s *DeviceSink) HasCurrentFormat() bool {
	return s.active && !s.closed
}

// FinishFrame queues PCM, waiting while the device catches up
func (s *DeviceSink) FinishFrame(pcm []byte) error {
	if s.closed {
		return ErrClosed
	}
	if !s.active {
		return ErrNoFormat
	}

	applyVolume(pcm, s.volume)
	for len(pcm) > 0 {
		n := s.queue.push(pcm)
		pcm = pcm[n:]
		if n == 0 {
			time.Sleep(drainPoll)
		}
	}
	return nil
}

func (s *DeviceSink) drain() {
	for s.queue != nil && s.queue.buffered() > 0 {
		time.Sleep(drainPoll)
	}
}

func (s *DeviceSink) closeDevice() {
	if s.device == nil {
		return
	}
	if err := s.device.Stop(); err != nil {
		slog.Warn("failed to stop playback device", "error", err)
	}
	s.device.Uninit()
	s.device = nil
	s.active = false
}

// Close plays out queued audio and releases the device
func (s *DeviceSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.drain()
	s.closeDevice()

	if err := s.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to uninitialize malgo context: %w", err)
	}
	s.ctx.Free()
	slog.Debug("playback context closed")
	return nil
}
