package audio

import (
	"fmt"
	"log/slog"
)

// OutputFormatSwitcher remembers the last format announced to a sink and
// only re-announces when rate or channel count change
type OutputFormatSwitcher struct {
	last      OutputFormat
	announced bool
}

// NewOutputFormatSwitcher creates a switcher with no prior announcement
func NewOutputFormatSwitcher() *OutputFormatSwitcher {
	return &OutputFormatSwitcher{}
}

// Last returns the last announced format and whether one exists
func (s *OutputFormatSwitcher) Last() (OutputFormat, bool) {
	return s.last, s.announced
}

// NeedsAnnouncement reports whether Ensure would call the sink
func (s *OutputFormatSwitcher) NeedsAnnouncement(sink Sink, sampleRate, channels int) bool {
	if !s.announced || !sink.HasCurrentFormat() {
		return true
	}
	return s.last.SampleRate != sampleRate || s.last.Channels != channels
}

// Ensure announces the S16 interleaved format for sampleRate/channels if it
// differs from what the sink last accepted. It reports whether an
// announcement was made.
func (s *OutputFormatSwitcher) Ensure(sink Sink, sampleRate, channels int) (bool, error) {
	if !s.NeedsAnnouncement(sink, sampleRate, channels) {
		return false, nil
	}

	format := NewS16Format(sampleRate, channels)
	slog.Debug("announcing output format",
		"format", format.String(),
		"previous_rate", s.last.SampleRate,
		"previous_channels", s.last.Channels)

	if err := sink.SetOutputFormat(format); err != nil {
		slog.Error("sink rejected output format", "format", format.String(), "error", err)
		return false, fmt.Errorf("%w: %s: %w", ErrOutputNegotiationFailed, format, err)
	}

	s.last = format
	s.announced = true

	slog.Info("output format announced",
		"sample_rate", sampleRate,
		"channels", channels)
	return true, nil
}

// Reset forgets the last announcement
func (s *OutputFormatSwitcher) Reset() {
	s.last = OutputFormat{}
	s.announced = false
}
