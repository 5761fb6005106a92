package audio

import (
	"fmt"
	"log/slog"
	"strings"
)

// SetFormat negotiates the input configuration: it validates the descriptor,
// populates the decode context and initializes the engine exactly once.
// Calling SetFormat again on a negotiated stream releases the previous
// engine state first, so at most one engine state is ever live. Any failed
// SetFormat leaves the session unnegotiated.
func (s *Session) SetFormat(d *Descriptor) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	if err := ValidateDescriptor(d); err != nil {
		return s.failNegotiation(err)
	}

	slog.Debug("negotiating input format", "session_id", s.id, "caps", d.String())

	version, _ := d.Int(FieldVersion)
	bitRate, _ := d.Int(FieldBitRate)
	sampleRate, _ := d.Int(FieldSampleRate)
	channels, _ := d.Int(FieldChannels)
	blockAlign, _ := d.Int(FieldBlockAlign)

	if s.dc.Initialized() {
		slog.Info("renegotiating stream, releasing previous engine state", "session_id", s.id)
		s.negotiated = false
		if err := s.dc.releaseEngine(); err != nil {
			return s.failNegotiation(err)
		}
	}

	s.dc.Variant = VariantForVersion(version)
	s.dc.SampleRate = sampleRate
	s.dc.Channels = channels
	s.dc.BitRate = bitRate
	s.dc.BlockAlign = blockAlign

	codecData, _ := d.CodecData()
	s.dc.setExtraData(codecData)

	slog.Debug("decode context populated",
		"session_id", s.id,
		"variant", s.dc.Variant.String(),
		"sample_rate", sampleRate,
		"channels", channels,
		"bit_rate", bitRate,
		"block_align", blockAlign,
		"extradata_size", len(s.dc.extraData))

	state, err := s.engine.Init(s.dc)
	if err != nil {
		return s.failNegotiation(fmt.Errorf("%w: %s: %w", ErrDecodeEngineInitFailed, s.engine.Name(), err))
	}
	if state == nil {
		return s.failNegotiation(fmt.Errorf("%w: %s returned no state", ErrDecodeEngineInitFailed, s.engine.Name()))
	}
	s.dc.state = state

	s.pendingRate = sampleRate
	s.pendingChannels = channels
	s.negotiated = true
	s.stats.Negotiations++

	slog.Info("engine initialized",
		"session_id", s.id,
		"engine", s.engine.Name(),
		"variant", s.dc.Variant.String(),
		"sample_rate", sampleRate,
		"channels", channels)

	s.emit(Event{
		Kind:    EventNegotiated,
		Format:  NewS16Format(sampleRate, channels),
		Variant: s.dc.Variant,
	})
	return nil
}

// ValidateDescriptor reports whether d could be negotiated: every mandatory
// field present and every value inside the accepted ranges. No engine is
// involved.
func ValidateDescriptor(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("%w: no descriptor", ErrConfigurationIncomplete)
	}
	if missing := d.MissingFields(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfigurationIncomplete, strings.Join(missing, ", "))
	}

	version, _ := d.Int(FieldVersion)
	sampleRate, _ := d.Int(FieldSampleRate)
	channels, _ := d.Int(FieldChannels)
	return validateTemplate(version, sampleRate, channels)
}

// validateTemplate checks the values accepted on the input side
func validateTemplate(version, sampleRate, channels int) error {
	var problems []string

	if version < 1 || version > 2 {
		problems = append(problems, fmt.Sprintf("version %d not in [1, 2]", version))
	}
	if !IsSupportedSampleRate(sampleRate) {
		problems = append(problems, fmt.Sprintf("sample rate %d not supported", sampleRate))
	}
	if channels < MinChannels || channels > MaxChannels {
		problems = append(problems, fmt.Sprintf("channel count %d not in [%d, %d]", channels, MinChannels, MaxChannels))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (s *Session) failNegotiation(err error) error {
	s.negotiated = false
	slog.Error("format negotiation failed", "session_id", s.id, "error", err)
	s.emit(Event{Kind: EventNegotiationFailed, Err: err})
	return err
}
