package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// HandleFrame decodes one compressed superframe and delivers the result to
// the sink. A nil frame marks end of stream: nothing is drained from the
// engine and no output is produced.
//
// A frame the engine cannot decode is dropped and reported to observers;
// HandleFrame still returns nil so the stream continues. Errors returned are
// fatal for the call: the sink refused the output format or the frame.
func (s *Session) HandleFrame(frame []byte) error {
	if frame == nil {
		slog.Debug("end of stream, engine not drained", "session_id", s.id)
		s.emit(Event{Kind: EventEndOfStream})
		return nil
	}

	if err := s.checkRunning(); err != nil {
		return err
	}
	if !s.negotiated {
		return ErrNotNegotiated
	}

	index := s.stats.FramesIn
	s.stats.FramesIn++

	pcm, decodeErr := s.dc.state.DecodeSuperframe(frame)
	if pcm != nil {
		defer pcm.Release()
	}

	announced, err := s.switcher.Ensure(s.sink, s.pendingRate, s.pendingChannels)
	if err != nil {
		return err
	}
	if announced {
		s.stats.Announcements++
		format, _ := s.switcher.Last()
		s.emit(Event{Kind: EventFormatAnnounced, FrameIndex: index, Format: format})
	}

	if decodeErr == nil && (pcm == nil || len(pcm.Bytes()) == 0) {
		decodeErr = &StatusError{Status: 0}
	}
	if decodeErr != nil {
		return s.dropFrame(index, decodeErr)
	}

	data := pcm.Bytes()
	out := make([]byte, len(data))
	copy(out, data)

	if frameBytes := BytesPerSample * s.pendingChannels; len(out)%frameBytes != 0 {
		slog.Warn("decoded buffer is not a whole number of sample frames",
			"session_id", s.id,
			"frame_index", index,
			"bytes", len(out),
			"frame_bytes", frameBytes)
	}

	if err := s.sink.FinishFrame(out); err != nil {
		slog.Error("sink rejected decoded frame", "session_id", s.id, "frame_index", index, "error", err)
		return fmt.Errorf("failed to deliver frame %d: %w", index, err)
	}

	s.stats.FramesDecoded++
	s.stats.BytesOut += int64(len(out))
	s.emit(Event{Kind: EventFrameDecoded, FrameIndex: index, Bytes: len(out)})
	return nil
}

// dropFrame gives up on a frame: the sink is told the frame was consumed
// with no output and decoding continues with the next frame
func (s *Session) dropFrame(index int64, cause error) error {
	err := fmt.Errorf("%w: frame %d: %w", ErrFrameDecodeFailed, index, cause)

	status := 0
	var statusErr *StatusError
	if errors.As(cause, &statusErr) {
		status = statusErr.Status
	}
	slog.Error("decoding error, dropping frame",
		"session_id", s.id,
		"frame_index", index,
		"status", status,
		"error", cause)

	s.stats.FramesDropped++
	s.emit(Event{Kind: EventFrameDropped, FrameIndex: index, Err: err})

	if sinkErr := s.sink.FinishFrame(nil); sinkErr != nil {
		return fmt.Errorf("failed to finish dropped frame %d: %w", index, sinkErr)
	}
	return nil
}
