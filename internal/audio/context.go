package audio

import (
	"fmt"
	"log/slog"
)

// DecodeContext holds the negotiated stream parameters and the engine state
// for one stream. It has a single owner and is not safe for concurrent use.
type DecodeContext struct {
	Variant    Variant
	SampleRate int
	Channels   int
	BitRate    int
	BlockAlign int

	extraData []byte
	state     EngineState
	closed    bool
}

// NewDecodeContext allocates a zeroed decode context. No engine call is made.
func NewDecodeContext() *DecodeContext {
	slog.Debug("allocating decode context")
	return &DecodeContext{}
}

// ExtraData returns the codec initialization bytes owned by the context
func (dc *DecodeContext) ExtraData() []byte {
	return dc.extraData
}

// setExtraData stores a private copy sized exactly to data
func (dc *DecodeContext) setExtraData(data []byte) {
	if len(data) == 0 {
		dc.extraData = nil
		return
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	dc.extraData = owned
}

// Initialized reports whether the engine state was successfully created
func (dc *DecodeContext) Initialized() bool {
	return dc.state != nil
}

// IsClosed reports whether Close has been called
func (dc *DecodeContext) IsClosed() bool {
	return dc.closed
}

// releaseEngine drops the engine state, if any, leaving the rest of the
// context intact so it can be renegotiated
func (dc *DecodeContext) releaseEngine() error {
	if dc.state == nil {
		return nil
	}

	state := dc.state
	dc.state = nil
	if err := state.Release(); err != nil {
		slog.Error("failed to release engine state", "error", err)
		return fmt.Errorf("failed to release engine state: %w", err)
	}

	slog.Debug("engine state released")
	return nil
}

// reset clears every negotiated field
func (dc *DecodeContext) reset() {
	dc.Variant = VariantUnknown
	dc.SampleRate = 0
	dc.Channels = 0
	dc.BitRate = 0
	dc.BlockAlign = 0
	dc.extraData = nil
}

// Close releases the engine state if it was initialized and drops the
// extradata. Safe on a context that never negotiated, and idempotent.
func (dc *DecodeContext) Close() error {
	if dc.closed {
		slog.Debug("decode context already closed")
		return nil
	}

	slog.Debug("closing decode context", "engine_initialized", dc.Initialized())

	err := dc.releaseEngine()
	dc.reset()
	dc.closed = true

	if err != nil {
		return err
	}

	slog.Debug("decode context closed")
	return nil
}
