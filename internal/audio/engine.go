package audio

// Engine is an external decoding backend. Init is called once per
// negotiation with a fully populated context; the returned state is owned by
// that context and released when the context is closed.
type Engine interface {
	// Name identifies the engine in configuration and logs
	Name() string

	// Init prepares decoding state for the negotiated stream
	Init(dc *DecodeContext) (EngineState, error)
}

// EngineState is the opaque per-stream state produced by Engine.Init
type EngineState interface {
	// DecodeSuperframe decodes one compressed superframe. The frame slice is
	// only valid for the duration of the call. On success the returned buffer
	// is owned by the engine and must be released exactly once by the caller.
	// A nil buffer with a nil error is treated as a zero status.
	DecodeSuperframe(frame []byte) (PCMBuffer, error)

	// Release frees all engine resources. Called at most once.
	Release() error
}

// PCMBuffer is engine-owned interleaved S16 output of one decode call
type PCMBuffer interface {
	// Bytes returns the decoded samples; valid until Release
	Bytes() []byte

	// Release hands the buffer back to the engine
	Release()
}
